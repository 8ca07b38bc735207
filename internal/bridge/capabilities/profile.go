package capabilities

import (
	"context"
	"errors"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Profile serves user-profile actions. Every action is gated by its custom
// permission before the host delegate is invoked; the engine enforces the
// gate, so Execute only sees requests the user already allowed.
type Profile struct {
	host bridge.Host
}

// NewProfile creates the profile capability over a host delegate.
func NewProfile(host bridge.Host) *Profile {
	return &Profile{host: host}
}

func (p *Profile) Definition() bridge.Definition {
	return bridge.Definition{
		ID:          "profile",
		Name:        "User Profile",
		Description: "Signed-in user name, photo, contacts, tokens, and points",
		Actions: []bridge.ActionSpec{
			{Action: "getUserName", Permission: types.PermissionUserName},
			{Action: "getProfilePhoto", Permission: types.PermissionProfilePhoto},
			{Action: "getContacts", Permission: types.PermissionContactList},
			{Action: "getAccessToken", Permission: types.PermissionAccessToken},
			{Action: "getPoints", Permission: types.PermissionPoints},
		},
	}
}

func (p *Profile) Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch action {
	case "getUserName":
		name, err := p.host.UserName(ctx, appCtx)
		if err != nil {
			return hostFailure(err)
		}
		return bridge.Success(map[string]interface{}{"userName": name})

	case "getProfilePhoto":
		photo, err := p.host.ProfilePhoto(ctx, appCtx)
		if err != nil {
			return hostFailure(err)
		}
		return bridge.Success(map[string]interface{}{"profilePhoto": photo})

	case "getContacts":
		contacts, err := p.host.ContactList(ctx, appCtx)
		if err != nil {
			return hostFailure(err)
		}
		out := make([]interface{}, 0, len(contacts))
		for _, c := range contacts {
			out = append(out, c)
		}
		return bridge.Success(map[string]interface{}{"contacts": out})

	case "getAccessToken":
		audience, _ := params["audience"].(string)
		token, err := p.host.AccessToken(ctx, appCtx, audience, stringSlice(params["scopes"]))
		if err != nil {
			return hostFailure(err)
		}
		return bridge.Success(map[string]interface{}{
			"token":     token.Token,
			"expiresAt": token.ExpiresAt,
			"scopes":    token.Scopes,
		})

	case "getPoints":
		points, err := p.host.Points(ctx, appCtx)
		if err != nil {
			return hostFailure(err)
		}
		return bridge.Success(map[string]interface{}{
			"standardPoints": points.Standard,
			"termPoints":     points.Term,
			"cashPoints":     points.Cash,
		})

	default:
		return bridge.Failure(bridge.ErrKindUnknownAction)
	}
}

func hostFailure(err error) (*types.Result, error) {
	if errors.Is(err, bridge.ErrNotImplemented) {
		return bridge.Failure(bridge.ErrKindNotImplemented)
	}
	return bridge.Failure(bridge.ErrKindHostFailure)
}

func stringSlice(value interface{}) []string {
	raw, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
