package capabilities

import (
	"context"
	"errors"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/permissions"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Consent serves permission prompts: device permissions relay straight to
// the host, custom permissions go through the host consent UI and the
// resulting decisions are persisted so later gated actions can check them
// without prompting again.
type Consent struct {
	host   bridge.Host
	grants *permissions.Store
}

// NewConsent creates the consent capability.
func NewConsent(host bridge.Host, grants *permissions.Store) *Consent {
	return &Consent{host: host, grants: grants}
}

func (c *Consent) Definition() bridge.Definition {
	return bridge.Definition{
		ID:          "consent",
		Name:        "Permission Prompts",
		Description: "Device and custom permission requests",
		Actions: []bridge.ActionSpec{
			{Action: "requestPermission"},
			{Action: "requestCustomPermissions"},
		},
	}
}

func (c *Consent) Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch action {
	case "requestPermission":
		name, ok := params["permission"].(string)
		if !ok || name == "" {
			return bridge.Failure(bridge.ErrKindInvalidParam)
		}
		granted, err := c.host.RequestDevicePermission(ctx, appCtx, name)
		if err != nil {
			return hostFailure(err)
		}
		if !granted {
			return bridge.Failure(bridge.ErrKindPermissionDenied)
		}
		return bridge.Success(map[string]interface{}{"permission": name, "granted": true})

	case "requestCustomPermissions":
		requested, err := parsePermissionRequests(params)
		if err != nil {
			return bridge.Failure(bridge.ErrKindInvalidParam)
		}
		decided, err := c.host.RequestCustomPermissions(ctx, appCtx, requested)
		if err != nil {
			return hostFailure(err)
		}
		if err := c.grants.StoreCustomPermissions(appCtx.AppID, decided); err != nil {
			return bridge.Failure(bridge.ErrKindHostFailure)
		}
		out := make([]interface{}, 0, len(decided))
		for _, record := range decided {
			out = append(out, map[string]interface{}{
				"permissionName": string(record.Name),
				"status":         string(record.Granted),
			})
		}
		return bridge.Success(map[string]interface{}{"permissions": out})

	default:
		return bridge.Failure(bridge.ErrKindUnknownAction)
	}
}

var errInvalidRequest = errors.New("invalid permission request")

func parsePermissionRequests(params map[string]interface{}) ([]types.PermissionRecord, error) {
	raw, ok := params["permissions"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, errInvalidRequest
	}
	records := make([]types.PermissionRecord, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, errInvalidRequest
		}
		name, _ := entry["name"].(string)
		if !types.IsKnownCustomPermission(types.CustomPermission(name)) {
			return nil, errInvalidRequest
		}
		description, _ := entry["description"].(string)
		records = append(records, types.PermissionRecord{
			Name:        types.CustomPermission(name),
			Granted:     types.GrantNotDetermined,
			Description: description,
		})
	}
	return records, nil
}
