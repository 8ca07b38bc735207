package bridge

import (
	"context"
	"errors"

	"github.com/openminiapp/miniapp/internal/shared/types"
)

// ErrNotImplemented is returned by every UnimplementedHost method. Hosts
// embed UnimplementedHost and override only the capabilities they support.
var ErrNotImplemented = errors.New("capability not implemented by host")

// Contact is one entry from the host's contact picker.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// AccessToken is a scoped token issued by the host for a mini app.
type AccessToken struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	Scopes    []string `json:"scopes,omitempty"`
}

// Points is the user's loyalty point balance.
type Points struct {
	Standard int `json:"standard"`
	Term     int `json:"term"`
	Cash     int `json:"cash"`
}

// Host aggregates the capability delegates a host application provides.
// Each method is one async capability; the engine invokes them only after
// its own permission gate passes.
type Host interface {
	// RequestDevicePermission prompts for an OS-level permission (location
	// and similar) and reports the resulting grant.
	RequestDevicePermission(ctx context.Context, appCtx *types.Context, permission string) (bool, error)

	// RequestCustomPermissions presents a consent UI for SDK-defined
	// permissions and returns the user's decisions.
	RequestCustomPermissions(ctx context.Context, appCtx *types.Context, requested []types.PermissionRecord) ([]types.PermissionRecord, error)

	// UserName returns the display name of the signed-in user.
	UserName(ctx context.Context, appCtx *types.Context) (string, error)

	// ProfilePhoto returns a URL or data URI for the user's photo.
	ProfilePhoto(ctx context.Context, appCtx *types.Context) (string, error)

	// ContactList opens the host contact picker.
	ContactList(ctx context.Context, appCtx *types.Context) ([]Contact, error)

	// AccessToken issues a token scoped to the requesting mini app.
	AccessToken(ctx context.Context, appCtx *types.Context, audience string, scopes []string) (*AccessToken, error)

	// Points returns the user's point balance.
	Points(ctx context.Context, appCtx *types.Context) (*Points, error)

	// ShareContent hands content to the host share sheet.
	ShareContent(ctx context.Context, appCtx *types.Context, content string) error

	// DownloadFile saves a remote file through the host and returns the
	// final filename.
	DownloadFile(ctx context.Context, appCtx *types.Context, url, filename string, headers map[string]string) (string, error)

	// Purchase runs an in-app purchase and returns the transaction id.
	Purchase(ctx context.Context, appCtx *types.Context, productID string) (string, error)
}

// UnimplementedHost fails every capability with ErrNotImplemented.
type UnimplementedHost struct{}

var _ Host = UnimplementedHost{}

func (UnimplementedHost) RequestDevicePermission(context.Context, *types.Context, string) (bool, error) {
	return false, ErrNotImplemented
}

func (UnimplementedHost) RequestCustomPermissions(context.Context, *types.Context, []types.PermissionRecord) ([]types.PermissionRecord, error) {
	return nil, ErrNotImplemented
}

func (UnimplementedHost) UserName(context.Context, *types.Context) (string, error) {
	return "", ErrNotImplemented
}

func (UnimplementedHost) ProfilePhoto(context.Context, *types.Context) (string, error) {
	return "", ErrNotImplemented
}

func (UnimplementedHost) ContactList(context.Context, *types.Context) ([]Contact, error) {
	return nil, ErrNotImplemented
}

func (UnimplementedHost) AccessToken(context.Context, *types.Context, string, []string) (*AccessToken, error) {
	return nil, ErrNotImplemented
}

func (UnimplementedHost) Points(context.Context, *types.Context) (*Points, error) {
	return nil, ErrNotImplemented
}

func (UnimplementedHost) ShareContent(context.Context, *types.Context, string) error {
	return ErrNotImplemented
}

func (UnimplementedHost) DownloadFile(context.Context, *types.Context, string, string, map[string]string) (string, error) {
	return "", ErrNotImplemented
}

func (UnimplementedHost) Purchase(context.Context, *types.Context, string) (string, error) {
	return "", ErrNotImplemented
}
