package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/openminiapp/miniapp/internal/shared/types"
	"github.com/openminiapp/miniapp/internal/transport"
)

// Transport is the narrow surface the client needs from the HTTP layer.
type Transport interface {
	Send(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// ManifestCache lets GetMetadata short-circuit to a previously accepted
// manifest without a network round trip.
type ManifestCache interface {
	Cached(appID string) (*types.Manifest, bool)
}

// Config holds the registry endpoint configuration.
type Config struct {
	BaseURL         string
	HostID          string
	SubscriptionKey string
	// Preview disables the metadata cache short-circuit so unpublished
	// builds always hit the network.
	Preview bool
}

// Client maps typed registry operations onto transport calls.
type Client struct {
	transport Transport
	cache     ManifestCache
	cfg       Config
}

// ManifestResult pairs a decoded manifest with the verification material
// captured from the HTTP response: the Signature header and the publicKeyId
// body field are required together for signature checking to be attempted.
type ManifestResult struct {
	Manifest    *types.Manifest
	Signature   string
	PublicKeyID string
	FromCache   bool
}

// New creates a registry client.
func New(t Transport, cache ManifestCache, cfg Config) *Client {
	return &Client{transport: t, cache: cache, cfg: cfg}
}

// endpoint builds a registry URL, failing fast when the base configuration
// is blank so no network call is ever attempted with a bad URL.
func (c *Client) endpoint(parts ...string) (string, error) {
	if c.cfg.BaseURL == "" || c.cfg.HostID == "" {
		return "", transport.ErrInvalidURL
	}
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", transport.ErrInvalidURL
	}
	return base.JoinPath(parts...).String(), nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if c.cfg.SubscriptionKey != "" {
		h["Subscription-Key"] = c.cfg.SubscriptionKey
	}
	return h
}

func (c *Client) get(ctx context.Context, target string, out interface{}) (*transport.Response, error) {
	resp, err := c.transport.Send(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     target,
		Headers: c.headers(),
	})
	if err != nil {
		var serverErr *transport.ServerError
		if errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusNotFound {
			return nil, ErrMiniAppNotFound
		}
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return resp, nil
}

// ListMiniApps fetches every mini app published to this host.
func (c *Client) ListMiniApps(ctx context.Context) ([]types.MiniAppInfo, error) {
	target, err := c.endpoint("host", c.cfg.HostID, "miniapps")
	if err != nil {
		return nil, err
	}
	var infos []types.MiniAppInfo
	if _, err := c.get(ctx, target, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// GetMiniAppInfo fetches info for one app. When versionID is empty the first
// listed version is used; an empty version list is a distinct error.
func (c *Client) GetMiniAppInfo(ctx context.Context, appID, versionID string) (*types.MiniAppInfo, error) {
	target, err := c.endpoint("host", c.cfg.HostID, "miniapps", appID)
	if err != nil {
		return nil, err
	}
	var versions []types.MiniAppInfo
	if _, err := c.get(ctx, target, &versions); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ErrNoPublishedVersion
	}
	if versionID == "" {
		return &versions[0], nil
	}
	for i := range versions {
		if versions[i].Version.VersionID == versionID {
			return &versions[i], nil
		}
	}
	return nil, ErrNoPublishedVersion
}

// GetManifest fetches the permission manifest for one (appID, versionID),
// capturing the Signature header alongside the decoded body.
func (c *Client) GetManifest(ctx context.Context, appID, versionID string) (*ManifestResult, error) {
	target, err := c.endpoint("miniapp", appID, "version", versionID, "manifest")
	if err != nil {
		return nil, err
	}
	var manifest types.Manifest
	resp, err := c.get(ctx, target, &manifest)
	if err != nil {
		return nil, err
	}
	manifest.VersionID = versionID
	return &ManifestResult{
		Manifest:    &manifest,
		Signature:   resp.Headers.Get("Signature"),
		PublicKeyID: manifest.PublicKeyID,
	}, nil
}

// GetMetadata fetches manifest metadata, short-circuiting to the cached
// manifest when not previewing and a cache entry exists.
func (c *Client) GetMetadata(ctx context.Context, appID, versionID string) (*ManifestResult, error) {
	if !c.cfg.Preview && c.cache != nil {
		if cached, ok := c.cache.Cached(appID); ok {
			return &ManifestResult{Manifest: cached, FromCache: true}, nil
		}
	}
	return c.GetManifest(ctx, appID, versionID)
}

// GetPreviewInfo resolves a preview token into an unpublished build.
func (c *Client) GetPreviewInfo(ctx context.Context, token string) (*types.PreviewInfo, error) {
	target, err := c.endpoint("preview", token)
	if err != nil {
		return nil, err
	}
	var info types.PreviewInfo
	if _, err := c.get(ctx, target, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ArchiveURL builds the binary download URL for one version.
func (c *Client) ArchiveURL(appID, versionID string) (string, error) {
	return c.endpoint("miniapp", appID, "version", versionID, "archive")
}
