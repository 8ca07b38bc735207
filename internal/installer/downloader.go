package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/cache"
	"github.com/openminiapp/miniapp/internal/infrastructure/config"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/infrastructure/monitoring"
	"github.com/openminiapp/miniapp/internal/manifeststore"
	"github.com/openminiapp/miniapp/internal/registry"
	"github.com/openminiapp/miniapp/internal/shared/id"
	"github.com/openminiapp/miniapp/internal/shared/paths"
	"github.com/openminiapp/miniapp/internal/shared/types"
	"github.com/openminiapp/miniapp/internal/transport"
)

// State names one step of an install session.
type State string

const (
	StateIdle             State = "idle"
	StateManifestFetching State = "manifest_fetching"
	StateManifestCached   State = "manifest_cached"
	StateManifestFetched  State = "manifest_fetched"
	StateDownloading      State = "downloading"
	StateVerifying        State = "verifying"
	StateInstalling       State = "installing"
	StateInstalled        State = "installed"
	StateError            State = "error"
)

// Result is the terminal outcome of a successful install.
type Result struct {
	AppID             string
	VersionID         string
	Path              string
	SignatureChecked  bool
	ManifestFromCache bool
}

// Downloader orchestrates manifest fetch, consent check, download,
// verification, install, and eviction for one cache root. It exclusively
// owns install and evict decisions.
type Downloader struct {
	root      string
	client    *registry.Client
	archives  *registry.Downloader
	manifests *manifeststore.Store
	records   *RecordStore
	verifier  *cache.Verifier
	keys      KeyStore
	signature config.SignatureConfig
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	mu     sync.Mutex
	states map[string]State
}

// New creates a downloader.
func New(
	root string,
	client *registry.Client,
	archives *registry.Downloader,
	manifests *manifeststore.Store,
	records *RecordStore,
	verifier *cache.Verifier,
	keys KeyStore,
	signature config.SignatureConfig,
	logger *logging.Logger,
) *Downloader {
	return &Downloader{
		root:      root,
		client:    client,
		archives:  archives,
		manifests: manifests,
		records:   records,
		verifier:  verifier,
		keys:      keys,
		signature: signature,
		logger:    logger,
		states:    make(map[string]State),
	}
}

// WithMetrics adds metrics tracking to the downloader.
func (d *Downloader) WithMetrics(metrics *monitoring.Metrics) *Downloader {
	d.metrics = metrics
	return d
}

// Records exposes the install record store.
func (d *Downloader) Records() *RecordStore {
	return d.records
}

func sessionKey(appID, versionID string) string {
	return appID + "/" + versionID
}

func (d *Downloader) setState(appID, versionID string, s State) {
	d.mu.Lock()
	d.states[sessionKey(appID, versionID)] = s
	d.mu.Unlock()
}

// Status returns the current state of one install session.
func (d *Downloader) Status(appID, versionID string) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.states[sessionKey(appID, versionID)]; ok {
		return s
	}
	return StateIdle
}

// AcceptManifest records user consent for a manifest. The host calls this
// after its consent UI approves; a following Install finds the hashes equal
// and proceeds.
func (d *Downloader) AcceptManifest(appID string, m *types.Manifest) error {
	return d.manifests.Accept(appID, m)
}

// FetchManifest resolves the manifest for one version, applying the two
// local recoveries: offline with a cached manifest returns the cached one,
// and a rate-limit error evicts every cached version before surfacing.
func (d *Downloader) FetchManifest(ctx context.Context, appID, versionID string) (*registry.ManifestResult, error) {
	d.setState(appID, versionID, StateManifestFetching)

	result, err := d.client.GetMetadata(ctx, appID, versionID)
	if err != nil {
		if transport.IsRateLimited(err) {
			// Compensating action: force a clean re-fetch next time. The
			// original error still reaches the caller.
			if evictErr := d.CleanAllVersions(appID); evictErr != nil {
				d.logger.Warn("rate-limit eviction failed",
					zap.String("app_id", appID), zap.Error(evictErr))
			}
			d.setState(appID, versionID, StateError)
			return nil, err
		}
		if transport.IsOffline(err) {
			// Prefer stale over broken: an accepted manifest on disk beats
			// a network error.
			if cached, ok := d.manifests.Cached(appID); ok {
				d.setState(appID, versionID, StateManifestCached)
				return &registry.ManifestResult{Manifest: cached, FromCache: true}, nil
			}
		}
		d.setState(appID, versionID, StateError)
		return nil, err
	}

	if result.FromCache {
		d.setState(appID, versionID, StateManifestCached)
	} else {
		d.setState(appID, versionID, StateManifestFetched)
	}
	return result, nil
}

// Install runs the full pipeline for one (appID, versionID). The version
// tag is the registry's human-readable name for the version and is kept on
// the install record. Install returns ErrPermissionRequired when consent is
// needed; the host presents its consent UI, calls AcceptManifest, and
// retries.
func (d *Downloader) Install(ctx context.Context, appID, versionID, versionTag string) (*Result, error) {
	if err := paths.ValidateID(appID); err != nil {
		return nil, err
	}
	if err := paths.ValidateID(versionID); err != nil {
		return nil, err
	}

	start := time.Now()
	if d.metrics != nil {
		d.metrics.InstallsActive.Inc()
		defer d.metrics.InstallsActive.Dec()
	}

	result, err := d.install(ctx, appID, versionID, versionTag, start)
	if err != nil {
		d.setState(appID, versionID, StateError)
		if d.metrics != nil {
			d.metrics.RecordDownload(outcomeOf(err), time.Since(start))
		}
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.RecordDownload("installed", time.Since(start))
	}
	return result, nil
}

func (d *Downloader) install(ctx context.Context, appID, versionID, versionTag string, start time.Time) (*Result, error) {
	installID := id.NewInstallID()

	manifest, err := d.FetchManifest(ctx, appID, versionID)
	if err != nil {
		return nil, err
	}

	// A freshly fetched manifest proceeds only when its permission hash
	// matches the last accepted one. The cached-manifest path was accepted
	// by construction.
	if !manifest.FromCache && !d.manifests.CheckManifest(appID, manifest.Manifest) {
		return nil, fmt.Errorf("%w: %s@%s", ErrPermissionRequired, appID, versionID)
	}

	if _, err := d.records.Begin(appID, versionID, versionTag); err != nil {
		return nil, err
	}

	d.setState(appID, versionID, StateDownloading)
	app := paths.AppPath(d.root, appID)
	tempDir := app.TempDir(versionID)
	archivePath := tempDir + ".archive"
	defer os.RemoveAll(tempDir)
	defer os.Remove(archivePath)

	archiveURL, err := d.client.ArchiveURL(appID, versionID)
	if err != nil {
		return nil, err
	}
	if err := d.archives.Fetch(ctx, archiveURL, archivePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	d.setState(appID, versionID, StateVerifying)
	signatureChecked := false
	if d.signature.Enabled {
		signatureChecked = verifyArchive(d.keys, archivePath, manifest.Signature, manifest.PublicKeyID)
		if !signatureChecked && d.signature.Mandatory {
			return nil, fmt.Errorf("%w: %s@%s", ErrSignatureVerification, appID, versionID)
		}
		if !signatureChecked {
			d.logger.Warn("signature unchecked, policy allows install",
				zap.String("app_id", appID),
				zap.String("version_id", versionID),
				zap.String("public_key_id", manifest.PublicKeyID),
			)
		}
	}

	d.setState(appID, versionID, StateInstalling)
	if err := unpackArchive(ctx, archivePath, tempDir); err != nil {
		return nil, err
	}

	versionDir := app.VersionDir(versionID)
	if err := os.RemoveAll(versionDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(app.Dir(), 0o755); err != nil {
		return nil, err
	}
	if err := os.Rename(tempDir, versionDir); err != nil {
		return nil, err
	}

	if err := d.records.Complete(appID, signatureChecked); err != nil {
		return nil, err
	}
	if err := d.CleanVersions(appID, versionID); err != nil {
		return nil, err
	}
	if err := d.verifier.StoreHash(appID); err != nil {
		return nil, err
	}

	d.setState(appID, versionID, StateInstalled)
	d.logger.Info("mini app installed",
		zap.String("install_id", installID.String()),
		zap.String("app_id", appID),
		zap.String("version_id", versionID),
		zap.Bool("signature_checked", signatureChecked),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		AppID:             appID,
		VersionID:         versionID,
		Path:              versionDir,
		SignatureChecked:  signatureChecked,
		ManifestFromCache: manifest.FromCache,
	}, nil
}

// ResolvePath returns the installed bundle directory the rendering surface
// should serve from, verifying integrity first.
func (d *Downloader) ResolvePath(appID string) (string, error) {
	versionID, ok := d.records.CurrentVersion(appID)
	if !ok {
		return "", fmt.Errorf("no installed version for %s", appID)
	}
	valid, err := d.verifier.Verify(appID)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", fmt.Errorf("cache integrity check failed for %s", appID)
	}
	return paths.AppPath(d.root, appID).VersionDir(versionID), nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrPermissionRequired):
		return "consent_required"
	case errors.Is(err, ErrSignatureVerification):
		return "signature_failed"
	case errors.Is(err, ErrDownloadFailed):
		return "download_failed"
	case transport.IsRateLimited(err):
		return "rate_limited"
	case transport.IsOffline(err):
		return "offline"
	default:
		return "error"
	}
}
