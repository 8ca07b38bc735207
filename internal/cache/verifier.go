// Package cache verifies the integrity of installed mini-app bundles.
//
// The verifier recomputes a two-level SHA-256 over the installed version
// tree: each file is hashed individually (streamed, so memory stays bounded
// for large bundles), then the concatenation of the per-file digests, sorted
// by relative path, is hashed again. The combined digest is compared against
// a previously stored hash to detect on-disk tampering or partial-install
// corruption without a network round trip.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/openminiapp/miniapp/internal/keyedstore"
	"github.com/openminiapp/miniapp/internal/shared/paths"
)

// Service is the keyed-store service name for tree hashes.
const Service = "miniapp.cachehash"

// ErrNoStoredHash indicates Verify was called before StoreHash.
var ErrNoStoredHash = errors.New("no stored hash for app")

// VersionResolver reports the currently installed version of an app.
type VersionResolver interface {
	CurrentVersion(appID string) (string, bool)
}

// Verifier computes and checks bundle tree hashes.
type Verifier struct {
	root    string
	keyed   keyedstore.Store
	resolve VersionResolver
}

// NewVerifier creates a verifier over one cache root.
func NewVerifier(root string, keyed keyedstore.Store, resolve VersionResolver) *Verifier {
	return &Verifier{root: root, keyed: keyed, resolve: resolve}
}

// StoreHash recomputes the installed tree hash and persists it.
func (v *Verifier) StoreHash(appID string) error {
	hash, err := v.currentTreeHash(appID)
	if err != nil {
		return err
	}
	return v.keyed.Set(Service, appID, []byte(hash))
}

// Verify recomputes the tree hash and compares it with the stored one.
func (v *Verifier) Verify(appID string) (bool, error) {
	stored, err := v.keyed.Get(Service, appID)
	if errors.Is(err, keyedstore.ErrNotFound) {
		return false, ErrNoStoredHash
	}
	if err != nil {
		return false, err
	}
	hash, err := v.currentTreeHash(appID)
	if err != nil {
		return false, err
	}
	return hash == string(stored), nil
}

// Forget drops the stored hash for an app.
func (v *Verifier) Forget(appID string) error {
	if err := v.keyed.Remove(Service, appID); err != nil && !errors.Is(err, keyedstore.ErrNotFound) {
		return err
	}
	return nil
}

func (v *Verifier) currentTreeHash(appID string) (string, error) {
	versionID, ok := v.resolve.CurrentVersion(appID)
	if !ok {
		return "", fmt.Errorf("no installed version for %s", appID)
	}
	return TreeHash(paths.AppPath(v.root, appID).VersionDir(versionID))
}

// TreeHash computes the combined digest of every non-directory file under
// dir. Exported so the installer can seed the hash right after unpacking.
func TreeHash(dir string) (string, error) {
	type fileDigest struct {
		rel string
		sum [sha256.Size]byte
	}

	var (
		mu      sync.Mutex
		digests []fileDigest
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		sum, err := hashFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		mu.Lock()
		digests = append(digests, fileDigest{rel: filepath.ToSlash(rel), sum: sum})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return "", err
	}

	// fastwalk visits in nondeterministic order; sort by relative path so
	// the combined digest is stable.
	sort.Slice(digests, func(i, j int) bool { return digests[i].rel < digests[j].rel })

	combined := sha256.New()
	for _, d := range digests {
		combined.Write(d.sum[:])
	}
	return hex.EncodeToString(combined.Sum(nil)), nil
}

func hashFile(path string) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
