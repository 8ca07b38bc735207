package installer

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
)

// KeyStore resolves a publicKeyId captured from the manifest response into a
// verification key. An unknown id means the signature cannot be checked;
// whether that blocks installation depends on the signature policy.
type KeyStore interface {
	PublicKey(keyID string) (ed25519.PublicKey, bool)
}

// StaticKeys is a KeyStore over a fixed id -> base64 key map, the form keys
// take in configuration.
type StaticKeys map[string]string

// PublicKey decodes and returns the key for keyID.
func (s StaticKeys) PublicKey(keyID string) (ed25519.PublicKey, bool) {
	encoded, ok := s[keyID]
	if !ok {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, false
	}
	return ed25519.PublicKey(raw), true
}

// verifyArchive checks the detached signature captured from the manifest
// response headers against the downloaded archive. It returns false, not an
// error, when the key is unknown or the signature is malformed: a failed
// check is only fatal when the policy says so.
func verifyArchive(keys KeyStore, archivePath, signature, keyID string) bool {
	if keys == nil || signature == "" || keyID == "" {
		return false
	}
	key, ok := keys.PublicKey(keyID)
	if !ok {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return false
	}
	return ed25519.Verify(key, data, sig)
}
