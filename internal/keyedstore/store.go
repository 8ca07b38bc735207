// Package keyedstore provides a small typed key-value store keyed by
// (service, account), the runtime's stand-in for an OS credential store.
//
// Values are sealed with NaCl secretbox under a per-service key derived from
// a master secret with HKDF, so permission hashes and grant records are
// unreadable and tamper-evident at rest. All serialization goes through one
// explicit JSON codec.
package keyedstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrNotFound indicates no value exists for the (service, account) pair.
var ErrNotFound = errors.New("keyed store entry not found")

// Store is the narrow contract consumed by the manifest and permission
// stores.
type Store interface {
	Get(service, account string) ([]byte, error)
	Set(service, account string, value []byte) error
	Remove(service, account string) error
}

// FileStore seals entries into a single JSON file.
type FileStore struct {
	path   string
	master [32]byte

	mu      sync.Mutex
	entries map[string]string // composite key -> base64(nonce||box)
	loaded  bool
}

// NewFileStore opens (or initializes) the store at path. The master secret
// lives next to the store file with 0600 permissions and is created on first
// use.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	master, err := loadOrCreateMaster(path + ".key")
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, master: master}, nil
}

func loadOrCreateMaster(path string) ([32]byte, error) {
	var key [32]byte
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != len(key) {
			return key, fmt.Errorf("corrupt master key file %s", path)
		}
		copy(key[:], data)
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return key, err
	}
	if _, err := rand.Read(key[:]); err != nil {
		return key, err
	}
	if err := os.WriteFile(path, key[:], 0o600); err != nil {
		return key, err
	}
	return key, nil
}

func compositeKey(service, account string) string {
	return service + "\x00" + account
}

// serviceKey derives the sealing key for one service from the master secret.
func (s *FileStore) serviceKey(service string) ([32]byte, error) {
	var key [32]byte
	r := hkdf.New(sha256.New, s.master[:], []byte(service), []byte("keyedstore"))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}
	s.entries = make(map[string]string)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return fmt.Errorf("corrupt keyed store: %w", err)
	}
	s.loaded = true
	return nil
}

func (s *FileStore) flush() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Get returns the unsealed value for (service, account).
func (s *FileStore) Get(service, account string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	sealed, ok := s.entries[compositeKey(service, account)]
	if !ok {
		return nil, ErrNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < 24 {
		return nil, fmt.Errorf("corrupt keyed store entry for %s", service)
	}
	key, err := s.serviceKey(service)
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	value, ok := secretbox.Open(nil, raw[24:], &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("keyed store entry for %s failed authentication", service)
	}
	return value, nil
}

// Set seals and persists the value for (service, account).
func (s *FileStore) Set(service, account string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	key, err := s.serviceKey(service)
	if err != nil {
		return err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &key)
	s.entries[compositeKey(service, account)] = base64.StdEncoding.EncodeToString(sealed)
	return s.flush()
}

// Remove deletes the value for (service, account). Removing a missing entry
// is a no-op.
func (s *FileStore) Remove(service, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	delete(s.entries, compositeKey(service, account))
	return s.flush()
}
