// Package id provides centralized ID generation for the runtime.
//
// ULIDs are used everywhere an identifier is minted locally: they are
// lexicographically sortable, prefix-typed for readable logs, and cheap to
// generate. Registry-assigned identifiers (app IDs, version IDs) are opaque
// strings and never pass through this package.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one active mini-app session.
type SessionID string

// InstallID identifies one download/install attempt.
type InstallID string

// RequestID identifies an API request.
type RequestID string

const (
	sessionPrefix = "sess"
	installPrefix = "inst"
	requestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator with the given entropy source. Tests pass
// a deterministic reader.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(sessionPrefix))
}

// NewInstallID generates a new install ID.
func NewInstallID() InstallID {
	return InstallID(Default().GenerateWithPrefix(installPrefix))
}

// NewRequestID generates a new request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(requestPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id InstallID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }
