package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppLayout(t *testing.T) {
	app := AppPath("/cache", "my-app")

	assert.Equal(t, filepath.Join("/cache", "MiniApp", "my-app"), app.Dir())
	assert.Equal(t, filepath.Join("/cache", "MiniApp", "my-app", "v1"), app.VersionDir("v1"))
	assert.Equal(t, filepath.Join("/cache", "MiniApp", "my-app", "manifest.json"), app.ManifestFile())
	assert.Equal(t, filepath.Join("/cache", "MiniApp", "my-app", "install.json"), app.InstallRecordFile())
	assert.Equal(t, filepath.Join("/cache", "MiniApp", "my-app", "securestorage.json"), app.SecureStorageFile("json"))
	assert.Equal(t, filepath.Join("/cache", "MiniApp", ".tmp", "my-app", "v1"), app.TempDir("v1"))
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple id", "miniapp-123", false},
		{"uuid style", "3e0ebca1-96e2-4c41-b0d9-39af50cfcaa1", false},
		{"empty", "", true},
		{"absolute path", "/etc/passwd", true},
		{"parent traversal", "../other", true},
		{"nested path", "a/b", true},
		{"dot", ".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
