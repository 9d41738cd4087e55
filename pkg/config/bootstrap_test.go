package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "namespaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadNamespacesFile_Valid(t *testing.T) {
	path := writeYAML(t, `
namespaces:
  - name: garden
    width: 10
    height: 10
    goal: paint it green
    epoch: 100
    actors:
      - id: alice
        x: 0
        y: 0
        facing: N
        scopes: [MOVE, PAINT]
`)

	nf, err := LoadNamespacesFile(path)
	require.NoError(t, err)
	require.Len(t, nf.Namespaces, 1)
	assert.Equal(t, "garden", nf.Namespaces[0].Name)
	assert.Equal(t, int64(100), nf.Namespaces[0].Epoch)
	require.Len(t, nf.Namespaces[0].Actors, 1)
	assert.Equal(t, "alice", nf.Namespaces[0].Actors[0].ID)
}

func TestLoadNamespacesFile_MissingNameFails(t *testing.T) {
	path := writeYAML(t, `
namespaces:
  - width: 10
    height: 10
    epoch: 100
`)
	_, err := LoadNamespacesFile(path)
	assert.Error(t, err)
}

func TestLoadNamespacesFile_NonPositiveDimensionsFails(t *testing.T) {
	path := writeYAML(t, `
namespaces:
  - name: garden
    width: 0
    height: 10
    epoch: 100
`)
	_, err := LoadNamespacesFile(path)
	assert.Error(t, err)
}

func TestLoadNamespacesFile_NonPositiveEpochFails(t *testing.T) {
	path := writeYAML(t, `
namespaces:
  - name: garden
    width: 10
    height: 10
    epoch: 0
`)
	_, err := LoadNamespacesFile(path)
	assert.Error(t, err)
}

func TestLoadNamespacesFile_MissingFileFails(t *testing.T) {
	_, err := LoadNamespacesFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
