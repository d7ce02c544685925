package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m := Default("demo")
	require.NoError(t, Save(path, m))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Name, loaded.Name)
	assert.Equal(t, m.PythonVersion, loaded.PythonVersion)
	assert.Equal(t, m.VirtualEnvironment, loaded.VirtualEnvironment)
}

func TestLoadMissingKeyIsSchemaError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"demo"}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestAddDepRejectsDuplicateByCanonicalName(t *testing.T) {
	m := Default("demo")
	require.NoError(t, m.AddDep("Re_Quests", "2.0.0"))
	err := m.AddDep("re-quests", "1.0.0")
	assert.Error(t, err)
}

func TestRemoveDep(t *testing.T) {
	m := Default("demo")
	require.NoError(t, m.AddDep("six", "1.16.0"))
	assert.True(t, m.RemoveDep("Six"))
	assert.False(t, m.RemoveDep("six"))
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	initial := map[string]interface{}{
		"name":               "demo",
		"version":            "0.0.1",
		"python_version":     "3.12",
		"dependencies":       map[string]string{},
		"virtualEnvironment": ".venv",
		"extraTool":          map[string]string{"flavor": "spicy"},
	}
	data, err := json.Marshal(initial)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Save(path, m))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "extraTool")
	assert.Contains(t, string(saved), "spicy")
}

func TestKeyOrderIsStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, Save(path, Default("demo")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	nameIdx := indexOf(string(data), `"name"`)
	versionIdx := indexOf(string(data), `"version"`)
	pyIdx := indexOf(string(data), `"python_version"`)
	depsIdx := indexOf(string(data), `"dependencies"`)
	venvIdx := indexOf(string(data), `"virtualEnvironment"`)

	assert.True(t, nameIdx < versionIdx)
	assert.True(t, versionIdx < pyIdx)
	assert.True(t, pyIdx < depsIdx)
	assert.True(t, depsIdx < venvIdx)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
