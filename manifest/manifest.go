// Package manifest implements the Manifest component (spec.md §4.8, §6):
// the user-authored project file declaring direct dependencies, the
// required interpreter version and the environment directory.
//
// Manifest keeps the teacher's round-trip idiom from the registry's image
// manifest type (manifest/manifest.go): known fields are modelled as a
// struct, and whatever the struct doesn't know about is kept verbatim so a
// save doesn't clobber fields this tool has never heard of.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/distribution/depctl/model"
)

// fieldOrder is the stable top-level key order spec.md §6 requires on
// save.
var fieldOrder = []string{"name", "version", "python_version", "dependencies", "virtualEnvironment"}

// Manifest is the project declaration at <project>/manifest.json.
type Manifest struct {
	Name               string            `json:"name"`
	Version            string            `json:"version"`
	PythonVersion      string            `json:"python_version"`
	Dependencies       map[string]string `json:"dependencies"`
	VirtualEnvironment string            `json:"virtualEnvironment"`

	// extra preserves unknown top-level keys across load/save.
	extra map[string]json.RawMessage
}

// SchemaError is ManifestError::Schema — a required key is missing or the
// wrong shape.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("manifest: %s: %s", e.Path, e.Reason)
}

// Default returns the Manifest `init` writes when none exists.
func Default(name string) *Manifest {
	return &Manifest{
		Name:               name,
		Version:            "0.0.1",
		PythonVersion:      "3.12",
		Dependencies:       map[string]string{},
		VirtualEnvironment: ".venv",
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &SchemaError{Path: path, Reason: err.Error()}
	}

	m := &Manifest{extra: map[string]json.RawMessage{}}
	for _, key := range fieldOrder {
		v, ok := raw[key]
		if !ok {
			return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("missing required key %q", key)}
		}
		delete(raw, key)

		switch key {
		case "name":
			if err := json.Unmarshal(v, &m.Name); err != nil {
				return nil, &SchemaError{Path: path, Reason: "name: " + err.Error()}
			}
		case "version":
			if err := json.Unmarshal(v, &m.Version); err != nil {
				return nil, &SchemaError{Path: path, Reason: "version: " + err.Error()}
			}
		case "python_version":
			if err := json.Unmarshal(v, &m.PythonVersion); err != nil {
				return nil, &SchemaError{Path: path, Reason: "python_version: " + err.Error()}
			}
		case "dependencies":
			if err := json.Unmarshal(v, &m.Dependencies); err != nil {
				return nil, &SchemaError{Path: path, Reason: "dependencies: " + err.Error()}
			}
		case "virtualEnvironment":
			if err := json.Unmarshal(v, &m.VirtualEnvironment); err != nil {
				return nil, &SchemaError{Path: path, Reason: "virtualEnvironment: " + err.Error()}
			}
		}
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	m.extra = raw
	return m, nil
}

// Save writes m as pretty JSON with a stable top-level key order,
// preserving any unknown keys that were present when it was loaded.
// Writes are atomic: sibling temp file, then rename.
func Save(path string, m *Manifest) error {
	buf, err := marshalOrdered(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("manifest: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("manifest: rename into place: %w", err)
	}
	return nil
}

// marshalOrdered builds the pretty-printed document by hand so the
// top-level key order is exactly fieldOrder followed by any preserved
// unknown keys, sorted for determinism.
func marshalOrdered(m *Manifest) ([]byte, error) {
	known := map[string]interface{}{
		"name":               m.Name,
		"version":            m.Version,
		"python_version":     m.PythonVersion,
		"dependencies":       m.Dependencies,
		"virtualEnvironment": m.VirtualEnvironment,
	}

	extraKeys := make([]string, 0, len(m.extra))
	for k := range m.extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)

	var buf bytes.Buffer
	buf.WriteString("{\n")
	total := len(fieldOrder) + len(extraKeys)
	idx := 0

	writeEntry := func(key string, raw json.RawMessage, value interface{}) error {
		var valJSON []byte
		var err error
		if raw != nil {
			valJSON = raw
		} else {
			valJSON, err = json.Marshal(value)
			if err != nil {
				return fmt.Errorf("manifest: marshal %s: %w", key, err)
			}
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, valJSON, "  ", "  "); err != nil {
			return fmt.Errorf("manifest: indent %s: %w", key, err)
		}

		keyJSON, _ := json.Marshal(key)
		buf.WriteString("  ")
		buf.Write(keyJSON)
		buf.WriteString(": ")
		buf.Write(pretty.Bytes())
		idx++
		if idx != total {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
		return nil
	}

	for _, key := range fieldOrder {
		if err := writeEntry(key, nil, known[key]); err != nil {
			return nil, err
		}
	}
	for _, key := range extraKeys {
		if err := writeEntry(key, m.extra[key], nil); err != nil {
			return nil, err
		}
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// AddDep adds a new direct dependency. It reports an error if name is
// already present (by canonical comparison), mirroring spec.md §4.9's
// "reject if already present".
func (m *Manifest) AddDep(name, versionConstraint string) error {
	canon := model.CanonicalName(name)
	for existing := range m.Dependencies {
		if model.CanonicalName(existing) == canon {
			return fmt.Errorf("manifest: dependency %q already present", name)
		}
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	m.Dependencies[name] = versionConstraint
	return nil
}

// RemoveDep removes a direct dependency by canonical name, reporting
// whether anything was removed.
func (m *Manifest) RemoveDep(name string) bool {
	canon := model.CanonicalName(name)
	for existing := range m.Dependencies {
		if model.CanonicalName(existing) == canon {
			delete(m.Dependencies, existing)
			return true
		}
	}
	return false
}
