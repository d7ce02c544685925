// Package marker wraps environment-marker evaluation (spec.md §4.4): it
// extracts the canonical package name from a raw requirement string and
// decides whether a requirement's marker expression applies to the current
// project environment.
//
// The marker grammar implemented here is the subset the reference
// implementation (original_source src/core/marker.rs) actually evaluates:
// simple "key OP 'literal'" clauses joined by "and"/"or", left to right,
// over a fixed set of environment keys. Full PEP 508 nesting (parentheses,
// "extra ==" comparisons, function-valued markers) is out of scope, the
// same way spec.md §1 keeps marker evaluation an opaque collaborator.
package marker

import (
	"fmt"

	"github.com/distribution/depctl/platform"
)

// Env carries the values environment-marker expressions are evaluated
// against, derived from the project's interpreter version and the host
// platform.
type Env struct {
	OSName             string
	SysPlatform        string
	PlatformMachine    string
	PlatformSystem     string
	PythonVersion      string // MAJOR.MINOR
	PythonFullVersion  string // MAJOR.MINOR.PATCH, zero-padded
}

// NewEnv builds the marker Env for a project pinned to pythonVersion
// (MAJOR.MINOR) running on host.
func NewEnv(pythonVersion string, host platform.Host) Env {
	full := pythonVersion
	dots := countByte(pythonVersion, '.')
	switch dots {
	case 0:
		full = pythonVersion + ".0.0"
	case 1:
		full = pythonVersion + ".0"
	}

	return Env{
		OSName:            platform.OSName(host),
		SysPlatform:       platform.SysPlatform(host),
		PlatformMachine:   platform.Machine(host),
		PlatformSystem:    platform.System(host),
		PythonVersion:     majorMinor(pythonVersion),
		PythonFullVersion: full,
	}
}

func countByte(s string, b byte) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			n++
		}
	}
	return n
}

func majorMinor(v string) string {
	dots := 0
	for i := 0; i < len(v); i++ {
		if v[i] == '.' {
			dots++
			if dots == 2 {
				return v[:i]
			}
		}
	}
	return v
}

// lookup resolves an environment key to its current value. An unknown key
// is an error; Applies treats that error like a parse failure and includes
// the requirement (fail open) instead of aborting resolution.
func (e Env) lookup(key string) (string, error) {
	switch key {
	case "os_name":
		return e.OSName, nil
	case "sys_platform":
		return e.SysPlatform, nil
	case "platform_machine":
		return e.PlatformMachine, nil
	case "platform_system":
		return e.PlatformSystem, nil
	case "python_version":
		return e.PythonVersion, nil
	case "python_full_version":
		return e.PythonFullVersion, nil
	default:
		return "", fmt.Errorf("marker: unknown environment key %q", key)
	}
}
