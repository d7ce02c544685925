package model

import "strings"

// requirementSplitCutset is the set of characters a bare name-extraction
// fallback splits on, mirroring the fallback path of the reference
// implementation's extract_package_name.
const requirementSplitCutset = ";( <>=![ "

// Requirement is the parsed form of a dependency string such as
// "requests>=2.0.0; python_version>='3.8'".
type Requirement struct {
	// Raw is the untouched requirement string, kept for error messages.
	Raw string

	// Name is the package name as written in the requirement (not yet
	// canonicalized).
	Name string

	// Constraint is the raw version-constraint string, if any. It is kept
	// unparsed here; the resolver interprets it (pinned-version detection
	// and the forward-constraint check).
	Constraint string

	// Marker is the raw marker expression following ';', if any.
	Marker string
}

// CanonicalName returns the canonicalized form of the requirement's name.
func (r Requirement) CanonicalName() string {
	return CanonicalName(r.Name)
}

// ParseRequirement parses a requirement string into its name, constraint
// and marker parts. It never fails: malformed input degrades to a
// best-effort split, matching the fallback behaviour spec.md §4.4 demands
// of MarkerFilter.name_of.
func ParseRequirement(s string) Requirement {
	raw := s
	body, marker, _ := strings.Cut(s, ";")
	body = strings.TrimSpace(body)
	marker = strings.TrimSpace(marker)

	name, constraint := splitNameConstraint(body)
	return Requirement{
		Raw:        raw,
		Name:       name,
		Constraint: constraint,
		Marker:     marker,
	}
}

// splitNameConstraint separates the package name from the trailing version
// constraint / extras of a requirement body (the part before any marker).
func splitNameConstraint(body string) (name string, constraint string) {
	// Strip an extras marker, e.g. "requests[socks]>=2".
	if i := strings.IndexByte(body, '['); i >= 0 {
		if j := strings.IndexByte(body[i:], ']'); j >= 0 {
			body = body[:i] + body[i+j+1:]
		}
	}

	cut := strings.IndexAny(body, "<>=!")
	if cut < 0 {
		return strings.TrimSpace(body), ""
	}
	return strings.TrimSpace(body[:cut]), strings.TrimSpace(body[cut:])
}

// ExtractName implements the fallback half of MarkerFilter.name_of
// (marker.NameOf): a simple split on the first occurrence of any
// requirement delimiter, used when a full ParseRequirement yields an empty
// name.
func ExtractName(requirementStr string) string {
	idx := strings.IndexAny(requirementStr, requirementSplitCutset)
	if idx < 0 {
		return strings.TrimSpace(requirementStr)
	}
	return strings.TrimSpace(requirementStr[:idx])
}
