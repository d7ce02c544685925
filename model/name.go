// Package model holds the data types shared across the resolve/lock/sync
// pipeline: canonical package names, parsed requirements, the resolved
// dependency graph and the artifacts a package may ship.
package model

import "strings"

// CanonicalName normalizes a package name the way the index, the resolver
// and the lockfile agree to compare them: lower-cased, with runs of '-',
// '_' and '.' collapsed to a single '_'.
func CanonicalName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(lower))
	sep := false
	for _, r := range lower {
		switch r {
		case '-', '_', '.':
			if !sep {
				b.WriteByte('_')
				sep = true
			}
		default:
			b.WriteRune(r)
			sep = false
		}
	}
	return b.String()
}
