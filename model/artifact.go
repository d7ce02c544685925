package model

import (
	"github.com/opencontainers/go-digest"
)

// PlatformTag is drawn from the closed set of platform tags spec.md §3
// defines for Artifact.
type PlatformTag string

const (
	PlatformWinAMD64         PlatformTag = "win_amd64"
	PlatformMacArm64         PlatformTag = "macosx_arm64"
	PlatformMacX8664         PlatformTag = "macosx_x86_64"
	PlatformManylinux        PlatformTag = "manylinux"
	PlatformManylinuxAarch64 PlatformTag = "manylinux_aarch64"
	PlatformAny              PlatformTag = "any"
	PlatformSource           PlatformTag = "source"
	PlatformOther            PlatformTag = "other"
)

// ArtifactKind distinguishes the two distribution kinds named in spec.md
// §1: a pre-built binary archive, one per platform, or a source archive.
type ArtifactKind int

const (
	KindBinary ArtifactKind = iota
	KindSource
)

// Artifact is one downloadable file for a given (package, version).
type Artifact struct {
	URL      string       `json:"url"`
	Filename string       `json:"filename"`
	SHA256   string       `json:"sha256"`
	Platform PlatformTag  `json:"platform"`
}

// ValidDigest reports whether the artifact's digest is a well-formed
// SHA-256 hex digest, the invariant spec.md §3 requires of Artifact. The
// wire format is the bare hex string (spec.md §4.6), so SHA256 is wrapped
// as an `opencontainers/go-digest` digest for validation rather than
// stored with its "sha256:" prefix.
func (a Artifact) ValidDigest() bool {
	return digest.NewDigestFromEncoded(digest.SHA256, a.SHA256).Validate() == nil
}

// Digest returns the artifact's SHA256 field as an
// `opencontainers/go-digest` Digest, for comparison against freshly
// computed digests during download verification (syncer package).
func (a Artifact) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(digest.SHA256, a.SHA256)
}
