// Package selector implements the ArtifactSelector (spec.md §4.3): a pure
// decision ladder over a set of Artifacts, and the filename-based platform
// tag derivation table applied when the index doesn't provide one.
package selector

import (
	"strings"

	"github.com/distribution/depctl/model"
	"github.com/distribution/depctl/platform"
)

// Select returns the best artifact for host from artifacts, first match
// wins on this ladder:
//  1. exact platform match
//  2. family fallback (macosx_arm64 accepts macosx_x86_64; manylinux_aarch64
//     accepts manylinux)
//  3. universal "any"
//  4. source archive ("source" tag, or a ".tar.gz" filename)
//  5. none
func Select(artifacts []model.Artifact, host platform.Host) (model.Artifact, bool) {
	want := model.PlatformTag(host)

	if a, ok := find(artifacts, want); ok {
		return a, true
	}

	if fallback, ok := familyFallback(host); ok {
		if a, ok := find(artifacts, fallback); ok {
			return a, true
		}
	}

	if a, ok := find(artifacts, model.PlatformAny); ok {
		return a, true
	}

	for _, a := range artifacts {
		if a.Platform == model.PlatformSource || strings.HasSuffix(a.Filename, ".tar.gz") {
			return a, true
		}
	}

	return model.Artifact{}, false
}

func find(artifacts []model.Artifact, tag model.PlatformTag) (model.Artifact, bool) {
	for _, a := range artifacts {
		if a.Platform == tag {
			return a, true
		}
	}
	return model.Artifact{}, false
}

// familyFallback returns the one platform each host will accept as an
// emulation-capable or best-effort substitute, per spec.md §4.3 step 2.
func familyFallback(host platform.Host) (model.PlatformTag, bool) {
	switch host {
	case platform.MacArm64:
		return model.PlatformMacX8664, true
	case platform.ManylinuxAarch64:
		return model.PlatformManylinux, true
	default:
		return "", false
	}
}

// DeriveTag infers an Artifact's platform tag from its filename by
// substring lookup, applied when the index itself doesn't supply a tag.
func DeriveTag(filename string) model.PlatformTag {
	lower := strings.ToLower(filename)

	switch {
	case strings.Contains(lower, "win_amd64"), strings.Contains(lower, "win32"):
		return model.PlatformWinAMD64
	case strings.Contains(lower, "macosx") && (strings.Contains(lower, "arm64") || strings.Contains(lower, "aarch64")):
		return model.PlatformMacArm64
	case strings.Contains(lower, "macosx"):
		return model.PlatformMacX8664
	case strings.Contains(lower, "manylinux") && strings.Contains(lower, "aarch64"):
		return model.PlatformManylinuxAarch64
	case strings.Contains(lower, "manylinux"):
		return model.PlatformManylinux
	case strings.Contains(lower, "none-any"), strings.Contains(lower, "py3-none"), strings.Contains(lower, "py2.py3"):
		return model.PlatformAny
	case strings.HasSuffix(lower, ".tar.gz"):
		return model.PlatformSource
	default:
		return model.PlatformOther
	}
}
