// Package platform derives the running host's platform tag, the input the
// ArtifactSelector (package selector) and MarkerFilter (package marker) need
// to pick artifacts and evaluate environment markers.
package platform

import (
	"runtime"

	"github.com/distribution/depctl/model"
)

// Host is one of the five concrete platforms spec.md §4.3 allows as a
// selection target (the sixth and seventh platform tags, "any" and
// "source", only ever describe artifacts, never a host).
type Host model.PlatformTag

const (
	WinAMD64         Host = Host(model.PlatformWinAMD64)
	MacArm64         Host = Host(model.PlatformMacArm64)
	MacX8664         Host = Host(model.PlatformMacX8664)
	Manylinux        Host = Host(model.PlatformManylinux)
	ManylinuxAarch64 Host = Host(model.PlatformManylinuxAarch64)
)

// Detect derives the Host from the Go runtime's GOOS/GOARCH, the same
// mapping a shell-level `uname`/`platform.machine()` lookup in the
// reference implementation performs.
func Detect() Host {
	switch runtime.GOOS {
	case "windows":
		return WinAMD64
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return MacArm64
		}
		return MacX8664
	case "linux":
		if runtime.GOARCH == "arm64" || runtime.GOARCH == "arm64be" {
			return ManylinuxAarch64
		}
		return Manylinux
	default:
		return Manylinux
	}
}

// OSName, SysPlatform, Machine and System reproduce the marker-environment
// fields spec.md §4.4 requires (os_name, sys_platform, platform_machine,
// platform_system) for the given host.
func OSName(h Host) string {
	if h == WinAMD64 {
		return "nt"
	}
	return "posix"
}

func SysPlatform(h Host) string {
	switch h {
	case WinAMD64:
		return "win32"
	case MacArm64, MacX8664:
		return "darwin"
	default:
		return "linux"
	}
}

func Machine(h Host) string {
	switch h {
	case WinAMD64:
		return "AMD64"
	case MacArm64:
		return "arm64"
	case MacX8664:
		return "x86_64"
	case ManylinuxAarch64:
		return "aarch64"
	default:
		return "x86_64"
	}
}

func System(h Host) string {
	switch h {
	case WinAMD64:
		return "Windows"
	case MacArm64, MacX8664:
		return "Darwin"
	default:
		return "Linux"
	}
}
