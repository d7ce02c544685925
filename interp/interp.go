// Package interp provides the three opaque collaborators spec.md §1 keeps
// external to the core algorithmic subsystems: InterpreterProvider,
// EnvBuilder and Extractor. spec.md deliberately specifies only their
// call shape; the implementations here are the minimal in-repo stand-ins
// needed to drive the Orchestrator end to end, grounded on
// original_source/src/core/python_manager.rs for the provider shape and
// stdlib archive readers for extraction, the same way the teacher's
// storage driver factory (registry/storage/driver) keeps concrete backends
// behind a small interface.
package interp

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/distribution/depctl/platform"
)

// InterpreterProvider locates or installs the interpreter for a given
// MAJOR.MINOR version, spec.md's EnvError("interpreter missing") source.
type InterpreterProvider interface {
	// Ensure returns the path to an interpreter satisfying pythonVersion,
	// installing one if the provider manages installations.
	Ensure(ctx context.Context, pythonVersion string) (string, error)
	// DiscardManaged removes every interpreter this provider installed,
	// serving clean(include_interpreter=true).
	DiscardManaged(ctx context.Context) error
}

// StaticInterpreterProvider is the minimal stand-in named in SPEC_FULL.md:
// it assumes a compatible interpreter is already on the host and never
// manages its own installations, so DiscardManaged is a no-op.
type StaticInterpreterProvider struct {
	// BinPath is the interpreter path to report, e.g. from `which python3`
	// performed once at startup. Tests may set this to any placeholder.
	BinPath string
}

func (p StaticInterpreterProvider) Ensure(_ context.Context, _ string) (string, error) {
	if p.BinPath == "" {
		return "", fmt.Errorf("interp: no interpreter configured")
	}
	return p.BinPath, nil
}

func (p StaticInterpreterProvider) DiscardManaged(_ context.Context) error {
	return nil
}

// Environment is the on-disk layout spec.md §6 describes: a site directory
// (host-specific subpath derived from the interpreter version) and a
// scripts directory ("Scripts" on Windows, "bin" elsewhere), both under
// Root.
type Environment struct {
	Root       string
	SiteDir    string
	ScriptsDir string
	StagingDir string
}

// EnvBuilder creates and locates the Environment directories for a
// project's virtualEnvironment path.
type EnvBuilder interface {
	Ensure(root, pythonVersion string, host platform.Host) (Environment, error)
}

// DefaultEnvBuilder lays out directories the way CPython's own venv does:
// scripts named "Scripts" on Windows and "bin" elsewhere, site packages
// under a MAJOR.MINOR-qualified subpath on POSIX hosts and a flat
// "site-packages" on Windows.
type DefaultEnvBuilder struct{}

func (DefaultEnvBuilder) Ensure(root, pythonVersion string, host platform.Host) (Environment, error) {
	scriptsName := "bin"
	var siteRel string
	if host == platform.WinAMD64 {
		scriptsName = "Scripts"
		siteRel = filepath.Join("Lib", "site-packages")
	} else {
		siteRel = filepath.Join("lib", "python"+pythonVersion, "site-packages")
	}

	env := Environment{
		Root:       root,
		SiteDir:    filepath.Join(root, siteRel),
		ScriptsDir: filepath.Join(root, scriptsName),
		StagingDir: filepath.Join(root, ".staging"),
	}
	for _, dir := range []string{env.SiteDir, env.ScriptsDir, env.StagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Environment{}, fmt.Errorf("interp: create %s: %w", dir, err)
		}
	}
	return env, nil
}

// PathWithScripts prepends env's scripts directory to the inherited PATH,
// the mechanism `run -- <cmd> <args...>` (SPEC_FULL.md §3, from
// original_source/src/cli/run.rs) uses to make installed console scripts
// reachable.
func PathWithScripts(env Environment, inherited string) string {
	sep := string(os.PathListSeparator)
	if inherited == "" {
		return env.ScriptsDir
	}
	return env.ScriptsDir + sep + inherited
}

// EnvRootVariable is the fixed environment variable name `run` exports the
// environment root under, named by SPEC_FULL.md §3 following
// original_source/src/cli/run.rs.
const EnvRootVariable = "DEPCTL_ENV_ROOT"

// Extractor unpacks a downloaded archive into the site directory.
type Extractor interface {
	ExtractWheelLike(archivePath string, env Environment) error
	ExtractSourceArchive(archivePath string, env Environment) error
}

// DefaultExtractor implements Extractor over the standard library's zip
// and tar/gzip readers — there is no third-party archive library in the
// teacher's or the pack's go.mod, so this ambient concern is carried on
// stdlib, noted in DESIGN.md.
type DefaultExtractor struct{}

// ExtractWheelLike unpacks a `.whl`-suffixed zip archive directly into the
// site directory: a wheel's internal layout already mirrors site-packages
// (spec.md §4.7 step 4).
func (DefaultExtractor) ExtractWheelLike(archivePath string, env Environment) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("extract: open %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractZipEntry(f, env.SiteDir); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, destRoot string) error {
	dest, err := safeJoin(destRoot, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("extract: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o644)
	if err != nil {
		return fmt.Errorf("extract: create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract: write %s: %w", dest, err)
	}
	return nil
}

// ExtractSourceArchive unpacks a `.tar.gz` source archive into the site
// directory. spec.md §9's open question flags that a faithful
// implementation should detect and strip the inner distribution
// subdirectory before copying its payload; this extractor does not
// attempt that and installs the raw archive contents verbatim, as a
// best-effort install. A source install that extracts without error is
// not reported any differently from a wheel install.
func (DefaultExtractor) ExtractSourceArchive(archivePath string, env Environment) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract: open %s: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("extract: gzip %s: %w", archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract: tar %s: %w", archivePath, err)
		}

		dest, err := safeJoin(env.SiteDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)|0o644)
			if err != nil {
				return fmt.Errorf("extract: create %s: %w", dest, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("extract: write %s: %w", dest, err)
			}
			out.Close()
		}
	}
}

// safeJoin joins destRoot with an archive-supplied relative name, rejecting
// any entry that would escape destRoot via ".." traversal (a zip-slip /
// tar-slip guard, not named in spec.md but required for a safe extractor).
func safeJoin(destRoot, name string) (string, error) {
	cleanName := filepath.Clean(strings.ReplaceAll(name, "\\", "/"))
	joined := filepath.Join(destRoot, cleanName)
	rel, err := filepath.Rel(destRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("extract: entry %q escapes destination", name)
	}
	return joined, nil
}

// DispatchExtract chooses extract_wheel_like vs extract_source_archive by
// filename suffix, the tagged-dispatch spec.md §9 asks for instead of
// polymorphism.
func DispatchExtract(x Extractor, filename, archivePath string, env Environment) error {
	if strings.HasSuffix(strings.ToLower(filename), ".whl") {
		return x.ExtractWheelLike(archivePath, env)
	}
	return x.ExtractSourceArchive(archivePath, env)
}
