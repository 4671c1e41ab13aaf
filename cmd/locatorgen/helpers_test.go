package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

//
// -----------------------------------------------------------------------------
// Fixture module
// -----------------------------------------------------------------------------

// markersSrc declares the registration markers locally so fixture modules
// type-check without depending on this module.
const markersSrc = `package svc

type Option struct{}

func WithContract(string) Option { return Option{} }

func Register[I, C any](r any, opts ...Option)              {}
func RegisterLazySingleton[I, C any](r any, opts ...Option) {}

type Greeter interface{ Greet() string }

type English struct{}

func NewEnglish() *English { return &English{} }

func (*English) Greet() string { return "hello" }
`

// writeFixtureModule creates a module example.com/svc holding markersSrc and
// the given registrations file, and returns its directory.
func writeFixtureModule(t *testing.T, registrations string) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	t.Setenv("GOWORK", "off")
	t.Setenv("GOFLAGS", "-mod=mod")

	dir := t.TempDir()
	writeTempFile(t, dir, "go.mod", "module example.com/svc\n\ngo 1.22\n")
	writeTempFile(t, dir, "markers.go", markersSrc)
	writeTempFile(t, dir, "registrations.go", registrations)
	return dir
}

// writeFixturePackage adds package name under dir/name of a fixture module,
// with its own copy of the markers and the given registrations file.
func writeFixturePackage(t *testing.T, dir, name, registrations string) string {
	t.Helper()
	pkgDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	writeTempFile(t, pkgDir, "markers.go", strings.Replace(markersSrc, "package svc", "package "+name, 1))
	writeTempFile(t, pkgDir, "registrations.go", registrations)
	return pkgDir
}

//
// -----------------------------------------------------------------------------
// Small helpers
// -----------------------------------------------------------------------------

// writeTempFile writes a file under dir/name and returns its full path.
func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// readFileString reads a file and returns its contents as string (fatal on error).
func readFileString(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(b)
}

//
// -----------------------------------------------------------------------------
// writeFileAtomic() seam helpers
// -----------------------------------------------------------------------------

// fakeTempFile is a controllable file-like object for writeFileAtomic tests.
// It lets tests force errors on Write and Close without touching real files.
type fakeTempFile struct {
	fileName string
	writeErr error
	closeErr error
}

func (f *fakeTempFile) Name() string { return f.fileName }

func (f *fakeTempFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return len(p), nil
}

func (f *fakeTempFile) Close() error { return f.closeErr }

// restoreWriteFileSeams puts the current file seams back when t ends.
func restoreWriteFileSeams(t *testing.T) {
	t.Helper()
	origCreate, origRemove, origChmod, origRename := createTempFile, removeFile, chmodFile, renameFile
	t.Cleanup(func() {
		createTempFile = origCreate
		removeFile = origRemove
		chmodFile = origChmod
		renameFile = origRename
	})
}

// setWriteFileSeams overrides the global seams used by writeFileAtomic.
// Pass nil for any seam you don't want to override.
func setWriteFileSeams(
	t *testing.T,
	createFn func(string, string) (tempFile, error),
	removeFn func(path string) error,
	chmodFn func(path string, mode os.FileMode) error,
	renameFn func(oldpath, newpath string) error,
) {
	t.Helper()

	if createFn != nil {
		createTempFile = createFn
	}
	if removeFn != nil {
		removeFile = removeFn
	}
	if chmodFn != nil {
		chmodFile = chmodFn
	}
	if renameFn != nil {
		renameFile = renameFn
	}
}
