package ext

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	errMissing  = errors.New("symbol not found")
	errType     = errors.New("symbol has the wrong type")
	errVersion  = errors.New("abi version mismatch")
	errNotAFile = errors.New("not a regular file")
)

// LoadError reports an artifact that cannot be used as a module.
type LoadError struct {
	Path   string
	Symbol string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("ext: load %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("ext: load %s: %s: %v", e.Path, e.Symbol, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Library is an opened dynamic library.
type Library interface {
	Lookup(name string) (any, error)
}

// Opener opens dynamic libraries. The default opener uses the plugin
// package; tests substitute their own.
type Opener interface {
	Open(path string) (Library, error)
}

type pluginOpener struct{}

type pluginLibrary struct{ p *plugin.Plugin }

func (pluginOpener) Open(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return pluginLibrary{p}, nil
}

func (l pluginLibrary) Lookup(name string) (any, error) {
	return l.p.Lookup(name)
}

// Loader turns artifact files into Modules.
//
// The plugin package caches libraries by path and can never unload them, so
// every load opens a private copy under a fresh name. Artifacts must still
// carry a package path of their own each time (see package pluginbuild), or
// the runtime refuses the second load of the same package.
type Loader struct {
	CopyDir string
	Opener  Opener
	Log     logrus.FieldLogger
}

// NewLoader returns a Loader that copies artifacts into copyDir and opens
// them as Go plugins.
func NewLoader(copyDir string, log logrus.FieldLogger) *Loader {
	return &Loader{CopyDir: copyDir, Opener: pluginOpener{}, Log: log}
}

// ModuleName derives a module's name from its artifact path.
func ModuleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// IsArtifact reports whether path names a module artifact.
func IsArtifact(path string) bool {
	return filepath.Ext(path) == ".so"
}

// Load copies the artifact at path, opens the copy and resolves every
// symbol eagerly.
func (l *Loader) Load(path string) (Module, error) {
	name := ModuleName(path)
	copyPath, err := l.copyArtifact(path, name)
	if err != nil {
		return Module{}, &LoadError{Path: path, Err: err}
	}
	// The mapping outlives the file, so the copy is not needed after Open.
	defer os.Remove(copyPath)

	lib, err := l.Opener.Open(copyPath)
	if err != nil {
		return Module{}, &LoadError{Path: path, Err: err}
	}

	m := Module{Name: name}
	if err := resolveVersion(lib, path); err != nil {
		return Module{}, err
	}
	if m.Init, err = resolve[InitFunc](lib, path, SymInit); err != nil {
		return Module{}, err
	}
	if m.Update, err = resolve[UpdateFunc](lib, path, SymUpdate); err != nil {
		return Module{}, err
	}
	if m.Render, err = resolve[RenderFunc](lib, path, SymRender); err != nil {
		return Module{}, err
	}
	if m.Cleanup, err = resolve[CleanupFunc](lib, path, SymCleanup); err != nil {
		return Module{}, err
	}

	l.Log.WithFields(logrus.Fields{
		"module": name,
		"path":   path,
		"copy":   copyPath,
	}).Debug("artifact loaded")
	return m, nil
}

func (l *Loader) copyArtifact(path, name string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", errNotAFile
	}

	if err := os.MkdirAll(l.CopyDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(l.CopyDir, fmt.Sprintf("%s-%s.so", name, uuid.NewString()))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o755)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

func resolveVersion(lib Library, path string) error {
	sym, err := lib.Lookup(SymABIVersion)
	if err != nil {
		return &LoadError{Path: path, Symbol: SymABIVersion, Err: errMissing}
	}
	// Exported variables come back as pointers.
	v, ok := sym.(*int)
	if !ok {
		return &LoadError{Path: path, Symbol: SymABIVersion, Err: fmt.Errorf("%w: %T", errType, sym)}
	}
	if *v != ABIVersion {
		return &LoadError{Path: path, Symbol: SymABIVersion, Err: fmt.Errorf("%w: got %d, want %d", errVersion, *v, ABIVersion)}
	}
	return nil
}

func resolve[F any](lib Library, path, name string) (F, error) {
	var zero F
	sym, err := lib.Lookup(name)
	if err != nil {
		return zero, &LoadError{Path: path, Symbol: name, Err: errMissing}
	}
	fn, ok := sym.(F)
	if !ok {
		return zero, &LoadError{Path: path, Symbol: name, Err: fmt.Errorf("%w: %T", errType, sym)}
	}
	return fn, nil
}
