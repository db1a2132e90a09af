// Package pluginbuild compiles a module's source directory into a Go plugin
// artifact the host can load and reload.
//
// The Go runtime identifies a plugin by its package path and refuses to
// open a second plugin containing a different build of a package it has
// already loaded. Each build therefore copies the module's sources into a
// freshly named package main under the host's module root, so every
// artifact carries its own copy of the module under a path never seen
// before. Only the module's own package is reloadable this way; a change to
// a package shared with the host (editor, protocol and friends) needs a
// rebuilt host.
package pluginbuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/build"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/ext"
)

var errOutsideRoot = errors.New("generated package must be inside the module root")

// BuildError reports a module that could not be compiled. Output holds what
// the go command printed.
type BuildError struct {
	Module string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("pluginbuild: %s: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("pluginbuild: %s: %v\n%s", e.Module, e.Err, e.Output)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Options configures Build.
type Options struct {
	// Root is the directory holding the host's go.mod.
	Root string
	// GenDir receives the generated packages. It must be inside Root and
	// defaults to Root/plugins/gen.
	GenDir string
	// Out receives the artifacts.
	Out string
	// Go is the go command, "go" by default.
	Go  string
	Log logrus.FieldLogger
}

func (o Options) withDefaults() (Options, error) {
	root, err := filepath.Abs(o.Root)
	if err != nil {
		return o, err
	}
	o.Root = root
	if o.GenDir == "" {
		o.GenDir = filepath.Join(root, "plugins", "gen")
	}
	if o.GenDir, err = filepath.Abs(o.GenDir); err != nil {
		return o, err
	}
	if o.Out, err = filepath.Abs(o.Out); err != nil {
		return o, err
	}
	if o.Go == "" {
		o.Go = "go"
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	return o, nil
}

// Build compiles the module whose sources are in srcDir into Out/<name>.so
// and returns the artifact path. The artifact is written under a temporary
// name and renamed into place, so a watcher never sees a partial file.
func Build(ctx context.Context, opts Options, name, srcDir string) (string, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return "", &BuildError{Module: name, Err: err}
	}
	start := time.Now()

	pkgDir := filepath.Join(opts.GenDir, name+"_"+strings.ReplaceAll(uuid.NewString(), "-", ""))
	rel, err := filepath.Rel(opts.Root, pkgDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", &BuildError{Module: name, Err: fmt.Errorf("%w: %s", errOutsideRoot, opts.GenDir)}
	}
	defer os.RemoveAll(pkgDir)
	if err := generate(srcDir, pkgDir); err != nil {
		return "", &BuildError{Module: name, Err: err}
	}

	if err := os.MkdirAll(opts.Out, 0o755); err != nil {
		return "", &BuildError{Module: name, Err: err}
	}
	artifact := filepath.Join(opts.Out, name+".so")
	tmp := filepath.Join(opts.Out, "."+name+".so.tmp")
	cmd := exec.CommandContext(ctx, opts.Go, "build", "-buildmode=plugin", "-o", tmp, "./"+filepath.ToSlash(rel))
	cmd.Dir = opts.Root
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmp)
		return "", &BuildError{Module: name, Output: string(out), Err: err}
	}
	if err := os.Rename(tmp, artifact); err != nil {
		os.Remove(tmp)
		return "", &BuildError{Module: name, Err: err}
	}

	opts.Log.WithFields(logrus.Fields{
		"module":   name,
		"artifact": artifact,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("module built")
	return artifact, nil
}

// Modules lists the module source directories under dir, skipping the
// ones that are not plugins on their own.
func Modules(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	mods := map[string]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		switch e.Name() {
		case "builtin", "internal":
			continue
		}
		mods[e.Name()] = filepath.Join(dir, e.Name())
	}
	return mods, nil
}

const entryFile = "zz_entry.go"

const entrySource = `// Code generated by myedit build. DO NOT EDIT.

package main

import ext %q

var ABIVersion = ext.ABIVersion

func main() {}
`

// generate writes srcDir's non-test sources into pkgDir as package main,
// plus the entry file carrying the ABI version.
func generate(srcDir, pkgDir string) error {
	pkg, err := build.ImportDir(srcDir, 0)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return err
	}
	fset := token.NewFileSet()
	for _, file := range pkg.GoFiles {
		if file == entryFile {
			return fmt.Errorf("%s: reserved file name", file)
		}
		f, err := parser.ParseFile(fset, filepath.Join(srcDir, file), nil, parser.ParseComments)
		if err != nil {
			return err
		}
		f.Name.Name = "main"
		var buf bytes.Buffer
		if err := format.Node(&buf, fset, f); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := os.WriteFile(filepath.Join(pkgDir, file), buf.Bytes(), 0o644); err != nil {
			return err
		}
	}
	entry := fmt.Sprintf(entrySource, reflect.TypeOf(ext.Module{}).PkgPath())
	return os.WriteFile(filepath.Join(pkgDir, entryFile), []byte(entry), 0o644)
}
