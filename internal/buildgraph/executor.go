package buildgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/format"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrUnformatted is returned by the lint check for files gofmt would change.
var ErrUnformatted = errors.New("file is not gofmt-formatted")

// CommandFunc runs an external command in dir.
type CommandFunc func(ctx context.Context, dir string, name string, args ...string) error

// GoExecutor runs tasks with the Go toolchain: services are built into
// BinDir from cmd/<service>, platform modules are compiled to check them,
// and formatting uses go/format in-process.
type GoExecutor struct {
	Root   string
	BinDir string
	GoCmd  string
	Stdout io.Writer
	Stderr io.Writer
	// Command replaces os/exec, e.g. in tests.
	Command CommandFunc
}

// NewGoExecutor creates an executor for the repository at root.
func NewGoExecutor(root string) *GoExecutor {
	return &GoExecutor{Root: root, BinDir: "bin", GoCmd: "go", Stdout: os.Stdout, Stderr: os.Stderr}
}

// Execute implements Executor.
func (e *GoExecutor) Execute(ctx context.Context, m Module, action Action) error {
	switch action {
	case ActionBuild:
		return e.build(ctx, m)
	case ActionClean:
		return e.clean(m)
	case ActionLintCheck:
		return e.lint(m, false)
	case ActionLintFormat:
		return e.lint(m, true)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (e *GoExecutor) build(ctx context.Context, m Module) error {
	if m.IsService() {
		out := filepath.Join(e.BinDir, m.Name)
		return e.run(ctx, e.GoCmd, "build", "-o", out, "./cmd/"+m.Name)
	}
	return e.run(ctx, e.GoCmd, "build", "./"+filepath.ToSlash(m.Dir)+"/...")
}

func (e *GoExecutor) clean(m Module) error {
	if !m.IsService() {
		return nil
	}
	err := os.Remove(filepath.Join(e.Root, e.BinDir, m.Name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (e *GoExecutor) run(ctx context.Context, name string, args ...string) error {
	if e.Command != nil {
		return e.Command(ctx, e.Root, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Root
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// lint checks, or with write rewrites, every .go file under the module
// directory except its excluded subdirectories. generated, testdata,
// vendor and directories the go tool ignores (leading "." or "_") are
// skipped.
func (e *GoExecutor) lint(m Module, write bool) error {
	var result *multierror.Error
	root := filepath.Join(e.Root, m.Dir)
	excluded := make(map[string]bool, len(m.Exclude))
	for _, dir := range m.Exclude {
		excluded[filepath.Join(e.Root, dir)] = true
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			switch {
			case name == "testdata", name == "generated", name == "vendor",
				strings.HasPrefix(name, "."), strings.HasPrefix(name, "_"),
				excluded[path]:
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		formatted, err := format.Source(src)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", e.rel(path), err))
			return nil
		}
		if bytes.Equal(src, formatted) {
			return nil
		}
		if !write {
			result = multierror.Append(result, fmt.Errorf("%s: %w", e.rel(path), ErrUnformatted))
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.WriteFile(path, formatted, info.Mode().Perm())
	})
	if err != nil {
		return err
	}
	return result.ErrorOrNil()
}

func (e *GoExecutor) rel(path string) string {
	if r, err := filepath.Rel(e.Root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}
