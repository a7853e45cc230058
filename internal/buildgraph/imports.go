package buildgraph

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/mod/modfile"
)

// ModulePath reads the module path from root/go.mod.
func ModulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", err
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", errors.New("go.mod has no module directive")
	}
	return path, nil
}

// CheckImports verifies that Go files under each module directory import
// only the modules that module depends on, directly or transitively. Test
// files may also import test fixture modules. Packages outside every
// module directory belong to the root project, which aggregates all
// modules and so is not restricted.
func (g *Graph) CheckImports(root string) error {
	modPath, err := ModulePath(root)
	if err != nil {
		return err
	}

	// Longest directory first, so nested module directories win.
	owners := g.Modules()
	sort.SliceStable(owners, func(i, j int) bool { return len(owners[i].Dir) > len(owners[j].Dir) })
	ownerOf := func(rel string) (Module, bool) {
		for _, m := range owners {
			if m.Dir != "" && (rel == m.Dir || strings.HasPrefix(rel, m.Dir+"/")) {
				return m, true
			}
		}
		return Module{}, false
	}

	var result *multierror.Error
	fset := token.NewFileSet()
	for _, m := range g.modules {
		if m.Dir == "" {
			continue
		}
		allowed := make(map[string]bool)
		for _, p := range g.Closure(m.Path) {
			allowed[p] = true
		}

		dir := filepath.Join(root, m.Dir)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, fmt.Errorf("%s: directory %s does not exist", m.Path, m.Dir))
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "testdata" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}
			file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
			if err != nil {
				result = multierror.Append(result, err)
				return nil
			}
			isTest := strings.HasSuffix(path, "_test.go")
			for _, spec := range file.Imports {
				imp, err := strconv.Unquote(spec.Path.Value)
				if err != nil || !strings.HasPrefix(imp, modPath+"/") {
					continue
				}
				target, ok := ownerOf(strings.TrimPrefix(imp, modPath+"/"))
				if !ok || target.Path == m.Path || allowed[target.Path] {
					continue
				}
				if isTest && target.TestFixtures {
					continue
				}
				rel, _ := filepath.Rel(root, path)
				result = multierror.Append(result, fmt.Errorf("%s: imports %s, but %s does not depend on %s",
					filepath.ToSlash(rel), imp, m.Path, target.Path))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return result.ErrorOrNil()
}
