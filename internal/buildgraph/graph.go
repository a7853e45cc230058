// Package buildgraph describes the modules of the repository, the
// dependencies between them and the aggregate tasks built on top: building
// every service, cleaning every module and checking or fixing formatting
// everywhere.
package buildgraph

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Kind separates shared libraries from deployable services.
type Kind string

const (
	KindRoot     Kind = "root"
	KindPlatform Kind = "platform"
	KindContext  Kind = "context"
)

// RootPath is the path of the root project.
const RootPath = ":"

// Path prefixes of the two module kinds.
const (
	PlatformPrefix = ":modules:platform:"
	ContextPrefix  = ":modules:contexts:"
)

// Coordinates shared by every module.
const (
	RootGroup     = "chiro.erp"
	PlatformGroup = "chiro.erp.platform"
	ContextGroup  = "chiro.erp.contexts"
	Version       = "1.0.0-SNAPSHOT"
)

// Module is one node of the graph.
type Module struct {
	Path    string
	Name    string
	Group   string
	Version string
	Kind    Kind
	// Dir is the source directory relative to the repository root.
	Dir string
	// Dependencies are module paths. They are transitive for consumers.
	Dependencies []string
	// Exclude lists directories under Dir owned by other modules.
	Exclude []string
	// TestFixtures modules may be imported from any test file.
	TestFixtures bool
	Description  string
}

// IsService reports whether the module is a deployable context service.
func (m Module) IsService() bool {
	return strings.HasPrefix(m.Path, ContextPrefix)
}

// Coordinates returns group:name:version.
func (m Module) Coordinates() string {
	return m.Group + ":" + m.Name + ":" + m.Version
}

// Graph is an ordered set of modules.
type Graph struct {
	modules []Module
	byPath  map[string]int
}

// NewGraph keeps the declaration order, which makes listings and plans
// deterministic. A later module with a duplicate path is kept for
// Validate to report but cannot be looked up.
func NewGraph(modules ...Module) *Graph {
	g := &Graph{byPath: make(map[string]int, len(modules))}
	for _, m := range modules {
		if m.Name == "" {
			m.Name = m.Path[strings.LastIndex(m.Path, ":")+1:]
		}
		g.modules = append(g.modules, m)
		if _, ok := g.byPath[m.Path]; !ok {
			g.byPath[m.Path] = len(g.modules) - 1
		}
	}
	return g
}

func platformModule(name, dir, description string, deps ...string) Module {
	return Module{
		Path:         PlatformPrefix + name,
		Name:         name,
		Group:        PlatformGroup,
		Version:      Version,
		Kind:         KindPlatform,
		Dir:          dir,
		Dependencies: deps,
		Description:  description,
	}
}

func contextModule(name, dir, description string, deps ...string) Module {
	return Module{
		Path:         ContextPrefix + name,
		Name:         name,
		Group:        ContextGroup,
		Version:      Version,
		Kind:         KindContext,
		Dir:          dir,
		Dependencies: deps,
		Description:  description,
	}
}

// Module paths of the default graph.
const (
	SharedKernel     = PlatformPrefix + "shared-kernel"
	Contracts        = PlatformPrefix + "contracts"
	Messaging        = PlatformPrefix + "messaging"
	Security         = PlatformPrefix + "security"
	Observability    = PlatformPrefix + "observability"
	Testkit          = PlatformPrefix + "testkit"
	Commerce         = ContextPrefix + "commerce-service"
	CustomerRelation = ContextPrefix + "customer-relation-service"
	Inventory        = ContextPrefix + "inventory-service"
	BIIngestion      = ContextPrefix + "bi-ingestion-service"
)

// DefaultGraph is the module graph of this repository.
func DefaultGraph() *Graph {
	testkit := platformModule("testkit", "internal/platform/testkit",
		"Containers and fixtures for tests", SharedKernel, Contracts)
	testkit.TestFixtures = true

	return NewGraph(
		platformModule("shared-kernel", "internal/platform/sharedkernel", "Domain primitives, JSON and logging facade"),
		platformModule("contracts", "internal/platform/contracts", "Avro schemas and event contracts"),
		platformModule("messaging", "internal/platform/messaging", "Kafka, outbox, retries and idempotency", SharedKernel),
		platformModule("security", "internal/platform/security", "JWT issuance and validation", SharedKernel),
		platformModule("observability", "internal/platform/observability", "Prometheus metrics and health", SharedKernel),
		testkit,
		contextModule("commerce-service", "internal/contexts/commerce", "Orders",
			SharedKernel, Messaging, Security, Observability, Contracts),
		contextModule("customer-relation-service", "internal/contexts/customerrelation", "Customers",
			SharedKernel, Messaging, Security, Observability, Contracts),
		contextModule("inventory-service", "internal/contexts/inventory", "Stock items",
			SharedKernel, Security, Observability),
		contextModule("bi-ingestion-service", "internal/contexts/biingestion", "Analytical facts",
			SharedKernel, Messaging, Observability, Contracts),
	)
}

// Modules returns the modules in declaration order.
func (g *Graph) Modules() []Module {
	return append([]Module(nil), g.modules...)
}

// Root returns the root project. It owns every directory of the
// repository that no module claims, such as cmd/ and the platform
// packages outside the module graph.
func (g *Graph) Root() Module {
	var owned []string
	for _, m := range g.modules {
		if m.Dir != "" && m.Dir != "." {
			owned = append(owned, m.Dir)
		}
	}
	return Module{
		Path:        RootPath,
		Name:        "chiro-erp",
		Group:       RootGroup,
		Version:     Version,
		Kind:        KindRoot,
		Dir:         ".",
		Exclude:     owned,
		Description: "Root project",
	}
}

// Module looks a module up by path. RootPath resolves to Root.
func (g *Graph) Module(path string) (Module, bool) {
	if path == RootPath {
		return g.Root(), true
	}
	i, ok := g.byPath[path]
	if !ok {
		return Module{}, false
	}
	return g.modules[i], true
}

// Services returns the context modules.
func (g *Graph) Services() []Module {
	var out []Module
	for _, m := range g.modules {
		if m.IsService() {
			out = append(out, m)
		}
	}
	return out
}

// Closure returns every module path reachable from path through
// dependencies, in declaration order, excluding path itself.
func (g *Graph) Closure(path string) []string {
	seen := map[string]bool{path: true}
	var visit func(p string)
	visit = func(p string) {
		m, ok := g.Module(p)
		if !ok {
			return
		}
		for _, d := range m.Dependencies {
			if !seen[d] {
				seen[d] = true
				visit(d)
			}
		}
	}
	visit(path)

	var out []string
	for _, m := range g.modules {
		if m.Path != path && seen[m.Path] {
			out = append(out, m.Path)
		}
	}
	return out
}

// Validate reports every structural problem of the graph at once.
func (g *Graph) Validate() error {
	var result *multierror.Error
	seen := make(map[string]bool, len(g.modules))

	for _, m := range g.modules {
		if seen[m.Path] {
			result = multierror.Append(result, fmt.Errorf("%s: duplicate module path", m.Path))
			continue
		}
		seen[m.Path] = true

		if m.Group == "" {
			result = multierror.Append(result, fmt.Errorf("%s: empty group", m.Path))
		}
		if m.Version == "" {
			result = multierror.Append(result, fmt.Errorf("%s: empty version", m.Path))
		}
		switch {
		case m.Kind == KindContext && !strings.HasPrefix(m.Path, ContextPrefix),
			m.Kind == KindPlatform && !strings.HasPrefix(m.Path, PlatformPrefix):
			result = multierror.Append(result, fmt.Errorf("%s: path does not match kind %q", m.Path, m.Kind))
		case m.Kind != KindContext && m.Kind != KindPlatform:
			result = multierror.Append(result, fmt.Errorf("%s: unknown kind %q", m.Path, m.Kind))
		}

		for _, dep := range m.Dependencies {
			if dep == m.Path {
				result = multierror.Append(result, fmt.Errorf("%s: depends on itself", m.Path))
				continue
			}
			target, ok := g.Module(dep)
			if !ok {
				result = multierror.Append(result, fmt.Errorf("%s: unknown dependency %s", m.Path, dep))
				continue
			}
			if target.Kind == KindContext {
				if m.Kind == KindPlatform {
					result = multierror.Append(result, fmt.Errorf("%s: platform module depends on context %s", m.Path, dep))
				} else {
					result = multierror.Append(result, fmt.Errorf("%s: context depends on context %s", m.Path, dep))
				}
			}
		}
	}

	for _, cycle := range g.cycles() {
		result = multierror.Append(result, fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> ")))
	}
	return result.ErrorOrNil()
}

// cycles returns one cycle per back edge found by a depth-first walk.
// Self edges are reported by Validate directly.
func (g *Graph) cycles() [][]string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.modules))
	var stack []string
	var found [][]string

	var visit func(p string)
	visit = func(p string) {
		color[p] = grey
		stack = append(stack, p)
		m, _ := g.Module(p)
		for _, d := range m.Dependencies {
			if d == p {
				continue
			}
			if _, ok := g.Module(d); !ok {
				continue
			}
			switch color[d] {
			case white:
				visit(d)
			case grey:
				start := len(stack) - 1
				for stack[start] != d {
					start--
				}
				cycle := append([]string(nil), stack[start:]...)
				found = append(found, append(cycle, d))
			}
		}
		stack = stack[:len(stack)-1]
		color[p] = black
	}

	for _, m := range g.modules {
		if color[m.Path] == white {
			visit(m.Path)
		}
	}
	return found
}

// Plugin names applied to modules.
const (
	PluginGoLibrary      = "go-library"
	PluginLint           = "lint"
	PluginServiceRuntime = "service-runtime"
)

// Plugins returns the plugin set of m. Only modules under the contexts
// prefix get the service runtime.
func Plugins(m Module) []string {
	plugins := []string{PluginGoLibrary, PluginLint}
	if strings.HasPrefix(m.Path, ContextPrefix) {
		plugins = append(plugins, PluginServiceRuntime)
	}
	return plugins
}
