package buildgraph

import (
	"fmt"
	"sort"
	"strings"
)

// Action is what a module task does. Aggregate tasks have no action.
type Action string

const (
	ActionBuild      Action = "build"
	ActionClean      Action = "clean"
	ActionLintCheck  Action = "lintCheck"
	ActionLintFormat Action = "lintFormat"
)

var moduleActions = []Action{ActionBuild, ActionClean, ActionLintCheck, ActionLintFormat}

// Aggregate task names.
const (
	TaskBuildAllServices = "buildAllServices"
	TaskCleanAllServices = "cleanAllServices"
	TaskLintCheckAll     = "ktlintCheckAll"
	TaskLintFormatAll    = "ktlintFormatAll"
)

// Task groups, used by listings.
const (
	GroupBuild        = "build"
	GroupVerification = "verification"
	GroupFormatting   = "formatting"
)

// Task is a node of the task graph.
type Task struct {
	Name        string
	Module      string // empty for aggregates
	Action      Action // empty for aggregates
	DependsOn   []string
	Group       string
	Description string
}

// IsAggregate reports whether the task only groups other tasks.
func (t Task) IsAggregate() bool { return t.Module == "" }

// TaskName returns the qualified name of a module task. Root project
// tasks are named ":<action>".
func TaskName(modulePath string, action Action) string {
	if modulePath == RootPath {
		return RootPath + string(action)
	}
	return modulePath + ":" + string(action)
}

// TaskGraph holds every task of a module graph.
type TaskGraph struct {
	tasks   map[string]Task
	order   []string
	aliases map[string]string
}

// Tasks derives the task graph: build, clean, lintCheck and lintFormat per
// module, lintCheck and lintFormat for the root project, plus the
// aggregates. A module's build depends on the build of its direct
// dependencies.
func (g *Graph) Tasks() *TaskGraph {
	tg := &TaskGraph{
		tasks: make(map[string]Task),
		aliases: map[string]string{
			"lintCheckAll":  TaskLintCheckAll,
			"lintFormatAll": TaskLintFormatAll,
		},
	}

	byAction := make(map[Action][]string)
	var serviceBuilds []string
	for i, m := range g.modules {
		if g.byPath[m.Path] != i {
			continue // duplicate path
		}
		for _, a := range moduleActions {
			t := Task{
				Name:        TaskName(m.Path, a),
				Module:      m.Path,
				Action:      a,
				Group:       actionGroup(a),
				Description: fmt.Sprintf("%s %s", a, m.Name),
			}
			if a == ActionBuild {
				for _, d := range m.Dependencies {
					if _, ok := g.Module(d); ok && d != m.Path {
						t.DependsOn = append(t.DependsOn, TaskName(d, ActionBuild))
					}
				}
				if m.IsService() {
					serviceBuilds = append(serviceBuilds, t.Name)
				}
			}
			byAction[a] = append(byAction[a], t.Name)
			tg.add(t)
		}
	}

	root := g.Root()
	for _, a := range []Action{ActionLintCheck, ActionLintFormat} {
		t := Task{
			Name:        TaskName(root.Path, a),
			Module:      root.Path,
			Action:      a,
			Group:       actionGroup(a),
			Description: fmt.Sprintf("%s sources outside the modules", a),
		}
		byAction[a] = append(byAction[a], t.Name)
		tg.add(t)
	}

	tg.add(Task{
		Name:        TaskBuildAllServices,
		DependsOn:   serviceBuilds,
		Group:       GroupBuild,
		Description: "Build all microservices",
	})
	tg.add(Task{
		Name:        TaskCleanAllServices,
		DependsOn:   byAction[ActionClean],
		Group:       GroupBuild,
		Description: "Clean all modules",
	})
	tg.add(Task{
		Name:        TaskLintCheckAll,
		DependsOn:   byAction[ActionLintCheck],
		Group:       GroupVerification,
		Description: "Run the format check on the whole source tree",
	})
	tg.add(Task{
		Name:        TaskLintFormatAll,
		DependsOn:   byAction[ActionLintFormat],
		Group:       GroupFormatting,
		Description: "Run the formatter on the whole source tree",
	})
	return tg
}

func actionGroup(a Action) string {
	switch a {
	case ActionLintCheck:
		return GroupVerification
	case ActionLintFormat:
		return GroupFormatting
	default:
		return GroupBuild
	}
}

func (tg *TaskGraph) add(t Task) {
	if _, ok := tg.tasks[t.Name]; !ok {
		tg.order = append(tg.order, t.Name)
	}
	tg.tasks[t.Name] = t
}

// List returns the tasks in creation order.
func (tg *TaskGraph) List() []Task {
	out := make([]Task, 0, len(tg.order))
	for _, name := range tg.order {
		out = append(out, tg.tasks[name])
	}
	return out
}

// Aliases maps alternative aggregate names to their task.
func (tg *TaskGraph) Aliases() map[string]string {
	out := make(map[string]string, len(tg.aliases))
	for k, v := range tg.aliases {
		out[k] = v
	}
	return out
}

// Lookup finds a task by name or alias.
func (tg *TaskGraph) Lookup(name string) (Task, bool) {
	if target, ok := tg.aliases[name]; ok {
		name = target
	}
	t, ok := tg.tasks[name]
	return t, ok
}

// resolve expands a requested name. A bare action such as "build" selects
// that action in every module.
func (tg *TaskGraph) resolve(name string) ([]string, error) {
	if t, ok := tg.Lookup(name); ok {
		return []string{t.Name}, nil
	}
	if !strings.Contains(name, ":") {
		var out []string
		for _, n := range tg.order {
			if t := tg.tasks[n]; !t.IsAggregate() && string(t.Action) == name {
				out = append(out, n)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return nil, fmt.Errorf("task %q not found%s", name, tg.suggest(name))
}

func (tg *TaskGraph) suggest(name string) string {
	var candidates []string
	lower := strings.ToLower(name)
	for _, n := range tg.order {
		if strings.Contains(strings.ToLower(n), lower) {
			candidates = append(candidates, n)
		}
	}
	for alias := range tg.aliases {
		if strings.Contains(strings.ToLower(alias), lower) {
			candidates = append(candidates, alias)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return "; did you mean " + strings.Join(candidates, ", ") + "?"
}

// Plan returns the tasks needed to run names, each after everything it
// depends on and each once. Dependencies are visited in declaration
// order, so the plan is deterministic.
func (tg *TaskGraph) Plan(names ...string) ([]Task, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var plan []Task

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("task cycle: %s -> %s", strings.Join(path, " -> "), name)
		}
		t, ok := tg.tasks[name]
		if !ok {
			return fmt.Errorf("task %q not found", name)
		}
		state[name] = visiting
		for _, d := range t.DependsOn {
			if err := visit(d, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		plan = append(plan, t)
		return nil
	}

	for _, requested := range names {
		resolved, err := tg.resolve(requested)
		if err != nil {
			return nil, err
		}
		for _, name := range resolved {
			if err := visit(name, nil); err != nil {
				return nil, err
			}
		}
	}
	return plan, nil
}
