package buildgraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}

func TestAggregateTasks(t *testing.T) {
	g := DefaultGraph()
	tg := g.Tasks()

	build, ok := tg.Lookup(TaskBuildAllServices)
	require.True(t, ok)
	assert.True(t, build.IsAggregate())
	assert.Equal(t, []string{
		":modules:contexts:commerce-service:build",
		":modules:contexts:customer-relation-service:build",
		":modules:contexts:inventory-service:build",
		":modules:contexts:bi-ingestion-service:build",
	}, build.DependsOn)

	clean, ok := tg.Lookup(TaskCleanAllServices)
	require.True(t, ok)
	assert.Len(t, clean.DependsOn, len(g.Modules()))

	for _, tc := range []struct {
		name   string
		action Action
		group  string
	}{
		{TaskLintCheckAll, ActionLintCheck, GroupVerification},
		{TaskLintFormatAll, ActionLintFormat, GroupFormatting},
	} {
		agg, ok := tg.Lookup(tc.name)
		require.True(t, ok, tc.name)
		assert.Equal(t, tc.group, agg.Group)
		// Every module, then the root project for the remaining sources.
		require.Len(t, agg.DependsOn, len(g.Modules())+1)
		for i, m := range g.Modules() {
			assert.Equal(t, TaskName(m.Path, tc.action), agg.DependsOn[i])
		}
		assert.Equal(t, ":"+string(tc.action), agg.DependsOn[len(agg.DependsOn)-1])
	}
}

func TestAliases(t *testing.T) {
	tg := DefaultGraph().Tasks()
	check, ok := tg.Lookup("lintCheckAll")
	require.True(t, ok)
	assert.Equal(t, TaskLintCheckAll, check.Name)

	format, ok := tg.Lookup("lintFormatAll")
	require.True(t, ok)
	assert.Equal(t, TaskLintFormatAll, format.Name)
}

func TestPlanOrdersDependenciesFirst(t *testing.T) {
	tg := DefaultGraph().Tasks()
	plan, err := tg.Plan(TaskBuildAllServices)
	require.NoError(t, err)

	got := names(plan)
	assert.Equal(t, TaskBuildAllServices, got[len(got)-1])
	// Every platform module a context needs, plus the four services.
	assert.Len(t, got, 5+4+1)
	assert.NotContains(t, got, TaskName(Testkit, ActionBuild))

	index := make(map[string]int, len(got))
	for i, n := range got {
		index[n] = i
	}
	for _, task := range plan {
		for _, dep := range task.DependsOn {
			assert.Less(t, index[dep], index[task.Name], "%s before %s", dep, task.Name)
		}
	}
	assert.Equal(t, TaskName(SharedKernel, ActionBuild), got[0])

	again, err := tg.Plan(TaskBuildAllServices)
	require.NoError(t, err)
	assert.Equal(t, got, names(again))
}

func TestPlanCleanHasNoBuilds(t *testing.T) {
	plan, err := DefaultGraph().Tasks().Plan(TaskCleanAllServices)
	require.NoError(t, err)
	for _, task := range plan[:len(plan)-1] {
		assert.Equal(t, ActionClean, task.Action)
	}
}

func TestPlanBareActionAndModuleTask(t *testing.T) {
	tg := DefaultGraph().Tasks()

	plan, err := tg.Plan("lintCheck")
	require.NoError(t, err)
	assert.Len(t, plan, 11)
	assert.Equal(t, RootPath, plan[len(plan)-1].Module)

	plan, err = tg.Plan(TaskName(Inventory, ActionBuild), TaskName(Inventory, ActionBuild))
	require.NoError(t, err)
	assert.Equal(t, []string{
		TaskName(SharedKernel, ActionBuild),
		TaskName(Security, ActionBuild),
		TaskName(Observability, ActionBuild),
		TaskName(Inventory, ActionBuild),
	}, names(plan))
}

func TestPlanUnknownTask(t *testing.T) {
	_, err := DefaultGraph().Tasks().Plan("buildAll")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `task "buildAll" not found`)
	assert.Contains(t, err.Error(), TaskBuildAllServices)
}

func TestPlanDetectsCycles(t *testing.T) {
	g := NewGraph(
		Module{Path: PlatformPrefix + "a", Dependencies: []string{PlatformPrefix + "b"}},
		Module{Path: PlatformPrefix + "b", Dependencies: []string{PlatformPrefix + "a"}},
	)
	_, err := g.Tasks().Plan(TaskName(PlatformPrefix+"a", ActionBuild))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "task cycle:"), err.Error())
}
