package buildgraph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (e *recordingExecutor) Execute(_ context.Context, m Module, action Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := TaskName(m.Path, action)
	e.calls = append(e.calls, name)
	return e.fail[name]
}

func TestRunnerExecutesPlanInOrder(t *testing.T) {
	exec := &recordingExecutor{}
	r := NewRunner(DefaultGraph(), exec)

	results, err := r.Run(context.Background(), TaskName(Inventory, ActionBuild))
	require.NoError(t, err)
	assert.Equal(t, []string{
		TaskName(SharedKernel, ActionBuild),
		TaskName(Security, ActionBuild),
		TaskName(Observability, ActionBuild),
		TaskName(Inventory, ActionBuild),
	}, exec.calls)
	require.Len(t, results, 4)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.False(t, res.Skipped)
	}
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("compile error")
	exec := &recordingExecutor{fail: map[string]error{TaskName(Messaging, ActionBuild): boom}}
	r := NewRunner(DefaultGraph(), exec)

	results, err := r.Run(context.Background(), TaskBuildAllServices)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), TaskName(Messaging, ActionBuild))
	assert.Equal(t, []string{TaskName(SharedKernel, ActionBuild), TaskName(Messaging, ActionBuild)}, exec.calls)

	last := results[len(results)-1]
	assert.Equal(t, TaskBuildAllServices, last.Task)
	assert.True(t, last.Skipped)
}

func TestRunnerLintFailures(t *testing.T) {
	unformatted := errors.New("unformatted")
	fail := map[string]error{TaskName(Contracts, ActionLintCheck): unformatted}

	strict := NewRunner(DefaultGraph(), &recordingExecutor{fail: fail})
	_, err := strict.Run(context.Background(), "lintCheckAll")
	require.ErrorIs(t, err, unformatted)

	exec := &recordingExecutor{fail: fail}
	lenient := NewRunner(DefaultGraph(), exec, WithIgnoreLintFailures(true))
	results, err := lenient.Run(context.Background(), TaskLintCheckAll)
	require.NoError(t, err)
	assert.Len(t, exec.calls, 11)
	assert.Equal(t, TaskName(RootPath, ActionLintCheck), exec.calls[10])

	var ignored []string
	for _, res := range results {
		if res.Ignored {
			ignored = append(ignored, res.Task)
		}
	}
	assert.Equal(t, []string{TaskName(Contracts, ActionLintCheck)}, ignored)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &recordingExecutor{}
	results, err := NewRunner(DefaultGraph(), exec).Run(ctx, TaskCleanAllServices)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exec.calls)
	for _, res := range results {
		assert.True(t, res.Skipped)
	}
}

func TestRunnerUnknownTask(t *testing.T) {
	_, err := NewRunner(DefaultGraph(), ExecutorFunc(func(context.Context, Module, Action) error {
		t.Fatal("executor must not run")
		return nil
	})).Run(context.Background(), "deploy")
	require.Error(t, err)
}
