package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	m := NewManager()

	assert.Error(t, m.Register(Task{Interval: time.Minute, Run: func(context.Context) (int, error) { return 0, nil }}))
	assert.Error(t, m.Register(Task{Name: "purge", Interval: time.Minute}))
	assert.Error(t, m.Register(Task{Name: "purge", Run: func(context.Context) (int, error) { return 0, nil }}))
	assert.NoError(t, m.Register(Task{Name: "purge", Interval: time.Minute, Run: func(context.Context) (int, error) { return 0, nil }}))
}

func TestRunTaskRecordsOutcome(t *testing.T) {
	m := NewManager()

	ok := Task{Name: "purge", Interval: time.Minute, Run: func(context.Context) (int, error) { return 3, nil }}
	failing := Task{Name: "report", Interval: time.Minute, Run: func(context.Context) (int, error) { return 0, errors.New("store unavailable") }}

	m.runTask(context.Background(), ok)
	m.runTask(context.Background(), ok)
	m.runTask(context.Background(), failing)

	runs := m.LastRuns()
	require.Len(t, runs, 2)

	byName := make(map[string]RunResult, len(runs))
	for _, run := range runs {
		byName[run.Task] = run
	}

	require.Contains(t, byName, "purge")
	assert.Equal(t, RunStatusSuccess, byName["purge"].Status)
	assert.Equal(t, 3, byName["purge"].Affected)
	assert.Equal(t, 2, byName["purge"].Executions)

	require.Contains(t, byName, "report")
	assert.Equal(t, RunStatusFailure, byName["report"].Status)
	assert.Equal(t, "store unavailable", byName["report"].Error)
}

func TestStartAndStopRunScheduledTasks(t *testing.T) {
	m := NewManager()

	var calls atomic.Int64
	require.NoError(t, m.Register(Task{
		Name:     "purge",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) (int, error) {
			calls.Add(1)
			return 1, nil
		},
	}))

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))

	assert.GreaterOrEqual(t, calls.Load(), int64(1))
	assert.Error(t, m.Register(Task{Name: "late", Interval: time.Minute, Run: func(context.Context) (int, error) { return 0, nil }}))
}

func TestStopWithoutStart(t *testing.T) {
	m := NewManager()
	assert.NoError(t, m.Stop(context.Background()))
}
