// Package background runs the periodic maintenance tasks that keep the
// backlog healthy but do not belong inside a pipeline cycle: purging
// terminal items past retention and reporting backlog depth.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plantao-pipeline/internal/logging"
)

// Manager schedules registered maintenance tasks, each on its own
// interval, and tracks their last run for monitoring.
type Manager struct {
	logger logging.Logger

	mu      sync.RWMutex
	tasks   []Task
	results map[string]*RunResult
	cancel  context.CancelFunc
	started bool

	wg sync.WaitGroup
}

// NewManager creates an empty maintenance manager
func NewManager() *Manager {
	return &Manager{
		logger:  logging.GetGlobalLogger(),
		results: make(map[string]*RunResult),
	}
}

// Register adds a task to the schedule. Must be called before Start.
func (m *Manager) Register(task Task) error {
	if task.Name == "" || task.Run == nil {
		return fmt.Errorf("maintenance task needs a name and a run function")
	}
	if task.Interval <= 0 {
		return fmt.Errorf("maintenance task %s needs a positive interval", task.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("maintenance manager already started")
	}
	m.tasks = append(m.tasks, task)
	return nil
}

// Start launches one scheduler goroutine per registered task. Tasks run
// first after their interval elapses, not immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("maintenance manager already started")
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, task := range m.tasks {
		task := task
		m.wg.Add(1)
		go m.schedule(runCtx, task)
	}

	m.logger.Info("Maintenance manager started", map[string]interface{}{
		"tasks": len(m.tasks),
	})
	return nil
}

// Stop cancels the schedulers and waits for in-flight runs, bounded by
// the context deadline.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started || m.cancel == nil {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Maintenance manager stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("maintenance manager shutdown timed out: %w", ctx.Err())
	}
}

// LastRuns returns a snapshot of each task's most recent run
func (m *Manager) LastRuns() []RunResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunResult, 0, len(m.results))
	for _, result := range m.results {
		out = append(out, *result)
	}
	return out
}

func (m *Manager) schedule(ctx context.Context, task Task) {
	defer m.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runTask(ctx, task)
		}
	}
}

// runTask executes one task and records the outcome. A panic or error in
// one task never takes down the other schedulers.
func (m *Manager) runTask(ctx context.Context, task Task) {
	start := time.Now().UTC()

	affected, err := task.Run(ctx)
	result := &RunResult{
		Task:      task.Name,
		Status:    RunStatusSuccess,
		Affected:  affected,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = RunStatusFailure
		result.Error = err.Error()
	}

	m.mu.Lock()
	if previous, ok := m.results[task.Name]; ok {
		result.Executions = previous.Executions + 1
	} else {
		result.Executions = 1
	}
	m.results[task.Name] = result
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("Maintenance task failed", map[string]interface{}{
			"task":  task.Name,
			"error": err.Error(),
		})
		return
	}
	if affected > 0 {
		m.logger.Info("Maintenance task finished", map[string]interface{}{
			"task":     task.Name,
			"affected": affected,
		})
	}
}
