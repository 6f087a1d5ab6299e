// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestration is the task-orchestration core: tasks declare
// themselves into a registry, edges between them are committed either by
// explicit path declarations or by observing task-to-task calls, structural
// constraints are enforced exactly at edge-creation time, and a
// readiness-driven scheduler drives the graph to completion with
// stop-on-first-failure semantics.
package orchestration

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/latch/dag"
	"github.com/AleutianAI/latch/history"
)

var (
	tracer = otel.Tracer("latch.orchestration")
	meter  = otel.Meter("latch.orchestration")
)

// DefaultHistoryExcerpt bounds the history slice shipped in snapshots.
const DefaultHistoryExcerpt = 50

// Emitter hands execution-plan snapshots to the external visualization
// collaborator. Implementations must treat the snapshot as read-only.
type Emitter interface {
	Emit(ctx context.Context, snapshot *dag.Snapshot) error
}

// Registry is the per-run store of task identities, metadata, the live
// dependency graph, and the execution history.
//
// Description:
//
//	The registry is the only component with mutable shared state. It is
//	constructed once by the caller and threaded through task construction,
//	invocation, and scheduling; there is no hidden process-wide instance.
//
// Thread Safety:
//
//	All mutation goes through one mutex: registration and edge creation
//	may be triggered concurrently from multiple call paths. Task bodies
//	run without the lock held; only the bookkeeping is atomic.
type Registry struct {
	mu sync.Mutex

	logger         *slog.Logger
	emitter        Emitter
	historyExcerpt int

	tasks     map[string]*Task
	graph     *dag.Graph
	log       *history.Log
	active    map[string]struct{}
	validator edgeValidator
	reporter  *ViolationReporter

	metricsOnce     sync.Once
	tasksRegistered metric.Int64Counter
	edgesCommitted  metric.Int64Counter
	edgesRejected   metric.Int64Counter
}

// RegistryOption configures a registry under construction.
type RegistryOption func(*Registry)

// WithLogger sets the registry's logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithEmitter sets the snapshot emitter. Without one, snapshots are built
// but only logged.
func WithEmitter(emitter Emitter) RegistryOption {
	return func(r *Registry) { r.emitter = emitter }
}

// WithHistoryExcerpt bounds the history excerpt shipped in snapshots.
func WithHistoryExcerpt(n int) RegistryOption {
	return func(r *Registry) { r.historyExcerpt = n }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:         slog.Default(),
		historyExcerpt: DefaultHistoryExcerpt,
		tasks:          make(map[string]*Task),
		graph:          dag.NewGraph(),
		log:            history.NewLog(),
		active:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.validator = edgeValidator{graph: r.graph, tasks: r.tasks}
	r.reporter = NewViolationReporter(r.logger, r.displayName)
	return r
}

// initMetrics lazily initializes counters. Metric failures degrade
// observability, never the engine.
func (r *Registry) initMetrics() {
	r.metricsOnce.Do(func() {
		var err error
		r.tasksRegistered, err = meter.Int64Counter("latch_tasks_registered_total",
			metric.WithDescription("Number of tasks registered"),
		)
		if err != nil {
			r.logger.Error("failed to initialize registry metrics", slog.Any("error", err))
		}
		r.edgesCommitted, err = meter.Int64Counter("latch_edges_committed_total",
			metric.WithDescription("Number of dependency edges committed"),
		)
		if err != nil {
			r.logger.Error("failed to initialize registry metrics", slog.Any("error", err))
		}
		r.edgesRejected, err = meter.Int64Counter("latch_edges_rejected_total",
			metric.WithDescription("Number of dependency edges rejected by constraints"),
		)
		if err != nil {
			r.logger.Error("failed to initialize registry metrics", slog.Any("error", err))
		}
	})
}

// register stores a freshly constructed task and places it in the graph as
// an isolated node. Called from NewTask.
func (r *Registry) register(t *Task) {
	r.initMetrics()

	r.mu.Lock()
	r.tasks[t.uniqueName] = t
	r.graph.AddNode(t.uniqueName)
	r.mu.Unlock()

	if r.tasksRegistered != nil {
		r.tasksRegistered.Add(context.Background(), 1)
	}
	r.logger.Debug("registered task",
		slog.String("unique_name", t.uniqueName),
		slog.String("base_name", t.baseName),
		slog.Bool("has_constraints", t.constraints != nil),
	)
}

// Task returns a task by unique name.
func (r *Registry) Task(uniqueName string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[uniqueName]
	return t, ok
}

// TaskNames returns the unique names of all registered tasks, sorted.
func (r *Registry) TaskNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// commitEdge validates and commits a caller→callee dependency edge.
//
// Description:
//
//	The single edge-creation primitive: both live invocation and explicit
//	path declaration route through it, so constraints apply identically.
//	On rejection nothing is committed, the violation is reported as a
//	diagnostic side effect, and the typed error is returned. On success
//	the callee is recorded as depending on the caller.
func (r *Registry) commitEdge(caller, callee *Task) error {
	r.initMetrics()

	r.mu.Lock()
	r.graph.AddNode(caller.uniqueName)
	r.graph.AddNode(callee.uniqueName)

	violation := r.validator.validate(caller.uniqueName, callee.uniqueName, caller)
	if violation != nil {
		r.mu.Unlock()
		if r.edgesRejected != nil {
			r.edgesRejected.Add(context.Background(), 1)
		}
		r.reporter.Report(violation)
		return violation
	}

	// Dependency direction: the callee waits for the caller to finish.
	r.graph.AddEdge(callee.uniqueName, caller.uniqueName)
	r.mu.Unlock()

	if r.edgesCommitted != nil {
		r.edgesCommitted.Add(context.Background(), 1)
	}
	r.logger.Debug("committed dependency edge",
		slog.String("caller", caller.uniqueName),
		slog.String("callee", callee.uniqueName),
	)
	return nil
}

// markStarted records a task as active.
func (r *Registry) markStarted(uniqueName string) {
	r.mu.Lock()
	r.active[uniqueName] = struct{}{}
	r.log.Started(uniqueName, time.Now())
	r.mu.Unlock()

	r.logger.Debug("task started", slog.String("task", uniqueName))
}

// markCompleted records a task's successful completion.
func (r *Registry) markCompleted(uniqueName string) {
	r.mu.Lock()
	delete(r.active, uniqueName)
	r.log.Completed(uniqueName, time.Now())
	r.mu.Unlock()

	r.logger.Debug("task completed", slog.String("task", uniqueName))
}

// markFailed records a task's failure with its cause.
func (r *Registry) markFailed(uniqueName string, cause error) {
	r.mu.Lock()
	delete(r.active, uniqueName)
	r.log.Failed(uniqueName, cause, time.Now())
	r.mu.Unlock()

	r.logger.Debug("task failed",
		slog.String("task", uniqueName),
		slog.Any("error", cause),
	)
}

// isActive reports whether the task is started but not yet finished.
func (r *Registry) isActive(uniqueName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[uniqueName]
	return ok
}

// ActiveTasks returns the unique names of started-but-unfinished tasks.
func (r *Registry) ActiveTasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return setToSlice(r.active)
}

// History returns a copy of the execution history.
func (r *Registry) History() []history.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Events()
}

// ExecutionPlan returns the topological execution order of all tasks.
//
// Description:
//
//	On a cyclic graph the best-effort order is returned together with the
//	*dag.CycleError; the registry treats that as a soft inconsistency;
//	the caller chooses whether to proceed with a partial schedule.
func (r *Registry) ExecutionPlan() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executionPlanLocked()
}

func (r *Registry) executionPlanLocked() ([]string, error) {
	order, err := r.graph.TopologicalOrder()
	if err != nil {
		r.logger.Warn("dependency graph is not acyclic", slog.Any("error", err))
	}
	return order, err
}

// ReadyTasks returns the tasks whose entire dependency set has completed
// and which have not themselves completed.
func (r *Registry) ReadyTasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	completed := r.log.CompletedTasks()
	ready := make([]string, 0)

	for name := range r.tasks {
		if _, done := completed[name]; done {
			continue
		}
		node, ok := r.graph.GetNode(name)
		if !ok {
			continue
		}
		depsSatisfied := true
		for dep := range node.Dependencies {
			if _, done := completed[dep]; !done {
				depsSatisfied = false
				break
			}
		}
		if depsSatisfied {
			ready = append(ready, name)
		}
	}

	sort.Strings(ready)
	return ready
}

// PlanSnapshot builds the current execution-plan snapshot: graph structure
// plus per-task status, errors, metadata, and a history excerpt.
func (r *Registry) PlanSnapshot() *dag.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.planSnapshotLocked()
}

func (r *Registry) planSnapshotLocked() *dag.Snapshot {
	snapshot := r.graph.Snapshot()
	snapshot.Title = "Execution Plan"

	order, _ := r.graph.TopologicalOrder()
	snapshot.Metadata.ExecutionOrder = order
	snapshot.Metadata.SkipIsolatedNodes = true

	events := r.log.Excerpt(r.historyExcerpt)
	snapshot.Metadata.ExecutionHistory = make([]dag.EventSnapshot, 0, len(events))
	for _, ev := range events {
		entry := dag.EventSnapshot{
			Task:      ev.Task,
			Event:     string(ev.Kind),
			StartTime: ev.StartTime,
			EndTime:   ev.EndTime,
		}
		if ev.Err != nil {
			entry.Error = ev.Err.Error()
		}
		snapshot.Metadata.ExecutionHistory = append(snapshot.Metadata.ExecutionHistory, entry)
	}

	statuses, taskErrors := r.taskStatusesLocked()
	for i := range snapshot.Nodes {
		node := &snapshot.Nodes[i]
		if t, ok := r.tasks[node.ID]; ok {
			node.BaseName = t.baseName
			node.InstanceHash = t.instanceHash
			node.HasConstraints = t.constraints != nil
			node.Description = t.description
		}
		node.Status = statuses[node.ID]
		node.Error = taskErrors[node.ID]
	}

	return snapshot
}

// taskStatusesLocked folds the history into a terminal status per task.
func (r *Registry) taskStatusesLocked() (map[string]string, map[string]string) {
	statuses := make(map[string]string, len(r.tasks))
	taskErrors := make(map[string]string)

	for name := range r.tasks {
		statuses[name] = "pending"
	}
	for _, ev := range r.log.Events() {
		switch ev.Kind {
		case history.KindCompleted:
			statuses[ev.Task] = "completed"
			delete(taskErrors, ev.Task)
		case history.KindFailed:
			statuses[ev.Task] = "failed"
			if ev.Err != nil {
				taskErrors[ev.Task] = ev.Err.Error()
			}
		case history.KindStarted:
			if _, active := r.active[ev.Task]; active {
				statuses[ev.Task] = "running"
			}
		}
	}
	return statuses, taskErrors
}

// publishPlan builds and emits the current snapshot.
//
// Description:
//
//	Called on both the success and failure paths of Task.Call. Emission
//	failures are logged and swallowed: publishing the plan must never
//	abort task completion or failure reporting.
func (r *Registry) publishPlan(ctx context.Context) {
	snapshot := r.PlanSnapshot()
	if len(snapshot.Nodes) == 0 {
		return
	}

	r.logger.Debug("execution plan",
		slog.Int("nodes", snapshot.Metadata.TotalNodes),
		slog.Int("edges", snapshot.Metadata.TotalEdges),
		slog.Any("order", snapshot.Metadata.ExecutionOrder),
	)

	if r.emitter == nil {
		return
	}
	if err := r.emitter.Emit(ctx, snapshot); err != nil {
		r.logger.Warn("failed to emit execution plan", slog.Any("error", err))
	}
}

// displayName maps a unique name to the task's base name for diagnostics.
func (r *Registry) displayName(uniqueName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[uniqueName]; ok {
		return t.baseName
	}
	// base_name_hash8 convention: strip the uniqueness suffix.
	if idx := lastUnderscore(uniqueName); idx > 0 {
		return uniqueName[:idx]
	}
	return uniqueName
}

func lastUnderscore(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return i
		}
	}
	return -1
}

// DumpState writes a human-readable registry listing to the logger.
func (r *Registry) DumpState() {
	r.mu.Lock()
	taskCount := len(r.tasks)
	activeCount := len(r.active)
	eventCount := r.log.Len()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	r.logger.Info("registry state",
		slog.Int("tasks", taskCount),
		slog.Int("active", activeCount),
		slog.Int("history_events", eventCount),
		slog.Any("task_names", names),
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.Dump(r.logger)
}
