// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Scheduler drives the registry's graph to completion.
//
// Description:
//
//	The scheduler repeatedly computes the set of ready tasks (all
//	dependencies completed), executes every task in the set, and stops
//	when the set drains or any task fails. Tasks within a round run
//	concurrently; no ordering constraint exists among ready tasks. Each
//	ready task is invoked directly with no arguments and no active
//	caller, so scheduling itself never creates edges.
//
// Thread Safety:
//
//	Safe for concurrent use; each Run keeps its own round state. Registry
//	interactions stay behind the registry's lock.
type Scheduler struct {
	registry *Registry
	logger   *slog.Logger

	metricsOnce  sync.Once
	taskLatency  metric.Float64Histogram
	runLatency   metric.Float64Histogram
	tasksStopped metric.Int64Counter
}

// NewScheduler creates a scheduler over the given registry.
//
// Inputs:
//
//	registry - The registry whose graph is executed. Must not be nil.
//	logger - Logger for run logs. If nil, uses slog.Default().
func NewScheduler(registry *Registry, logger *slog.Logger) (*Scheduler, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{registry: registry, logger: logger}, nil
}

// initMetrics lazily initializes metrics with graceful degradation.
func (s *Scheduler) initMetrics() {
	s.metricsOnce.Do(func() {
		var err error
		s.taskLatency, err = meter.Float64Histogram("latch_task_duration_seconds",
			metric.WithDescription("Time spent executing each scheduled task"),
			metric.WithUnit("s"),
		)
		if err != nil {
			s.logger.Error("failed to initialize scheduler metrics", slog.Any("error", err))
		}
		s.runLatency, err = meter.Float64Histogram("latch_run_duration_seconds",
			metric.WithDescription("Total scheduler run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			s.logger.Error("failed to initialize scheduler metrics", slog.Any("error", err))
		}
		s.tasksStopped, err = meter.Int64Counter("latch_runs_halted_total",
			metric.WithDescription("Number of runs halted on failure"),
		)
		if err != nil {
			s.logger.Error("failed to initialize scheduler metrics", slog.Any("error", err))
		}
	})
}

// Run executes the whole graph, readiness round by readiness round.
//
// Description:
//
//	Terminal states: the ready set drained (all reachable tasks completed)
//	or the run halted on the first failure. On failure the in-flight round
//	finishes, successes already observed are kept, and no further round is
//	scheduled. In-flight bodies are never interrupted.
//
// Inputs:
//
//	ctx - Context consulted between rounds. Must not be nil.
//
// Outputs:
//
//	map[string]any - Results of every task that completed, keyed by
//	                 unique name.
//	error - The first *ViolationError or *TaskError observed, unchanged.
func (s *Scheduler) Run(ctx context.Context) (map[string]any, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	s.initMetrics()

	start := time.Now()
	sessionID := uuid.NewString()[:12]

	ctx, span := tracer.Start(ctx, "scheduler.Run",
		trace.WithAttributes(attribute.String("run.session_id", sessionID)),
	)
	defer span.End()

	plan, planErr := s.registry.ExecutionPlan()
	if planErr != nil {
		// Soft inconsistency: cyclic tasks never become ready, so the
		// run drains the acyclic portion and stops.
		s.logger.Warn("execution plan is partial",
			slog.String("session_id", sessionID),
			slog.Any("error", planErr),
		)
	}
	span.SetAttributes(attribute.Int("run.planned_tasks", len(plan)))

	s.logger.Info("run started",
		slog.String("session_id", sessionID),
		slog.Int("planned_tasks", len(plan)),
		slog.Any("plan", plan),
	)

	results := make(map[string]any)
	executed := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context canceled")
			return results, ctx.Err()
		default:
		}

		ready := make([]string, 0)
		for _, name := range s.registry.ReadyTasks() {
			if _, done := executed[name]; !done {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			break
		}

		s.logger.Debug("executing ready round",
			slog.String("session_id", sessionID),
			slog.Any("tasks", ready),
		)

		if err := s.executeRound(ctx, ready, results, executed); err != nil {
			if s.tasksStopped != nil {
				s.tasksStopped.Add(ctx, 1)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error("run halted",
				slog.String("session_id", sessionID),
				slog.Int("tasks_completed", len(results)),
				slog.Any("error", err),
			)
			return results, err
		}
	}

	duration := time.Since(start)
	if s.runLatency != nil {
		s.runLatency.Record(ctx, duration.Seconds())
	}

	span.SetStatus(codes.Ok, "")
	s.logger.Info("run completed",
		slog.String("session_id", sessionID),
		slog.Duration("duration", duration),
		slog.Int("tasks_executed", len(executed)),
	)
	return results, nil
}

// executeRound runs every ready task concurrently and records successes.
// It waits for the whole round even when a task fails; the first error is
// returned after the round settles.
func (s *Scheduler) executeRound(
	ctx context.Context,
	ready []string,
	results map[string]any,
	executed map[string]struct{},
) error {
	var mu sync.Mutex
	var g errgroup.Group

	for _, name := range ready {
		task, ok := s.registry.Task(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
		}

		g.Go(func() error {
			taskStart := time.Now()
			result, err := task.Call(ctx)
			if s.taskLatency != nil {
				s.taskLatency.Record(ctx, time.Since(taskStart).Seconds(),
					metric.WithAttributes(attribute.String("task", task.BaseName())),
				)
			}
			if err != nil {
				return err
			}

			mu.Lock()
			results[task.UniqueName()] = result
			executed[task.UniqueName()] = struct{}{}
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}
