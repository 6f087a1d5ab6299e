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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Body is the callable work a task wraps.
//
// The context passed to the body carries the task itself as the active
// caller; bodies that invoke other tasks must thread it through so the
// caller→callee edge can be observed.
type Body func(ctx context.Context, args ...any) (any, error)

// Task is a named, independently identified unit of work with optional
// structural constraints.
//
// Description:
//
//	A Task registers itself with its registry at construction time, so it
//	exists in the dependency graph as an isolated node before any edges
//	are added. The unique name is derived once from the base name plus
//	entropy, guaranteeing that two tasks built from the same base name
//	never collide while allow-lists keep matching on the base name.
//
// Thread Safety:
//
//	Immutable after construction except for its participation in graph
//	edges, which the registry holds and locks.
type Task struct {
	uniqueName   string
	baseName     string
	instanceHash string
	description  string
	constraints  *Constraints
	body         Body
	registry     *Registry
}

// TaskOption configures a task under construction.
type TaskOption func(*taskConfig)

type taskConfig struct {
	name        string
	description string
	constraints *Constraints
}

// WithName sets the task's base name instead of deriving it from the body.
func WithName(name string) TaskOption {
	return func(cfg *taskConfig) { cfg.name = name }
}

// WithDescription attaches a human-readable description.
func WithDescription(description string) TaskOption {
	return func(cfg *taskConfig) { cfg.description = description }
}

// WithConstraints attaches structural constraints enforced at edge creation.
func WithConstraints(c *Constraints) TaskOption {
	return func(cfg *taskConfig) { cfg.constraints = c }
}

// NewTask constructs a task and registers it immediately.
//
// Inputs:
//
//	registry - The registry the task lives in. Must not be nil.
//	body - The work to wrap. Must not be nil.
//	opts - Optional name, description, constraints.
//
// Outputs:
//
//	*Task - Registered and addressable by its unique name.
//	error - Non-nil if registry or body is missing.
func NewTask(registry *Registry, body Body, opts ...TaskOption) (*Task, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if body == nil {
		return nil, ErrNilBody
	}

	cfg := taskConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	baseName := cfg.name
	if baseName == "" {
		baseName = functionName(body)
	}

	hash := instanceHash(baseName)

	t := &Task{
		uniqueName:   baseName + "_" + hash,
		baseName:     baseName,
		instanceHash: hash,
		description:  cfg.description,
		constraints:  cfg.constraints,
		body:         body,
		registry:     registry,
	}
	registry.register(t)
	return t, nil
}

// instanceHash digests the base name with wall-clock time and fresh entropy,
// truncated to 8 hex characters.
func instanceHash(baseName string) string {
	unique := fmt.Sprintf("%s_%d_%s", baseName, time.Now().UnixNano(), uuid.NewString())
	digest := sha256.Sum256([]byte(unique))
	return hex.EncodeToString(digest[:])[:8]
}

// functionName derives a base name from the body's function symbol.
func functionName(body Body) string {
	fn := runtime.FuncForPC(reflect.ValueOf(body).Pointer())
	if fn == nil {
		return "task"
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" {
		return "task"
	}
	return name
}

// UniqueName returns the registry-wide unique name.
func (t *Task) UniqueName() string {
	return t.uniqueName
}

// BaseName returns the human-readable name allow-lists are authored against.
func (t *Task) BaseName() string {
	return t.baseName
}

// InstanceHash returns the uniqueness suffix.
func (t *Task) InstanceHash() string {
	return t.instanceHash
}

// Description returns the task's description, if any.
func (t *Task) Description() string {
	return t.description
}

// Constraints returns the task's constraints, or nil.
func (t *Task) Constraints() *Constraints {
	return t.constraints
}

// PathTo declares an explicit caller→callee edge from this task without
// invoking either one. See NewPath.
func (t *Task) PathTo(to *Task) (*Path, error) {
	return NewPath(t, to)
}

// Call executes the task.
//
// Description:
//
//	If the context reveals an active calling task, a dependency edge
//	caller→this is committed first; a constraint violation aborts the
//	call and is returned unchanged. The body then runs with this task
//	installed as the active caller. Success and failure are both recorded
//	in the registry's history, and the current execution-plan snapshot is
//	republished on either exit; snapshot publication can never fail the
//	call.
//
// Inputs:
//
//	ctx - Execution context; carries the caller, if any. Nil is treated
//	      as context.Background().
//	args - Passed through to the body.
//
// Outputs:
//
//	any - The body's result.
//	error - *ViolationError for structural rejections, *TaskError for
//	        body failures.
func (t *Task) Call(ctx context.Context, args ...any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if caller, ok := ActiveTask(ctx); ok && caller != t && t.registry.isActive(caller.uniqueName) {
		if err := t.registry.commitEdge(caller, t); err != nil {
			return nil, err
		}
	}

	ctx, span := tracer.Start(ctx, "task.Call",
		trace.WithAttributes(
			attribute.String("task.unique_name", t.uniqueName),
			attribute.String("task.base_name", t.baseName),
			attribute.String("task.caller", CallerName(ctx)),
		),
	)
	defer span.End()

	t.registry.markStarted(t.uniqueName)

	result, err := t.body(WithActiveTask(ctx, t), args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		t.registry.markFailed(t.uniqueName, err)
		t.registry.publishPlan(ctx)

		// A violation raised by a nested call crosses task boundaries
		// unchanged so callers can tell structure from breakage.
		var violation *ViolationError
		if errors.As(err, &violation) {
			return nil, err
		}
		return nil, &TaskError{Task: t.uniqueName, Err: err}
	}

	span.SetStatus(codes.Ok, "")
	t.registry.markCompleted(t.uniqueName)
	t.registry.publishPlan(ctx)

	return result, nil
}
