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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopBody(_ context.Context, _ ...any) (any, error) {
	return nil, nil
}

func mustTask(t *testing.T, r *Registry, name string, opts ...TaskOption) *Task {
	t.Helper()
	opts = append([]TaskOption{WithName(name)}, opts...)
	task, err := NewTask(r, noopBody, opts...)
	require.NoError(t, err)
	return task
}

func TestNewTask_Validation(t *testing.T) {
	r := NewRegistry()

	_, err := NewTask(nil, noopBody)
	require.ErrorIs(t, err, ErrNilRegistry)

	_, err = NewTask(r, nil)
	require.ErrorIs(t, err, ErrNilBody)
}

func TestNewTask_UniqueNamesNeverCollide(t *testing.T) {
	r := NewRegistry()

	first := mustTask(t, r, "worker")
	second := mustTask(t, r, "worker")

	assert.Equal(t, "worker", first.BaseName())
	assert.Equal(t, "worker", second.BaseName())
	assert.NotEqual(t, first.UniqueName(), second.UniqueName())

	// Both independently addressable in the registry.
	got, ok := r.Task(first.UniqueName())
	require.True(t, ok)
	assert.Same(t, first, got)
	got, ok = r.Task(second.UniqueName())
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestNewTask_NameFormat(t *testing.T) {
	r := NewRegistry()
	task := mustTask(t, r, "extract")

	assert.Equal(t, "extract_"+task.InstanceHash(), task.UniqueName())
	assert.Len(t, task.InstanceHash(), 8)
}

func TestNewTask_DerivesNameFromBody(t *testing.T) {
	r := NewRegistry()

	task, err := NewTask(r, noopBody)
	require.NoError(t, err)

	assert.Equal(t, "noopBody", task.BaseName())
}

func TestNewTask_RegistersAsIsolatedNode(t *testing.T) {
	r := NewRegistry()
	task := mustTask(t, r, "loner")

	snap := r.PlanSnapshot()
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, task.UniqueName(), snap.Nodes[0].ID)
	assert.Zero(t, snap.Nodes[0].DependenciesCount)
	assert.Zero(t, snap.Nodes[0].DependentsCount)
}

func TestCall_ReturnsBodyResult(t *testing.T) {
	r := NewRegistry()
	task, err := NewTask(r, func(_ context.Context, args ...any) (any, error) {
		sum := 0
		for _, a := range args {
			sum += a.(int)
		}
		return sum, nil
	}, WithName("adder"))
	require.NoError(t, err)

	result, err := task.Call(context.Background(), 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 9, result)
}

func TestCall_WrapsBodyFailure(t *testing.T) {
	r := NewRegistry()
	cause := errors.New("disk full")
	task, err := NewTask(r, func(_ context.Context, _ ...any) (any, error) {
		return nil, cause
	}, WithName("flaky"))
	require.NoError(t, err)

	_, err = task.Call(context.Background())
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, task.UniqueName(), taskErr.Task)
	assert.ErrorIs(t, err, cause)
}

func TestCall_AutoEdgeFromActiveCaller(t *testing.T) {
	r := NewRegistry()

	callee := mustTask(t, r, "callee")

	caller, err := NewTask(r, func(ctx context.Context, _ ...any) (any, error) {
		return callee.Call(ctx)
	}, WithName("caller"))
	require.NoError(t, err)

	_, err = caller.Call(context.Background())
	require.NoError(t, err)

	// callee depends on caller.
	snap := r.PlanSnapshot()
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, caller.UniqueName(), snap.Edges[0].Source)
	assert.Equal(t, callee.UniqueName(), snap.Edges[0].Target)
}

func TestCall_StandaloneCreatesNoEdge(t *testing.T) {
	r := NewRegistry()
	mustTask(t, r, "bystander")
	task := mustTask(t, r, "solo")

	_, err := task.Call(context.Background())
	require.NoError(t, err)

	snap := r.PlanSnapshot()
	assert.Empty(t, snap.Edges)
}

func TestCall_ViolationFromNestedCallPassesThrough(t *testing.T) {
	r := NewRegistry()

	protectedConstraints, err := NewConstraints(WithAllowedIncomingSources("authorized_caller"))
	require.NoError(t, err)
	protected := mustTask(t, r, "protected_task", WithConstraints(protectedConstraints))

	unauthorized, err := NewTask(r, func(ctx context.Context, _ ...any) (any, error) {
		return protected.Call(ctx)
	}, WithName("unauthorized_caller"))
	require.NoError(t, err)

	_, err = unauthorized.Call(context.Background())
	require.Error(t, err)

	// Not downgraded to a TaskError.
	var violation *ViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, RuleIncomingAllowList, violation.Rule)

	var taskErr *TaskError
	assert.False(t, errors.As(err, &taskErr), "violation must not be wrapped as task failure")
}

func TestCall_AuthorizedCallerSucceeds(t *testing.T) {
	r := NewRegistry()

	protectedConstraints, err := NewConstraints(WithAllowedIncomingSources("authorized_caller"))
	require.NoError(t, err)
	protected, err := NewTask(r, func(_ context.Context, _ ...any) (any, error) {
		return "secret", nil
	}, WithName("protected_task"), WithConstraints(protectedConstraints))
	require.NoError(t, err)

	authorized, err := NewTask(r, func(ctx context.Context, _ ...any) (any, error) {
		return protected.Call(ctx)
	}, WithName("authorized_caller"))
	require.NoError(t, err)

	result, err := authorized.Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", result)
}

func TestCall_NilContext(t *testing.T) {
	r := NewRegistry()
	task := mustTask(t, r, "tolerant")

	_, err := task.Call(nil) //nolint:staticcheck // nil tolerance is part of the contract
	require.NoError(t, err)
}

func TestCallerName(t *testing.T) {
	r := NewRegistry()
	task := mustTask(t, r, "named")

	assert.Equal(t, "standalone", CallerName(context.Background()))
	assert.Equal(t, "named", CallerName(WithActiveTask(context.Background(), task)))
}
