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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewScheduler_NilRegistry(t *testing.T) {
	_, err := NewScheduler(nil, nil)
	require.ErrorIs(t, err, ErrNilRegistry)
}

func TestRun_NilContext(t *testing.T) {
	s, err := NewScheduler(NewRegistry(), nil)
	require.NoError(t, err)

	_, err = s.Run(nil) //nolint:staticcheck // nil rejection is part of the contract
	require.ErrorIs(t, err, ErrNilContext)
}

func TestRun_NoEdges_SingleRoundRunsEverything(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	ran := make(map[string]int)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("independent_%d", i)
		_, err := NewTask(r, func(_ context.Context, _ ...any) (any, error) {
			mu.Lock()
			ran[name]++
			mu.Unlock()
			return name, nil
		}, WithName(name))
		require.NoError(t, err)
	}

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 5)
	for name, count := range ran {
		assert.Equal(t, 1, count, "task %s must run exactly once", name)
	}
}

func TestRun_SpanCarriesSessionID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer otel.SetTracerProvider(previous)

	r := NewRegistry()
	mustTask(t, r, "solo")

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	var runSpan *tracetest.SpanStub
	for _, span := range recorder.Ended() {
		if span.Name() == "scheduler.Run" {
			stub := tracetest.SpanStubFromReadOnlySpan(span)
			runSpan = &stub
			break
		}
	}
	require.NotNil(t, runSpan, "scheduler.Run span must be recorded")

	found := false
	for _, attr := range runSpan.Attributes {
		if string(attr.Key) == "run.session_id" {
			assert.Len(t, attr.Value.AsString(), 12)
			found = true
		}
	}
	assert.True(t, found, "span must carry run.session_id")
}

func TestRun_RespectsDependencyOrder(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	order := make([]string, 0, 3)
	record := func(name string) Body {
		return func(_ context.Context, _ ...any) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	extract, err := NewTask(r, record("extract"), WithName("extract"))
	require.NoError(t, err)
	transform, err := NewTask(r, record("transform"), WithName("transform"))
	require.NoError(t, err)
	load, err := NewTask(r, record("load"), WithName("load"))
	require.NoError(t, err)

	_, err = extract.PathTo(transform)
	require.NoError(t, err)
	_, err = transform.PathTo(load)
	require.NoError(t, err)

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"extract", "transform", "load"}, order)
	assert.Equal(t, "load", results[load.UniqueName()])
}

func TestRun_HaltsOnFirstFailure(t *testing.T) {
	r := NewRegistry()

	var downstreamRan bool
	first, err := NewTask(r, noopBody, WithName("first"))
	require.NoError(t, err)
	failing, err := NewTask(r, func(_ context.Context, _ ...any) (any, error) {
		return nil, errors.New("midway crash")
	}, WithName("failing"))
	require.NoError(t, err)
	downstream, err := NewTask(r, func(_ context.Context, _ ...any) (any, error) {
		downstreamRan = true
		return nil, nil
	}, WithName("downstream"))
	require.NoError(t, err)

	_, err = first.PathTo(failing)
	require.NoError(t, err)
	_, err = failing.PathTo(downstream)
	require.NoError(t, err)

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, failing.UniqueName(), taskErr.Task)

	// Exactly the tasks completed before the failure.
	assert.False(t, downstreamRan, "no later round may execute after a failure")
	require.Len(t, results, 1)
	_, ok := results[first.UniqueName()]
	assert.True(t, ok)
}

func TestRun_ViolationHaltsAndPassesThrough(t *testing.T) {
	r := NewRegistry()

	c, err := NewConstraints(WithAllowedIncomingSources("nobody"))
	require.NoError(t, err)
	guarded := mustTask(t, r, "guarded", WithConstraints(c))

	intruder, err := NewTask(r, func(ctx context.Context, _ ...any) (any, error) {
		return guarded.Call(ctx)
	}, WithName("intruder"))
	require.NoError(t, err)
	_ = intruder

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)

	var violation *ViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, RuleIncomingAllowList, violation.Rule)
}

func TestRun_CyclicRemainderDrainsAcyclicPortion(t *testing.T) {
	r := NewRegistry()

	free, err := NewTask(r, noopBody, WithName("free"))
	require.NoError(t, err)
	a := mustTask(t, r, "a")
	b := mustTask(t, r, "b")

	_, err = a.PathTo(b)
	require.NoError(t, err)
	_, err = b.PathTo(a)
	require.NoError(t, err)

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err, "cyclic tasks are never ready; the run drains and stops")
	require.Len(t, results, 1)
	_, ok := results[free.UniqueName()]
	assert.True(t, ok)
}

func TestRun_EmptyRegistry(t *testing.T) {
	s, err := NewScheduler(NewRegistry(), nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_CanceledContext(t *testing.T) {
	r := NewRegistry()
	mustTask(t, r, "never_runs")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	_, err = s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_DiamondFanOutFanIn(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	finished := make([]string, 0, 4)
	record := func(name string) Body {
		return func(_ context.Context, _ ...any) (any, error) {
			mu.Lock()
			finished = append(finished, name)
			mu.Unlock()
			return name, nil
		}
	}

	root, err := NewTask(r, record("root"), WithName("root"))
	require.NoError(t, err)
	left, err := NewTask(r, record("left"), WithName("left"))
	require.NoError(t, err)
	right, err := NewTask(r, record("right"), WithName("right"))
	require.NoError(t, err)
	join, err := NewTask(r, record("join"), WithName("join"))
	require.NoError(t, err)

	_, err = root.PathTo(left)
	require.NoError(t, err)
	_, err = root.PathTo(right)
	require.NoError(t, err)
	_, err = left.PathTo(join)
	require.NoError(t, err)
	_, err = right.PathTo(join)
	require.NoError(t, err)

	s, err := NewScheduler(r, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "root", finished[0])
	assert.Equal(t, "join", finished[3])
}
