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

import "context"

// activeTaskKey is the context key carrying the innermost executing task.
type activeTaskKey struct{}

// WithActiveTask returns a context marking t as the task currently
// executing. Task.Call installs this before running a body, so any task
// the body calls can discover its logical caller.
func WithActiveTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, activeTaskKey{}, t)
}

// ActiveTask resolves the task the current invocation was made from.
//
// Description:
//
//	A pure read of the execution context: no locking, no side effects,
//	safe from any goroutine. When the context carries no task the call
//	originates from a plain function and is treated as standalone; no
//	automatic edge is created.
//
// Outputs:
//
//	*Task - The enclosing task, or nil.
//	bool - False for standalone calls.
func ActiveTask(ctx context.Context) (*Task, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(activeTaskKey{}).(*Task)
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}

// CallerName names the current logical caller for diagnostics: the active
// task's base name, or "standalone".
func CallerName(ctx context.Context) string {
	if t, ok := ActiveTask(ctx); ok {
		return t.BaseName()
	}
	return "standalone"
}
