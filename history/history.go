// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history records task execution events.
//
// The log keeps one entry per task lifecycle: a started event is removed and
// replaced by its terminal event (completed or failed) when the task
// finishes, so the history always reflects terminal state rather than
// duplicate entries per task.
//
// # Thread Safety
//
// Log is NOT safe for concurrent use. The orchestration registry owns the
// log and serializes all access behind its lock.
package history

import "time"

// Kind classifies an execution event.
type Kind string

const (
	// KindStarted indicates the task has begun executing.
	KindStarted Kind = "started"

	// KindCompleted indicates the task finished successfully.
	KindCompleted Kind = "completed"

	// KindFailed indicates the task body returned an error.
	KindFailed Kind = "failed"
)

// Event is one entry in the execution history.
type Event struct {
	// Task is the unique name of the task the event belongs to.
	Task string

	// Kind is the event classification.
	Kind Kind

	// StartTime is when the task started. Set on all event kinds.
	StartTime time.Time

	// EndTime is when the task finished. Zero for started events.
	EndTime time.Time

	// Err is the failure cause. Nil except for failed events.
	Err error
}

// Log is an append-only execution history with terminal-state replacement.
type Log struct {
	events []Event
}

// NewLog creates an empty execution log.
func NewLog() *Log {
	return &Log{events: make([]Event, 0)}
}

// Started records that a task has begun executing.
func (l *Log) Started(task string, at time.Time) {
	l.events = append(l.events, Event{
		Task:      task,
		Kind:      KindStarted,
		StartTime: at,
	})
}

// Completed replaces the task's started event with a completed event.
//
// Description:
//
//	The most recent started event for the task is removed; its start time
//	carries over into the terminal event. If no started event exists the
//	terminal event is still recorded with a zero start time.
func (l *Log) Completed(task string, at time.Time) {
	start := l.removeStarted(task)
	l.events = append(l.events, Event{
		Task:      task,
		Kind:      KindCompleted,
		StartTime: start,
		EndTime:   at,
	})
}

// Failed replaces the task's started event with a failed event carrying err.
func (l *Log) Failed(task string, err error, at time.Time) {
	start := l.removeStarted(task)
	l.events = append(l.events, Event{
		Task:      task,
		Kind:      KindFailed,
		StartTime: start,
		EndTime:   at,
		Err:       err,
	})
}

// removeStarted drops the most recent started event for task and returns
// its start time, or the zero time if none exists.
func (l *Log) removeStarted(task string) time.Time {
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Task == task && l.events[i].Kind == KindStarted {
			start := l.events[i].StartTime
			l.events = append(l.events[:i], l.events[i+1:]...)
			return start
		}
	}
	return time.Time{}
}

// Events returns a copy of the full history in record order.
func (l *Log) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Excerpt returns a copy of the most recent n events.
func (l *Log) Excerpt(n int) []Event {
	if n <= 0 || n >= len(l.events) {
		return l.Events()
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	return len(l.events)
}

// Completed-set queries drive scheduler readiness.

// CompletedTasks returns the set of tasks with a completed event.
func (l *Log) CompletedTasks() map[string]struct{} {
	out := make(map[string]struct{})
	for _, ev := range l.events {
		if ev.Kind == KindCompleted {
			out[ev.Task] = struct{}{}
		}
	}
	return out
}

// TerminalState returns the task's terminal event kind, if any.
//
// Outputs:
//
//	Kind - KindCompleted or KindFailed.
//	bool - False if the task has no terminal event.
func (l *Log) TerminalState(task string) (Kind, bool) {
	for i := len(l.events) - 1; i >= 0; i-- {
		ev := l.events[i]
		if ev.Task != task {
			continue
		}
		if ev.Kind == KindCompleted || ev.Kind == KindFailed {
			return ev.Kind, true
		}
	}
	return "", false
}
