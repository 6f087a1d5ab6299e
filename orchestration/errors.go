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
	"errors"
	"fmt"
)

// Sentinel errors for the orchestration package.
var (
	// ErrNilRegistry is returned when a task is constructed without a registry.
	ErrNilRegistry = errors.New("registry must not be nil")

	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilBody is returned when a task is constructed without a body.
	ErrNilBody = errors.New("task body must not be nil")

	// ErrNilTask is returned when a path references a nil task.
	ErrNilTask = errors.New("task must not be nil")

	// ErrTaskNotFound is returned when a name resolves to no registered task.
	ErrTaskNotFound = errors.New("task not found in registry")

	// ErrNegativeLimit is returned when a degree limit below zero is configured.
	ErrNegativeLimit = errors.New("degree limit must not be negative")

	// ErrConstraintViolation is the base error for all rejected edges.
	// Match with errors.Is; inspect the rule via errors.As on *ViolationError.
	ErrConstraintViolation = errors.New("constraint violation")
)

// TaskError wraps a failure raised by a task body with the task's identity.
//
// Description:
//
//	Every body error except a constraint violation is wrapped in a
//	TaskError before being returned from Task.Call, so callers can tell
//	"structural rule broken" (*ViolationError) apart from "task body
//	failed" (*TaskError). The original error is preserved as the cause.
type TaskError struct {
	Task string
	Err  error
}

// Error returns the error message.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task '%s' failed: %v", e.Task, e.Err)
}

// Unwrap returns the original body error.
func (e *TaskError) Unwrap() error {
	return e.Err
}
