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

import "fmt"

// Path is an explicit caller→callee relationship declared ahead of
// execution, without invoking either task.
//
// Description:
//
//	Declaring a path routes through the same edge-creation primitive used
//	when a live call is observed, so constraints apply identically either
//	way. Paths are the mechanism for pre-building a full graph before
//	handing it to the scheduler, which invokes each ready task directly.
type Path struct {
	From *Task
	To   *Task
}

// NewPath declares an edge from one task to another.
//
// Inputs:
//
//	from - The calling task. Must not be nil.
//	to - The called task. Must not be nil.
//
// Outputs:
//
//	*Path - The declared relationship.
//	error - *ViolationError if a constraint rejects the edge; in that case
//	        nothing was committed.
func NewPath(from, to *Task) (*Path, error) {
	if from == nil || to == nil {
		return nil, ErrNilTask
	}
	if err := from.registry.commitEdge(from, to); err != nil {
		return nil, err
	}
	return &Path{From: from, To: to}, nil
}

// String describes the path for logging.
func (p *Path) String() string {
	return fmt.Sprintf("Path(from=%s, to=%s)", p.From.UniqueName(), p.To.UniqueName())
}
