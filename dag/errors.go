// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is returned (wrapped in *CycleError) when the graph contains
// at least one cycle and no complete topological order exists.
var ErrCycle = errors.New("cycle detected in dependency graph")

// CycleError reports the nodes that could not be topologically ordered.
//
// Description:
//
//	Returned by Graph.TopologicalOrder together with a best-effort order.
//	Remaining lists the nodes that participate in (or are downstream of) a
//	cycle, sorted by name.
type CycleError struct {
	Remaining []string
}

// Error returns the error message.
func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: unorderable nodes: %s", ErrCycle, strings.Join(e.Remaining, ", "))
}

// Unwrap returns ErrCycle so callers can match with errors.Is.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}
