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
	"fmt"
	"sort"

	"github.com/AleutianAI/latch/dag"
)

// edgeValidator checks a prospective edge against both endpoints'
// constraints before the edge is committed to the graph.
//
// Degrees are read from the graph as it stands, so the comparison is
// against the state before the new edge. All allow-list checks use base
// names: allow-lists are authored against human-readable names and must
// stay meaningful across re-registrations of the same logical task.
type edgeValidator struct {
	graph *dag.Graph
	tasks map[string]*Task
}

// validate runs the outgoing checks on the caller, then the incoming checks
// on the callee. Callers hold the registry lock.
//
// Outputs:
//
//	*ViolationError - Non-nil if any rule rejects the edge. Nothing is
//	                  committed on rejection.
func (v edgeValidator) validate(caller, callee string, callerTask *Task) *ViolationError {
	if err := v.validateOutgoing(caller, callee, callerTask); err != nil {
		return err
	}
	return v.validateIncoming(caller, callee, callerTask)
}

func (v edgeValidator) validateOutgoing(caller, callee string, callerTask *Task) *ViolationError {
	if callerTask == nil || callerTask.constraints == nil {
		return nil
	}
	constraints := callerTask.constraints

	outDegree := v.graph.OutDegree(caller)
	if limit, ok := constraints.MaxOutDegree(); ok && outDegree >= limit {
		return &ViolationError{
			Rule:   RuleOutgoingLimit,
			Task:   caller,
			Caller: caller,
			Callee: callee,
			Detail: fmt.Sprintf("outdegree limit reached: %d >= %d", outDegree, limit),
		}
	}

	calleeBase := v.baseName(callee)
	if !constraints.AllowsOutgoingTo(calleeBase) {
		return &ViolationError{
			Rule:   RuleOutgoingAllowList,
			Task:   caller,
			Caller: caller,
			Callee: callee,
			Detail: fmt.Sprintf("target base name '%s' not in allowed outgoing task names %v",
				calleeBase, constraints.AllowedOutgoingTargets()),
		}
	}
	return nil
}

func (v edgeValidator) validateIncoming(caller, callee string, callerTask *Task) *ViolationError {
	calleeTask, ok := v.tasks[callee]
	if !ok || calleeTask.constraints == nil {
		return nil
	}
	constraints := calleeTask.constraints

	inDegree := v.graph.InDegree(callee)
	if limit, ok := constraints.MaxInDegree(); ok && inDegree >= limit {
		return &ViolationError{
			Rule:   RuleIncomingLimit,
			Task:   callee,
			Caller: caller,
			Callee: callee,
			Detail: fmt.Sprintf("indegree limit reached: %d >= %d", inDegree, limit),
		}
	}

	callerBase := v.baseName(caller)
	if !constraints.AllowsIncomingFrom(callerBase) {
		return &ViolationError{
			Rule:   RuleIncomingAllowList,
			Task:   callee,
			Caller: caller,
			Callee: callee,
			Detail: fmt.Sprintf("source base name '%s' not in allowed incoming task names %v",
				callerBase, constraints.AllowedIncomingSources()),
		}
	}
	return nil
}

// baseName resolves a unique name to the task's base name, falling back to
// the name itself for tasks the registry does not know.
func (v edgeValidator) baseName(uniqueName string) string {
	if task, ok := v.tasks[uniqueName]; ok {
		return task.BaseName()
	}
	return uniqueName
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
