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
	"log/slog"
	"strings"
)

// ViolationReporter formats rejected edges as diagnostic graph fragments.
//
// Description:
//
//	For every rejected edge the reporter emits a two-node DOT digraph with
//	the attempted edge dashed and labeled by the broken rule, and the
//	endpoint whose constraint rejected it highlighted. Diagnostic only:
//	the reporter never affects control flow.
type ViolationReporter struct {
	logger      *slog.Logger
	displayName func(uniqueName string) string
}

// NewViolationReporter creates a reporter.
//
// Inputs:
//
//	logger - Destination for the diagnostic output. Nil means slog.Default().
//	displayName - Maps unique names to display names. Nil means identity.
func NewViolationReporter(logger *slog.Logger, displayName func(string) string) *ViolationReporter {
	if logger == nil {
		logger = slog.Default()
	}
	if displayName == nil {
		displayName = func(name string) string { return name }
	}
	return &ViolationReporter{logger: logger, displayName: displayName}
}

// Report logs the violation and its DOT fragment, returning the fragment.
func (r *ViolationReporter) Report(violation *ViolationError) string {
	dot := r.DOT(violation)
	r.logger.Error("constraint validation failed",
		slog.String("caller", violation.Caller),
		slog.String("callee", violation.Callee),
		slog.String("rule", string(violation.Rule)),
		slog.Any("error", violation),
	)
	r.logger.Info("constraint violation graph", slog.String("dot", dot))
	return dot
}

// DOT renders the rejected edge as a Graphviz fragment.
func (r *ViolationReporter) DOT(violation *ViolationError) string {
	reason := violationReason(violation.Rule)

	// The endpoint whose constraint broke is colored; the other stays
	// neutral.
	callerColor := "lightyellow"
	calleeColor := "lightyellow"
	if violation.Rule.Outgoing() {
		callerColor = "lightcoral"
	} else {
		calleeColor = "lightcoral"
	}

	var b strings.Builder
	b.WriteString("digraph ConstraintViolation {\n")
	b.WriteString("    rankdir=LR;\n")
	b.WriteString("    node [shape=box, style=filled];\n")
	b.WriteString("    edge [fontsize=10];\n")
	fmt.Fprintf(&b, "    label=\"Constraint Violation: %s\";\n", reason)
	b.WriteString("    labelloc=t;\n\n")
	fmt.Fprintf(&b, "    %q [label=%q, fillcolor=%s];\n",
		violation.Caller, r.displayName(violation.Caller), callerColor)
	fmt.Fprintf(&b, "    %q [label=%q, fillcolor=%s];\n",
		violation.Callee, r.displayName(violation.Callee), calleeColor)
	b.WriteString("\n")
	fmt.Fprintf(&b, "    %q -> %q [color=red, style=dashed, penwidth=2, label=\"X %s\"];\n",
		violation.Caller, violation.Callee, reason)
	b.WriteString("}")
	return b.String()
}

// violationReason maps a rule to its operator-facing label.
func violationReason(rule Rule) string {
	switch rule {
	case RuleOutgoingLimit:
		return "OUTGOING LIMIT EXCEEDED"
	case RuleOutgoingAllowList:
		return "OUTGOING NOT ALLOWED"
	case RuleIncomingLimit:
		return "INCOMING LIMIT EXCEEDED"
	case RuleIncomingAllowList:
		return "INCOMING NOT ALLOWED"
	default:
		return "CONSTRAINT VIOLATION"
	}
}
