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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDOT_OutgoingViolationColorsCaller(t *testing.T) {
	reporter := NewViolationReporter(nil, nil)

	dot := reporter.DOT(&ViolationError{
		Rule:   RuleOutgoingLimit,
		Task:   "router_aaaa1111",
		Caller: "router_aaaa1111",
		Callee: "target_bbbb2222",
		Detail: "outdegree limit reached: 1 >= 1",
	})

	assert.True(t, strings.HasPrefix(dot, "digraph ConstraintViolation {"))
	assert.Contains(t, dot, "OUTGOING LIMIT EXCEEDED")
	assert.Contains(t, dot, `"router_aaaa1111" [label="router_aaaa1111", fillcolor=lightcoral]`)
	assert.Contains(t, dot, `"target_bbbb2222" [label="target_bbbb2222", fillcolor=lightyellow]`)
	assert.Contains(t, dot, `style=dashed`)
	assert.Contains(t, dot, `"router_aaaa1111" -> "target_bbbb2222"`)
}

func TestDOT_IncomingViolationColorsCallee(t *testing.T) {
	reporter := NewViolationReporter(nil, nil)

	dot := reporter.DOT(&ViolationError{
		Rule:   RuleIncomingAllowList,
		Task:   "guarded_cccc3333",
		Caller: "stranger_dddd4444",
		Callee: "guarded_cccc3333",
		Detail: "source base name 'stranger' not in allowed incoming task names [friend]",
	})

	assert.Contains(t, dot, "INCOMING NOT ALLOWED")
	assert.Contains(t, dot, `"stranger_dddd4444" [label="stranger_dddd4444", fillcolor=lightyellow]`)
	assert.Contains(t, dot, `"guarded_cccc3333" [label="guarded_cccc3333", fillcolor=lightcoral]`)
}

func TestDOT_UsesDisplayNames(t *testing.T) {
	reporter := NewViolationReporter(nil, func(name string) string {
		return strings.SplitN(name, "_", 2)[0]
	})

	dot := reporter.DOT(&ViolationError{
		Rule:   RuleIncomingLimit,
		Task:   "agg_eeee5555",
		Caller: "leaf_ffff6666",
		Callee: "agg_eeee5555",
		Detail: "indegree limit reached: 5 >= 5",
	})

	assert.Contains(t, dot, `[label="leaf"`)
	assert.Contains(t, dot, `[label="agg"`)
	// Node IDs keep the unique names.
	assert.Contains(t, dot, `"leaf_ffff6666"`)
}

func TestReport_IsSideEffectOnly(t *testing.T) {
	r := NewRegistry()

	c, err := NewConstraints(WithMaxOutDegree(0))
	require.NoError(t, err)
	sealed := mustTask(t, r, "sealed", WithConstraints(c))
	target := mustTask(t, r, "target")

	_, err = sealed.PathTo(target)
	require.Error(t, err)

	// The registry is intact and queryable after a reported violation.
	snap := r.PlanSnapshot()
	assert.Equal(t, 0, snap.Metadata.TotalEdges)
	assert.Equal(t, 2, snap.Metadata.TotalNodes)
}

func TestViolationReason_Labels(t *testing.T) {
	cases := map[Rule]string{
		RuleOutgoingLimit:     "OUTGOING LIMIT EXCEEDED",
		RuleOutgoingAllowList: "OUTGOING NOT ALLOWED",
		RuleIncomingLimit:     "INCOMING LIMIT EXCEEDED",
		RuleIncomingAllowList: "INCOMING NOT ALLOWED",
		Rule("unknown"):       "CONSTRAINT VIOLATION",
	}
	for rule, want := range cases {
		assert.Equal(t, want, violationReason(rule))
	}
}
