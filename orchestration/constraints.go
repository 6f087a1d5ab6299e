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

// Rule identifies which structural constraint rejected an edge.
type Rule string

const (
	// RuleOutgoingLimit means the caller's out-degree limit was reached.
	RuleOutgoingLimit Rule = "outgoing_limit"

	// RuleOutgoingAllowList means the callee's base name is not in the
	// caller's outgoing allow-list.
	RuleOutgoingAllowList Rule = "outgoing_allowlist"

	// RuleIncomingLimit means the callee's in-degree limit was reached.
	RuleIncomingLimit Rule = "incoming_limit"

	// RuleIncomingAllowList means the caller's base name is not in the
	// callee's incoming allow-list.
	RuleIncomingAllowList Rule = "incoming_allowlist"
)

// Outgoing reports whether the rule constrains the caller side of the edge.
func (r Rule) Outgoing() bool {
	return r == RuleOutgoingLimit || r == RuleOutgoingAllowList
}

// ViolationError is a rejected edge-creation attempt.
//
// Description:
//
//	Carries the broken rule, the task whose constraint rejected the edge,
//	and both edge endpoints. It is always surfaced to the caller unchanged
//	and never downgraded to a *TaskError.
type ViolationError struct {
	// Rule is the constraint rule that rejected the edge.
	Rule Rule

	// Task is the unique name of the task whose constraint was broken.
	Task string

	// Caller and Callee are the unique names of the attempted edge's
	// endpoints.
	Caller string
	Callee string

	// Detail describes the rejection (current degree vs limit, or the
	// allow-list the base name was missing from).
	Detail string
}

// Error returns the error message.
func (e *ViolationError) Error() string {
	return fmt.Sprintf("%v in task '%s' (%s): cannot add dependency %s -> %s: %s",
		ErrConstraintViolation, e.Task, e.Rule, e.Caller, e.Callee, e.Detail)
}

// Unwrap returns ErrConstraintViolation so callers can match with errors.Is.
func (e *ViolationError) Unwrap() error {
	return ErrConstraintViolation
}

// Constraints are the structural rules attached to a task at definition time.
//
// Description:
//
//	Degree limits bound how many edges may leave or enter the task;
//	allow-lists restrict which base names may sit at the far end of an
//	edge. An empty allow-list means unrestricted, an unset limit means
//	unbounded. Constraints are validated at construction and immutable
//	afterwards.
type Constraints struct {
	maxOutDegree           *int
	allowedOutgoingTargets map[string]struct{}
	maxInDegree            *int
	allowedIncomingSources map[string]struct{}
}

// ConstraintOption configures Constraints under construction.
type ConstraintOption func(*Constraints) error

// WithMaxOutDegree bounds the number of outgoing edges.
func WithMaxOutDegree(limit int) ConstraintOption {
	return func(c *Constraints) error {
		if limit < 0 {
			return fmt.Errorf("%w: max out-degree %d", ErrNegativeLimit, limit)
		}
		c.maxOutDegree = &limit
		return nil
	}
}

// WithMaxInDegree bounds the number of incoming edges.
func WithMaxInDegree(limit int) ConstraintOption {
	return func(c *Constraints) error {
		if limit < 0 {
			return fmt.Errorf("%w: max in-degree %d", ErrNegativeLimit, limit)
		}
		c.maxInDegree = &limit
		return nil
	}
}

// WithAllowedOutgoingTargets restricts outgoing edges to the given base names.
func WithAllowedOutgoingTargets(baseNames ...string) ConstraintOption {
	return func(c *Constraints) error {
		for _, name := range baseNames {
			c.allowedOutgoingTargets[name] = struct{}{}
		}
		return nil
	}
}

// WithAllowedIncomingSources restricts incoming edges to the given base names.
func WithAllowedIncomingSources(baseNames ...string) ConstraintOption {
	return func(c *Constraints) error {
		for _, name := range baseNames {
			c.allowedIncomingSources[name] = struct{}{}
		}
		return nil
	}
}

// NewConstraints builds a validated, immutable Constraints value.
//
// Outputs:
//
//	*Constraints - Ready to attach to a task via WithConstraints.
//	error - Non-nil if any option is invalid (e.g. a negative limit).
func NewConstraints(opts ...ConstraintOption) (*Constraints, error) {
	c := &Constraints{
		allowedOutgoingTargets: make(map[string]struct{}),
		allowedIncomingSources: make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MaxOutDegree returns the out-degree limit, if set.
func (c *Constraints) MaxOutDegree() (int, bool) {
	if c.maxOutDegree == nil {
		return 0, false
	}
	return *c.maxOutDegree, true
}

// MaxInDegree returns the in-degree limit, if set.
func (c *Constraints) MaxInDegree() (int, bool) {
	if c.maxInDegree == nil {
		return 0, false
	}
	return *c.maxInDegree, true
}

// AllowsOutgoingTo reports whether an edge toward the given base name is
// permitted. Empty allow-lists permit everything.
func (c *Constraints) AllowsOutgoingTo(baseName string) bool {
	if len(c.allowedOutgoingTargets) == 0 {
		return true
	}
	_, ok := c.allowedOutgoingTargets[baseName]
	return ok
}

// AllowsIncomingFrom reports whether an edge from the given base name is
// permitted. Empty allow-lists permit everything.
func (c *Constraints) AllowsIncomingFrom(baseName string) bool {
	if len(c.allowedIncomingSources) == 0 {
		return true
	}
	_, ok := c.allowedIncomingSources[baseName]
	return ok
}

// AllowedOutgoingTargets returns the configured outgoing allow-list.
func (c *Constraints) AllowedOutgoingTargets() []string {
	return setToSlice(c.allowedOutgoingTargets)
}

// AllowedIncomingSources returns the configured incoming allow-list.
func (c *Constraints) AllowedIncomingSources() []string {
	return setToSlice(c.allowedIncomingSources)
}
