// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dag provides the task dependency graph used as the live
// execution plan.
//
// Nodes are task names; an edge records that the dependent task must not be
// considered ready until the dependency task has completed. The graph grows
// monotonically: nodes and edges are never removed for the life of the
// process.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use. The orchestration registry owns the
// graph and serializes all access behind its lock.
package dag

import (
	"log/slog"
	"sort"
	"time"
)

// Node is a single task's position in the dependency graph.
//
// Description:
//
//	Dependencies holds the names of tasks that must complete before this
//	one; Dependents holds the names of tasks waiting on this one. For every
//	edge the two sets are kept symmetric by Graph.AddEdge.
type Node struct {
	Name         string
	Dependencies map[string]struct{}
	Dependents   map[string]struct{}
}

func newNode(name string) *Node {
	return &Node{
		Name:         name,
		Dependencies: make(map[string]struct{}),
		Dependents:   make(map[string]struct{}),
	}
}

// Graph is a directed acyclic graph of task dependencies.
type Graph struct {
	nodes map[string]*Node
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode adds a node if absent and returns it.
//
// Description:
//
//	Idempotent: adding an existing name returns the existing node
//	untouched. Every name referenced by an edge is auto-created through
//	this path, so the graph never holds dangling edge endpoints.
func (g *Graph) AddNode(name string) *Node {
	if node, ok := g.nodes[name]; ok {
		return node
	}
	node := newNode(name)
	g.nodes[name] = node
	return node
}

// AddEdge records that dependent waits for dependency.
//
// Description:
//
//	Both endpoints are created if absent. The dependency is added to the
//	dependent's Dependencies set and the dependent to the dependency's
//	Dependents set, keeping the two views symmetric.
func (g *Graph) AddEdge(dependent, dependency string) {
	depNode := g.AddNode(dependent)
	prereqNode := g.AddNode(dependency)

	depNode.Dependencies[dependency] = struct{}{}
	prereqNode.Dependents[dependent] = struct{}{}
}

// GetNode returns a node by name.
func (g *Graph) GetNode(name string) (*Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// NodeNames returns all node names, sorted.
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, node := range g.nodes {
		total += len(node.Dependencies)
	}
	return total
}

// InDegree returns the size of a node's dependency set.
// Absent nodes have in-degree zero.
func (g *Graph) InDegree(name string) int {
	node, ok := g.nodes[name]
	if !ok {
		return 0
	}
	return len(node.Dependencies)
}

// OutDegree returns the size of a node's dependent set.
// Absent nodes have out-degree zero.
func (g *Graph) OutDegree(name string) int {
	node, ok := g.nodes[name]
	if !ok {
		return 0
	}
	return len(node.Dependents)
}

// TopologicalOrder returns a dependency-respecting order of all nodes.
//
// Description:
//
//	Kahn's algorithm: nodes with no unsatisfied dependencies are emitted
//	first; emitting a node releases its dependents. Output is deterministic
//	(ties broken by name).
//
//	If the graph contains a cycle the unorderable nodes are appended to the
//	result, sorted by name, and a *CycleError is returned alongside the
//	best-effort order. Callers that tolerate partial orders may log the
//	error and proceed.
//
// Outputs:
//
//	[]string - Every node exactly once; dependencies before dependents for
//	           the acyclic portion.
//	error - Non-nil (*CycleError) if a cycle exists.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if len(g.nodes) == 0 {
		return []string{}, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for name, node := range g.nodes {
		inDegree[name] = len(node.Dependencies)
	}

	queue := make([]string, 0, len(g.nodes))
	for _, name := range g.NodeNames() {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		released := make([]string, 0, len(g.nodes[current].Dependents))
		for dependent := range g.nodes[current].Dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				released = append(released, dependent)
			}
		}
		sort.Strings(released)
		queue = append(queue, released...)
	}

	if len(result) != len(g.nodes) {
		ordered := make(map[string]struct{}, len(result))
		for _, name := range result {
			ordered[name] = struct{}{}
		}
		remaining := make([]string, 0, len(g.nodes)-len(result))
		for name := range g.nodes {
			if _, ok := ordered[name]; !ok {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		result = append(result, remaining...)
		return result, &CycleError{Remaining: remaining}
	}

	return result, nil
}

// Dump writes a human-readable listing of the graph to the logger.
func (g *Graph) Dump(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("dependency graph", slog.Int("nodes", len(g.nodes)))
	for _, name := range g.NodeNames() {
		node := g.nodes[name]
		if len(node.Dependents) == 0 {
			logger.Info("graph node", slog.String("name", name), slog.String("dependents", "none"))
			continue
		}
		dependents := make([]string, 0, len(node.Dependents))
		for dep := range node.Dependents {
			dependents = append(dependents, dep)
		}
		sort.Strings(dependents)
		logger.Info("graph node",
			slog.String("name", name),
			slog.Any("dependents", dependents),
		)
	}
}

// now is swappable for deterministic snapshot tests.
var now = time.Now
