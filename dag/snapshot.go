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
	"fmt"
	"sort"
	"time"
)

// NodeSnapshot is one node in a serialized graph document.
//
// Description:
//
//	The structural fields are filled by Graph.Snapshot. The remaining
//	fields (status, error, task metadata) are optional enrichments added
//	by the registry before the document is handed to the renderer.
type NodeSnapshot struct {
	ID                  string `json:"id"`
	Label               string `json:"label"`
	Type                string `json:"type"`
	DependenciesCount   int    `json:"dependencies_count"`
	DependentsCount     int    `json:"dependents_count"`
	TopologicalPosition int    `json:"topological_position"`

	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	BaseName       string `json:"base_name,omitempty"`
	InstanceHash   string `json:"instance_hash,omitempty"`
	HasConstraints bool   `json:"has_constraints,omitempty"`
	Description    string `json:"description,omitempty"`
}

// EdgeSnapshot is one edge in a serialized graph document.
// Source is the dependency; Target is the dependent.
type EdgeSnapshot struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Label  string `json:"label"`
}

// EventSnapshot is one execution-history entry in a serialized graph document.
type EventSnapshot struct {
	Task      string    `json:"task"`
	Event     string    `json:"event"`
	StartTime time.Time `json:"start_time,omitzero"`
	EndTime   time.Time `json:"end_time,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// SnapshotMetadata is the summary block of a serialized graph document.
type SnapshotMetadata struct {
	TotalNodes       int             `json:"total_nodes"`
	TotalEdges       int             `json:"total_edges"`
	TopologicalOrder []string        `json:"topological_order"`
	ExecutionOrder   []string        `json:"execution_order,omitempty"`
	ExecutionHistory []EventSnapshot `json:"execution_history,omitempty"`

	// SkipIsolatedNodes tells the renderer to omit nodes with no edges and
	// no recorded activity.
	SkipIsolatedNodes bool `json:"skip_isolated_nodes,omitempty"`
}

// Snapshot is the graph-to-document serialization consumed by the external
// visualization collaborator.
//
// Description:
//
//	A Snapshot is plain data handed to the collaborator by value. The core
//	has no dependency on how it is transported or rendered, and the
//	document carries no fields that are only meaningful internally.
type Snapshot struct {
	Title       string           `json:"title,omitempty"`
	Nodes       []NodeSnapshot   `json:"nodes"`
	Edges       []EdgeSnapshot   `json:"edges"`
	Metadata    SnapshotMetadata `json:"metadata"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Snapshot produces a structural snapshot of the graph.
//
// Description:
//
//	Nodes appear in topological order with their position recorded; each
//	edge is emitted as a dependency→dependent pair labeled "depends_on".
//	Cyclic graphs still serialize (with the best-effort order); rendering
//	a broken graph is exactly when a snapshot is most useful.
func (g *Graph) Snapshot() *Snapshot {
	order, _ := g.TopologicalOrder()

	nodes := make([]NodeSnapshot, 0, len(order))
	for position, name := range order {
		node := g.nodes[name]
		nodes = append(nodes, NodeSnapshot{
			ID:                  name,
			Label:               name,
			Type:                "task",
			DependenciesCount:   len(node.Dependencies),
			DependentsCount:     len(node.Dependents),
			TopologicalPosition: position,
		})
	}

	edges := make([]EdgeSnapshot, 0, g.EdgeCount())
	edgeID := 0
	for _, name := range g.NodeNames() {
		node := g.nodes[name]
		deps := make([]string, 0, len(node.Dependencies))
		for dep := range node.Dependencies {
			deps = append(deps, dep)
		}
		// Deterministic edge order for stable documents.
		sort.Strings(deps)
		for _, dep := range deps {
			edges = append(edges, EdgeSnapshot{
				ID:     fmt.Sprintf("edge_%d", edgeID),
				Source: dep,
				Target: name,
				Type:   "dependency",
				Label:  "depends_on",
			})
			edgeID++
		}
	}

	return &Snapshot{
		Nodes: nodes,
		Edges: edges,
		Metadata: SnapshotMetadata{
			TotalNodes:       len(g.nodes),
			TotalEdges:       len(edges),
			TopologicalOrder: order,
		},
		GeneratedAt: now(),
	}
}
