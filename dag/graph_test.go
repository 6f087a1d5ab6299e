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
	"testing"
)

func TestAddNode_Idempotent(t *testing.T) {
	g := NewGraph()

	first := g.AddNode("a")
	second := g.AddNode("a")

	if first != second {
		t.Fatal("expected AddNode to return the same node for the same name")
	}
	if g.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NodeCount())
	}
}

func TestAddEdge_SymmetricSets(t *testing.T) {
	g := NewGraph()
	g.AddEdge("consumer", "producer")

	consumer, ok := g.GetNode("consumer")
	if !ok {
		t.Fatal("consumer node not auto-created")
	}
	producer, ok := g.GetNode("producer")
	if !ok {
		t.Fatal("producer node not auto-created")
	}

	if _, ok := consumer.Dependencies["producer"]; !ok {
		t.Error("consumer missing producer in dependencies")
	}
	if _, ok := producer.Dependents["consumer"]; !ok {
		t.Error("producer missing consumer in dependents")
	}
}

func TestDegrees(t *testing.T) {
	g := NewGraph()
	g.AddEdge("b", "a")
	g.AddEdge("c", "a")

	if got := g.OutDegree("a"); got != 2 {
		t.Errorf("OutDegree(a) = %d, want 2", got)
	}
	if got := g.InDegree("b"); got != 1 {
		t.Errorf("InDegree(b) = %d, want 1", got)
	}
	if got := g.InDegree("missing"); got != 0 {
		t.Errorf("InDegree(missing) = %d, want 0", got)
	}
}

func TestTopologicalOrder_Empty(t *testing.T) {
	g := NewGraph()

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("expected empty order, got %v", order)
	}
}

func TestTopologicalOrder_DependenciesFirst(t *testing.T) {
	g := NewGraph()
	// diamond: a -> b, a -> c, b -> d, c -> d
	g.AddEdge("b", "a")
	g.AddEdge("c", "a")
	g.AddEdge("d", "b")
	g.AddEdge("d", "c")

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 nodes, got %v", order)
	}

	position := make(map[string]int)
	for i, name := range order {
		position[name] = i
	}
	for node, deps := range map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	} {
		for _, dep := range deps {
			if position[dep] > position[node] {
				t.Errorf("dependency %s ordered after dependent %s: %v", dep, node, order)
			}
		}
	}
}

func TestTopologicalOrder_EveryNodeOnce(t *testing.T) {
	g := NewGraph()
	g.AddEdge("b", "a")
	g.AddEdge("c", "b")
	g.AddNode("isolated")

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}

	seen := make(map[string]int)
	for _, name := range order {
		seen[name]++
	}
	for _, name := range g.NodeNames() {
		if seen[name] != 1 {
			t.Errorf("node %s appears %d times in order %v", name, seen[name], order)
		}
	}
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	build := func() *Graph {
		g := NewGraph()
		g.AddEdge("z", "root")
		g.AddEdge("m", "root")
		g.AddEdge("a", "root")
		return g
	}

	first, err := build().TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := build().TopologicalOrder()
		if err != nil {
			t.Fatalf("TopologicalOrder: %v", err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("order not deterministic: %v vs %v", first, again)
			}
		}
	}
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	g := NewGraph()
	g.AddEdge("b", "a")
	g.AddEdge("c", "b")
	g.AddEdge("b", "c") // b <-> c cycle
	g.AddNode("free")

	order, err := g.TopologicalOrder()
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got: %v", err)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Remaining) != 2 {
		t.Errorf("expected 2 unorderable nodes, got %v", cycleErr.Remaining)
	}

	// Best-effort order still contains every node exactly once.
	if len(order) != g.NodeCount() {
		t.Errorf("partial order missing nodes: %v", order)
	}
	seen := make(map[string]bool)
	for _, name := range order {
		if seen[name] {
			t.Errorf("duplicate node %s in order %v", name, order)
		}
		seen[name] = true
	}
}

func TestEdgeCount(t *testing.T) {
	g := NewGraph()
	g.AddEdge("b", "a")
	g.AddEdge("c", "a")
	g.AddEdge("c", "b")

	if got := g.EdgeCount(); got != 3 {
		t.Errorf("EdgeCount = %d, want 3", got)
	}
}
