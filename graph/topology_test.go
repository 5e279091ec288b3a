package graph

import (
	"context"
	"testing"
)

func mustNode(t *testing.T, e *Engine, id string) *Node {
	t.Helper()
	n, err := e.AddNode(id, func(_ context.Context, in any) (any, error) { return in, nil })
	if err != nil {
		t.Fatalf("AddNode(%s): %v", id, err)
	}
	return n
}

func indexOf(order []*Node, id string) int {
	for i, n := range order {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func TestTopoSortOrdersSourcesBeforeSinks(t *testing.T) {
	e := New()
	mustNode(t, e, "A")
	mustNode(t, e, "B")
	mustNode(t, e, "C")
	if err := e.Connect("A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := e.Connect("B", "C"); err != nil {
		t.Fatal(err)
	}

	order, err := e.TopoSort()
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	if indexOf(order, "A") >= indexOf(order, "B") || indexOf(order, "B") >= indexOf(order, "C") {
		t.Fatalf("expected A before B before C, got %v", ids(order))
	}
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestTopoSortIsStable(t *testing.T) {
	e := New()
	mustNode(t, e, "A")
	mustNode(t, e, "B")
	mustNode(t, e, "C")
	_ = e.Connect("A", "C")
	_ = e.Connect("B", "C")

	first, err := e.TopoSort()
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.TopoSort()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("length mismatch")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("topoSort not stable: %v vs %v", ids(first), ids(second))
		}
	}
}

func TestCycleDetectionReportsPath(t *testing.T) {
	e := New()
	mustNode(t, e, "A")
	mustNode(t, e, "B")
	mustNode(t, e, "C")
	_ = e.Connect("A", "B")
	_ = e.Connect("B", "C")
	_ = e.Connect("C", "A")

	err := e.Validate()
	if err == nil {
		t.Fatal("expected validation error for cyclic graph")
	}
	enriched, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(enriched.Cycle) == 0 {
		t.Fatalf("expected non-empty cycle path")
	}
	if enriched.Cycle[0] != enriched.Cycle[len(enriched.Cycle)-1] {
		t.Fatalf("cycle path must start and end on the same node: %v", enriched.Cycle)
	}
	realEdges := map[[2]string]bool{
		{"A", "B"}: true,
		{"B", "C"}: true,
		{"C", "A"}: true,
	}
	for i := 0; i < len(enriched.Cycle)-1; i++ {
		pair := [2]string{enriched.Cycle[i], enriched.Cycle[i+1]}
		if !realEdges[pair] {
			t.Fatalf("cycle path has a non-edge step %v -> %v: %v", pair[0], pair[1], enriched.Cycle)
		}
	}
}

func TestValidateTopologyOrphanNonStrictWarns(t *testing.T) {
	e := New()
	mustNode(t, e, "A")
	mustNode(t, e, "B")
	_ = e.Connect("A", "B")
	mustNode(t, e, "orphan")

	warnings, err := e.ValidateTopology(TopologyOptions{Strict: false})
	if err != nil {
		t.Fatalf("non-strict orphan should not error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one orphan warning, got %v", warnings)
	}
}

func TestValidateTopologyOrphanStrictErrors(t *testing.T) {
	e := New()
	mustNode(t, e, "A")
	mustNode(t, e, "B")
	_ = e.Connect("A", "B")
	mustNode(t, e, "orphan")

	if _, err := e.ValidateTopology(TopologyOptions{Strict: true}); err == nil {
		t.Fatal("expected strict orphan error")
	}
}

func TestValidateEmptyGraph(t *testing.T) {
	e := New()
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for empty graph")
	}
}
