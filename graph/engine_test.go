package graph

import (
	"context"
	"errors"
	"testing"
)

func TestExecuteSingleSinkReturnsValueDirectly(t *testing.T) {
	e := New()
	_, _ = e.AddNode("A", func(_ context.Context, seed any) (any, error) {
		return seed.(int) + 1, nil
	})
	_, _ = e.AddNode("B", func(_ context.Context, in any) (any, error) {
		return in.(int) * 2, nil
	})
	_ = e.Connect("A", "B")

	result, err := e.Execute(context.Background(), ExecuteOptions{Seed: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind() != SingleSink {
		t.Fatalf("expected SingleSink, got %v", result.Kind())
	}
	if result.Value().(int) != 4 {
		t.Fatalf("expected 4, got %v", result.Value())
	}
}

func TestExecuteMultiSinkShape(t *testing.T) {
	e := New()
	_, _ = e.AddNode("A", func(_ context.Context, seed any) (any, error) { return seed, nil })
	_, _ = e.AddNode("B", func(_ context.Context, in any) (any, error) { return "b:" + in.(string), nil })
	_, _ = e.AddNode("C", func(_ context.Context, in any) (any, error) { return "c:" + in.(string), nil })
	_ = e.Connect("A", "B")
	_ = e.Connect("A", "C")

	result, err := e.Execute(context.Background(), ExecuteOptions{Seed: "x"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind() != MultiSink {
		t.Fatalf("expected MultiSink, got %v", result.Kind())
	}
	sinks := result.Sinks()
	if sinks["B"] != "b:x" || sinks["C"] != "c:x" {
		t.Fatalf("unexpected sinks: %#v", sinks)
	}
	if v, ok := result.Get("A"); !ok || v != "x" {
		t.Fatalf("Get should reach across non-sink nodes too: %v %v", v, ok)
	}
}

func TestOptionalNodeFailureDoesNotHaltRun(t *testing.T) {
	e := New()
	_, _ = e.AddNode("A", func(_ context.Context, seed any) (any, error) { return seed, nil })
	_, _ = e.AddNode("B", func(_ context.Context, _ any) (any, error) {
		return nil, errors.New("boom")
	}, Optional())
	_, _ = e.AddNode("C", func(_ context.Context, in any) (any, error) {
		if in == nil {
			return "no-input", nil
		}
		return in, nil
	})
	_ = e.Connect("A", "B")
	_ = e.Connect("A", "C")

	result, err := e.Execute(context.Background(), ExecuteOptions{Seed: "seed"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// B is optional and fails, leaving C as the only successful sink:
	// the single-sink shortcut applies even though B is technically a
	// second sink.
	if result.Kind() != SingleSink {
		t.Fatalf("expected SingleSink, got %v", result.Kind())
	}
	if result.Has("B") {
		t.Fatalf("failed optional node must have no result entry")
	}
	if result.Value() != "seed" {
		t.Fatalf("expected C's result %q, got %v", "seed", result.Value())
	}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	e := New()
	attempts := 0
	_, _ = e.AddNode("A", func(_ context.Context, _ any) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}, WithRetry(2, 0))

	result, err := e.Execute(context.Background(), ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Value() != "ok" {
		t.Fatalf("expected eventual success, got %v", result.Value())
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestConnectRejectsSelfEdge(t *testing.T) {
	e := New()
	mustNode(t, e, "A")
	if err := e.Connect("A", "A"); !errors.Is(err, ErrSelfEdge) {
		t.Fatalf("expected ErrSelfEdge, got %v", err)
	}
}

func TestAddNodeRejectsDuplicateID(t *testing.T) {
	e := New()
	mustNode(t, e, "A")
	_, err := e.AddNode("A", func(_ context.Context, in any) (any, error) { return in, nil })
	if !errors.Is(err, ErrNodeExists) {
		t.Fatalf("expected ErrNodeExists, got %v", err)
	}
}

func TestCriticalNodeFailurePropagates(t *testing.T) {
	e := New()
	_, _ = e.AddNode("A", func(_ context.Context, _ any) (any, error) {
		return nil, errors.New("fatal")
	})

	_, err := e.Execute(context.Background(), ExecuteOptions{})
	if err == nil {
		t.Fatal("expected critical node failure to surface")
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	e := New()
	id := e.SaveCheckpoint("", map[string]any{"A": 1}, nil)
	cp, err := e.LoadCheckpoint(id)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if cp.Results["A"] != 1 {
		t.Fatalf("unexpected checkpoint contents: %#v", cp.Results)
	}
	if len(e.ListCheckpoints()) != 1 {
		t.Fatalf("expected one checkpoint listed")
	}
	e.ClearCheckpoint(id)
	if _, err := e.LoadCheckpoint(id); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("expected ErrNoCheckpoint after clear, got %v", err)
	}
}
