package registry

import "testing"

func TestRegisterAndGet(t *testing.T) {
	r := New()
	if err := r.Register(StageLoader, "fs", "fs-loader"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := r.Get(StageLoader, "fs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "fs-loader" {
		t.Fatalf("expected fs-loader, got %v", got)
	}
}

func TestRegisterRejectsUnknownStage(t *testing.T) {
	r := New()
	if err := r.Register(Stage("bogus"), "x", 1); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestGetMissingPluginError(t *testing.T) {
	r := New()
	_, err := r.Get(StageEmbedder, "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "plugin not found: embedder/missing"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestRegisterOverwritesIdempotently(t *testing.T) {
	r := New()
	_ = r.Register(StageLLM, "gpt", "v1")
	_ = r.Register(StageLLM, "gpt", "v2")
	got, _ := r.Get(StageLLM, "gpt")
	if got != "v2" {
		t.Fatalf("expected overwrite to v2, got %v", got)
	}
}

func TestListScopesByStage(t *testing.T) {
	r := New()
	_ = r.Register(StageLoader, "fs", "a")
	_ = r.Register(StageLoader, "s3", "b")
	_ = r.Register(StageLLM, "gpt", "c")

	loaders := r.List(StageLoader)
	if len(loaders) != 2 {
		t.Fatalf("expected 2 loaders, got %v", loaders)
	}
	all := r.List("")
	if len(all) != 3 {
		t.Fatalf("expected 3 total plugins, got %v", all)
	}
}

func TestDefaultRegistryIsASingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default() must return the same instance every call")
	}
}
