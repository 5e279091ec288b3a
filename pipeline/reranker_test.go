package pipeline

import (
	"context"
	"testing"
)

func TestLexicalRerankerOrdersByOverlap(t *testing.T) {
	docs := []Document{
		{ID: "low", Content: "completely unrelated text"},
		{ID: "high", Content: "go concurrency patterns and channels"},
		{ID: "mid", Content: "go programming basics"},
	}
	reranked, err := LexicalReranker{}.Rerank(context.Background(), "go concurrency channels", docs)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if reranked[0].ID != "high" {
		t.Fatalf("expected highest-overlap doc first, got %s", reranked[0].ID)
	}
	if len(reranked) != len(docs) {
		t.Fatalf("Rerank must return the same element count")
	}
}

func TestLexicalRerankerStableTieBreak(t *testing.T) {
	// Identical content -> identical scores -> original index order wins.
	docs := []Document{
		{ID: "first", Content: "same same"},
		{ID: "second", Content: "same same"},
		{ID: "third", Content: "same same"},
	}
	reranked, err := LexicalReranker{}.Rerank(context.Background(), "same", docs)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if reranked[i].ID != want {
			t.Fatalf("expected stable original order, got %v", idsOf(reranked))
		}
	}
}

func TestLexicalRerankerTokenCountTieBreak(t *testing.T) {
	// spec.md §8 scenario S7: "math" and "nothing" tie on token count (3
	// words each) despite differing character lengths, so the tie must
	// break on original index order, not raw content length.
	docs := []Document{
		{ID: "math", Content: "context about math"},
		{ID: "vectors", Content: "context about vectors"},
		{ID: "nothing", Content: "context about nothing"},
	}
	reranked, err := LexicalReranker{}.Rerank(context.Background(), "vectors", docs)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	want := []string{"vectors", "math", "nothing"}
	if got := idsOf(reranked); got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func idsOf(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestLLMRerankerFallsBackOnInvalidJSON(t *testing.T) {
	docs := []Document{
		{ID: "a", Content: "alpha beta"},
		{ID: "b", Content: "gamma delta"},
	}
	llm := &stubLLM{response: "not json"}
	r := NewLLMReranker(llm)
	reranked, err := r.Rerank(context.Background(), "alpha beta", docs)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if reranked[0].ID != "a" {
		t.Fatalf("expected lexical fallback to rank 'a' first, got %s", reranked[0].ID)
	}
}

func TestLLMRerankerUsesValidPermutation(t *testing.T) {
	docs := []Document{
		{ID: "a", Content: "alpha"},
		{ID: "b", Content: "beta"},
	}
	llm := &stubLLM{response: "[1,0]"}
	r := NewLLMReranker(llm)
	reranked, err := r.Rerank(context.Background(), "query", docs)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if reranked[0].ID != "b" || reranked[1].ID != "a" {
		t.Fatalf("expected permutation [b,a], got %v", idsOf(reranked))
	}
}

type stubLLM struct {
	response string
}

func (s *stubLLM) Generate(_ context.Context, _ string, _ []Document) (string, error) {
	return s.response, nil
}
