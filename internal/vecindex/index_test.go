package vecindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hyperengineering/claimgate/internal/types"
)

// stubEmbedder returns deterministic vectors from a lookup table. Unknown
// texts get the fallback vector.
type stubEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	fallback   []float32
	batchSizes []int
	err        error
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{0, 1},
	}
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.batchSizes = append(s.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = s.fallback
		}
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string { return "stub" }

func makeRules(n int) []types.Rule {
	rules := make([]types.Rule, n)
	for i := range rules {
		rules[i] = types.Rule{
			Code1:    "99213",
			Code2:    fmt.Sprintf("9921%d", i),
			RuleText: fmt.Sprintf("rule text %d", i),
		}
	}
	return rules
}

func TestBuildAndQueryFiltersByCode1(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.vectors["alpha"] = []float32{1, 0}
	embedder.vectors["beta"] = []float32{0.9, 0.1}
	embedder.vectors["other"] = []float32{1, 0}

	rules := []types.Rule{
		{Code1: "99213", Code2: "99214", RuleText: "alpha"},
		{Code1: "99213", Code2: "99215", RuleText: "beta"},
		{Code1: "11111", Code2: "22222", RuleText: "other"},
	}

	idx, err := Build(context.Background(), rules, embedder, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", idx.Len())
	}

	embedder.vectors["query"] = []float32{1, 0}
	results, err := idx.Query(context.Background(), "query", 3, "99213")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 filtered results, got %d", len(results))
	}
	for _, r := range results {
		if r.Meta.Code1 != "99213" {
			t.Errorf("filter leaked entry with code1=%s", r.Meta.Code1)
		}
	}
	// alpha is exactly aligned with the query, so it ranks first
	if results[0].Text != "alpha" {
		t.Errorf("expected best match first, got %q", results[0].Text)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered best first")
	}
}

func TestQueryRespectsK(t *testing.T) {
	embedder := newStubEmbedder()
	idx, err := Build(context.Background(), makeRules(10), embedder, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := idx.Query(context.Background(), "anything", 3, "99213")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected k=3 results, got %d", len(results))
	}
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	embedder := newStubEmbedder()
	// Identical rule text yields identical vectors: scores tie exactly.
	rules := []types.Rule{
		{Code1: "99213", Code2: "99214", RuleText: "duplicate text"},
		{Code1: "99213", Code2: "99215", RuleText: "duplicate text"},
		{Code1: "99213", Code2: "99216", RuleText: "duplicate text"},
	}

	idx, err := Build(context.Background(), rules, embedder, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := idx.Query(context.Background(), "duplicate text", 3, "99213")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []string{"99214", "99215", "99216"}
	for i, r := range results {
		if r.Meta.Code2 != want[i] {
			t.Fatalf("tie-break broke insertion order: got %s at %d, want %s", r.Meta.Code2, i, want[i])
		}
	}
}

func TestDuplicateTextsKeepPerPositionMetadata(t *testing.T) {
	embedder := newStubEmbedder()
	rules := []types.Rule{
		{Code1: "99213", Code2: "99214", RuleText: "same wording", ModifierAllowed: true},
		{Code1: "99213", Code2: "99215", RuleText: "same wording", ModifierAllowed: false},
	}

	idx, err := Build(context.Background(), rules, embedder, Options{BatchSize: 1})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := idx.Query(context.Background(), "same wording", 2, "99213")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Meta.ModifierAllowed || results[1].Meta.ModifierAllowed {
		t.Error("metadata misassigned across duplicate texts")
	}
}

func TestQueryZeroMatchesReturnsEmpty(t *testing.T) {
	embedder := newStubEmbedder()
	idx, err := Build(context.Background(), makeRules(2), embedder, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := idx.Query(context.Background(), "query", 3, "00000")
	if err != nil {
		t.Fatalf("zero matches must not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result set, got %d", len(results))
	}
}

func TestQueryOnEmptyIndex(t *testing.T) {
	embedder := newStubEmbedder()
	idx, err := Build(context.Background(), nil, embedder, Options{})
	if err != nil {
		t.Fatalf("Build of empty corpus failed: %v", err)
	}

	results, err := idx.Query(context.Background(), "query", 3, "99213")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results from empty index, got %d", len(results))
	}
}

func TestBuildBoundsBatchSize(t *testing.T) {
	embedder := newStubEmbedder()
	_, err := Build(context.Background(), makeRules(10), embedder, Options{BatchSize: 4, Workers: 2})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var total int
	for _, size := range embedder.batchSizes {
		if size > 4 {
			t.Errorf("batch exceeded configured size: %d", size)
		}
		total += size
	}
	if total != 10 {
		t.Errorf("expected all 10 texts embedded, got %d", total)
	}
}

func TestBuildFailsWholeBuildOnBatchError(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.err = errors.New("embedding service down")

	_, err := Build(context.Background(), makeRules(5), embedder, Options{BatchSize: 2})
	if err == nil {
		t.Fatal("expected build failure when a batch fails")
	}
	if !errors.Is(err, ErrIndexBuild) {
		t.Errorf("expected ErrIndexBuild, got %v", err)
	}
}

func TestQueryPropagatesEmbedError(t *testing.T) {
	embedder := newStubEmbedder()
	idx, err := Build(context.Background(), makeRules(2), embedder, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	embedder.err = errors.New("embedding service down")
	if _, err := idx.Query(context.Background(), "query", 3, "99213"); err == nil {
		t.Fatal("expected query embed failure to propagate")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); got != tt.want {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
