// Package vecindex implements the in-memory semantic index over rule text.
// The index is built once at startup by batch-embedding the rule corpus and
// is immutable afterwards, so queries need no locking.
package vecindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/hyperengineering/claimgate/internal/embedding"
	"github.com/hyperengineering/claimgate/internal/types"
)

// ErrIndexBuild indicates embedding or insertion failed during the one-time
// index build. The index is foundational to every later query, so this is
// fatal at startup and never retried silently.
var ErrIndexBuild = errors.New("vector index build failed")

const (
	defaultBatchSize = 64
	defaultWorkers   = 4
)

// Options tunes index construction. Zero values fall back to defaults;
// batch size bounds peak request size, worker count bounds concurrency.
type Options struct {
	BatchSize int
	Workers   int
}

// Entry is one rule projected into the index. IDs are derived from
// ingestion order and stay stable for a given corpus.
type Entry struct {
	ID        string
	Embedding []float32
	Text      string
	Meta      types.RuleMeta
}

// SearchResult is one query candidate: the rule text, its metadata, and the
// cosine similarity to the query.
type SearchResult struct {
	Text  string
	Meta  types.RuleMeta
	Score float32
}

// Index is the immutable semantic index.
type Index struct {
	entries  []Entry
	embedder embedding.Embedder
}

// batch identifies one contiguous slice of entries to embed. Batches are
// enumerated by position so repeated rule texts can never be misassigned.
type batch struct {
	index int
	start int
	end   int
}

// Build embeds every rule's text and constructs the index. Batches run on a
// bounded worker pool; any batch failure fails the whole build, leaving no
// partial index state.
func Build(ctx context.Context, rules []types.Rule, embedder embedding.Embedder, opts Options) (*Index, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	entries := make([]Entry, len(rules))
	for i, rule := range rules {
		entries[i] = Entry{
			ID:   fmt.Sprintf("rule_%06d", i),
			Text: rule.RuleText,
			Meta: types.RuleMeta{
				Code1:             rule.Code1,
				Code2:             rule.Code2,
				ModifierAllowed:   rule.ModifierAllowed,
				ModifierIndicator: rule.ModifierIndicator,
			},
		}
	}

	var batches []batch
	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batches = append(batches, batch{index: len(batches), start: start, end: end})
	}

	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan batch)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		buildErr error
	)

	fail := func(err error) {
		errOnce.Do(func() {
			buildErr = err
			cancel()
		})
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				if buildCtx.Err() != nil {
					continue
				}
				texts := make([]string, b.end-b.start)
				for i := b.start; i < b.end; i++ {
					texts[i-b.start] = entries[i].Text
				}
				vectors, err := embedder.EmbedBatch(buildCtx, texts)
				if err != nil {
					fail(fmt.Errorf("%w: batch %d (offset %d): %v", ErrIndexBuild, b.index, b.start, err))
					continue
				}
				// Disjoint index ranges per batch; no locking needed.
				for i, v := range vectors {
					entries[b.start+i].Embedding = v
				}
			}
		}()
	}

	for _, b := range batches {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	if buildErr != nil {
		return nil, buildErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexBuild, err)
	}

	slog.Info("vector index built",
		"component", "vecindex",
		"entries", len(entries),
		"batches", len(batches),
		"workers", workers,
	)

	return &Index{entries: entries, embedder: embedder}, nil
}

// Query embeds text and returns up to k entries whose metadata code1 equals
// the filter value, best similarity first. Ties keep insertion order. Zero
// matches return an empty slice, never an error.
func (idx *Index) Query(ctx context.Context, text string, k int, code1 string) ([]SearchResult, error) {
	if k <= 0 || len(idx.entries) == 0 {
		return []SearchResult{}, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var results []SearchResult
	for _, e := range idx.entries {
		if e.Meta.Code1 != code1 {
			continue
		}
		results = append(results, SearchResult{
			Text:  e.Text,
			Meta:  e.Meta,
			Score: cosineSimilarity(queryVec, e.Embedding),
		})
	}

	// Stable sort preserves insertion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
