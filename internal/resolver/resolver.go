// Package resolver implements hybrid rule resolution: an approximate
// semantic search over the vector index with an exact corpus fallback.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/claimgate/internal/corpus"
	"github.com/hyperengineering/claimgate/internal/types"
	"github.com/hyperengineering/claimgate/internal/vecindex"
)

// topK is the number of vector candidates scanned before falling back to the
// exact lookup. Similarity ranking does not guarantee the correct
// counterpart code appears first, so candidates are re-filtered on code2.
const topK = 3

// Resolver combines the vector index and the rule corpus into a single
// lookup. Safe for concurrent use; both sources are immutable after build.
type Resolver struct {
	index  *vecindex.Index
	corpus *corpus.Corpus
}

// New creates a resolver over the given index and corpus.
func New(index *vecindex.Index, c *corpus.Corpus) *Resolver {
	return &Resolver{index: index, corpus: c}
}

// Resolve finds the rule for the ordered pair (code1, code2). The vector
// index is consulted first; if no candidate carries the requested code2, the
// corpus is checked exactly. A false return means no known interaction
// constraint exists for the pair, which is a normal outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, code1, code2 string) (*types.ResolvedRule, bool) {
	query := fmt.Sprintf("%s with %s", code1, code2)

	candidates, err := r.index.Query(ctx, query, topK, code1)
	if err != nil {
		// Query-time embedding failure degrades to the exact path.
		slog.Warn("vector query failed, falling back to exact lookup",
			"component", "resolver",
			"code1", code1,
			"code2", code2,
			"error", err,
		)
	}

	for _, c := range candidates {
		if c.Meta.Code2 == code2 {
			return &types.ResolvedRule{Text: c.Text, Meta: c.Meta}, true
		}
	}

	rule, ok := r.corpus.Lookup(code1, code2)
	if !ok {
		return nil, false
	}
	return &types.ResolvedRule{
		Text: rule.RuleText,
		Meta: types.RuleMeta{
			Code1:             rule.Code1,
			Code2:             rule.Code2,
			ModifierAllowed:   rule.ModifierAllowed,
			ModifierIndicator: rule.ModifierIndicator,
		},
	}, true
}
