package rules

import (
	"context"
	"strings"

	"github.com/hyperengineering/claimgate/internal/types"
)

// Pipeline orchestrates pair and claim-level handlers over a claim,
// producing an ordered list of validation records: one per code pair, then
// one per registered claim-level handler.
type Pipeline struct {
	pairHandlers  []Handler
	claimHandlers []Handler
}

// NewPipeline creates a pipeline with the given handler sets. Handler order
// is preserved in output.
func NewPipeline(pairHandlers, claimHandlers []Handler) *Pipeline {
	return &Pipeline{pairHandlers: pairHandlers, claimHandlers: claimHandlers}
}

// ValidateClaim validates one claim. Pairs are the 2-combinations of the
// code list; within each pair the earlier-listed code is code1. Failures
// from multiple handlers on the same pair join into one result. A claim with
// fewer than two codes yields no pairwise records but still runs claim-level
// handlers.
func (p *Pipeline) ValidateClaim(ctx context.Context, claim types.Claim) []types.ValidationRecord {
	records := make([]types.ValidationRecord, 0, pairCount(len(claim.Codes))+len(p.claimHandlers))

	for i := 0; i < len(claim.Codes); i++ {
		for j := i + 1; j < len(claim.Codes); j++ {
			pair := types.CodePair{Code1: claim.Codes[i], Code2: claim.Codes[j]}
			records = append(records, types.ValidationRecord{
				ClaimID:  claim.ClaimID,
				Code1:    pair.Code1,
				Code2:    pair.Code2,
				Modifier: claim.Modifier,
				Result:   p.evaluatePair(ctx, pair, claim).String(),
			})
		}
	}

	for _, h := range p.claimHandlers {
		outcome := h.Validate(ctx, nil, claim.Modifier, claim)
		if outcome == nil {
			outcome = types.Pass("no claim rule errors found")
		}
		records = append(records, types.ValidationRecord{
			ClaimID:  claim.ClaimID,
			Modifier: claim.Modifier,
			Result:   outcome.String(),
		})
	}

	return records
}

// ValidateBatch validates claims in input order and concatenates their
// records.
func (p *Pipeline) ValidateBatch(ctx context.Context, claims []types.Claim) []types.ValidationRecord {
	var records []types.ValidationRecord
	for _, claim := range claims {
		records = append(records, p.ValidateClaim(ctx, claim)...)
	}
	return records
}

// evaluatePair runs every pair handler against one pair and folds the
// outcomes into a single result. Failure reasons join with ", "; with no
// failures the first applicable pass outcome wins, and with no applicable
// handler at all the pair passes by default.
func (p *Pipeline) evaluatePair(ctx context.Context, pair types.CodePair, claim types.Claim) *types.Outcome {
	var (
		failures  []string
		firstPass *types.Outcome
	)

	for _, h := range p.pairHandlers {
		outcome := h.Validate(ctx, &pair, claim.Modifier, claim)
		if outcome == nil {
			continue
		}
		if outcome.Failed() {
			failures = append(failures, outcome.Reason())
		} else if firstPass == nil {
			firstPass = outcome
		}
	}

	if len(failures) > 0 {
		return types.Fail(strings.Join(failures, ", "))
	}
	if firstPass != nil {
		return firstPass
	}
	return types.Pass("no pair rule found")
}

func pairCount(n int) int {
	return n * (n - 1) / 2
}
