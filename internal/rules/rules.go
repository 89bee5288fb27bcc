// Package rules implements the claim validation pipeline: polymorphic rule
// handlers evaluated against a claim's pairwise code combinations and
// against the claim as a whole.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/claimgate/internal/history"
	"github.com/hyperengineering/claimgate/internal/resolver"
	"github.com/hyperengineering/claimgate/internal/types"
)

// Handler is the single capability shared by all validation rules. A nil
// outcome means the rule is not applicable to this input, which is distinct
// from a passing evaluation. Pair handlers receive a non-nil pair; claim
// handlers receive nil.
type Handler interface {
	Validate(ctx context.Context, pair *types.CodePair, modifier string, claim types.Claim) *types.Outcome
}

// PTPRule validates pairwise procedure-to-procedure rules via the hybrid
// resolver.
type PTPRule struct {
	resolver *resolver.Resolver
}

// NewPTPRule creates the pairwise PTP handler.
func NewPTPRule(r *resolver.Resolver) *PTPRule {
	return &PTPRule{resolver: r}
}

// Validate resolves the PTP rule for the pair and checks the claim's
// modifier against it. No resolved rule means no known interaction
// constraint: the handler is not applicable.
func (p *PTPRule) Validate(ctx context.Context, pair *types.CodePair, modifier string, claim types.Claim) *types.Outcome {
	if pair == nil {
		return nil
	}

	resolved, ok := p.resolver.Resolve(ctx, pair.Code1, pair.Code2)
	if !ok {
		return nil
	}
	rule := resolved.Rule()

	if rule.ModifierAllowed {
		if rule.AllowsModifier(modifier) {
			return types.Pass(fmt.Sprintf("modifier %q accepted: %s", modifier, resolved.Text))
		}
		allowed := strings.Join(rule.SortedModifiers(), ", ")
		if allowed == "" {
			allowed = "None"
		}
		return types.Fail(fmt.Sprintf("invalid modifier %q for %s+%s, allowed: %s (%s)",
			modifier, pair.Code1, pair.Code2, allowed, resolved.Text))
	}

	if modifier != "" {
		return types.Fail(fmt.Sprintf("modifier not allowed for %s+%s (%s)",
			pair.Code1, pair.Code2, resolved.Text))
	}
	return types.Pass(fmt.Sprintf("no modifier required (%s)", resolved.Text))
}

// DefaultOneTimeCode is the annual wellness visit code billed at most once
// per patient.
const DefaultOneTimeCode = "G0438"

// OneTimeBillingRule fails a claim that bills a designated one-time code for
// a patient whose history already contains it.
type OneTimeBillingRule struct {
	history *history.Index
	code    string
}

// NewOneTimeBillingRule creates the whole-claim duplication handler. An
// empty code selects DefaultOneTimeCode.
func NewOneTimeBillingRule(idx *history.Index, code string) *OneTimeBillingRule {
	if code == "" {
		code = DefaultOneTimeCode
	}
	return &OneTimeBillingRule{history: idx, code: code}
}

// Validate checks the claim's code list against the patient's billing
// history. Not applicable when the claim carries no patient reference.
func (o *OneTimeBillingRule) Validate(ctx context.Context, pair *types.CodePair, modifier string, claim types.Claim) *types.Outcome {
	ref := claim.PatientReference()
	if ref == "" {
		return nil
	}

	billed := false
	for _, code := range claim.Codes {
		if code == o.code {
			billed = true
			break
		}
	}
	if billed && o.history.HasCode(ref, o.code) {
		return types.Fail(fmt.Sprintf("procedure %s already billed for patient %s", o.code, ref))
	}
	return nil
}
