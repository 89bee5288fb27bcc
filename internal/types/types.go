package types

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Rule is a procedure-to-procedure billing rule keyed by an ordered code
// pair. Code1 is the primary ("billed first") code; the pair is deliberately
// asymmetric and lookups must preserve caller order.
type Rule struct {
	Code1             string   `json:"code1"`
	Code2             string   `json:"code2"`
	RuleText          string   `json:"rule_text"`
	ModifierAllowed   bool     `json:"modifier_allowed"`
	ModifierIndicator []string `json:"modifier_indicator"`
}

// AllowsModifier reports whether mod is non-empty and present in the rule's
// modifier indicator set.
func (r *Rule) AllowsModifier(mod string) bool {
	if mod == "" {
		return false
	}
	for _, m := range r.ModifierIndicator {
		if m == mod {
			return true
		}
	}
	return false
}

// SortedModifiers returns the modifier indicator set sorted ascending.
// Failure messages embed this so output stays deterministic.
func (r *Rule) SortedModifiers() []string {
	mods := make([]string, len(r.ModifierIndicator))
	copy(mods, r.ModifierIndicator)
	sort.Strings(mods)
	return mods
}

// RuleMeta is the metadata projected into the vector index alongside each
// rule's embedded text.
type RuleMeta struct {
	Code1             string   `json:"code1"`
	Code2             string   `json:"code2"`
	ModifierAllowed   bool     `json:"modifier_allowed"`
	ModifierIndicator []string `json:"modifier_indicator"`
}

// ResolvedRule is the outcome of a hybrid rule resolution: the matched rule
// text plus its metadata, regardless of which source (vector index or exact
// corpus lookup) produced it.
type ResolvedRule struct {
	Text string
	Meta RuleMeta
}

// Rule returns the resolved rule in Rule form.
func (r *ResolvedRule) Rule() Rule {
	return Rule{
		Code1:             r.Meta.Code1,
		Code2:             r.Meta.Code2,
		RuleText:          r.Text,
		ModifierAllowed:   r.Meta.ModifierAllowed,
		ModifierIndicator: r.Meta.ModifierIndicator,
	}
}

// Patient identifies the subject of a claim. Reference may be empty when the
// submitting system has no patient linkage.
type Patient struct {
	Reference string `json:"reference,omitempty"`
}

// Claim is an incoming billing claim to validate.
type Claim struct {
	ClaimID  string   `json:"claim_id"`
	Codes    []string `json:"codes"`
	Modifier string   `json:"modifier,omitempty"`
	Patient  *Patient `json:"patient,omitempty"`
}

// PatientReference returns the claim's patient reference or "" when absent.
func (c *Claim) PatientReference() string {
	if c.Patient == nil {
		return ""
	}
	return c.Patient.Reference
}

// CodePair is an ordered pair of procedure codes drawn from a claim's code
// list. Code1 is the earlier-listed code.
type CodePair struct {
	Code1 string
	Code2 string
}

// Outcome markers used in the textual serialization of validation results.
const (
	passMarker = "PASS"
	failMarker = "FAIL"
)

// Outcome is the tagged pass/fail result of one rule evaluation. Absence of
// an applicable rule is represented by a nil *Outcome, not by a failure.
type Outcome struct {
	failed bool
	reason string
}

// Pass returns a passing outcome with the given reason.
func Pass(reason string) *Outcome {
	return &Outcome{failed: false, reason: reason}
}

// Fail returns a failing outcome with the given reason.
func Fail(reason string) *Outcome {
	return &Outcome{failed: true, reason: reason}
}

// Failed reports whether the outcome is a failure.
func (o *Outcome) Failed() bool { return o.failed }

// Reason returns the human-readable reason attached to the outcome.
func (o *Outcome) Reason() string { return o.reason }

// String serializes the outcome with its distinguishing marker.
func (o *Outcome) String() string {
	if o.failed {
		return failMarker + ": " + o.reason
	}
	return passMarker + ": " + o.reason
}

// IsFailureResult reports whether a serialized result string carries the
// failure marker. The transport layer uses this to compute claim approval.
func IsFailureResult(result string) bool {
	return strings.HasPrefix(result, failMarker+":")
}

// ValidationRecord is one row of validation output. Code1/Code2 are empty
// for claim-level records; Modifier echoes the claim's modifier.
type ValidationRecord struct {
	ClaimID  string `json:"claim_id"`
	Code1    string `json:"code1,omitempty"`
	Code2    string `json:"code2,omitempty"`
	Modifier string `json:"modifier,omitempty"`
	Result   string `json:"result"`
}

// Failed reports whether the record's result carries the failure marker.
func (v *ValidationRecord) Failed() bool {
	return IsFailureResult(v.Result)
}

// ClaimResult groups one claim's validation records with the approval flag
// and optional summary computed by the transport layer.
type ClaimResult struct {
	ID        string             `json:"id,omitempty"`
	ClaimID   string             `json:"claim_id"`
	Approved  bool               `json:"approved"`
	Summary   string             `json:"summary,omitempty"`
	Records   []ValidationRecord `json:"results"`
	CreatedAt time.Time          `json:"created_at,omitempty"`
}

// MarshalJSON ensures a nil Records slice marshals as [] not null.
func (c ClaimResult) MarshalJSON() ([]byte, error) {
	if c.Records == nil {
		c.Records = []ValidationRecord{}
	}
	type Alias ClaimResult
	return json.Marshal(Alias(c))
}

// BatchResult wraps per-claim results for the batch endpoint.
type BatchResult struct {
	Claims []ClaimResult `json:"claims"`
}

// MarshalJSON ensures a nil Claims slice marshals as [] not null.
func (b BatchResult) MarshalJSON() ([]byte, error) {
	if b.Claims == nil {
		b.Claims = []ClaimResult{}
	}
	type Alias BatchResult
	return json.Marshal(Alias(b))
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
	RuleCount      int    `json:"rule_count"`
	IndexedRules   int    `json:"indexed_rules"`
	PatientCount   int    `json:"patient_count"`
}
