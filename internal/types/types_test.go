package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOutcomeSerialization(t *testing.T) {
	pass := Pass("no pair rule found")
	if pass.Failed() {
		t.Error("Pass outcome reported as failed")
	}
	if got := pass.String(); got != "PASS: no pair rule found" {
		t.Errorf("unexpected pass serialization: %q", got)
	}

	fail := Fail("modifier not allowed for 99213+99214")
	if !fail.Failed() {
		t.Error("Fail outcome reported as passing")
	}
	if got := fail.String(); !strings.HasPrefix(got, "FAIL: ") {
		t.Errorf("fail serialization missing marker: %q", got)
	}
}

func TestIsFailureResult(t *testing.T) {
	tests := []struct {
		result string
		want   bool
	}{
		{"FAIL: modifier not allowed", true},
		{"PASS: no pair rule found", false},
		{"FAILURE without marker colon", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsFailureResult(tt.result); got != tt.want {
			t.Errorf("IsFailureResult(%q) = %v, want %v", tt.result, got, tt.want)
		}
	}
}

func TestRuleAllowsModifier(t *testing.T) {
	rule := Rule{
		Code1:             "99213",
		Code2:             "99214",
		ModifierAllowed:   true,
		ModifierIndicator: []string{"59", "XE"},
	}

	if !rule.AllowsModifier("59") {
		t.Error("expected modifier 59 to be allowed")
	}
	if rule.AllowsModifier("25") {
		t.Error("modifier 25 should not be allowed")
	}
	// Empty modifier is never "present" in the set
	if rule.AllowsModifier("") {
		t.Error("empty modifier should not be allowed")
	}
}

func TestRuleSortedModifiers(t *testing.T) {
	rule := Rule{ModifierIndicator: []string{"XE", "59", "25"}}

	got := rule.SortedModifiers()
	want := []string{"25", "59", "XE"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedModifiers() = %v, want %v", got, want)
		}
	}

	// Original ordering must not be mutated
	if rule.ModifierIndicator[0] != "XE" {
		t.Error("SortedModifiers mutated the rule's indicator set")
	}
}

func TestClaimPatientReference(t *testing.T) {
	claim := Claim{ClaimID: "c-1"}
	if ref := claim.PatientReference(); ref != "" {
		t.Errorf("expected empty reference for nil patient, got %q", ref)
	}

	claim.Patient = &Patient{Reference: "Patient/1"}
	if ref := claim.PatientReference(); ref != "Patient/1" {
		t.Errorf("PatientReference() = %q, want Patient/1", ref)
	}
}

func TestResolvedRuleToRule(t *testing.T) {
	resolved := ResolvedRule{
		Text: "99213 cannot be billed with 99214",
		Meta: RuleMeta{
			Code1:             "99213",
			Code2:             "99214",
			ModifierAllowed:   true,
			ModifierIndicator: []string{"59"},
		},
	}

	rule := resolved.Rule()
	if rule.RuleText != resolved.Text {
		t.Errorf("rule text = %q, want %q", rule.RuleText, resolved.Text)
	}
	if rule.Code1 != "99213" || rule.Code2 != "99214" {
		t.Errorf("unexpected code pair: %s/%s", rule.Code1, rule.Code2)
	}
	if !rule.ModifierAllowed {
		t.Error("modifier_allowed not carried over")
	}
}

func TestClaimResultMarshalsNilRecordsAsEmptyArray(t *testing.T) {
	data, err := json.Marshal(ClaimResult{ClaimID: "c-1"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"results":[]`) {
		t.Errorf("nil records should marshal as [], got %s", data)
	}
}

func TestBatchResultMarshalsNilClaimsAsEmptyArray(t *testing.T) {
	data, err := json.Marshal(BatchResult{})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"claims":[]}` {
		t.Errorf("nil claims should marshal as [], got %s", data)
	}
}
