// Package history provides the per-patient billing history index used by
// one-time-billing rules. The index is built once at startup and read-only
// afterwards.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrMalformedSource indicates the history feed is not a sequence of
// historical claim records.
var ErrMalformedSource = errors.New("malformed claim history source")

// historicalClaim is the wire shape of one history feed entry. Only the
// billed code and the nested patient reference matter here.
type historicalClaim struct {
	HCPCSCode string `json:"hcpcs_code"`
	RawClaim  struct {
		Patient struct {
			Reference string `json:"reference"`
		} `json:"patient"`
	} `json:"raw_claim"`
}

// Index maps a patient reference to the set of procedure codes previously
// billed. Duplicates collapse to presence; only membership is queried.
type Index struct {
	codes map[string]map[string]struct{}
}

// Load builds the index from a JSON history feed. Entries missing a patient
// reference or a procedure code contribute no history and are skipped
// silently, per the feed contract.
func Load(r io.Reader) (*Index, error) {
	var claims []historicalClaim
	if err := json.NewDecoder(r).Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	idx := &Index{codes: make(map[string]map[string]struct{})}
	for _, claim := range claims {
		ref := claim.RawClaim.Patient.Reference
		if ref == "" || claim.HCPCSCode == "" {
			continue
		}
		set, ok := idx.codes[ref]
		if !ok {
			set = make(map[string]struct{})
			idx.codes[ref] = set
		}
		set[claim.HCPCSCode] = struct{}{}
	}

	return idx, nil
}

// LoadFile loads the history feed at path. A missing file yields an empty
// index: claims simply validate against no prior history.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("claim history feed not found, starting with empty index",
				"component", "history",
				"path", path,
			)
			return &Index{codes: map[string]map[string]struct{}{}}, nil
		}
		return nil, fmt.Errorf("open claim history feed: %w", err)
	}
	defer f.Close()

	idx, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load claim history feed %s: %w", path, err)
	}
	return idx, nil
}

// HasCode reports whether the patient has ever been billed the given code.
func (i *Index) HasCode(patientRef, code string) bool {
	set, ok := i.codes[patientRef]
	if !ok {
		return false
	}
	_, ok = set[code]
	return ok
}

// PatientCount returns the number of distinct patients with history.
func (i *Index) PatientCount() int {
	return len(i.codes)
}
