// Package corpus holds the immutable in-memory table of procedure-to-procedure
// billing rules, loaded once at startup from the NCCI rule feed.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hyperengineering/claimgate/internal/types"
)

// ErrMalformedSource indicates the rule feed is not a sequence of rule-shaped
// records. The corpus is load-bearing, so this is fatal at startup.
var ErrMalformedSource = errors.New("malformed rule source")

// pairKey is the ordered identity of a rule. Order is deliberately
// significant: (code1, code2) and (code2, code1) are distinct rules.
type pairKey struct {
	code1 string
	code2 string
}

// ruleRecord is the wire shape of one rule feed entry. The modifier
// indicator arrives as a comma-separated string.
type ruleRecord struct {
	Code1             string `json:"code1"`
	Code2             string `json:"code2"`
	RuleText          string `json:"rule_text"`
	ModifierAllowed   bool   `json:"modifier_allowed"`
	ModifierIndicator string `json:"modifier_indicator"`
}

// Corpus is the immutable rule table. Reads are lock-free because no writer
// exists after Load returns.
type Corpus struct {
	byPair  map[pairKey]int
	rules   []types.Rule
	skipped int
}

// Load parses a JSON rule feed from r. Duplicate ordered pairs resolve
// last-write-wins; records missing a code or rule text are skipped and
// counted. Returns ErrMalformedSource when the feed is not a JSON array of
// rule records.
func Load(r io.Reader) (*Corpus, error) {
	var records []ruleRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	c := &Corpus{byPair: make(map[pairKey]int, len(records))}
	for _, rec := range records {
		if rec.Code1 == "" || rec.Code2 == "" || rec.RuleText == "" {
			c.skipped++
			continue
		}
		rule := types.Rule{
			Code1:             rec.Code1,
			Code2:             rec.Code2,
			RuleText:          rec.RuleText,
			ModifierAllowed:   rec.ModifierAllowed,
			ModifierIndicator: parseModifierSet(rec.ModifierIndicator),
		}
		key := pairKey{rec.Code1, rec.Code2}
		if i, ok := c.byPair[key]; ok {
			// Last write wins, first-insertion position retained so
			// index ids stay stable across duplicate feeds.
			c.rules[i] = rule
			continue
		}
		c.byPair[key] = len(c.rules)
		c.rules = append(c.rules, rule)
	}

	if c.skipped > 0 {
		slog.Warn("skipped invalid rule records",
			"component", "corpus",
			"skipped", c.skipped,
			"loaded", len(c.rules),
		)
	}

	return c, nil
}

// LoadFile loads the rule feed at path. A missing file is tolerated and
// yields an empty corpus: the service degrades to exact-miss behavior
// rather than refusing to start.
func LoadFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("rule feed not found, starting with empty corpus",
				"component", "corpus",
				"path", path,
			)
			return &Corpus{byPair: map[pairKey]int{}}, nil
		}
		return nil, fmt.Errorf("open rule feed: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load rule feed %s: %w", path, err)
	}
	return c, nil
}

// Lookup returns the rule for the ordered pair (code1, code2). Exact and
// case-sensitive; callers must pass codes in ingestion order.
func (c *Corpus) Lookup(code1, code2 string) (*types.Rule, bool) {
	i, ok := c.byPair[pairKey{code1, code2}]
	if !ok {
		return nil, false
	}
	return &c.rules[i], true
}

// Rules returns all rules in first-insertion order. The slice is shared;
// callers must not mutate it.
func (c *Corpus) Rules() []types.Rule {
	return c.rules
}

// Len returns the number of distinct rules loaded.
func (c *Corpus) Len() int {
	return len(c.rules)
}

// Skipped returns the count of invalid records dropped during load.
func (c *Corpus) Skipped() int {
	return c.skipped
}

// parseModifierSet splits a comma-separated indicator string into a set,
// dropping empty elements.
func parseModifierSet(s string) []string {
	if s == "" {
		return nil
	}
	var mods []string
	for _, m := range strings.Split(s, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			mods = append(mods, m)
		}
	}
	return mods
}
