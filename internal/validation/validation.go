// Package validation implements request-shape validation for incoming
// claims. Shape errors are transport concerns and reported per field; rule
// outcomes are never modeled here.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/claimgate/internal/types"
)

const (
	maxCodeLength     = 16
	maxModifierLength = 8
	maxClaimIDLength  = 128
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateClaim checks the shape of one incoming claim.
func ValidateClaim(claim types.Claim) []ValidationError {
	var c Collector

	c.Add(ValidateRequired("claim_id", claim.ClaimID))
	c.Add(ValidateMaxLength("claim_id", claim.ClaimID, maxClaimIDLength))

	if len(claim.Codes) == 0 {
		c.Add(&ValidationError{Field: "codes", Message: "at least one procedure code is required"})
	}
	for i, code := range claim.Codes {
		field := fmt.Sprintf("codes[%d]", i)
		c.Add(ValidateRequired(field, code))
		c.Add(ValidateUTF8(field, code))
		c.Add(ValidateNoNullBytes(field, code))
		c.Add(ValidateMaxLength(field, code, maxCodeLength))
	}

	c.Add(ValidateMaxLength("modifier", claim.Modifier, maxModifierLength))

	return c.Errors()
}

// ValidateBatch checks the shape of a batch request, prefixing each claim's
// field errors with its position.
func ValidateBatch(claims []types.Claim) []ValidationError {
	var c Collector

	if len(claims) == 0 {
		c.Add(&ValidationError{Field: "claims", Message: "at least one claim is required"})
		return c.Errors()
	}

	for i, claim := range claims {
		for _, err := range ValidateClaim(claim) {
			c.Add(&ValidationError{
				Field:   fmt.Sprintf("claims[%d].%s", i, err.Field),
				Message: err.Message,
			})
		}
	}

	return c.Errors()
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}
