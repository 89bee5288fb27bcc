package store

import (
	"context"

	"github.com/hyperengineering/claimgate/internal/types"
)

// Store defines the interface contract for the validation audit store.
type Store interface {
	// SaveResult persists one claim's validation outcome and returns it
	// with the assigned id and timestamp.
	SaveResult(ctx context.Context, result types.ClaimResult) (*types.ClaimResult, error)

	// GetLatestResult returns the most recent stored result for a claim id.
	GetLatestResult(ctx context.Context, claimID string) (*types.ClaimResult, error)

	// ListResults returns the most recent results, newest first.
	ListResults(ctx context.Context, limit int) ([]types.ClaimResult, error)

	Close() error
}
