package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/claimgate/internal/store"
	"github.com/hyperengineering/claimgate/internal/summary"
	"github.com/hyperengineering/claimgate/internal/types"
	"github.com/hyperengineering/claimgate/internal/validation"
)

// Validator is the pipeline capability the transport layer consumes.
// Implemented by rules.Pipeline.
type Validator interface {
	ValidateClaim(ctx context.Context, claim types.Claim) []types.ValidationRecord
	ValidateBatch(ctx context.Context, claims []types.Claim) []types.ValidationRecord
}

// IndexInfo reports index sizes for the health endpoint.
type IndexInfo struct {
	RuleCount    int
	IndexedRules int
	PatientCount int
}

// Handler implements the API handlers.
type Handler struct {
	pipeline   Validator
	store      store.Store
	summarizer summary.Summarizer
	info       IndexInfo
	model      string
	apiKey     string
	version    string
}

// NewHandler creates a new Handler. The summarizer may be nil, in which case
// responses carry no summary.
func NewHandler(pipeline Validator, s store.Store, summarizer summary.Summarizer, info IndexInfo, model, apiKey, version string) *Handler {
	return &Handler{
		pipeline:   pipeline,
		store:      s,
		summarizer: summarizer,
		info:       info,
		model:      model,
		apiKey:     apiKey,
		version:    version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:         "healthy",
		Version:        h.version,
		EmbeddingModel: h.model,
		RuleCount:      h.info.RuleCount,
		IndexedRules:   h.info.IndexedRules,
		PatientCount:   h.info.PatientCount,
	}

	writeJSON(w, http.StatusOK, resp)
}

// ValidateClaim handles POST /api/v1/validate/claim
func (h *Handler) ValidateClaim(w http.ResponseWriter, r *http.Request) {
	var claim types.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateClaim(claim); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Claim contains invalid fields", errs)
		return
	}

	result := h.finishClaim(r.Context(), claim, h.pipeline.ValidateClaim(r.Context(), claim))
	writeJSON(w, http.StatusOK, result)
}

// ValidateBatch handles POST /api/v1/validate/batch
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var claims []types.Claim
	if err := json.NewDecoder(r.Body).Decode(&claims); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateBatch(claims); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Batch contains invalid claims", errs)
		return
	}

	batch := types.BatchResult{Claims: make([]types.ClaimResult, 0, len(claims))}
	for _, claim := range claims {
		records := h.pipeline.ValidateClaim(r.Context(), claim)
		batch.Claims = append(batch.Claims, h.finishClaim(r.Context(), claim, records))
	}

	writeJSON(w, http.StatusOK, batch)
}

// finishClaim groups one claim's records, computes approval, attaches the
// summary, and persists the outcome. Approval is false iff any record
// carries the failure marker. The audit write is best-effort: a storage
// failure must not fail the validation response.
func (h *Handler) finishClaim(ctx context.Context, claim types.Claim, records []types.ValidationRecord) types.ClaimResult {
	approved := true
	for _, rec := range records {
		if rec.Failed() {
			approved = false
			break
		}
	}

	result := types.ClaimResult{
		ClaimID:  claim.ClaimID,
		Approved: approved,
		Records:  records,
	}

	if h.summarizer != nil {
		text, err := h.summarizer.Summarize(ctx, result)
		if err != nil {
			slog.Warn("claim summarization failed",
				"claim_id", claim.ClaimID,
				"error", err,
			)
		} else {
			result.Summary = text
		}
	}

	saved, err := h.store.SaveResult(ctx, result)
	if err != nil {
		slog.Error("failed to persist claim result",
			"claim_id", claim.ClaimID,
			"error", err,
		)
		return result
	}
	return *saved
}

// GetClaim handles GET /api/v1/claims/{claim_id}
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claim_id")

	result, err := h.store.GetLatestResult(r.Context(), claimID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListClaims handles GET /api/v1/claims
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.store.ListResults(r.Context(), limit)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if results == nil {
		results = []types.ClaimResult{}
	}

	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
