package server

import (
	"net/http"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/httpx"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/shopspring/decimal"
)

// CreateClaimRequest is the body of POST /claims.
type CreateClaimRequest struct {
	PolicyID    string `json:"policyId"`
	Description string `json:"description"`
}

// AdjudicateRequest is the body of POST /claims/{id}/adjudicate.
type AdjudicateRequest struct {
	Decision     models.ClaimStatus `json:"decision"`
	PayoutAmount *decimal.Decimal   `json:"payoutAmount,omitempty"`
}

func (h *handlers) listClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, ok := models.ParseClaimStatus(q.Get("status"))
	if !ok {
		h.fail(w, r, apperr.Validation("unknown claim status "+q.Get("status")))
		return
	}
	items, err := h.manager.ListClaims(r.Context(), session(r), lifecycle.ClaimFilter{
		PolicyID: q.Get("policyId"),
		Status:   status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[models.Claim]{Items: items})
}

func (h *handlers) getClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.GetClaim(r.Context(), session(r), pathID(r, "id"))
	h.claimResult(w, r, http.StatusOK, c, err)
}

func (h *handlers) createClaim(w http.ResponseWriter, r *http.Request) {
	var req CreateClaimRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.manager.CreateClaim(r.Context(), session(r), req.PolicyID, req.Description)
	h.claimResult(w, r, http.StatusCreated, c, err)
}

func (h *handlers) submitClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.SubmitClaim(r.Context(), session(r), pathID(r, "id"))
	h.claimResult(w, r, http.StatusOK, c, err)
}

func (h *handlers) adjudicateClaim(w http.ResponseWriter, r *http.Request) {
	var req AdjudicateRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.manager.AdjudicateClaim(r.Context(), session(r), pathID(r, "id"), req.Decision, req.PayoutAmount)
	h.claimResult(w, r, http.StatusOK, c, err)
}

func (h *handlers) claimResult(w http.ResponseWriter, r *http.Request, status int, c models.Claim, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, status, c)
}
