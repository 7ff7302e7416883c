package server

import (
	"net/http"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/httpx"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"
)

// RenewRequest is the body of POST /policies/{id}/renew.
type RenewRequest struct {
	ExtendMonths int `json:"extendMonths"`
}

// SuspendRequest is the body of POST /policies/{id}/suspend.
type SuspendRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) listPolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, ok := models.ParsePolicyStatus(q.Get("status"))
	if !ok {
		h.fail(w, r, apperr.Validation("unknown policy status "+q.Get("status")))
		return
	}
	items, err := h.manager.ListPolicies(r.Context(), session(r), lifecycle.PolicyFilter{
		UserID: q.Get("userId"),
		Status: status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[models.Policy]{Items: items})
}

func (h *handlers) getPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.manager.GetPolicy(r.Context(), session(r), pathID(r, "id"))
	h.policyResult(w, r, http.StatusOK, p, err)
}

func (h *handlers) createPolicy(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreatePolicyInput
	if err := httpx.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.manager.CreatePolicy(r.Context(), session(r), in)
	h.policyResult(w, r, http.StatusCreated, p, err)
}

func (h *handlers) renewPolicy(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.manager.RenewPolicy(r.Context(), session(r), pathID(r, "id"), req.ExtendMonths)
	h.policyResult(w, r, http.StatusOK, p, err)
}

func (h *handlers) suspendPolicy(w http.ResponseWriter, r *http.Request) {
	var req SuspendRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.manager.SuspendPolicy(r.Context(), session(r), pathID(r, "id"), req.Reason)
	h.policyResult(w, r, http.StatusOK, p, err)
}

func (h *handlers) reinstatePolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.manager.ReinstatePolicy(r.Context(), session(r), pathID(r, "id"))
	h.policyResult(w, r, http.StatusOK, p, err)
}

func (h *handlers) cancelPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.manager.CancelPolicy(r.Context(), session(r), pathID(r, "id"))
	h.policyResult(w, r, http.StatusOK, p, err)
}

func (h *handlers) policyResult(w http.ResponseWriter, r *http.Request, status int, p models.Policy, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, status, p)
}
