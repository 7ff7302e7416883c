package server

import (
	"log/slog"
	"net/http"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/authz"
	"github.com/kylejryan/insurance-ops/internal/health"
	"github.com/kylejryan/insurance-ops/internal/httpx"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/quote"

	"github.com/go-chi/chi/v5"
)

type handlers struct {
	logger   *slog.Logger
	manager  *lifecycle.Manager
	accounts *auth.Service
	health   *health.Checker
	quote    quote.Calculator
}

// ListResponse wraps every collection the API returns.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// TableResponse is the body of GET /lifecycle/table.
type TableResponse struct {
	Rules []lifecycle.Rule `json:"rules"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token and the session it encodes.
type LoginResponse struct {
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
}

// fail writes err, logging failures the caller cannot act on.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindUnknown, apperr.KindCollaborator:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	default:
		h.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	httpx.Error(w, err)
}

func session(r *http.Request) models.Session {
	s, _ := authz.SessionFrom(r.Context())
	return s
}

func (h *handlers) getHealth(w http.ResponseWriter, r *http.Request) {
	var report models.Health
	if h.health != nil {
		report = h.health.Check(r.Context())
	}
	status := http.StatusOK
	if !health.Healthy(report) {
		status = http.StatusServiceUnavailable
	}
	httpx.JSON(w, status, report)
}

func (h *handlers) getTable(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, TableResponse{Rules: h.manager.Table().Rules()})
}

func (h *handlers) calculateQuote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.quote.Calculate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	token, s, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, LoginResponse{Token: token, Session: s})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := httpx.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	var caller *models.Session
	if s, ok := authz.SessionFrom(r.Context()); ok {
		caller = &s
	}
	u, err := h.accounts.Register(r.Context(), caller, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func pathID(r *http.Request, name string) string { return chi.URLParam(r, name) }
