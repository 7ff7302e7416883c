package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/authz"
	"github.com/kylejryan/insurance-ops/internal/health"
	"github.com/kylejryan/insurance-ops/internal/httpx"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/metrics"
	"github.com/kylejryan/insurance-ops/internal/quote"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies collects handler dependencies. Optional ones may be nil.
type Dependencies struct {
	Manager  *lifecycle.Manager
	Accounts *auth.Service
	Auth     *authz.Authenticator
	Health   *health.Checker

	Quote   quote.Calculator
	Metrics *metrics.Metrics
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer

	// Storage receives presigned uploads in dev mode, mounted at StoragePath.
	Storage     http.Handler
	StoragePath string

	AllowedOrigins []string
}

// NewRouter wires the HTTP routes exposed by the API.
func NewRouter(logger *slog.Logger, deps Dependencies) http.Handler {
	h := &handlers{
		logger:   logger,
		manager:  deps.Manager,
		accounts: deps.Accounts,
		health:   deps.Health,
		quote:    deps.Quote,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger, deps.Metrics))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(deps.AllowedOrigins))
	}

	r.Get("/health", h.getHealth)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/lifecycle/table", h.getTable)
	if deps.Quote != nil {
		r.Post(quote.Path, h.calculateQuote)
	}
	if deps.Storage != nil {
		r.Handle(strings.TrimRight(deps.StoragePath, "/")+"/*", deps.Storage)
	}

	r.Post("/auth/login", h.login)
	r.With(deps.Auth.Optional).Post("/auth/register", h.register)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Require(httpx.Error))

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.listPolicies)
			r.Post("/", h.createPolicy)
			r.Get("/{id}", h.getPolicy)
			r.Post("/{id}/renew", h.renewPolicy)
			r.Post("/{id}/suspend", h.suspendPolicy)
			r.Post("/{id}/reinstate", h.reinstatePolicy)
			r.Post("/{id}/cancel", h.cancelPolicy)
		})

		r.Route("/claims", func(r chi.Router) {
			r.Get("/", h.listClaims)
			r.Post("/", h.createClaim)
			r.Get("/{id}", h.getClaim)
			r.Post("/{id}/submit", h.submitClaim)
			r.Post("/{id}/adjudicate", h.adjudicateClaim)
		})

		r.Route("/docs", func(r chi.Router) {
			r.Get("/presign-download", h.presignDownload)
			r.Post("/{claimId}/presign-upload", h.presignUpload)
			r.Get("/{claimId}/list", h.listDocuments)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if m != nil {
				m.Request(r.Method, route, status)
			}
			logger.Info("request completed",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	_, wildcard := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, ok := allowed[origin]
			if origin == "" || (!ok && !wildcard) {
				if r.Method == http.MethodOptions {
					// Reject bare pre-flight if origin is not whitelisted.
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
