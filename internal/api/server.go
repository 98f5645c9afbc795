package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/loanrules/internal/audit"
	"github.com/TimurManjosov/loanrules/internal/eligibility"
	"github.com/TimurManjosov/loanrules/internal/logging"
	"github.com/TimurManjosov/loanrules/internal/snapshot"
	"github.com/TimurManjosov/loanrules/internal/store"
	"github.com/TimurManjosov/loanrules/internal/telemetry"
	"github.com/TimurManjosov/loanrules/internal/validation"
)

const (
	maxBodyBytes   = 1 << 20
	requestTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Store          store.Store
	Cache          *snapshot.Cache
	AdminAPIKey    string
	RateLimitPerIP int // requests per minute; 0 disables limiting
	Logger         zerolog.Logger
	Audit          *audit.Service // optional
}

// Server serves program eligibility, document logic and rule administration.
type Server struct {
	store       store.Store
	cache       *snapshot.Cache
	programs    *eligibility.ProgramFilter
	documents   *eligibility.DocumentEvaluator
	adminAPIKey string
	limitByIP   func(http.Handler) http.Handler
	audit       *audit.Service
	log         zerolog.Logger
}

// NewServer wires the evaluators to the rule cache.
func NewServer(opts Options) *Server {
	return &Server{
		store:       opts.Store,
		cache:       opts.Cache,
		programs:    eligibility.NewProgramFilter(opts.Cache, opts.Logger),
		documents:   eligibility.NewDocumentEvaluator(opts.Cache, opts.Logger),
		adminAPIKey: opts.AdminAPIKey,
		limitByIP:   newIPLimiter(opts.RateLimitPerIP),
		audit:       opts.Audit,
		log:         opts.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, logging.Middleware(s.log), middleware.Recoverer, telemetry.Middleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1/orgs/{orgID}", func(r chi.Router) {
		r.Use(s.requireOrgID)

		// the stream is long-lived, so it sits outside the timeout
		r.With(s.limitByIP).Get("/rules/stream", s.handleRuleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			// public
			r.Group(func(r chi.Router) {
				r.Use(s.limitByIP)
				r.Get("/programs", s.handleListPrograms)
				r.Post("/programs/eligible", s.handleEligiblePrograms)
				r.Post("/documents/evaluate", s.handleEvaluateDocuments)
				r.Get("/rules/snapshot", s.handleRuleSnapshot)
			})

			// admin
			r.Group(func(r chi.Router) {
				r.Use(s.authAdmin)
				r.Put("/programs/{programID}", s.handleUpsertProgram)
				r.Delete("/programs/{programID}", s.handleDeleteProgram)
				r.Post("/program-rules", s.handleUpsertProgramRule)
				r.Delete("/program-rules/{ruleID}", s.handleDeleteProgramRule)
				r.Post("/document-rules", s.handleUpsertDocumentRule)
				r.Delete("/document-rules/{ruleID}", s.handleDeleteDocumentRule)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		hlogWarn(r, err, "health check failed")
		UnavailableError(w, r, "storage unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ---- middleware ----

func (s *Server) requireOrgID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if res := validation.ValidateID("orgId", chi.URLParam(r, "orgID")); !res.Valid {
			ValidationError(w, r, ErrCodeInvalidID, "invalid organization id", res.Errors)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newIPLimiter returns one shared per-IP limiter for all public routes.
func newIPLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(RateLimitedError),
	)
}

func (s *Server) authAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		got = strings.TrimSpace(got)
		if !ok || got == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminAPIKey)) != 1 {
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
