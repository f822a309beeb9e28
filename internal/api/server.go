// Package api implements the HTTP layer for Find My Flow. Handlers are
// methods on *Server. Each handler file is responsible for one resource group
// and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/cache"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/catalog"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/email"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/store"
	stripeinternal "github.com/Nic-Huzz/findmyflow-sub001/internal/stripe"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// StripeWebhookSecret is the signing secret from the Stripe dashboard.
	StripeWebhookSecret string

	// Env is "production", "staging", or "development".
	Env string

	// AllowedOrigin is the frontend origin CORS allows in production.
	AllowedOrigin string
}

// Store is the subset of *store.Store the handlers write through.
type Store interface {
	SaveResult(ctx context.Context, p store.SaveResultParams) (db.QuizResult, error)
	AttachUnlockPayment(ctx context.Context, p store.AttachUnlockPaymentParams) (db.FlowUnlock, error)
	ConfirmUnlock(ctx context.Context, stripePaymentIntent string) (db.FlowUnlock, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles all single-query reads. Injected directly, no repo wrapper.
	q db.Querier

	// store handles multi-step atomic writes.
	store Store

	// flows holds in-progress flow sessions until they are saved.
	flows cache.FlowStateCache

	// registry is the static flow and offer catalog.
	registry *catalog.Registry

	// stripe creates PaymentIntents and verifies webhook signatures.
	stripe stripeinternal.Client

	// worker finalises saved results in the background.
	worker worker.Enqueuer

	// mailer sends the unlock receipt.
	mailer email.Sender

	cfg    Config
	logger *slog.Logger
}

// Deps groups the collaborators NewServer wires into the router.
type Deps struct {
	Querier  db.Querier
	Store    Store
	Flows    cache.FlowStateCache
	Registry *catalog.Registry
	Stripe   stripeinternal.Client
	Worker   worker.Enqueuer
	Mailer   email.Sender
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Server.
func NewServer(deps Deps, cfg Config, logger *slog.Logger) http.Handler {
	s := &Server{
		q:        deps.Querier,
		store:    deps.Store,
		flows:    deps.Flows,
		registry: deps.Registry,
		stripe:   deps.Stripe,
		worker:   deps.Worker,
		mailer:   deps.Mailer,
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Catalog: public, static.
		r.Get("/flows", s.handleListFlows)
		r.Get("/flows/{flowID}", s.handleGetFlow)

		// Sessions: no auth required (anonymous creation).
		r.Post("/session", s.handleCreateSession)

		// Session-scoped routes require a valid X-Anon-Token header.
		r.Route("/session/{sessionID}", func(r chi.Router) {
			r.Use(s.requireAnonToken)
			r.Patch("/", s.handleUpdateEmail)

			r.Route("/flows/{flowID}", func(r chi.Router) {
				r.Use(s.loadFlow)
				r.Post("/start", s.handleStartFlow)
				r.Get("/state", s.handleGetState)
				r.Post("/answer", s.handleAnswer)
				r.Post("/back", s.handleBack)
				r.Post("/score", s.handleScore)
				r.Post("/save", s.handleSave)
				r.Post("/checkout", s.handleCreateCheckout)
			})
		})

		// Stripe webhook: no auth (signature verification inside handler).
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		// Result access: no auth (opaque access token in URL).
		r.Get("/result/{accessToken}", s.handleGetResult)
	})

	return r
}
