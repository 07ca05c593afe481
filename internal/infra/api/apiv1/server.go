package apiv1

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/adapters/gateway"
	"fitcenter-checkout/internal/infra/adapters/prompt"
	"fitcenter-checkout/internal/infra/api"
	"fitcenter-checkout/internal/infra/i18n"
	"fitcenter-checkout/internal/infra/worker"
	"fitcenter-checkout/internal/usecase"
)

// Prompter answers the checkout prompts from request/response input.
type Prompter interface {
	adapter.DetailsPrompter
	adapter.MethodPrompter
	Pending(attemptID string) (prompt.Pending, bool)
	SubmitDetails(attemptID string, in adapter.DetailsInput) error
	SubmitMethod(attemptID string, in adapter.MethodInput) error
}

// CallbackSink receives browser gateway callbacks. Nil when the gateway is not relayed.
type CallbackSink interface {
	Deliver(ctx context.Context, cb gateway.Callback) error
}

// Runner schedules checkout flows off the request goroutine.
type Runner interface {
	Submit(task worker.Task) error
}

type Deps struct {
	Catalog    usecase.CatalogUseCase
	Checkout   usecase.CheckoutUseCase
	Prompter   Prompter
	Callbacks  CallbackSink
	Runner     Runner
	Translator *i18n.Translator
	Auth       *api.AuthManager
}

type Options struct {
	// PromptWait bounds how long a submit waits for the flow to reach the prompt.
	PromptWait     time.Duration
	RequestTimeout time.Duration
}

type Server struct {
	deps Deps
	opts Options
	log  *zerolog.Logger
}

func NewServer(deps Deps, opts Options, logger *zerolog.Logger) *Server {
	if opts.PromptWait <= 0 {
		opts.PromptWait = 2 * time.Second
	}
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{deps: deps, opts: opts, log: &l}
}

// Handler builds the full router including health and metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		api.TraceID(s.log),
		api.Recover(s.log),
		api.RequestLog(s.log),
	)
	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	RegisterAPIV1(r, s)
	return r
}

// RegisterAPIV1 mounts the /api/v1 routes on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.Timeout(s.opts.RequestTimeout))
		r.Post("/session", s.createSession)

		r.Group(func(r chi.Router) {
			r.Use(api.RequirePurchaser(s.deps.Auth))
			r.Get("/plans", s.listPlans)
			r.Get("/purchases", s.listPurchases)

			r.Post("/checkout", s.startCheckout)
			r.Get("/checkout", s.getCheckout)
			r.Post("/checkout/details", s.submitDetails)
			r.Post("/checkout/method", s.submitMethod)
			r.Post("/checkout/cancel", s.cancelCheckout)

			r.Post("/gateway/callback", s.gatewayCallback)
		})
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckoutView is the polled representation of an attempt.
type CheckoutView struct {
	*model.Attempt
	Pending *prompt.Pending `json:"pending,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (s *Server) view(a *model.Attempt) CheckoutView {
	v := CheckoutView{Attempt: a}
	if a.State.IsTerminal() {
		if s.deps.Translator != nil {
			v.Message = s.deps.Translator.Outcome(a)
		}
		return v
	}
	if p, ok := s.deps.Prompter.Pending(a.ID); ok {
		v.Pending = &p
	}
	return v
}
