package apiv1

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/adapters/gateway"
	"fitcenter-checkout/internal/infra/adapters/prompt"
	"fitcenter-checkout/internal/infra/api"
	"fitcenter-checkout/internal/infra/logging"
	"fitcenter-checkout/internal/usecase"
)

type sessionResponse struct {
	Token       string `json:"token"`
	PurchaserID string `json:"purchaser_id"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	tok, pid, err := s.deps.Auth.Mint("")
	if err != nil {
		s.log.Error().Err(err).Msg("mint session failed")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: tok, PurchaserID: pid})
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": plans})
}

func (s *Server) listPurchases(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.deps.Checkout.History(r.Context(), api.PurchaserID(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []*model.PurchaseOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

type startRequest struct {
	PlanID string `json:"plan_id"`
}

func (s *Server) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PlanID == "" {
		writeError(w, r, domain.ErrInvalidArgument)
		return
	}

	c, err := s.deps.Checkout.Begin(r.Context(), usecase.PurchaseRequest{
		PurchaserID: api.PurchaserID(r.Context()),
		PlanID:      req.PlanID,
		Details:     s.deps.Prompter,
		Methods:     s.deps.Prompter,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.ErrPlanUnavailable
		}
		writeError(w, r, err)
		return
	}

	if err := s.deps.Runner.Submit(func(ctx context.Context) error {
		c.Run(ctx)
		return nil
	}); err != nil {
		c.Abandon("busy")
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("checkout not scheduled")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.view(c.Attempt()))
}

func (s *Server) getCheckout(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Checkout.Status(api.PurchaserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(a))
}

func (s *Server) submitDetails(w http.ResponseWriter, r *http.Request) {
	var in adapter.DetailsInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s.answer(w, r, prompt.KindDetails, func(attemptID string) error {
		return s.deps.Prompter.SubmitDetails(attemptID, in)
	})
}

func (s *Server) submitMethod(w http.ResponseWriter, r *http.Request) {
	var in adapter.MethodInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s.answer(w, r, prompt.KindMethod, func(attemptID string) error {
		return s.deps.Prompter.SubmitMethod(attemptID, in)
	})
}

// answer hands input to the attempt's pending prompt of the given kind. The flow
// runs on a worker, so the prompt may register shortly after the previous step.
func (s *Server) answer(w http.ResponseWriter, r *http.Request, kind prompt.Kind, submit func(attemptID string) error) {
	a, err := s.deps.Checkout.Status(api.PurchaserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if a.State.IsTerminal() {
		writeError(w, r, domain.ErrNoActiveCheckout)
		return
	}
	if !s.awaitPrompt(r.Context(), a.ID, kind) {
		writeError(w, r, domain.ErrInvalidTransition)
		return
	}
	if err := submit(a.ID); err != nil {
		writeError(w, r, err)
		return
	}
	if a, err = s.deps.Checkout.Status(api.PurchaserID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.view(a))
}

func (s *Server) awaitPrompt(ctx context.Context, attemptID string, kind prompt.Kind) bool {
	deadline := time.Now().Add(s.opts.PromptWait)
	for {
		if p, ok := s.deps.Prompter.Pending(attemptID); ok {
			return p.Kind == kind
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *Server) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Checkout.Cancel(r.Context(), api.PurchaserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(a))
}

// gatewayCallback relays the gateway handler payloads posted by the browser.
// Callbacks must name the caller's own live order.
func (s *Server) gatewayCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Callbacks == nil {
		writeError(w, r, domain.ErrNotFound)
		return
	}
	var cb gateway.Callback
	if err := decodeJSON(r, &cb); err != nil {
		writeError(w, r, err)
		return
	}
	if cb.OrderID == "" || cb.SessionID == "" {
		writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	a, err := s.deps.Checkout.Status(api.PurchaserID(r.Context()))
	if err != nil || a.State.IsTerminal() || a.Order == nil || a.Order.OrderID != cb.OrderID {
		writeError(w, r, domain.ErrStaleCallback)
		return
	}
	ctx := logging.WithOrderID(r.Context(), cb.OrderID)
	if err := s.deps.Callbacks.Deliver(ctx, cb); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "delivered"})
}
