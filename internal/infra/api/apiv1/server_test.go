//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/adapters/gateway"
	"fitcenter-checkout/internal/infra/adapters/prompt"
	"fitcenter-checkout/internal/infra/api"
	"fitcenter-checkout/internal/infra/api/apiv1"
	"fitcenter-checkout/internal/infra/i18n"
	"fitcenter-checkout/internal/infra/memstore"
	"fitcenter-checkout/internal/infra/metrics"
	"fitcenter-checkout/internal/infra/worker"
	"fitcenter-checkout/internal/usecase"
)

//
// ---------------- backend stubs ----------------
//

type stubPlans struct{ plans []*model.Plan }

func (s *stubPlans) ListActivePlans(ctx context.Context) ([]*model.Plan, error) {
	return s.plans, nil
}

type stubOrders struct {
	mu sync.Mutex
	n  int
}

func (s *stubOrders) CreateOrder(ctx context.Context, req adapter.OrderRequest) (model.OrderHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return model.OrderHandle{
		OrderID:  fmt.Sprintf("order_%d", s.n),
		Amount:   req.Plan.Price * 100,
		Currency: "INR",
		Key:      "rzp_test_key",
	}, nil
}

type stubVerifier struct {
	gate chan struct{} // when set, VerifyPayment blocks until closed
}

func (s *stubVerifier) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) (adapter.VerifyResponse, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return adapter.VerifyResponse{}, ctx.Err()
		}
	}
	return adapter.VerifyResponse{Message: "verified", Reference: "mem_" + req.Order.OrderID}, nil
}

type stubLimiter struct{ allow bool }

func (s stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return s.allow, nil
}

type busyRunner struct{}

func (busyRunner) Submit(worker.Task) error { return domain.ErrBusy }

//
// -------------------- test helpers --------------------
//

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type harnessOpts struct {
	verifier *stubVerifier
	limiter  adapter.RateLimiter
	runner   apiv1.Runner
}

type harness struct {
	t       *testing.T
	handler http.Handler
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	logger := newTestLogger()
	month := model.Duration{Value: 1, Unit: model.DurationMonths}
	plans := &stubPlans{plans: []*model.Plan{
		{ID: "p1", Name: "Monthly", Price: 2999, Duration: month, Active: true},
		{ID: "p2", Name: "Legacy", Price: 999, Duration: month, Active: false},
	}}
	if o.verifier == nil {
		o.verifier = &stubVerifier{}
	}

	catalog := usecase.NewCatalogUseCase(plans, logger)
	relay := gateway.NewRelayGateway("relay", gateway.Branding{Name: "Fit Center"}, logger)
	deps := usecase.CheckoutDeps{
		Catalog:  catalog,
		Details:  usecase.NewCustomerDetailsUseCase(memstore.NewCustomerCache(), logger, true),
		Methods:  usecase.NewPaymentMethodUseCase(logger, true),
		Orders:   usecase.NewOrderUseCase(&stubOrders{}, time.Second, logger),
		Verifier: usecase.NewVerificationUseCase(o.verifier, 5*time.Second, logger),
		Gateway:  relay,
		Attempts: memstore.NewAttemptRepo(),
	}
	if o.limiter != nil {
		deps.Limiter = o.limiter
	}
	checkout := usecase.NewCheckoutUseCase(deps, usecase.CheckoutOptions{StartLimitPerMinute: 5}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(4, logger)
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
	var runner apiv1.Runner = pool
	if o.runner != nil {
		runner = o.runner
	}

	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	srv := apiv1.NewServer(apiv1.Deps{
		Catalog:    catalog,
		Checkout:   checkout,
		Prompter:   prompt.NewChannelPrompter(),
		Callbacks:  relay,
		Runner:     runner,
		Translator: tr,
		Auth:       api.NewAuthManager("test-secret", time.Hour),
	}, apiv1.Options{PromptWait: 2 * time.Second}, logger)
	return &harness{t: t, handler: srv.Handler()}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) session() string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/v1/session", "", nil)
	if rec.Code != http.StatusCreated {
		h.t.Fatalf("session: want 201, got %d", rec.Code)
	}
	var out struct {
		Token       string `json:"token"`
		PurchaserID string `json:"purchaser_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out.Token == "" || out.PurchaserID == "" {
		h.t.Fatalf("session body %q: %v", rec.Body.String(), err)
	}
	return out.Token
}

type checkoutView struct {
	ID               string                 `json:"id"`
	State            string                 `json:"state"`
	Order            *model.OrderHandle     `json:"order"`
	Gateway          *model.GatewayOptions  `json:"gateway"`
	GatewaySessionID string                 `json:"gateway_session_id"`
	Pending          *prompt.Pending        `json:"pending"`
	Failure          *model.Failure         `json:"failure"`
	Outcome          *model.PurchaseOutcome `json:"outcome"`
	Message          string                 `json:"message"`
}

type errorView struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// waitView polls GET /checkout until cond holds.
func (h *harness) waitView(token string, cond func(checkoutView) bool) checkoutView {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var last checkoutView
	for time.Now().Before(deadline) {
		rec := h.do(http.MethodGet, "/api/v1/checkout", token, nil)
		if rec.Code == http.StatusOK {
			last = decode[checkoutView](h.t, rec)
			if cond(last) {
				return last
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.t.Fatalf("condition not reached; last view state=%s pending=%v", last.State, last.Pending)
	return last
}

func awaitingGateway(v checkoutView) bool {
	return v.State == string(model.StateAwaitingGateway) && v.GatewaySessionID != ""
}

var validDetails = map[string]string{"name": "Asha", "email": "a@b.com", "phone": "9876543210"}

// toGateway drives a fresh checkout of p1 up to the open gateway session.
func (h *harness) toGateway(token string) checkoutView {
	h.t.Helper()
	if rec := h.do(http.MethodPost, "/api/v1/checkout", token, map[string]string{"plan_id": "p1"}); rec.Code != http.StatusAccepted {
		h.t.Fatalf("start: want 202, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := h.do(http.MethodPost, "/api/v1/checkout/details", token, validDetails); rec.Code != http.StatusAccepted {
		h.t.Fatalf("details: want 202, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := h.do(http.MethodPost, "/api/v1/checkout/method", token, map[string]string{"method": "card"}); rec.Code != http.StatusAccepted {
		h.t.Fatalf("method: want 202, got %d %s", rec.Code, rec.Body.String())
	}
	return h.waitView(token, awaitingGateway)
}

func successCallback(v checkoutView, paymentID string) gateway.Callback {
	payload := fmt.Sprintf(`{"razorpay_payment_id":%q,"razorpay_order_id":%q,"razorpay_signature":"sig_ok"}`, paymentID, v.Order.OrderID)
	return gateway.Callback{
		OrderID:   v.Order.OrderID,
		SessionID: v.GatewaySessionID,
		Event:     "success",
		Payload:   json.RawMessage(payload),
	}
}

//
// -------------------- tests --------------------
//

func TestHealthAndMetrics(t *testing.T) {
	metrics.MustRegister()
	h := newHarness(t, harnessOpts{})

	rec := h.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: want 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID on every response")
	}

	h.do(http.MethodGet, "/api/v1/plans", "", nil)
	rec = h.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: want 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatal("expected http request metrics to be exported")
	}
}

func TestAuth_BearerRequired(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	foreign, _, err := api.NewAuthManager("other-secret", time.Hour).Mint("p-x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"foreign secret", foreign, http.StatusUnauthorized},
		{"valid", h.session(), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(http.MethodGet, "/api/v1/plans", tc.token, nil)
			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestPlans_List(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	rec := h.do(http.MethodGet, "/api/v1/plans", h.session(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	out := decode[struct {
		Data []model.Plan `json:"data"`
	}](t, rec)
	if len(out.Data) != 2 || out.Data[0].ID != "p1" {
		t.Fatalf("unexpected plans: %+v", out.Data)
	}
}

func TestCheckout_CardHappyPath(t *testing.T) {
	// --- Arrange ---
	h := newHarness(t, harnessOpts{})
	tok := h.session()

	// --- Act ---
	v := h.toGateway(tok)

	// --- Assert: gateway session options ---
	if v.Gateway == nil || v.Gateway.OrderID != "order_1" || v.Gateway.Amount != 299900 {
		t.Fatalf("unexpected gateway options: %+v", v.Gateway)
	}
	if v.Gateway.Prefill.Email != "a@b.com" || v.Gateway.Key != "rzp_test_key" {
		t.Fatalf("gateway prefill/key not carried: %+v", v.Gateway)
	}

	// --- Act: browser reports success ---
	rec := h.do(http.MethodPost, "/api/v1/gateway/callback", tok, successCallback(v, "pay_1"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("callback: want 202, got %d %s", rec.Code, rec.Body.String())
	}

	// --- Assert ---
	done := h.waitView(tok, func(v checkoutView) bool { return v.State == string(model.StateCompleted) })
	if done.Outcome == nil || done.Outcome.PaymentID != "pay_1" || done.Outcome.Reference != "mem_order_1" {
		t.Fatalf("unexpected outcome: %+v", done.Outcome)
	}
	if done.Message != "Payment confirmed. Your Monthly membership is active." {
		t.Fatalf("unexpected message %q", done.Message)
	}
	if done.Gateway != nil || done.GatewaySessionID != "" {
		t.Fatal("terminal attempt must not expose gateway session")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = h.do(http.MethodGet, "/api/v1/purchases", tok, nil)
		out := decode[struct {
			Data []model.PurchaseOutcome `json:"data"`
		}](t, rec)
		if len(out.Data) == 1 && out.Data[0].OrderID == "order_1" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("purchase not journaled: %s", rec.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCheckout_InvalidDetailsArePrompted(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.session()
	if rec := h.do(http.MethodPost, "/api/v1/checkout", tok, map[string]string{"plan_id": "p1"}); rec.Code != http.StatusAccepted {
		t.Fatalf("start: %d", rec.Code)
	}

	bad := map[string]string{"name": "A", "email": "nope", "phone": "12"}
	if rec := h.do(http.MethodPost, "/api/v1/checkout/details", tok, bad); rec.Code != http.StatusAccepted {
		t.Fatalf("details: want 202, got %d", rec.Code)
	}

	v := h.waitView(tok, func(v checkoutView) bool { return v.Pending != nil && len(v.Pending.Problems) > 0 })
	if v.State != string(model.StateCollectingDetails) || v.Pending.Kind != prompt.KindDetails {
		t.Fatalf("expected details re-prompt, got %s %+v", v.State, v.Pending)
	}
	if !v.Pending.Problems.Has("email") || !v.Pending.Problems.Has("phone") {
		t.Fatalf("expected email and phone problems, got %+v", v.Pending.Problems)
	}
	if v.Pending.Prefill == nil || v.Pending.Prefill.Name != "A" {
		t.Fatalf("expected prefill with previous input, got %+v", v.Pending.Prefill)
	}

	// method is not being asked yet
	rec := h.do(http.MethodPost, "/api/v1/checkout/method", tok, map[string]string{"method": "card"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("method out of turn: want 409, got %d", rec.Code)
	}
}

func TestCheckout_StartRejections(t *testing.T) {
	cases := []struct {
		name string
		opts harnessOpts
		body any
		want int
		code string
	}{
		{"unknown plan", harnessOpts{}, map[string]string{"plan_id": "nope"}, http.StatusUnprocessableEntity, "plan_unavailable"},
		{"inactive plan", harnessOpts{}, map[string]string{"plan_id": "p2"}, http.StatusUnprocessableEntity, "plan_unavailable"},
		{"missing plan id", harnessOpts{}, map[string]string{}, http.StatusBadRequest, "invalid_request"},
		{"unknown field", harnessOpts{}, map[string]string{"plan": "p1"}, http.StatusBadRequest, "invalid_request"},
		{"rate limited", harnessOpts{limiter: stubLimiter{allow: false}}, map[string]string{"plan_id": "p1"}, http.StatusTooManyRequests, "rate_limited"},
		{"pool saturated", harnessOpts{runner: busyRunner{}}, map[string]string{"plan_id": "p1"}, http.StatusServiceUnavailable, "busy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.opts)
			rec := h.do(http.MethodPost, "/api/v1/checkout", h.session(), tc.body)
			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d %s", tc.want, rec.Code, rec.Body.String())
			}
			if got := decode[errorView](t, rec); got.Error != tc.code {
				t.Fatalf("want error %q, got %q", tc.code, got.Error)
			}
		})
	}
}

func TestCheckout_PoolSaturatedReleasesSlot(t *testing.T) {
	h := newHarness(t, harnessOpts{runner: busyRunner{}})
	tok := h.session()

	rec := h.do(http.MethodPost, "/api/v1/checkout", tok, map[string]string{"plan_id": "p1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After on 503")
	}

	v := decode[checkoutView](t, h.do(http.MethodGet, "/api/v1/checkout", tok, nil))
	if v.State != string(model.StateCancelled) || v.Failure == nil || v.Failure.Code != "busy" {
		t.Fatalf("expected cancelled(busy), got %s %+v", v.State, v.Failure)
	}
	if !strings.Contains(v.Message, "try again") {
		t.Fatalf("unexpected message %q", v.Message)
	}
	// the slot is free again; the next start is rejected for the pool, not as in progress
	rec = h.do(http.MethodPost, "/api/v1/checkout", tok, map[string]string{"plan_id": "p1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 again, got %d", rec.Code)
	}
}

func TestCheckout_SecondStartIsInProgress(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.session()
	if rec := h.do(http.MethodPost, "/api/v1/checkout", tok, map[string]string{"plan_id": "p1"}); rec.Code != http.StatusAccepted {
		t.Fatalf("first start: %d", rec.Code)
	}
	rec := h.do(http.MethodPost, "/api/v1/checkout", tok, map[string]string{"plan_id": "p1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}

	// another purchaser is unaffected
	other := h.session()
	if rec := h.do(http.MethodPost, "/api/v1/checkout", other, map[string]string{"plan_id": "p1"}); rec.Code != http.StatusAccepted {
		t.Fatalf("other purchaser: want 202, got %d", rec.Code)
	}
}

func TestCheckout_StatusWithoutAttempt(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.session()
	if rec := h.do(http.MethodGet, "/api/v1/checkout", tok, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status: want 404, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/v1/checkout/cancel", tok, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("cancel: want 404, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/v1/checkout/details", tok, validDetails); rec.Code != http.StatusNotFound {
		t.Fatalf("details: want 404, got %d", rec.Code)
	}
}

func TestCheckout_CancelAtGateway(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.session()
	v := h.toGateway(tok)

	rec := h.do(http.MethodPost, "/api/v1/checkout/cancel", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: want 200, got %d", rec.Code)
	}
	got := decode[checkoutView](t, rec)
	if got.State != string(model.StateCancelled) || got.Message != "You cancelled the checkout. No payment was taken." {
		t.Fatalf("unexpected cancel view: %s %q", got.State, got.Message)
	}

	// the closed session rejects late callbacks
	rec = h.do(http.MethodPost, "/api/v1/gateway/callback", tok, successCallback(v, "pay_late"))
	if rec.Code != http.StatusGone {
		t.Fatalf("late callback: want 410, got %d", rec.Code)
	}
}

func TestCheckout_CancelTooLateWhileVerifying(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, harnessOpts{verifier: &stubVerifier{gate: gate}})
	tok := h.session()
	v := h.toGateway(tok)

	if rec := h.do(http.MethodPost, "/api/v1/gateway/callback", tok, successCallback(v, "pay_1")); rec.Code != http.StatusAccepted {
		t.Fatalf("callback: %d", rec.Code)
	}
	h.waitView(tok, func(v checkoutView) bool { return v.State == string(model.StateVerifying) })

	rec := h.do(http.MethodPost, "/api/v1/checkout/cancel", tok, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel while verifying: want 409, got %d", rec.Code)
	}
	if got := decode[errorView](t, rec); got.Error != "cancel_too_late" {
		t.Fatalf("want cancel_too_late, got %q", got.Error)
	}

	close(gate)
	h.waitView(tok, func(v checkoutView) bool { return v.State == string(model.StateCompleted) })
}

func TestGatewayCallback_Rejections(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.session()
	v := h.toGateway(tok)

	wrongSession := successCallback(v, "pay_1")
	wrongSession.SessionID = "gs_other"
	otherOrder := successCallback(v, "pay_1")
	otherOrder.OrderID = "order_999"
	badEvent := successCallback(v, "pay_1")
	badEvent.Event = "captured"
	incomplete := successCallback(v, "pay_1")
	incomplete.Payload = json.RawMessage(`{"razorpay_payment_id":"pay_1"}`)

	cases := []struct {
		name string
		cb   gateway.Callback
		want int
	}{
		{"superseded session", wrongSession, http.StatusGone},
		{"order of another attempt", otherOrder, http.StatusGone},
		{"unknown event", badEvent, http.StatusBadRequest},
		{"incomplete success payload", incomplete, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/api/v1/gateway/callback", tok, tc.cb)
			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	// a purchaser cannot drive someone else's session
	stranger := h.session()
	if rec := h.do(http.MethodPost, "/api/v1/gateway/callback", stranger, successCallback(v, "pay_1")); rec.Code != http.StatusGone {
		t.Fatalf("stranger callback: want 410, got %d", rec.Code)
	}

	// none of the above moved the attempt
	got := decode[checkoutView](t, h.do(http.MethodGet, "/api/v1/checkout", tok, nil))
	if got.State != string(model.StateAwaitingGateway) {
		t.Fatalf("attempt moved to %s", got.State)
	}
}

func TestGatewayCallback_DismissCancels(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.session()
	v := h.toGateway(tok)

	cb := gateway.Callback{OrderID: v.Order.OrderID, SessionID: v.GatewaySessionID, Event: "dismiss"}
	if rec := h.do(http.MethodPost, "/api/v1/gateway/callback", tok, cb); rec.Code != http.StatusAccepted {
		t.Fatalf("dismiss: want 202, got %d", rec.Code)
	}
	got := h.waitView(tok, func(v checkoutView) bool { return v.State == string(model.StateCancelled) })
	if got.Failure == nil || got.Failure.Code != "dismissed" {
		t.Fatalf("expected cancelled(dismissed), got %+v", got.Failure)
	}
}

func TestGatewayCallback_FailedPayment(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	tok := h.session()
	v := h.toGateway(tok)

	payload := fmt.Sprintf(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Card declined","reason":"payment_failed","metadata":{"order_id":%q,"payment_id":"pay_9"}}}`, v.Order.OrderID)
	cb := gateway.Callback{OrderID: v.Order.OrderID, SessionID: v.GatewaySessionID, Event: "failed", Payload: json.RawMessage(payload)}
	if rec := h.do(http.MethodPost, "/api/v1/gateway/callback", tok, cb); rec.Code != http.StatusAccepted {
		t.Fatalf("failed: want 202, got %d", rec.Code)
	}
	got := h.waitView(tok, func(v checkoutView) bool { return v.State == string(model.StateFailed) })
	if got.Failure == nil || got.Failure.Kind != model.FailureGateway {
		t.Fatalf("expected gateway failure, got %+v", got.Failure)
	}
	if got.Message != "Your payment was declined: Card declined" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if got.Outcome != nil {
		t.Fatal("failed attempt must not carry an outcome")
	}
}
