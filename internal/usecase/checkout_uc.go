package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/domain/ports/repository"
	"fitcenter-checkout/internal/infra/logging"
	"fitcenter-checkout/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// PurchaseRequest starts one checkout attempt for a purchaser.
type PurchaseRequest struct {
	PurchaserID string
	PlanID      string
	Details     adapter.DetailsPrompter
	Methods     adapter.MethodPrompter
}

// CheckoutUseCase owns the per-purchaser checkout state machine.
type CheckoutUseCase interface {
	// Begin reserves the purchaser's single checkout slot and moves the attempt to
	// collecting details. It fails only for rejections that happen before an
	// attempt exists (in progress, rate limited, unknown or inactive plan).
	Begin(ctx context.Context, req PurchaseRequest) (*Checkout, error)
	// Purchase is Begin followed by Run; it blocks until the attempt is terminal.
	Purchase(ctx context.Context, req PurchaseRequest) (*model.Attempt, error)
	// Cancel ends the purchaser's attempt unless verification was already submitted.
	Cancel(ctx context.Context, purchaserID string) (*model.Attempt, error)
	// Status returns the in-flight attempt, or the last finished one.
	Status(purchaserID string) (*model.Attempt, error)
	// ExpireIdle cancels attempts idle since before cutoff and returns how many.
	ExpireIdle(ctx context.Context, cutoff time.Time) int
	// History lists verified purchases, newest first.
	History(ctx context.Context, purchaserID string, limit int) ([]*model.PurchaseOutcome, error)
}

// CheckoutDeps are the collaborators of the orchestrator. Attempts, TM, Locker
// and Limiter are optional.
type CheckoutDeps struct {
	Catalog  CatalogUseCase
	Details  CustomerDetailsUseCase
	Methods  PaymentMethodUseCase
	Orders   OrderUseCase
	Verifier VerificationUseCase
	Gateway  adapter.PaymentGateway

	Attempts repository.AttemptRepository
	TM       repository.TransactionManager
	Locker   adapter.Locker
	Limiter  adapter.RateLimiter
}

type CheckoutOptions struct {
	StartLimitPerMinute int
	LockTTL             time.Duration
}

type checkoutUC struct {
	deps CheckoutDeps
	opts CheckoutOptions
	log  *zerolog.Logger

	mu     sync.Mutex
	active map[string]*flight         // purchaser -> in-flight attempt
	last   map[string]*model.Attempt // purchaser -> last terminal snapshot
}

func NewCheckoutUseCase(deps CheckoutDeps, opts CheckoutOptions, logger *zerolog.Logger) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUseCase").Logger()
	return &checkoutUC{
		deps:   deps,
		opts:   opts,
		log:    &l,
		active: make(map[string]*flight),
		last:   make(map[string]*model.Attempt),
	}
}

const (
	journalTimeout = 5 * time.Second
	lockOpTimeout  = 2 * time.Second
)

func LockKey(purchaserID string) string      { return "fitcheckout:lock:" + purchaserID }
func StartLimitKey(purchaserID string) string { return "fitcheckout:ratelimit:start:" + purchaserID }

// Checkout is a begun attempt. Run drives it to a terminal state.
type Checkout struct {
	uc *checkoutUC
	f  *flight
}

func (c *Checkout) Attempt() *model.Attempt { return c.f.snapshot() }

// Done is closed once the attempt is terminal and its resources are released.
func (c *Checkout) Done() <-chan struct{} { return c.f.done }

// Run executes the flow. Cancelling ctx cancels the attempt unless it is verifying.
func (c *Checkout) Run(ctx context.Context) *model.Attempt {
	c.f.once.Do(func() { c.uc.run(ctx, c.f) })
	<-c.f.done
	return c.f.snapshot()
}

// Abandon cancels an attempt that could not be scheduled.
func (c *Checkout) Abandon(code string) *model.Attempt {
	_ = c.uc.abort(c.f, code)
	c.f.once.Do(func() { c.uc.finish(c.f) })
	<-c.f.done
	return c.f.snapshot()
}

// flight is the mutable state of one in-flight attempt. mu guards attempt and since.
type flight struct {
	mu      sync.Mutex
	attempt *model.Attempt
	since   time.Time

	req       PurchaseRequest
	ctx       context.Context
	cancel    context.CancelCauseFunc
	lockToken string
	once      sync.Once
	done      chan struct{}
	log       *zerolog.Logger
}

func (f *flight) snapshot() *model.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempt.Snapshot()
}

func (f *flight) apply(fn func(a *model.Attempt) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyLocked(fn)
}

func (f *flight) applyLocked(fn func(a *model.Attempt) error) error {
	from := f.attempt.State
	if err := fn(f.attempt); err != nil {
		return err
	}
	if to := f.attempt.State; to != from {
		metrics.ObserveCheckoutStep(string(from), time.Since(f.since))
		f.since = time.Now()
		f.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("checkout transition")
	}
	return nil
}

func (f *flight) touch() {
	f.mu.Lock()
	f.attempt.Touch()
	f.mu.Unlock()
}

// activeDetails and activeMethods mark the attempt active whenever the
// purchaser is asked again or answers.
type activeDetails struct {
	f    *flight
	next adapter.DetailsPrompter
}

func (p activeDetails) PromptDetails(ctx context.Context, q adapter.DetailsPrompt) (adapter.DetailsInput, error) {
	p.f.touch()
	in, err := p.next.PromptDetails(ctx, q)
	if err == nil {
		p.f.touch()
	}
	return in, err
}

type activeMethods struct {
	f    *flight
	next adapter.MethodPrompter
}

func (p activeMethods) PromptMethod(ctx context.Context, q adapter.MethodPrompt) (adapter.MethodInput, error) {
	p.f.touch()
	in, err := p.next.PromptMethod(ctx, q)
	if err == nil {
		p.f.touch()
	}
	return in, err
}

func (u *checkoutUC) Begin(ctx context.Context, req PurchaseRequest) (*Checkout, error) {
	if req.PurchaserID == "" || req.PlanID == "" || req.Details == nil || req.Methods == nil {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, u.log)

	if u.busy(req.PurchaserID) {
		metrics.IncCheckoutRejected("in_progress")
		return nil, domain.ErrCheckoutInProgress
	}

	plan, err := u.deps.Catalog.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	a, err := model.NewAttempt(ulid.Make().String(), req.PurchaserID, *plan)
	if err != nil {
		if errors.Is(err, domain.ErrPlanUnavailable) {
			metrics.IncCheckoutRejected("plan_unavailable")
			return nil, fmt.Errorf("plan %s: %w", plan.ID, domain.ErrPlanUnavailable)
		}
		return nil, err
	}

	actx := logging.WithAttemptID(logging.WithPurchaserID(context.WithoutCancel(ctx), a.PurchaserID), a.ID)
	actx, cancel := context.WithCancelCause(actx)
	f := &flight{
		attempt: a,
		since:   time.Now(),
		req:     req,
		ctx:     actx,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     logging.With(actx, u.log),
	}

	u.mu.Lock()
	if _, ok := u.active[req.PurchaserID]; ok {
		u.mu.Unlock()
		cancel(nil)
		metrics.IncCheckoutRejected("in_progress")
		return nil, domain.ErrCheckoutInProgress
	}
	u.active[req.PurchaserID] = f
	u.mu.Unlock()

	if u.deps.Locker != nil {
		lctx, lcancel := context.WithTimeout(ctx, lockOpTimeout)
		tok, err := u.deps.Locker.TryLock(lctx, LockKey(req.PurchaserID), u.opts.LockTTL)
		lcancel()
		switch {
		case errors.Is(err, domain.ErrCheckoutInProgress):
			u.drop(f)
			metrics.IncCheckoutRejected("in_progress")
			return nil, domain.ErrCheckoutInProgress
		case err != nil:
			log.Warn().Err(err).Msg("checkout lock unavailable, relying on local guard")
		default:
			f.lockToken = tok
		}
	}

	// Only starts that won the purchaser's slot count against the limit.
	if u.deps.Limiter != nil && u.opts.StartLimitPerMinute > 0 {
		ok, err := u.deps.Limiter.Allow(ctx, StartLimitKey(req.PurchaserID), u.opts.StartLimitPerMinute, time.Minute)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing start")
		case !ok:
			u.drop(f)
			metrics.IncCheckoutRejected("rate_limited")
			return nil, domain.ErrRateLimited
		}
	}

	if err := f.apply(func(a *model.Attempt) error { return a.Transition(model.StateCollectingDetails) }); err != nil {
		u.drop(f)
		return nil, err
	}
	metrics.CheckoutStarted()
	f.log.Info().Str("plan_id", plan.ID).Msg("checkout started")
	return &Checkout{uc: u, f: f}, nil
}

func (u *checkoutUC) Purchase(ctx context.Context, req PurchaseRequest) (*model.Attempt, error) {
	c, err := u.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx), nil
}

func (u *checkoutUC) Cancel(ctx context.Context, purchaserID string) (*model.Attempt, error) {
	u.mu.Lock()
	f := u.active[purchaserID]
	u.mu.Unlock()
	if f == nil {
		return nil, domain.ErrNoActiveCheckout
	}
	if err := u.abort(f, "user"); err != nil {
		return nil, err
	}
	return f.snapshot(), nil
}

func (u *checkoutUC) Status(purchaserID string) (*model.Attempt, error) {
	u.mu.Lock()
	f := u.active[purchaserID]
	last := u.last[purchaserID]
	u.mu.Unlock()
	if f != nil {
		return f.snapshot(), nil
	}
	if last != nil {
		return last.Snapshot(), nil
	}
	return nil, domain.ErrNoActiveCheckout
}

func (u *checkoutUC) ExpireIdle(ctx context.Context, cutoff time.Time) int {
	u.mu.Lock()
	flights := make([]*flight, 0, len(u.active))
	for _, f := range u.active {
		flights = append(flights, f)
	}
	for pid, a := range u.last {
		if a.FinishedAt != nil && a.FinishedAt.Before(cutoff) {
			delete(u.last, pid)
		}
	}
	u.mu.Unlock()

	n := 0
	for _, f := range flights {
		f.mu.Lock()
		idle := f.attempt.State.Cancellable() && f.attempt.UpdatedAt.Before(cutoff)
		f.mu.Unlock()
		if idle && u.abort(f, "idle_timeout") == nil {
			n++
		}
	}
	if n > 0 {
		logging.With(ctx, u.log).Info().Int("count", n).Msg("cancelled idle checkouts")
	}
	return n
}

func (u *checkoutUC) History(ctx context.Context, purchaserID string, limit int) ([]*model.PurchaseOutcome, error) {
	if u.deps.Attempts == nil {
		return []*model.PurchaseOutcome{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.deps.Attempts.ListCompletedByPurchaser(ctx, repository.NoTX, purchaserID, limit)
}

func (u *checkoutUC) busy(purchaserID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.active[purchaserID]
	return ok
}

// drop releases a reservation that never became a running attempt.
func (u *checkoutUC) drop(f *flight) {
	f.cancel(nil)
	u.mu.Lock()
	if u.active[f.attempt.PurchaserID] == f {
		delete(u.active, f.attempt.PurchaserID)
	}
	u.mu.Unlock()
	u.unlock(f)
}

// run sequences details, method, order, gateway and verification. Every exit
// path leaves the attempt terminal.
func (u *checkoutUC) run(ctx context.Context, f *flight) {
	defer u.finish(f)
	stop := context.AfterFunc(ctx, func() { _ = u.abort(f, "shutdown") })
	defer stop()

	actx := f.ctx
	a := f.snapshot()

	customer, err := u.deps.Details.Collect(actx, a.PurchaserID, a.ID, activeDetails{f: f, next: f.req.Details})
	if err != nil {
		u.settle(f, err, inputFailure)
		return
	}
	if err := f.apply(func(a *model.Attempt) error {
		if err := a.BindCustomer(customer); err != nil {
			return err
		}
		return a.Transition(model.StateSelectingMethod)
	}); err != nil {
		return
	}

	method, err := u.deps.Methods.Select(actx, a.ID, activeMethods{f: f, next: f.req.Methods})
	if err != nil {
		u.settle(f, err, inputFailure)
		return
	}
	if err := f.apply(func(a *model.Attempt) error {
		if err := a.BindMethod(method); err != nil {
			return err
		}
		return a.Transition(model.StateCreatingOrder)
	}); err != nil {
		return
	}

	handle, err := u.deps.Orders.Create(actx, a.Plan, customer, method)
	if err != nil {
		u.settle(f, err, OrderFailure)
		return
	}
	if err := f.apply(func(a *model.Attempt) error {
		if err := a.BindOrder(handle); err != nil {
			return err
		}
		return a.Transition(model.StateAwaitingGateway)
	}); err != nil {
		// Cancelled while the order was being created. The handle is dropped.
		f.log.Info().Str("order_id", handle.OrderID).Msg("order created for an attempt that already ended")
		return
	}

	session, err := u.deps.Gateway.Open(actx, adapter.GatewayRequest{
		AttemptID: a.ID,
		Order:     handle,
		Plan:      a.Plan,
		Customer:  customer,
		Method:    method,
	})
	if err != nil {
		u.settle(f, err, gatewayFailure)
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			f.log.Warn().Err(err).Msg("gateway session close failed")
		}
	}()
	if err := f.apply(func(a *model.Attempt) error {
		if a.State != model.StateAwaitingGateway {
			return domain.ErrInvalidTransition
		}
		opts := session.Options()
		a.Gateway = &opts
		a.GatewaySessionID = session.ID()
		a.UpdatedAt = time.Now()
		return nil
	}); err != nil {
		return
	}

	result, err := u.awaitResult(actx, f, session, handle)
	if err != nil {
		u.settle(f, err, gatewayFailure)
		return
	}
	switch result.Status {
	case model.PaymentDismissed:
		_ = u.abort(f, "dismissed")
		return
	case model.PaymentFailed:
		code := result.FailureCode
		if code == "" {
			code = "payment_failed"
		}
		u.fail(f, model.Failure{Kind: model.FailureGateway, Code: code, Message: result.FailureReason})
		return
	}

	// Past this transition the attempt can no longer be cancelled.
	if err := f.apply(func(a *model.Attempt) error {
		if err := a.BindResult(result); err != nil {
			return err
		}
		if err := a.Transition(model.StateVerifying); err != nil {
			return err
		}
		return a.ReadyForVerification()
	}); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			u.fail(f, model.Failure{Kind: model.FailureVerification, Code: "not_verifiable", PaymentID: result.PaymentID})
		}
		return
	}

	resp, err := u.deps.Verifier.Verify(context.WithoutCancel(actx), adapter.VerifyRequest{
		Result:   result,
		Order:    handle,
		Plan:     a.Plan,
		Customer: customer,
		Method:   method,
	})
	if err != nil {
		failure := VerificationFailure(err)
		failure.PaymentID = result.PaymentID
		u.fail(f, failure)
		return
	}

	outcome := model.PurchaseOutcome{
		AttemptID:   a.ID,
		PurchaserID: a.PurchaserID,
		PlanID:      a.Plan.ID,
		PlanName:    a.Plan.Name,
		Customer:    customer,
		Amount:      a.Plan.Price,
		Currency:    handle.Currency,
		OrderID:     handle.OrderID,
		PaymentID:   result.PaymentID,
		Method:      method,
		Reference:   resp.Reference,
		CompletedAt: time.Now(),
	}
	if err := f.apply(func(a *model.Attempt) error { return a.Complete(outcome) }); err != nil {
		f.log.Error().Err(err).Msg("complete verified attempt")
		return
	}
	metrics.AddPurchaseRevenue(handle.Currency, a.Plan.Price)
}

// awaitResult waits for a result bound to handle, discarding stale ones.
func (u *checkoutUC) awaitResult(ctx context.Context, f *flight, s adapter.GatewaySession, handle model.OrderHandle) (model.PaymentResult, error) {
	for {
		res, err := s.Await(ctx)
		if err != nil {
			return model.PaymentResult{}, err
		}
		if res.OrderID != handle.OrderID {
			metrics.IncStaleCallback()
			f.log.Warn().Str("order_id", handle.OrderID).Str("result_order_id", res.OrderID).Msg("discarding gateway result for another order")
			continue
		}
		metrics.IncGatewayResult(u.deps.Gateway.Name(), string(res.Status))
		return res, nil
	}
}

// settle ends the attempt after a step error. Cancellation wins over failure.
func (u *checkoutUC) settle(f *flight, err error, toFailure func(error) model.Failure) {
	if errors.Is(err, domain.ErrCancelled) || f.ctx.Err() != nil {
		_ = u.abort(f, "user")
		return
	}
	u.fail(f, toFailure(err))
}

func (u *checkoutUC) fail(f *flight, failure model.Failure) {
	err := f.apply(func(a *model.Attempt) error {
		if a.State.IsTerminal() {
			return nil
		}
		return a.Fail(failure)
	})
	if err != nil {
		f.log.Error().Err(err).Msg("fail attempt")
	}
}

// abort cancels the attempt if it is still before verification.
func (u *checkoutUC) abort(f *flight, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.attempt.State
	if st.IsTerminal() {
		return nil
	}
	if !st.Cancellable() {
		return domain.ErrCancelTooLate
	}
	if err := f.applyLocked(func(a *model.Attempt) error { return a.Cancel(code) }); err != nil {
		return err
	}
	f.cancel(domain.ErrCancelled)
	return nil
}

// finish releases the purchaser's slot and records the terminal attempt.
func (u *checkoutUC) finish(f *flight) {
	defer close(f.done)

	if s := f.snapshot().State; !s.IsTerminal() {
		u.fail(f, model.Failure{Kind: failureKindFor(s), Code: "internal"})
	}
	f.cancel(nil)
	snap := f.snapshot()

	u.mu.Lock()
	if u.active[snap.PurchaserID] == f {
		delete(u.active, snap.PurchaserID)
	}
	u.last[snap.PurchaserID] = snap
	u.mu.Unlock()
	u.unlock(f)

	kind := ""
	ev := f.log.Info()
	if snap.Failure != nil {
		kind = string(snap.Failure.Kind)
		ev = ev.Str("failure_kind", kind).Str("failure_code", snap.Failure.Code)
	}
	ev.Str("state", string(snap.State)).Msg("checkout finished")
	metrics.IncCheckoutAttempt(string(snap.State), kind)
	metrics.CheckoutFinished()

	u.journal(f, snap)
}

func (u *checkoutUC) unlock(f *flight) {
	if u.deps.Locker == nil || f.lockToken == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()
	if err := u.deps.Locker.Unlock(ctx, LockKey(f.attempt.PurchaserID), f.lockToken); err != nil {
		f.log.Warn().Err(err).Msg("release checkout lock failed")
	}
}

// journal is best-effort and never changes the outcome.
func (u *checkoutUC) journal(f *flight, snap *model.Attempt) {
	if u.deps.Attempts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(f.ctx), journalTimeout)
	defer cancel()
	save := func(ctx context.Context, tx repository.Tx) error {
		return u.deps.Attempts.Save(ctx, tx, snap)
	}
	var err error
	if u.deps.TM != nil {
		err = u.deps.TM.WithTx(ctx, pgx.TxOptions{}, save)
	} else {
		err = save(ctx, repository.NoTX)
	}
	if err != nil {
		metrics.IncJournalWrite("error")
		f.log.Error().Err(err).Msg("journal attempt failed")
		return
	}
	metrics.IncJournalWrite("ok")
}

// inputFailure ends an attempt whose details or method prompt broke before any order existed.
func inputFailure(err error) model.Failure {
	return model.Failure{Kind: model.FailureInput, Code: "input_error", Message: err.Error()}
}

func gatewayFailure(err error) model.Failure {
	f := model.Failure{Kind: model.FailureGateway, Code: "session_error", Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrOrderHandleReused):
		f.Code = "handle_reused"
	case errors.Is(err, domain.ErrGatewayBusy):
		f.Code = "busy"
	case errors.Is(err, domain.ErrGatewaySessionClosed):
		f.Code = "session_closed"
	}
	return f
}

func failureKindFor(s model.CheckoutState) model.FailureKind {
	switch s {
	case model.StateVerifying:
		return model.FailureVerification
	case model.StateAwaitingGateway:
		return model.FailureGateway
	case model.StateCollectingDetails, model.StateSelectingMethod:
		return model.FailureInput
	default:
		return model.FailureOrder
	}
}
