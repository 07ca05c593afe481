package model

import (
	"fmt"
	"time"

	"fitcenter-checkout/internal/domain"
)

type CheckoutState string

const (
	StateBrowsing          CheckoutState = "browsing"
	StateCollectingDetails CheckoutState = "collecting_details"
	StateSelectingMethod   CheckoutState = "selecting_method"
	StateCreatingOrder     CheckoutState = "creating_order"
	StateAwaitingGateway   CheckoutState = "awaiting_gateway"
	StateVerifying         CheckoutState = "verifying"
	StateCompleted         CheckoutState = "completed"
	StateFailed            CheckoutState = "failed"
	StateCancelled         CheckoutState = "cancelled"
)

var transitions = map[CheckoutState][]CheckoutState{
	StateBrowsing:          {StateCollectingDetails},
	StateCollectingDetails: {StateSelectingMethod, StateCancelled, StateFailed},
	StateSelectingMethod:   {StateCreatingOrder, StateCancelled, StateFailed},
	StateCreatingOrder:     {StateAwaitingGateway, StateCancelled, StateFailed},
	StateAwaitingGateway:   {StateVerifying, StateCancelled, StateFailed},
	StateVerifying:         {StateCompleted, StateFailed},
}

func (s CheckoutState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Cancellable reports whether a user cancel may still end the attempt.
func (s CheckoutState) Cancellable() bool {
	return !s.IsTerminal() && s != StateVerifying && s != StateBrowsing
}

func (s CheckoutState) String() string { return string(s) }

func CanTransition(from, to CheckoutState) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type FailureKind string

const (
	FailureCancelled       FailureKind = "cancelled"
	FailurePlanUnavailable FailureKind = "plan_unavailable"
	FailureInput           FailureKind = "input_failed" // details or method could not be collected
	FailureOrder           FailureKind = "order_failed"
	FailureGateway         FailureKind = "gateway_failed"
	FailureVerification    FailureKind = "verification_failed"
)

// Failure is the user-visible reason an attempt did not complete.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Ambiguous bool        `json:"ambiguous,omitempty"`  // order may exist on the backend
	PaymentID string      `json:"payment_id,omitempty"` // gateway payment that did not verify
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

type Transition struct {
	From CheckoutState `json:"from"`
	To   CheckoutState `json:"to"`
	At   time.Time     `json:"at"`
}

// Attempt is one purchase attempt and its state machine. It is not safe for concurrent use.
type Attempt struct {
	ID               string           `json:"id"`
	PurchaserID      string           `json:"purchaser_id"`
	Plan             Plan             `json:"plan"`
	State            CheckoutState    `json:"state"`
	Customer         *CustomerDetails `json:"customer,omitempty"`
	Method           *PaymentMethod   `json:"payment_method,omitempty"`
	Order            *OrderHandle     `json:"order,omitempty"`
	Gateway          *GatewayOptions  `json:"gateway,omitempty"`
	GatewaySessionID string           `json:"gateway_session_id,omitempty"`
	Result           *PaymentResult   `json:"-"`
	Outcome          *PurchaseOutcome `json:"outcome,omitempty"`
	Failure          *Failure         `json:"failure,omitempty"`
	Trace            []Transition     `json:"trace"`
	StartedAt        time.Time        `json:"started_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
}

// NewAttempt starts an attempt in Browsing. Inactive plans are refused.
func NewAttempt(id, purchaserID string, plan Plan) (*Attempt, error) {
	if id == "" || purchaserID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if !plan.Active {
		return nil, domain.ErrPlanUnavailable
	}
	now := time.Now()
	return &Attempt{
		ID:          id,
		PurchaserID: purchaserID,
		Plan:        plan,
		State:       StateBrowsing,
		Trace:       make([]Transition, 0, 8),
		StartedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Touch records purchaser activity within the current state. The idle
// sweeper measures from UpdatedAt, so every new prompt restarts the wait.
func (a *Attempt) Touch() {
	if !a.State.IsTerminal() {
		a.UpdatedAt = time.Now()
	}
}

func (a *Attempt) Transition(to CheckoutState) error {
	if !CanTransition(a.State, to) {
		return fmt.Errorf("%s -> %s: %w", a.State, to, domain.ErrInvalidTransition)
	}
	now := time.Now()
	a.Trace = append(a.Trace, Transition{From: a.State, To: to, At: now})
	a.State = to
	a.UpdatedAt = now
	if to.IsTerminal() {
		a.FinishedAt = &now
		a.Gateway = nil
		a.GatewaySessionID = ""
		a.Result = nil
	}
	return nil
}

func (a *Attempt) BindCustomer(c CustomerDetails) error {
	if a.State != StateCollectingDetails || a.Customer != nil {
		return fmt.Errorf("bind customer in %s: %w", a.State, domain.ErrInvalidTransition)
	}
	a.Customer = &c
	return nil
}

func (a *Attempt) BindMethod(m PaymentMethod) error {
	if a.State != StateSelectingMethod || a.Method != nil {
		return fmt.Errorf("bind method in %s: %w", a.State, domain.ErrInvalidTransition)
	}
	a.Method = &m
	return nil
}

// BindOrder records the single order handle of this attempt.
func (a *Attempt) BindOrder(h OrderHandle) error {
	if a.Order != nil {
		return domain.ErrOrderAlreadyOpen
	}
	if a.State != StateCreatingOrder || h.OrderID == "" {
		return fmt.Errorf("bind order in %s: %w", a.State, domain.ErrInvalidTransition)
	}
	a.Order = &h
	return nil
}

// BindResult accepts a succeeded gateway result for this attempt's order handle only.
func (a *Attempt) BindResult(r PaymentResult) error {
	if a.State != StateAwaitingGateway || a.Order == nil {
		return fmt.Errorf("bind result in %s: %w", a.State, domain.ErrInvalidTransition)
	}
	if r.OrderID != a.Order.OrderID {
		return fmt.Errorf("result for order %q, attempt holds %q: %w", r.OrderID, a.Order.OrderID, domain.ErrStaleCallback)
	}
	if !r.Succeeded() {
		return fmt.Errorf("bind %s result: %w", r.Status, domain.ErrInvalidArgument)
	}
	a.Result = &r
	return nil
}

// ReadyForVerification holds when a succeeded result for the same order handle was observed.
func (a *Attempt) ReadyForVerification() error {
	if a.State != StateVerifying || a.Order == nil || a.Result == nil || a.Customer == nil || a.Method == nil {
		return fmt.Errorf("verify in %s: %w", a.State, domain.ErrInvalidTransition)
	}
	if a.Result.OrderID != a.Order.OrderID || !a.Result.Succeeded() {
		return domain.ErrStaleCallback
	}
	return nil
}

func (a *Attempt) Complete(o PurchaseOutcome) error {
	if err := a.Transition(StateCompleted); err != nil {
		return err
	}
	a.Outcome = &o
	return nil
}

func (a *Attempt) Fail(f Failure) error {
	if err := a.Transition(StateFailed); err != nil {
		return err
	}
	a.Failure = &f
	return nil
}

// Cancel ends the attempt as cancelled; code tells who or what cancelled it
// (user, dismissed, idle_timeout, shutdown).
func (a *Attempt) Cancel(code string) error {
	if err := a.Transition(StateCancelled); err != nil {
		return err
	}
	a.Failure = &Failure{Kind: FailureCancelled, Code: code}
	return nil
}

// Snapshot returns a deep copy safe to hand outside the owning goroutine.
func (a *Attempt) Snapshot() *Attempt {
	cp := *a
	if a.Customer != nil {
		c := *a.Customer
		cp.Customer = &c
	}
	if a.Method != nil {
		m := *a.Method
		cp.Method = &m
	}
	if a.Order != nil {
		o := *a.Order
		cp.Order = &o
	}
	if a.Gateway != nil {
		g := *a.Gateway
		if a.Gateway.Notes != nil {
			g.Notes = make(map[string]string, len(a.Gateway.Notes))
			for k, v := range a.Gateway.Notes {
				g.Notes[k] = v
			}
		}
		cp.Gateway = &g
	}
	if a.Result != nil {
		r := *a.Result
		cp.Result = &r
	}
	if a.Outcome != nil {
		o := *a.Outcome
		cp.Outcome = &o
	}
	if a.Failure != nil {
		f := *a.Failure
		cp.Failure = &f
	}
	if a.FinishedAt != nil {
		t := *a.FinishedAt
		cp.FinishedAt = &t
	}
	cp.Plan.Features = append([]string(nil), a.Plan.Features...)
	cp.Trace = append([]Transition(nil), a.Trace...)
	return &cp
}
