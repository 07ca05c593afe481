package model

import "time"

// OrderHandle is the backend-issued payable order. One per checkout attempt, never reused.
type OrderHandle struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"` // gateway minor units
	Currency string `json:"currency"`
	Key      string `json:"key"`
}

// GatewayPrefill and friends mirror the gateway checkout options wire contract.
type GatewayPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type GatewayTheme struct {
	Color string `json:"color,omitempty"`
}

// GatewayOptions is the configuration handed to the external payment session.
type GatewayOptions struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	OrderID     string            `json:"order_id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Prefill     GatewayPrefill    `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
	Theme       GatewayTheme      `json:"theme"`
}

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentDismissed PaymentStatus = "dismissed"
)

// PaymentResult is how a gateway session ended. A succeeded result is provisional until verified.
type PaymentResult struct {
	Status        PaymentStatus `json:"status"`
	OrderID       string        `json:"order_id"`
	PaymentID     string        `json:"payment_id,omitempty"`
	Signature     string        `json:"signature,omitempty"`
	FailureCode   string        `json:"failure_code,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

func (r PaymentResult) Succeeded() bool { return r.Status == PaymentSucceeded }

// PurchaseOutcome is produced only after verification succeeds.
type PurchaseOutcome struct {
	AttemptID   string          `json:"attempt_id"`
	PurchaserID string          `json:"purchaser_id"`
	PlanID      string          `json:"plan_id"`
	PlanName    string          `json:"plan_name"`
	Customer    CustomerDetails `json:"customer"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	OrderID     string          `json:"order_id"`
	PaymentID   string          `json:"payment_id"`
	Method      PaymentMethod   `json:"payment_method"`
	Reference   string          `json:"reference,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}
