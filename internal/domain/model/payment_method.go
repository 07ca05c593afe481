package model

import (
	"regexp"
	"strings"
)

type PaymentMethodKind string

const (
	PaymentMethodCard PaymentMethodKind = "card"
	PaymentMethodUPI  PaymentMethodKind = "upi"
)

var upiPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,49}@[a-zA-Z]{2,}$`)

// PaymentMethod is either {card} or {upi, UPIID}.
type PaymentMethod struct {
	Kind  PaymentMethodKind `json:"method"`
	UPIID string            `json:"upi_id,omitempty"`
}

func CardMethod() PaymentMethod { return PaymentMethod{Kind: PaymentMethodCard} }

// NewUPIMethod validates a UPI id of the form localpart@bankhandle.
func NewUPIMethod(upiID string) (PaymentMethod, error) {
	id := strings.TrimSpace(upiID)
	if !ValidUPIID(id) {
		return PaymentMethod{}, ValidationErrors{{Field: "upi_id", Reason: "enter a valid UPI id like name@bank"}}
	}
	return PaymentMethod{Kind: PaymentMethodUPI, UPIID: id}, nil
}

// NewPaymentMethod builds a method from a raw kind string ("card" or "upi").
func NewPaymentMethod(kind, upiID string) (PaymentMethod, error) {
	switch PaymentMethodKind(strings.ToLower(strings.TrimSpace(kind))) {
	case PaymentMethodCard:
		return CardMethod(), nil
	case PaymentMethodUPI:
		return NewUPIMethod(upiID)
	}
	return PaymentMethod{}, ValidationErrors{{Field: "method", Reason: "choose card or upi"}}
}

func ValidUPIID(id string) bool { return upiPattern.MatchString(id) }

func (m PaymentMethod) IsUPI() bool { return m.Kind == PaymentMethodUPI }
