package backend

import (
	"context"
	"fmt"
	"net/http"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
)

type customerDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func toCustomerDTO(c model.CustomerDetails) customerDTO {
	return customerDTO{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

type createOrderRequest struct {
	PlanID          string      `json:"planId"`
	CustomerDetails customerDTO `json:"customerDetails"`
	PaymentMethod   string      `json:"paymentMethod"`
	UPIID           string      `json:"upiId,omitempty"`
}

type createOrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
}

// CreateOrder calls POST /payment/create-order once. It never retries.
func (c *Client) CreateOrder(ctx context.Context, req adapter.OrderRequest) (model.OrderHandle, error) {
	body := createOrderRequest{
		PlanID:          req.Plan.ID,
		CustomerDetails: toCustomerDTO(req.Customer),
		PaymentMethod:   string(req.Method.Kind),
		UPIID:           req.Method.UPIID,
	}
	var out createOrderResponse
	if err := c.do(ctx, "create_order", http.MethodPost, "/payment/create-order", body, &out); err != nil {
		return model.OrderHandle{}, err
	}
	if out.OrderID == "" {
		return model.OrderHandle{}, &domain.RemoteError{Op: "create_order", Status: http.StatusOK, Message: "response carried no order id", Err: domain.ErrBackendRejected}
	}
	if out.Currency == "" {
		out.Currency = "INR"
	}
	return model.OrderHandle{OrderID: out.OrderID, Amount: out.Amount, Currency: out.Currency, Key: out.Key}, nil
}

type verifyRequest struct {
	PaymentID       string      `json:"razorpay_payment_id"`
	OrderID         string      `json:"razorpay_order_id"`
	Signature       string      `json:"razorpay_signature"`
	PlanID          string      `json:"planId"`
	CustomerDetails customerDTO `json:"customerDetails"`
	PaymentMethod   string      `json:"paymentMethod"`
	UPIID           string      `json:"upiId"`
}

type verifyResponse struct {
	Success      *bool  `json:"success"`
	Message      string `json:"message"`
	MembershipID string `json:"membershipId"`
	PurchaseID   string `json:"purchaseId"`
}

// VerifyPayment calls POST /payment/verify. A rejection wraps domain.ErrVerificationFailed.
func (c *Client) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) (adapter.VerifyResponse, error) {
	body := verifyRequest{
		PaymentID:       req.Result.PaymentID,
		OrderID:         req.Order.OrderID,
		Signature:       req.Result.Signature,
		PlanID:          req.Plan.ID,
		CustomerDetails: toCustomerDTO(req.Customer),
		PaymentMethod:   string(req.Method.Kind),
		UPIID:           req.Method.UPIID,
	}
	var out verifyResponse
	if err := c.do(ctx, "verify", http.MethodPost, "/payment/verify", body, &out); err != nil {
		return adapter.VerifyResponse{}, fmt.Errorf("%w: %w", domain.ErrVerificationFailed, err)
	}
	// Only an explicit success confirms the payment.
	if out.Success == nil {
		return adapter.VerifyResponse{}, fmt.Errorf("%w: %w", domain.ErrVerificationFailed,
			&domain.RemoteError{Op: "verify", Status: http.StatusOK, Message: "response carried no success flag", Err: domain.ErrBackendRejected})
	}
	ref := out.PurchaseID
	if ref == "" {
		ref = out.MembershipID
	}
	return adapter.VerifyResponse{Message: out.Message, Reference: ref}, nil
}
