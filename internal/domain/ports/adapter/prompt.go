package adapter

import (
	"context"

	"fitcenter-checkout/internal/domain/model"
)

type DetailsPrompt struct {
	AttemptID string
	Prefill   model.CustomerDetails
	Problems  model.ValidationErrors
}

type DetailsInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// DetailsPrompter asks the purchaser for identity fields.
// It returns domain.ErrCancelled when the purchaser backs out.
type DetailsPrompter interface {
	PromptDetails(ctx context.Context, p DetailsPrompt) (DetailsInput, error)
}

type MethodPrompt struct {
	AttemptID string
	Problems  model.ValidationErrors
}

type MethodInput struct {
	Kind  string `json:"method"`
	UPIID string `json:"upi_id,omitempty"`
}

// MethodPrompter asks the purchaser for a payment instrument.
type MethodPrompter interface {
	PromptMethod(ctx context.Context, p MethodPrompt) (MethodInput, error)
}
