//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/usecase"
)

func TestPaymentMethodUseCase_Select(t *testing.T) {
	tests := []struct {
		name      string
		inputs    []adapter.MethodInput
		want      model.PaymentMethod
		prompts   int
		problem   string
		wantError error
	}{
		{
			name:    "card",
			inputs:  []adapter.MethodInput{{Kind: "card"}},
			want:    model.CardMethod(),
			prompts: 1,
		},
		{
			name:    "upi with valid id",
			inputs:  []adapter.MethodInput{{Kind: "upi", UPIID: "name@okicici"}},
			want:    model.PaymentMethod{Kind: model.PaymentMethodUPI, UPIID: "name@okicici"},
			prompts: 1,
		},
		{
			name:    "upi without handle is re-prompted",
			inputs:  []adapter.MethodInput{{Kind: "upi", UPIID: "name"}, {Kind: "upi", UPIID: "name@okicici"}},
			want:    model.PaymentMethod{Kind: model.PaymentMethodUPI, UPIID: "name@okicici"},
			prompts: 2,
			problem: "upi_id",
		},
		{
			name:    "unknown method is re-prompted",
			inputs:  []adapter.MethodInput{{Kind: "cash"}, {Kind: "card"}},
			want:    model.CardMethod(),
			prompts: 2,
			problem: "method",
		},
		{
			name:      "invalid then cancel",
			inputs:    []adapter.MethodInput{{Kind: "upi", UPIID: "@bank"}},
			prompts:   2,
			problem:   "upi_id",
			wantError: domain.ErrCancelled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// --- Arrange ---
			uc := usecase.NewPaymentMethodUseCase(newTestLogger(), false)
			p := &ScriptedMethods{Inputs: tt.inputs}

			// --- Act ---
			got, err := uc.Select(context.Background(), "att-1", p)

			// --- Assert ---
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("err = %v, want %v", err, tt.wantError)
				}
			} else if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if got != tt.want {
				t.Errorf("method = %+v, want %+v", got, tt.want)
			}
			if len(p.Prompts) != tt.prompts {
				t.Fatalf("prompts = %d, want %d", len(p.Prompts), tt.prompts)
			}
			if tt.problem != "" && !p.Prompts[1].Problems.Has(tt.problem) {
				t.Errorf("second prompt problems = %+v", p.Prompts[1].Problems)
			}
		})
	}
}
