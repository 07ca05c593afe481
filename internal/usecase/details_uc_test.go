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

func TestCustomerDetailsUseCase_Collect(t *testing.T) {
	t.Run("invalid input is re-prompted with problems and the entered values", func(t *testing.T) {
		// --- Arrange ---
		cache := NewMockCustomerCache()
		uc := usecase.NewCustomerDetailsUseCase(cache, newTestLogger(), false)
		p := &ScriptedDetails{Inputs: []adapter.DetailsInput{
			{Name: "Asha", Email: "a@b.com", Phone: "12345"},
			{Name: "Asha", Email: "a@b.com", Phone: "9876543210"},
		}}

		// --- Act ---
		d, err := uc.Collect(context.Background(), purchaser, "att-1", p)

		// --- Assert ---
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if d.Phone != "9876543210" {
			t.Errorf("details = %+v", d)
		}
		prompts := p.prompts()
		if len(prompts) != 2 {
			t.Fatalf("prompts = %d", len(prompts))
		}
		second := prompts[1]
		if !second.Problems.Has("phone") || second.Problems.Has("email") {
			t.Errorf("problems = %+v", second.Problems)
		}
		if second.Prefill.Phone != "12345" || second.AttemptID != "att-1" {
			t.Errorf("prefill = %+v", second.Prefill)
		}
		if cache.Saves != 1 {
			t.Errorf("cache saves = %d", cache.Saves)
		}
	})

	t.Run("input is trimmed", func(t *testing.T) {
		uc := usecase.NewCustomerDetailsUseCase(nil, newTestLogger(), false)
		p := &ScriptedDetails{Inputs: []adapter.DetailsInput{{Name: "  Asha ", Email: " a@b.com", Phone: "9876543210 "}}}
		d, err := uc.Collect(context.Background(), purchaser, "att-1", p)
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if d != (model.CustomerDetails{Name: "Asha", Email: "a@b.com", Phone: "9876543210"}) {
			t.Errorf("details = %+v", d)
		}
	})

	t.Run("cancel returns ErrCancelled", func(t *testing.T) {
		uc := usecase.NewCustomerDetailsUseCase(nil, newTestLogger(), false)
		_, err := uc.Collect(context.Background(), purchaser, "att-1", &ScriptedDetails{})
		if !errors.Is(err, domain.ErrCancelled) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("context cancellation returns ErrCancelled", func(t *testing.T) {
		uc := usecase.NewCustomerDetailsUseCase(nil, newTestLogger(), false)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := uc.Collect(ctx, purchaser, "att-1", &ScriptedDetails{Block: true})
		if !errors.Is(err, domain.ErrCancelled) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("cache errors do not block checkout", func(t *testing.T) {
		cache := NewMockCustomerCache()
		cache.LoadErr = errors.New("redis down")
		cache.SaveErr = errors.New("redis down")
		uc := usecase.NewCustomerDetailsUseCase(cache, newTestLogger(), false)
		p := &ScriptedDetails{Inputs: []adapter.DetailsInput{validDetails}}
		if _, err := uc.Collect(context.Background(), purchaser, "att-1", p); err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if p.prompts()[0].Prefill != (model.CustomerDetails{}) {
			t.Errorf("prefill = %+v", p.prompts()[0].Prefill)
		}
	})

	t.Run("cached details prefill the first prompt", func(t *testing.T) {
		cache := NewMockCustomerCache()
		_ = cache.Save(context.Background(), purchaser, model.CustomerDetails{Name: "Asha", Email: "a@b.com", Phone: "9876543210"})
		uc := usecase.NewCustomerDetailsUseCase(cache, newTestLogger(), false)
		p := &ScriptedDetails{Inputs: []adapter.DetailsInput{validDetails}}
		if _, err := uc.Collect(context.Background(), purchaser, "att-1", p); err != nil {
			t.Fatal(err)
		}
		if got := p.prompts()[0]; got.Prefill.Name != "Asha" || got.AttemptID != "att-1" || len(got.Problems) != 0 {
			t.Errorf("first prompt = %+v", got)
		}
	})
}
