// File: internal/infra/adapters/prompt/channel.go
package prompt

import (
	"context"
	"sync"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/adapter"
)

var (
	_ adapter.DetailsPrompter = (*ChannelPrompter)(nil)
	_ adapter.MethodPrompter  = (*ChannelPrompter)(nil)
)

type Kind string

const (
	KindDetails Kind = "details"
	KindMethod  Kind = "method"
)

// Pending describes the question an attempt is currently waiting on.
type Pending struct {
	Kind     Kind                   `json:"kind"`
	Prefill  *model.CustomerDetails `json:"prefill,omitempty"`
	Problems model.ValidationErrors `json:"problems,omitempty"`
}

type waiter struct {
	pending Pending
	details chan adapter.DetailsInput
	method  chan adapter.MethodInput
}

// ChannelPrompter turns request/response input (HTTP submits) into the
// blocking prompts the checkout flow waits on. Waiters are keyed by attempt id;
// a prompt ends when it is answered or its context (the attempt's) is done.
type ChannelPrompter struct {
	mu      sync.Mutex
	waiters map[string]*waiter
}

func NewChannelPrompter() *ChannelPrompter {
	return &ChannelPrompter{waiters: make(map[string]*waiter)}
}

func (p *ChannelPrompter) PromptDetails(ctx context.Context, q adapter.DetailsPrompt) (adapter.DetailsInput, error) {
	prefill := q.Prefill
	w := &waiter{
		pending: Pending{Kind: KindDetails, Prefill: &prefill, Problems: q.Problems},
		details: make(chan adapter.DetailsInput, 1),
	}
	if err := p.register(q.AttemptID, w); err != nil {
		return adapter.DetailsInput{}, err
	}
	defer p.unregister(q.AttemptID, w)
	select {
	case in := <-w.details:
		return in, nil
	case <-ctx.Done():
		return adapter.DetailsInput{}, ctx.Err()
	}
}

func (p *ChannelPrompter) PromptMethod(ctx context.Context, q adapter.MethodPrompt) (adapter.MethodInput, error) {
	w := &waiter{
		pending: Pending{Kind: KindMethod, Problems: q.Problems},
		method:  make(chan adapter.MethodInput, 1),
	}
	if err := p.register(q.AttemptID, w); err != nil {
		return adapter.MethodInput{}, err
	}
	defer p.unregister(q.AttemptID, w)
	select {
	case in := <-w.method:
		return in, nil
	case <-ctx.Done():
		return adapter.MethodInput{}, ctx.Err()
	}
}

func (p *ChannelPrompter) register(attemptID string, w *waiter) error {
	if attemptID == "" {
		return domain.ErrInvalidArgument
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.waiters[attemptID]; ok {
		return domain.ErrInvalidTransition
	}
	p.waiters[attemptID] = w
	return nil
}

func (p *ChannelPrompter) unregister(attemptID string, w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waiters[attemptID] == w {
		delete(p.waiters, attemptID)
	}
}

// Pending reports what the attempt waits on, if anything.
func (p *ChannelPrompter) Pending(attemptID string) (Pending, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.waiters[attemptID]
	if !ok {
		return Pending{}, false
	}
	return w.pending, true
}

// take removes the waiter so a single submit answers a single prompt.
func (p *ChannelPrompter) take(attemptID string, kind Kind) (*waiter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.waiters[attemptID]
	if !ok || w.pending.Kind != kind {
		return nil, domain.ErrInvalidTransition
	}
	delete(p.waiters, attemptID)
	return w, nil
}

// SubmitDetails answers a pending details prompt. It fails with
// domain.ErrInvalidTransition when the attempt is not asking for details.
func (p *ChannelPrompter) SubmitDetails(attemptID string, in adapter.DetailsInput) error {
	w, err := p.take(attemptID, KindDetails)
	if err != nil {
		return err
	}
	w.details <- in
	return nil
}

func (p *ChannelPrompter) SubmitMethod(attemptID string, in adapter.MethodInput) error {
	w, err := p.take(attemptID, KindMethod)
	if err != nil {
		return err
	}
	w.method <- in
	return nil
}
