package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/infra/logging"
)

// planDTO is a membership as the backend sends it.
type planDTO struct {
	MongoID    string          `json:"_id"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      json.Number     `json:"price"`
	Duration   json.RawMessage `json:"duration"`
	Features   []string        `json:"features"`
	GymAccess  bool            `json:"gymAccess"`
	PoolAccess bool            `json:"poolAccess"`
	SpaAccess  bool            `json:"spaAccess"`
	IsActive   *bool           `json:"isActive"`
}

type plansResponse struct {
	Memberships []planDTO `json:"memberships"`
}

// ListActivePlans calls GET /memberships?active=true. Plans that cannot be
// normalized are skipped.
func (c *Client) ListActivePlans(ctx context.Context) ([]*model.Plan, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var out plansResponse
	if err := c.do(ctx, "list_plans", http.MethodGet, "/memberships?active=true", nil, &out); err != nil {
		return nil, err
	}
	plans := make([]*model.Plan, 0, len(out.Memberships))
	for _, dto := range out.Memberships {
		p, err := dto.toModel()
		if err != nil {
			logging.With(ctx, c.log).Warn().Err(err).Str("plan_id", dto.id()).Msg("skipping malformed plan")
			continue
		}
		if p.Active {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (d planDTO) id() string {
	if d.MongoID != "" {
		return d.MongoID
	}
	return d.ID
}

func (d planDTO) toModel() (*model.Plan, error) {
	price, err := parsePrice(d.Price)
	if err != nil {
		return nil, err
	}
	dur, err := parseDuration(d.Duration)
	if err != nil {
		return nil, err
	}
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}
	return model.NewPlan(d.id(), d.Name, price, dur, d.Features,
		model.PlanAccess{Gym: d.GymAccess, Pool: d.PoolAccess, Spa: d.SpaAccess}, active)
}

// parsePrice accepts whole amounts only; prices are minor currency units.
func parsePrice(n json.Number) (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("missing price: %w", domain.ErrInvalidArgument)
	}
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("price %q: %w", n, domain.ErrInvalidArgument)
		}
		v = int64(f)
	}
	return v, nil
}

// parseDuration accepts "1 months" or {"value":1,"unit":"months"}.
func parseDuration(raw json.RawMessage) (model.Duration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return model.Duration{}, fmt.Errorf("missing duration: %w", domain.ErrInvalidArgument)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return model.ParseDuration(strings.TrimSpace(s))
	}
	var obj struct {
		Value int    `json:"value"`
		Unit  string `json:"unit"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return model.Duration{}, fmt.Errorf("duration %s: %w", raw, domain.ErrInvalidArgument)
	}
	if obj.Value <= 0 {
		return model.Duration{}, fmt.Errorf("duration value %d: %w", obj.Value, domain.ErrInvalidArgument)
	}
	unit, err := model.ParseDurationUnit(obj.Unit)
	if err != nil {
		return model.Duration{}, err
	}
	return model.Duration{Value: obj.Value, Unit: unit}, nil
}
