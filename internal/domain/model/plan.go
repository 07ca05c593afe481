package model

import (
	"fmt"
	"strconv"
	"strings"

	"fitcenter-checkout/internal/domain"
)

type DurationUnit string

const (
	DurationDays   DurationUnit = "days"
	DurationWeeks  DurationUnit = "weeks"
	DurationMonths DurationUnit = "months"
	DurationYears  DurationUnit = "years"
)

// ParseDurationUnit accepts singular or plural unit names in any case.
func ParseDurationUnit(s string) (DurationUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "days":
		return DurationDays, nil
	case "week", "weeks":
		return DurationWeeks, nil
	case "month", "months":
		return DurationMonths, nil
	case "year", "years":
		return DurationYears, nil
	}
	return "", fmt.Errorf("unknown duration unit %q: %w", s, domain.ErrInvalidArgument)
}

// Duration is the length of a membership, e.g. 1 months or 90 days.
type Duration struct {
	Value int          `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

// ParseDuration parses the backend's "<value> <unit>" form, e.g. "1 months".
func ParseDuration(s string) (Duration, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Duration{}, fmt.Errorf("malformed duration %q: %w", s, domain.ErrInvalidArgument)
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil || v <= 0 {
		return Duration{}, fmt.Errorf("malformed duration value %q: %w", fields[0], domain.ErrInvalidArgument)
	}
	unit, err := ParseDurationUnit(fields[1])
	if err != nil {
		return Duration{}, err
	}
	return Duration{Value: v, Unit: unit}, nil
}

func (d Duration) String() string { return fmt.Sprintf("%d %s", d.Value, d.Unit) }

// Days approximates the duration in days (30-day months, 365-day years).
func (d Duration) Days() int {
	switch d.Unit {
	case DurationWeeks:
		return d.Value * 7
	case DurationMonths:
		return d.Value * 30
	case DurationYears:
		return d.Value * 365
	default:
		return d.Value
	}
}

// PlanAccess lists the facilities a membership grants.
type PlanAccess struct {
	Gym  bool `json:"gym"`
	Pool bool `json:"pool"`
	Spa  bool `json:"spa"`
}

// Plan is a purchasable membership tier. It is read-only for the checkout flow.
type Plan struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Price    int64      `json:"price"`
	Duration Duration   `json:"duration"`
	Features []string   `json:"features"`
	Access   PlanAccess `json:"access"`
	Active   bool       `json:"is_active"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, price int64, duration Duration, features []string, access PlanAccess, active bool) (*Plan, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" || price < 0 || duration.Value <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := ParseDurationUnit(string(duration.Unit)); err != nil {
		return nil, err
	}
	fs := make([]string, 0, len(features))
	for _, f := range features {
		if f = strings.TrimSpace(f); f != "" {
			fs = append(fs, f)
		}
	}
	return &Plan{
		ID:       id,
		Name:     strings.TrimSpace(name),
		Price:    price,
		Duration: duration,
		Features: fs,
		Access:   access,
		Active:   active,
	}, nil
}
