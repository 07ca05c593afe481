package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/model"
	"fitcenter-checkout/internal/domain/ports/repository"
)

var _ repository.AttemptRepository = (*attemptRepo)(nil)

type attemptRepo struct{ pool *pgxpool.Pool }

func NewAttemptRepo(pool *pgxpool.Pool) *attemptRepo {
	return &attemptRepo{pool: pool}
}

func (r *attemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.Attempt) error {
	if a == nil || a.ID == "" {
		return domain.ErrInvalidArgument
	}
	plan, err := json.Marshal(a.Plan)
	if err != nil {
		return err
	}
	trace, err := json.Marshal(a.Trace)
	if err != nil {
		return err
	}
	var outcome *string
	if a.Outcome != nil {
		b, err := json.Marshal(a.Outcome)
		if err != nil {
			return err
		}
		s := string(b)
		outcome = &s
	}

	var orderID, currency, paymentID, method string
	var amount int64
	if a.Order != nil {
		orderID, currency = a.Order.OrderID, a.Order.Currency
	}
	if a.Method != nil {
		method = string(a.Method.Kind)
	}
	if a.Outcome != nil {
		paymentID, amount = a.Outcome.PaymentID, a.Outcome.Amount
	}
	var f model.Failure
	if a.Failure != nil {
		f = *a.Failure
		if paymentID == "" {
			paymentID = f.PaymentID
		}
	}

	const q = `
INSERT INTO checkout_attempts (
  id, purchaser_id, plan_id, plan, state, order_id, payment_id, amount, currency, payment_method,
  failure_kind, failure_code, failure_message, failure_ambiguous, trace, outcome, started_at, finished_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  state=$5, order_id=$6, payment_id=$7, amount=$8, currency=$9, payment_method=$10,
  failure_kind=$11, failure_code=$12, failure_message=$13, failure_ambiguous=$14,
  trace=$15, outcome=$16, finished_at=$18;`

	_, err = execSQL(ctx, r.pool, tx, q,
		a.ID, a.PurchaserID, a.Plan.ID, string(plan), string(a.State), orderID, paymentID, amount, currency, method,
		string(f.Kind), f.Code, f.Message, f.Ambiguous, string(trace), outcome, a.StartedAt, a.FinishedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return errors.Join(domain.ErrOperationFailed, err)
	}
	return nil
}

func (r *attemptRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Attempt, error) {
	const q = `
SELECT id, purchaser_id, plan, state, order_id, currency, payment_method,
       failure_kind, failure_code, failure_message, failure_ambiguous, payment_id,
       trace, outcome, started_at, finished_at
FROM checkout_attempts WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var (
		a                        model.Attempt
		plan, trace, outcome     []byte
		state, orderID, currency string
		method, kind, code, msg  string
		paymentID                string
		ambiguous                bool
		finishedAt               *time.Time
	)
	if err := row.Scan(&a.ID, &a.PurchaserID, &plan, &state, &orderID, &currency, &method,
		&kind, &code, &msg, &ambiguous, &paymentID, &trace, &outcome, &a.StartedAt, &finishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Join(domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(plan, &a.Plan); err != nil {
		return nil, errors.Join(domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(trace, &a.Trace); err != nil {
		return nil, errors.Join(domain.ErrReadDatabaseRow, err)
	}
	if len(outcome) > 0 {
		var o model.PurchaseOutcome
		if err := json.Unmarshal(outcome, &o); err != nil {
			return nil, errors.Join(domain.ErrReadDatabaseRow, err)
		}
		a.Outcome = &o
		c, m := o.Customer, o.Method
		a.Customer, a.Method = &c, &m
	}
	a.State = model.CheckoutState(state)
	if orderID != "" {
		a.Order = &model.OrderHandle{OrderID: orderID, Currency: currency}
	}
	if a.Method == nil && method != "" {
		a.Method = &model.PaymentMethod{Kind: model.PaymentMethodKind(method)}
	}
	if kind != "" {
		a.Failure = &model.Failure{Kind: model.FailureKind(kind), Code: code, Message: msg, Ambiguous: ambiguous, PaymentID: paymentID}
	}
	a.FinishedAt = finishedAt
	a.UpdatedAt = a.StartedAt
	if finishedAt != nil {
		a.UpdatedAt = *finishedAt
	}
	return &a, nil
}

func (r *attemptRepo) ListCompletedByPurchaser(ctx context.Context, tx repository.Tx, purchaserID string, limit int) ([]*model.PurchaseOutcome, error) {
	const q = `
SELECT outcome FROM checkout_attempts
WHERE purchaser_id=$1 AND state='completed' AND outcome IS NOT NULL
ORDER BY finished_at DESC
LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, purchaserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.PurchaseOutcome, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Join(domain.ErrReadDatabaseRow, err)
		}
		var o model.PurchaseOutcome
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, errors.Join(domain.ErrReadDatabaseRow, err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
