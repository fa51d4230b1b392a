package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgSchema creates the ledger tables for the Postgres store.
const PgSchema = `
CREATE TABLE IF NOT EXISTS checkout_attempts (
    id              UUID PRIMARY KEY,
    user_id         TEXT NOT NULL,
    business_id     TEXT NOT NULL,
    payment_method  TEXT NOT NULL,
    payment_type    TEXT,
    amount_centavos BIGINT NOT NULL,
    currency        CHAR(3) NOT NULL,
    phase           TEXT NOT NULL,
    screen          TEXT,
    order_id        TEXT,
    order_number    TEXT,
    arrival_code    TEXT,
    intent_id       TEXT UNIQUE,
    payment_status  TEXT NOT NULL,
    error_title     TEXT,
    error_message   TEXT,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_checkout_attempts_user ON checkout_attempts (user_id);
CREATE TABLE IF NOT EXISTS provider_events (
    id            UUID PRIMARY KEY,
    provider      TEXT NOT NULL,
    event_id      TEXT NOT NULL,
    event_type    TEXT NOT NULL,
    payload_json  JSONB NOT NULL,
    received_at   TIMESTAMPTZ NOT NULL,
    processed_at  TIMESTAMPTZ,
    process_error TEXT,
    UNIQUE (provider, event_id)
);
`

const attemptColumns = `id, user_id, business_id, payment_method, payment_type, amount_centavos,
    currency, phase, screen, order_id, order_number, arrival_code, intent_id,
    payment_status, error_title, error_message, created_at, updated_at`

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, PgSchema)
	return err
}

func (s *PgStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	now := time.Now()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
        INSERT INTO checkout_attempts (`+attemptColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
        ON CONFLICT (id) DO UPDATE SET
            phase = EXCLUDED.phase,
            screen = EXCLUDED.screen,
            order_id = EXCLUDED.order_id,
            order_number = EXCLUDED.order_number,
            arrival_code = EXCLUDED.arrival_code,
            intent_id = EXCLUDED.intent_id,
            payment_status = CASE
                WHEN checkout_attempts.payment_status = 'succeeded' THEN checkout_attempts.payment_status
                WHEN checkout_attempts.payment_status = 'failed' AND EXCLUDED.payment_status = 'pending' THEN checkout_attempts.payment_status
                ELSE EXCLUDED.payment_status
            END,
            error_title = EXCLUDED.error_title,
            error_message = EXCLUDED.error_message,
            updated_at = EXCLUDED.updated_at
    `, a.ID, a.UserID, a.BusinessID, a.PaymentMethod, a.PaymentType, a.AmountCentavos,
		a.Currency, a.Phase, a.Screen, a.OrderID, a.OrderNumber, a.ArrivalCode, a.IntentID,
		a.PaymentStatus, a.ErrorTitle, a.ErrorMessage, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *PgStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.queryAttempt(ctx, s.pool, `SELECT `+attemptColumns+` FROM checkout_attempts WHERE id = $1`, id)
}

func (s *PgStore) FindByIntent(ctx context.Context, intentID string) (Attempt, error) {
	return s.queryAttempt(ctx, s.pool, `SELECT `+attemptColumns+` FROM checkout_attempts WHERE intent_id = $1`, intentID)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PgStore) queryAttempt(ctx context.Context, q rowQuerier, sql string, arg string) (Attempt, error) {
	var a Attempt
	var payType, screen *string
	err := q.QueryRow(ctx, sql, arg).Scan(
		&a.ID, &a.UserID, &a.BusinessID, &a.PaymentMethod, &payType, &a.AmountCentavos,
		&a.Currency, &a.Phase, &screen, &a.OrderID, &a.OrderNumber, &a.ArrivalCode, &a.IntentID,
		&a.PaymentStatus, &a.ErrorTitle, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	if payType != nil {
		a.PaymentType = *payType
	}
	if screen != nil {
		a.Screen = *screen
	}
	return a, nil
}

func (s *PgStore) RecordPaymentEvent(ctx context.Context, ev ProviderEvent, upd *PaymentUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	tag, err := tx.Exec(ctx, `
        INSERT INTO provider_events (id, provider, event_id, event_type, payload_json, received_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (provider, event_id) DO NOTHING
    `, ev.ID, ev.Provider, ev.EventID, ev.EventType, []byte(ev.PayloadJSON), ev.ReceivedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateEvent
	}

	var applyErr error
	if upd != nil {
		applyErr = s.applyUpdate(ctx, tx, *upd)
	}

	if applyErr != nil {
		if _, err := tx.Exec(ctx, `UPDATE provider_events SET process_error = $2 WHERE id = $1`,
			ev.ID, truncate(applyErr.Error(), 250)); err != nil {
			return err
		}
		if !errors.Is(applyErr, ErrNotFound) {
			return applyErr
		}
	} else if _, err := tx.Exec(ctx, `UPDATE provider_events SET processed_at = $2 WHERE id = $1`,
		ev.ID, time.Now()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PgStore) applyUpdate(ctx context.Context, tx pgx.Tx, upd PaymentUpdate) error {
	var id, current string
	err := tx.QueryRow(ctx,
		`SELECT id, payment_status FROM checkout_attempts WHERE intent_id = $1 FOR UPDATE`,
		upd.IntentID).Scan(&id, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	status, changed := applyStatus(current, upd.Status)
	if !changed {
		return nil
	}
	_, err = tx.Exec(ctx, `
        UPDATE checkout_attempts
        SET payment_status = $2, error_title = $3, error_message = $4, updated_at = $5
        WHERE id = $1
    `, id, status, strPtr(upd.ErrorTitle), strPtr(truncate(upd.ErrorMessage, 250)), time.Now())
	return err
}
