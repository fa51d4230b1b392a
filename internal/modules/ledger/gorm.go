package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	now := time.Now()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev Attempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("payment_status", "created_at").
			First(&prev, "id = ?", a.ID).Error
		switch {
		case err == nil:
			a.CreatedAt = prev.CreatedAt
			a.PaymentStatus = mergeSnapshot(prev.PaymentStatus, a.PaymentStatus)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Save(a).Error
	})
}

func (s *GormStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	var a Attempt
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *GormStore) FindByIntent(ctx context.Context, intentID string) (Attempt, error) {
	var a Attempt
	err := s.db.WithContext(ctx).First(&a, "intent_id = ?", intentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *GormStore) RecordPaymentEvent(ctx context.Context, ev ProviderEvent, upd *PaymentUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = time.Now()
		}

		// dedupe: unique(provider, event_id)
		if err := tx.Create(&ev).Error; err != nil {
			if isDup(err) {
				return ErrDuplicateEvent
			}
			return err
		}

		var applyErr error
		if upd != nil {
			applyErr = s.applyUpdate(tx, *upd)
		}

		now := time.Now()
		fields := map[string]any{"processed_at": &now, "process_error": nil}
		if applyErr != nil {
			fields = map[string]any{"process_error": truncate(applyErr.Error(), 250)}
		}
		if err := tx.Model(&ProviderEvent{}).Where("id = ?", ev.ID).Updates(fields).Error; err != nil {
			return err
		}
		if errors.Is(applyErr, ErrNotFound) {
			// keep the event so a late attempt row can be reconciled by hand
			return nil
		}
		return applyErr
	})
}

func (s *GormStore) applyUpdate(tx *gorm.DB, upd PaymentUpdate) error {
	var a Attempt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "intent_id = ?", upd.IntentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	status, changed := applyStatus(a.PaymentStatus, upd.Status)
	if !changed {
		return nil
	}
	return tx.Model(&Attempt{}).Where("id = ?", a.ID).Updates(map[string]any{
		"payment_status": status,
		"error_title":    strPtr(truncate(upd.ErrorTitle, 120)),
		"error_message":  strPtr(truncate(upd.ErrorMessage, 250)),
		"updated_at":     time.Now(),
	}).Error
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
