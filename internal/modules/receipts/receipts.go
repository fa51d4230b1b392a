// Package receipts archives the final outcome of each checkout attempt.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/modules/grace"
	"github.com/VNZray/capstone-project-sub008/internal/shared/money"
	"github.com/VNZray/capstone-project-sub008/internal/storage"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

// Receipt never carries card data or billing details.
type Receipt struct {
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id"`
	BusinessID    string         `json:"business_id"`
	PaymentMethod string         `json:"payment_method"`
	PaymentType   string         `json:"payment_type,omitempty"`
	Total         string         `json:"total"`
	AmountCents   int64          `json:"amount_centavos"`
	Phase         string         `json:"phase"`
	Screen        view.Screen    `json:"screen"`
	Order         *view.OrderRef `json:"order,omitempty"`
	IntentID      string         `json:"payment_intent_id,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Title         string         `json:"title,omitempty"`
	Message       string         `json:"message,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}

func FromSummary(s grace.Summary, finishedAt time.Time) Receipt {
	r := Receipt{
		SessionID:     s.SessionID,
		UserID:        s.UserID,
		BusinessID:    s.BusinessID,
		PaymentMethod: string(s.PaymentMethod),
		PaymentType:   string(s.PaymentType),
		Total:         s.Total.StringFixed(2),
		AmountCents:   money.Centavos(s.Total),
		Phase:         string(s.State.Phase),
		Order:         s.State.Order.Clone(),
		IntentID:      s.State.IntentID,
		StartedAt:     s.StartedAt.UTC(),
		FinishedAt:    finishedAt.UTC(),
	}
	if nav := s.State.Navigation; nav != nil {
		r.Screen = nav.Screen
		r.Reason = nav.Reason
		r.Title = nav.Title
		r.Message = nav.Message
		if r.Order == nil {
			r.Order = nav.Order.Clone()
		}
	}
	return r
}

// Key is receipts/YYYY/MM/<session>.json.
func Key(r Receipt) string {
	t := r.FinishedAt
	if t.IsZero() {
		t = r.StartedAt
	}
	return fmt.Sprintf("receipts/%04d/%02d/%s.json", t.Year(), int(t.Month()), r.SessionID)
}

type Archiver struct {
	store  storage.Storage
	logger *slog.Logger
}

func NewArchiver(s storage.Storage) *Archiver {
	return &Archiver{store: s, logger: slog.Default()}
}

func (a *Archiver) SetLogger(l *slog.Logger) {
	if l != nil {
		a.logger = l
	}
}

func (a *Archiver) Archive(ctx context.Context, r Receipt) (storage.PutResult, error) {
	if r.SessionID == "" {
		return storage.PutResult{}, fmt.Errorf("receipts: missing session id")
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return storage.PutResult{}, err
	}

	res, err := a.store.Put(ctx, bytes.NewReader(b), storage.PutInput{
		Key:         Key(r),
		Filename:    r.SessionID + ".json",
		ContentType: "application/json",
		Size:        int64(len(b)),
	})
	if err != nil {
		return storage.PutResult{}, fmt.Errorf("receipts: archive %s: %w", r.SessionID, err)
	}

	a.logger.InfoContext(ctx, "receipt archived",
		"session_id", r.SessionID,
		"screen", r.Screen,
		"key", res.Key,
	)
	return res, nil
}
