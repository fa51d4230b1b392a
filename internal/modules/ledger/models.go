package ledger

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
	PaymentNone      = "none" // cash on pickup
)

// Attempt is one checkout session's audit row. Card data never reaches it.
type Attempt struct {
	ID             string  `gorm:"type:char(36);primaryKey"`
	UserID         string  `gorm:"type:varchar(64);not null;index:ix_checkout_attempts_user"`
	BusinessID     string  `gorm:"type:varchar(64);not null"`
	PaymentMethod  string  `gorm:"type:varchar(32);not null"`
	PaymentType    string  `gorm:"type:varchar(32)"`
	AmountCentavos int64   `gorm:"not null"`
	Currency       string  `gorm:"type:char(3);not null"`
	Phase          string  `gorm:"type:varchar(32);not null"`
	Screen         string  `gorm:"type:varchar(32)"`
	OrderID        *string `gorm:"type:varchar(64);index:ix_checkout_attempts_order"`
	OrderNumber    *string `gorm:"type:varchar(64)"`
	ArrivalCode    *string `gorm:"type:varchar(32)"`
	IntentID       *string `gorm:"type:varchar(128);uniqueIndex:ux_checkout_attempts_intent"`
	PaymentStatus  string  `gorm:"type:varchar(32);not null"`
	ErrorTitle     *string `gorm:"type:varchar(128)"`
	ErrorMessage   *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Attempt) TableName() string { return "checkout_attempts" }

type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"type:datetime(3);not null"`
	ProcessedAt  *time.Time `gorm:"type:datetime(3)"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

// PaymentUpdate is applied to the attempt owning IntentID in the same
// transaction that records the provider event.
type PaymentUpdate struct {
	IntentID     string
	Status       string
	ErrorTitle   string
	ErrorMessage string
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
