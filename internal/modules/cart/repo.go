package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/VNZray/capstone-project-sub008/internal/shared/money"
)

type Cart struct {
	ID            string     `gorm:"type:char(36);primaryKey"`
	UserID        string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_carts_user"`
	BusinessID    string     `gorm:"type:varchar(64);not null"`
	DiscountID    *string    `gorm:"type:varchar(64)"`
	DiscountCents int64      `gorm:"not null;default:0"`
	UpdatedAt     time.Time  `gorm:"type:datetime(3);not null"`
	Items         []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

func (Cart) TableName() string { return "carts" }

type CartItem struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	CartID         string    `gorm:"type:char(36);not null;index:ix_cart_items_cart"`
	Position       int       `gorm:"not null"`
	ProductID      string    `gorm:"type:varchar(64);not null"`
	Name           string    `gorm:"type:varchar(255);not null"`
	Quantity       int       `gorm:"not null"`
	UnitPriceCents int64     `gorm:"not null"`
	SpecialRequest string    `gorm:"type:varchar(255)"`
	CreatedAt      time.Time `gorm:"type:datetime(3);not null"`
}

func (CartItem) TableName() string { return "cart_items" }

// GormStore keeps one cart row per user; Put replaces its items wholesale.
type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (r *GormStore) Get(ctx context.Context, userID string) (Snapshot, error) {
	var c Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&c, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		UserID:     c.UserID,
		BusinessID: c.BusinessID,
		DiscountID: c.DiscountID,
		Discount:   money.FromCentavos(c.DiscountCents),
		UpdatedAt:  c.UpdatedAt,
		Items:      make([]Item, 0, len(c.Items)),
	}
	for _, it := range c.Items {
		s.Items = append(s.Items, Item{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPrice:      money.FromCentavos(it.UnitPriceCents),
			SpecialRequest: it.SpecialRequest,
		})
	}
	s.Recalculate()
	return s, nil
}

func (r *GormStore) Put(ctx context.Context, s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	now := time.Now()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Cart
		err := tx.First(&c, "user_id = ?", s.UserID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c = Cart{ID: uuid.NewString(), UserID: s.UserID}
		case err != nil:
			return err
		}

		c.BusinessID = s.BusinessID
		c.DiscountID = s.DiscountID
		c.DiscountCents = money.Centavos(s.Discount)
		c.UpdatedAt = now
		if err := tx.Omit("Items").Save(&c).Error; err != nil {
			return err
		}

		if err := tx.Where("cart_id = ?", c.ID).Delete(&CartItem{}).Error; err != nil {
			return err
		}
		if len(s.Items) == 0 {
			return nil
		}
		rows := make([]CartItem, 0, len(s.Items))
		for i, it := range s.Items {
			rows = append(rows, CartItem{
				ID:             uuid.NewString(),
				CartID:         c.ID,
				Position:       i,
				ProductID:      it.ProductID,
				Name:           it.Name,
				Quantity:       it.Quantity,
				UnitPriceCents: money.Centavos(it.UnitPrice),
				SpecialRequest: it.SpecialRequest,
				CreatedAt:      now,
			})
		}
		return tx.Create(&rows).Error
	})
}

func (r *GormStore) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Cart{}).Error
}
