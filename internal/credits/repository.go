package credits

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Repository interface {
	// CreateWithRequest persists both records in one transaction.
	CreateWithRequest(ctx context.Context, credit *Credit, req *Request) error
	// GetCredit returns nil, nil when the credit does not exist.
	GetCredit(ctx context.Context, id int64) (*Credit, error)
	// GetPurchasedCredit returns nil, nil when the credit was never sold.
	GetPurchasedCredit(ctx context.Context, creditID int64) (*PurchasedCredit, error)
	// Expire flags the credit and its purchase record as expired in one transaction.
	Expire(ctx context.Context, creditID, purchasedID int64) error
	ListByCreator(ctx context.Context, creatorID int64) ([]Credit, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWithRequest(ctx context.Context, credit *Credit, req *Request) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(credit).Error; err != nil {
			return fmt.Errorf("failed to insert credit %d: %w", credit.ID, err)
		}
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to insert request for credit %d: %w", credit.ID, err)
		}
		return nil
	})
}

func (r *gormRepository) GetCredit(ctx context.Context, id int64) (*Credit, error) {
	var credit Credit
	err := r.db.WithContext(ctx).First(&credit, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit %d: %w", id, err)
	}
	return &credit, nil
}

func (r *gormRepository) GetPurchasedCredit(ctx context.Context, creditID int64) (*PurchasedCredit, error) {
	var pc PurchasedCredit
	err := r.db.WithContext(ctx).Where("credit_id = ?", creditID).Order("id").First(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase of credit %d: %w", creditID, err)
	}
	return &pc, nil
}

func (r *gormRepository) Expire(ctx context.Context, creditID, purchasedID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Credit{}).Where("id = ?", creditID).
			Updates(map[string]interface{}{"is_active": false, "is_expired": true})
		if res.Error != nil {
			return fmt.Errorf("failed to expire credit %d: %w", creditID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("credit %d vanished before expiry", creditID)
		}
		if err := tx.Model(&PurchasedCredit{}).Where("id = ?", purchasedID).
			Update("is_expired", true).Error; err != nil {
			return fmt.Errorf("failed to expire purchase %d: %w", purchasedID, err)
		}
		return nil
	})
}

func (r *gormRepository) ListByCreator(ctx context.Context, creatorID int64) ([]Credit, error) {
	credits := []Credit{}
	err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).Order("created_at DESC, id DESC").Find(&credits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credits of user %d: %w", creatorID, err)
	}
	return credits, nil
}
