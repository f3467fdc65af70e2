package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", newStock)

	if res.Error != nil {
		return errors.Wrap(res.Error, "set stock")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫が足りるときだけ減らす
func (r *InventoryGormRepository) Reserve(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]any{
			"stock": gorm.Expr("stock - ?", qty),
			"sold":  gorm.Expr("sold + ?", qty),
		})

	if res.Error != nil {
		return false, errors.Wrap(res.Error, "reserve stock")
	}
	return res.RowsAffected > 0, nil
}

// 在庫戻し（キャンセル）。論理削除済みの商品にも戻す
func (r *InventoryGormRepository) Release(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock": gorm.Expr("stock + ?", qty),
			"sold":  gorm.Expr("GREATEST(sold - ?, 0)", qty),
		})

	if res.Error != nil {
		return errors.Wrap(res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(&adj).Error, "create adjustment")
}
