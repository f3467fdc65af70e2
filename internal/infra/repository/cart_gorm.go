package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// carts と cart_items の両方を扱う
type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	//同時作成はuser_idのユニーク制約で1件に収束させる
	cart := model.Cart{UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&cart).Error
	if err != nil {
		return model.Cart{}, errors.Wrap(err, "create cart")
	}
	return r.FindByUserID(ctx, userID)
}

func (r *CartGormRepository) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if isNotFound(err) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, errors.Wrap(err, "find cart")
	}
	return cart, nil
}

// 明細を全削除して合計を0に
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
			return errors.Wrap(err, "delete cart items")
		}
		res := tx.Model(&model.Cart{}).Where("id = ?", cartID).Updates(map[string]any{
			"total_items": 0,
			"total_price": 0,
			"updated_at":  time.Now(),
		})
		if res.Error != nil {
			return errors.Wrap(res.Error, "reset cart totals")
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

func (r *CartGormRepository) RecalculateTotals(ctx context.Context, cartID int64) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cart, cartID).Error; err != nil {
			if isNotFound(err) {
				return repo.ErrNotFound
			}
			return errors.Wrap(err, "lock cart")
		}

		var items []model.CartItem
		if err := tx.Where("cart_id = ?", cartID).Find(&items).Error; err != nil {
			return errors.Wrap(err, "list cart items")
		}

		cart.TotalItems, cart.TotalPrice = model.CartTotals(items)
		return errors.Wrap(tx.Model(&cart).Updates(map[string]any{
			"total_items": cart.TotalItems,
			"total_price": cart.TotalPrice,
		}).Error, "save cart totals")
	})
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// カート明細を一覧取得
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	return items, nil
}

// 同一商品は数量加算、価格は最新に
func (r *CartGormRepository) UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, addQty int64, unitPriceSnapshot int64) error {
	if addQty <= 0 {
		return errors.New("invalid quantity")
	}

	item := model.CartItem{
		CartID:            cartID,
		ProductID:         productID,
		Quantity:          addQty,
		UnitPriceSnapshot: unitPriceSnapshot,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":            gorm.Expr("cart_items.quantity + ?", addQty),
			"unit_price_snapshot": unitPriceSnapshot,
			"updated_at":          time.Now(),
		}),
	}).Create(&item).Error
	return errors.Wrap(err, "upsert cart item")
}

func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update cart item")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete cart item")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).Where("id = ?", cartItemID).First(&item).Error
	if isNotFound(err) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, errors.Wrap(err, "find cart item")
	}
	return item, nil
}
