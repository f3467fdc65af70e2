package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartRepository interface {
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 明細を全削除して合計を0に戻す
	Clear(ctx context.Context, cartID int64) error
	// 明細から合計を計算し直して保存
	RecalculateTotals(ctx context.Context, cartID int64) (model.Cart, error)
}
