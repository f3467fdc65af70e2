package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// stock/soldの増減はすべて1文のSQLで行う（読んでから書かない）
type InventoryRepository interface {
	// 在庫が足りるときだけ stock-qty, sold+qty。足りなければfalse
	Reserve(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル）。stock+qty, sold-qty
	Release(ctx context.Context, productID int64, qty int64) error

	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
