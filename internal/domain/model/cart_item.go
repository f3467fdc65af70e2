package model

import "time"

// カートの明細
// 追加時点の価格を必ず保存。
type CartItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64     `gorm:"not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID         int64     `gorm:"not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// カート合計（数量の合計, 価格×数量の合計）
func CartTotals(items []CartItem) (totalItems int64, totalPrice int64) {
	for _, it := range items {
		totalItems += it.Quantity
		totalPrice += it.UnitPriceSnapshot * it.Quantity
	}
	return totalItems, totalPrice
}
