package model

import "time"

// 注文時点の商品スナップショット。作成後は変更しない。
type OrderItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64     `gorm:"not null;index" json:"order_id"`
	ProductID           int64     `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"name"`
	ImageURLSnapshot    string    `gorm:"type:varchar(1024)" json:"image_url"`
	UnitPriceSnapshot   int64     `gorm:"not null" json:"price"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) LineTotal() int64 {
	return it.UnitPriceSnapshot * it.Quantity
}
