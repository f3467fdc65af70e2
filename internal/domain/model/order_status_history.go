package model

import "time"

// ステータス変更履歴（追記のみ）
type OrderStatusHistory struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID   int64       `gorm:"not null;index" json:"-"`
	Status    OrderStatus `gorm:"type:varchar(20);not null" json:"status"`
	Note      string      `gorm:"type:varchar(500)" json:"note,omitempty"`
	UpdatedAt time.Time   `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	UpdatedBy *int64      `json:"updated_by,omitempty"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}
