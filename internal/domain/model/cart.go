package model

import "time"

// 1ユーザーにつき1つ
// TotalItems / TotalPrice は明細の変更のたびに再計算する
type Cart struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalItems int64     `gorm:"not null;default:0" json:"total_items"`
	TotalPrice int64     `gorm:"not null;default:0" json:"total_price"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
