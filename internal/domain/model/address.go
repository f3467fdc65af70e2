package model

import "time"

// 保存済みの配送先（アドレス帳）
// 注文時には ShippingAddress にコピーして使う
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//宛名
	FullName string `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone    string `gorm:"type:varchar(30);not null" json:"phone"`
	Street   string `gorm:"type:varchar(255);not null" json:"street"`
	City     string `gorm:"type:varchar(255);not null" json:"city"`
	State    string `gorm:"type:varchar(255)" json:"state,omitempty"`
	ZipCode  string `gorm:"type:varchar(20)" json:"zip_code,omitempty"`
	Country  string `gorm:"type:varchar(100);not null;default:'Vietnam'" json:"country"`

	//このユーザーのデフォルト住所か
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 注文に埋め込むスナップショット
func (a Address) ToShipping() ShippingAddress {
	country := a.Country
	if country == "" {
		country = DefaultCountry
	}
	return ShippingAddress{
		FullName: a.FullName,
		Phone:    a.Phone,
		Street:   a.Street,
		City:     a.City,
		State:    a.State,
		ZipCode:  a.ZipCode,
		Country:  country,
	}
}
