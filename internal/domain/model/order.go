package model

import (
	"errors"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodMomo         PaymentMethod = "momo"
	PaymentMethodZaloPay      PaymentMethod = "zalopay"
	PaymentMethodVNPay        PaymentMethod = "vnpay"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var (
	ErrUnknownOrderStatus   = errors.New("unknown order status")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrUnknownPaymentStatus = errors.New("unknown payment status")
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.TrimSpace(s)); st {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	}
	return "", ErrUnknownOrderStatus
}

// 空ならcod
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PaymentMethodCOD, nil
	}
	switch m := PaymentMethod(s); m {
	case PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodCreditCard,
		PaymentMethodMomo, PaymentMethodZaloPay, PaymentMethodVNPay:
		return m, nil
	}
	return "", ErrUnknownPaymentMethod
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.TrimSpace(s)); st {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return st, nil
	}
	return "", ErrUnknownPaymentStatus
}

// 国の指定がないときの既定値
const DefaultCountry = "Vietnam"

// 配送先（注文時点のコピー）
type ShippingAddress struct {
	FullName string `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone    string `gorm:"type:varchar(30);not null" json:"phone"`
	Street   string `gorm:"type:varchar(255);not null" json:"street"`
	City     string `gorm:"type:varchar(255);not null" json:"city"`
	State    string `gorm:"type:varchar(255)" json:"state,omitempty"`
	ZipCode  string `gorm:"type:varchar(20)" json:"zip_code,omitempty"`
	Country  string `gorm:"type:varchar(100);not null;default:'Vietnam'" json:"country"`
}

// 決済ゲートウェイ側の情報
type PaymentDetails struct {
	//ゲートウェイの取引番号
	TransactionID string `gorm:"type:varchar(100)" json:"transaction_id,omitempty"`
	//こちらから送る照合キー。注文ごとに1回だけ発行
	TxnRef   *string    `gorm:"type:varchar(100);uniqueIndex" json:"txn_ref,omitempty"`
	BankCode string     `gorm:"type:varchar(50)" json:"bank_code,omitempty"`
	PayDate  string     `gorm:"type:varchar(20)" json:"pay_date,omitempty"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
}

type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	UserID      int64  `gorm:"not null;index:idx_orders_user_created,priority:1" json:"user_id"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`

	PaymentMethod  PaymentMethod  `gorm:"type:varchar(20);not null;default:'cod'" json:"payment_method"`
	PaymentStatus  PaymentStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	PaymentDetails PaymentDetails `gorm:"embedded;embeddedPrefix:payment_" json:"payment_details"`

	//pricing.goで計算する。直接セットしない
	ItemsPrice    int64 `gorm:"not null;default:0" json:"items_price"`
	TaxPrice      int64 `gorm:"not null;default:0" json:"tax_price"`
	ShippingPrice int64 `gorm:"not null;default:0" json:"shipping_price"`
	TotalPrice    int64 `gorm:"not null;default:0" json:"total_price"`

	//Transition経由でのみ変更する
	Status        OrderStatus          `gorm:"type:varchar(20);not null;index" json:"status"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"status_history"`

	Note         string     `gorm:"type:varchar(500)" json:"note,omitempty"`
	CancelReason string     `gorm:"type:varchar(500)" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_orders_user_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

func (o *Order) HasTxnRef() bool {
	return o.PaymentDetails.TxnRef != nil && *o.PaymentDetails.TxnRef != ""
}

// 最後の履歴
func (o *Order) LastHistory() (OrderStatusHistory, bool) {
	if len(o.StatusHistory) == 0 {
		return OrderStatusHistory{}, false
	}
	return o.StatusHistory[len(o.StatusHistory)-1], true
}
