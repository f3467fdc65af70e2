package model

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	NoteOrderPlaced        = "Order placed"
	CancelReasonByCustomer = "Cancelled by customer"
	CancelReasonByAdmin    = "Cancelled by admin"

	MaxNoteLength = 500
)

var (
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("quantity must be >= 1")
	ErrNoteTooLong     = errors.New("note cannot exceed 500 characters")
)

// 遷移表。終端(delivered, cancelled)からは動かない
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// 遷移できない場合のエラー（現在と要求を持つ）
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %q to %q", e.From, e.To)
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// 顧客がキャンセルできるのはpending/confirmedだけ
func CanCustomerCancel(s OrderStatus) bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

type NewOrderParams struct {
	UserID          int64
	Items           []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	Note            string
	Pricing         Pricing
	Now             time.Time
}

// 新規注文（pending + 初回履歴）を組み立てる。OrderNumberは保存時に付ける。
func NewOrder(p NewOrderParams) (*Order, error) {
	if len(p.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range p.Items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}
	if utf8.RuneCountInString(p.Note) > MaxNoteLength {
		return nil, ErrNoteTooLong
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = PaymentMethodCOD
	}
	if p.ShippingAddress.Country == "" {
		p.ShippingAddress.Country = DefaultCountry
	}

	items := make([]OrderItem, len(p.Items))
	copy(items, p.Items)

	o := &Order{
		UserID:          p.UserID,
		Items:           items,
		ShippingAddress: p.ShippingAddress,
		PaymentMethod:   p.PaymentMethod,
		PaymentStatus:   PaymentStatusPending,
		Note:            p.Note,
		CreatedAt:       p.Now,
		UpdatedAt:       p.Now,
	}
	o.applyPrices(CalculatePrices(items, p.Pricing))
	o.setStatus(OrderStatusPending, NoteOrderPlaced, nil, p.Now)
	return o, nil
}

// ステータス変更の唯一の入口。
// 遷移表を確認し、delivered/cancelledの付随処理をして履歴を1件追加する。
// cancelledのときnoteはキャンセル理由として残る。
func (o *Order) Transition(to OrderStatus, note string, by *int64, now time.Time) (OrderStatusHistory, error) {
	if !CanTransition(o.Status, to) {
		return OrderStatusHistory{}, &TransitionError{From: o.Status, To: to}
	}

	at := now
	switch to {
	case OrderStatusDelivered:
		o.DeliveredAt = &at
		//代引きは配達時に支払い済み
		if o.PaymentMethod == PaymentMethodCOD {
			o.PaymentStatus = PaymentStatusPaid
			o.PaymentDetails.PaidAt = &at
		}
	case OrderStatusCancelled:
		o.CancelledAt = &at
		o.CancelReason = note
	}

	return o.setStatus(to, note, by, now), nil
}

func (o *Order) setStatus(to OrderStatus, note string, by *int64, now time.Time) OrderStatusHistory {
	o.Status = to
	o.UpdatedAt = now
	h := OrderStatusHistory{
		OrderID:   o.ID,
		Status:    to,
		Note:      note,
		UpdatedAt: now,
		UpdatedBy: by,
	}
	o.StatusHistory = append(o.StatusHistory, h)
	return h
}
