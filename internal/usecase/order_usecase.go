package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

// 注文番号が衝突したときの最大試行回数
const maxOrderNumberAttempts = 5

type OrderUsecase struct {
	tx        repo.TransactionManager
	orders    repo.OrderRepository
	addresses repo.AddressRepository
	pricing   model.Pricing
	events    EventPublisher
	log       *logrus.Logger

	clock   Clock
	numbers OrderNumberGenerator
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	addresses repo.AddressRepository,
	pricing model.Pricing,
	events EventPublisher,
	log *logrus.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:        tx,
		orders:    orders,
		addresses: addresses,
		pricing:   pricing,
		events:    events,
		log:       log,
		clock:     systemClock{},
		numbers:   randomOrderNumbers{},
	}
}

// ShippingAddress が空なら AddressID、それも無ければデフォルト住所を使う
type PlaceOrderInput struct {
	ShippingAddress model.ShippingAddress
	AddressID       *int64
	PaymentMethod   string
	Note            string
}

type MyOrdersQuery struct {
	Status string
	Page   int
	Limit  int
}

type OrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Pages int64         `json:"pages"`
}

func newOrderListOutput(items []model.Order, total int64, page, limit int) OrderListOutput {
	if items == nil {
		items = []model.Order{}
	}
	return OrderListOutput{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + int64(limit) - 1) / int64(limit),
	}
}

func validateShipping(a model.ShippingAddress) error {
	switch {
	case strings.TrimSpace(a.FullName) == "":
		return ValidationError("shipping full name is required")
	case strings.TrimSpace(a.Phone) == "":
		return ValidationError("shipping phone is required")
	case strings.TrimSpace(a.Street) == "":
		return ValidationError("shipping street is required")
	case strings.TrimSpace(a.City) == "":
		return ValidationError("shipping city is required")
	}
	return nil
}

func (u *OrderUsecase) resolveShipping(ctx context.Context, userID int64, in PlaceOrderInput) (model.ShippingAddress, error) {
	if in.ShippingAddress != (model.ShippingAddress{}) || u.addresses == nil {
		return in.ShippingAddress, nil
	}

	var (
		a   model.Address
		err error
	)
	if in.AddressID != nil {
		a, err = u.addresses.FindByID(ctx, *in.AddressID)
		if err == nil && a.UserID != userID {
			err = repo.ErrNotFound
		}
	} else {
		a, err = u.addresses.FindDefault(ctx, userID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		if in.AddressID != nil {
			return model.ShippingAddress{}, NotFoundError("Address not found")
		}
		return model.ShippingAddress{}, ValidationError("shipping address is required")
	}
	if err != nil {
		return model.ShippingAddress{}, u.internal(err, "find address")
	}
	return a.ToShipping(), nil
}

// カートから注文を作る。確認→在庫確保→保存→カートを空に、を1つのTxで行う
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, UnauthorizedError()
	}
	method, err := model.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return model.Order{}, ValidationError("invalid payment method")
	}
	shipping, err := u.resolveShipping(ctx, userID, in)
	if err != nil {
		return model.Order{}, err
	}
	if err := validateShipping(shipping); err != nil {
		return model.Order{}, err
	}
	if utf8.RuneCountInString(in.Note) > model.MaxNoteLength {
		return model.Order{}, ValidationError(model.ErrNoteTooLong.Error())
	}

	var created *model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return ValidationError("Cart is empty")
		}
		if err != nil {
			return u.internal(err, "find cart")
		}
		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return u.internal(err, "list cart items")
		}
		if len(cartItems) == 0 {
			return ValidationError("Cart is empty")
		}

		//全件確認してから在庫を動かす
		items := make([]model.OrderItem, 0, len(cartItems))
		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return ValidationError(fmt.Sprintf("Product #%d is no longer available", ci.ProductID))
			}
			if err != nil {
				return u.internal(err, "find product")
			}
			if !p.IsActive {
				return ValidationError(fmt.Sprintf("Product %q is no longer available", p.Name))
			}
			if p.Stock < ci.Quantity {
				return ValidationError(fmt.Sprintf("Not enough stock for %q. Available: %d", p.Name, p.Stock))
			}
			items = append(items, model.OrderItem{
				ProductID:           p.ID,
				ProductNameSnapshot: p.Name,
				ImageURLSnapshot:    p.ImageURL,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
			})
		}

		for _, it := range items {
			ok, err := r.Inventory().Reserve(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return u.internal(err, "reserve stock")
			}
			//確認後に他の注文が先に確保した
			if !ok {
				return ValidationError(fmt.Sprintf("Not enough stock for %q", it.ProductNameSnapshot))
			}
		}

		now := u.clock.Now()
		o, err := model.NewOrder(model.NewOrderParams{
			UserID:          userID,
			Items:           items,
			ShippingAddress: shipping,
			PaymentMethod:   method,
			Note:            in.Note,
			Pricing:         u.pricing,
			Now:             now,
		})
		if err != nil {
			return ValidationError(err.Error())
		}

		if err := u.createWithUniqueNumber(ctx, r, o); err != nil {
			return err
		}

		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return u.internal(err, "clear cart")
		}
		created = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	publish(ctx, u.events, u.log, TopicOrderCreated, created.ID, OrderCreatedEvent{
		OrderID:       created.ID,
		OrderNumber:   created.OrderNumber,
		UserID:        created.UserID,
		PaymentMethod: created.PaymentMethod,
		TotalPrice:    created.TotalPrice,
		CreatedAt:     created.CreatedAt,
	})
	return *created, nil
}

func (u *OrderUsecase) createWithUniqueNumber(ctx context.Context, r repo.TxRepos, o *model.Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		o.OrderNumber = u.numbers.Next(o.CreatedAt)
		err := r.Orders().Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicateOrderNumber) {
			return u.internal(err, "create order")
		}
		u.log.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"attempt":      attempt,
		}).Warn("order number collision, retrying")
	}
	return u.internal(repo.ErrDuplicateOrderNumber, "allocate order number")
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, q MyOrdersQuery) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, UnauthorizedError()
	}
	if q.Page < 1 {
		return OrderListOutput{}, ValidationError("invalid page")
	}
	if q.Limit < 1 || q.Limit > 100 {
		return OrderListOutput{}, ValidationError("invalid limit")
	}
	var status model.OrderStatus
	if q.Status != "" {
		s, err := model.ParseOrderStatus(q.Status)
		if err != nil {
			return OrderListOutput{}, ValidationError("invalid status")
		}
		status = s
	}

	items, total, err := u.orders.ListByUserID(ctx, userID, repo.OrderListQuery{
		Page:   q.Page,
		Limit:  q.Limit,
		Status: status,
	})
	if err != nil {
		return OrderListOutput{}, u.internal(err, "list my orders")
	}
	return newOrderListOutput(items, total, q.Page, q.Limit), nil
}

// 本人か管理者だけ
func (u *OrderUsecase) GetOrderDetail(ctx context.Context, actor Actor, orderID int64) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, UnauthorizedError()
	}
	if orderID <= 0 {
		return model.Order{}, ValidationError("invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NotFoundError("Order not found")
	}
	if err != nil {
		return model.Order{}, u.internal(err, "find order")
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		return model.Order{}, ForbiddenError("Not authorized to view this order")
	}
	return o, nil
}

// 顧客によるキャンセル（pending/confirmedのみ）
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, userID int64, orderID int64, reason string) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, UnauthorizedError()
	}
	if orderID <= 0 {
		return model.Order{}, ValidationError("invalid id")
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > model.MaxNoteLength {
		return model.Order{}, ValidationError(model.ErrNoteTooLong.Error())
	}
	if reason == "" {
		reason = model.CancelReasonByCustomer
	}

	var (
		updated model.Order
		from    model.OrderStatus
		entry   model.OrderStatusHistory
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("Order not found")
		}
		if err != nil {
			return u.internal(err, "find order")
		}
		if o.UserID != userID {
			return ForbiddenError("Not authorized to cancel this order")
		}
		if !model.CanCustomerCancel(o.Status) {
			return InvalidStateError(fmt.Sprintf("Order cannot be cancelled in %q status", o.Status))
		}

		from = o.Status
		entry, err = transitionOrder(ctx, r, &o, model.OrderStatusCancelled, reason, &userID, u.clock.Now())
		if err != nil {
			return u.mapTransitionErr(err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	publishStatusUpdated(ctx, u.events, u.log, updated, from, entry)
	return updated, nil
}

// 状態遷移の共通処理。キャンセルなら在庫を戻してから条件付きで保存する
func transitionOrder(ctx context.Context, r repo.TxRepos, o *model.Order, to model.OrderStatus, note string, by *int64, now time.Time) (model.OrderStatusHistory, error) {
	from := o.Status
	entry, err := o.Transition(to, note, by, now)
	if err != nil {
		return model.OrderStatusHistory{}, err
	}

	if to == model.OrderStatusCancelled {
		for _, it := range o.Items {
			if err := r.Inventory().Release(ctx, it.ProductID, it.Quantity); err != nil && !errors.Is(err, repo.ErrNotFound) {
				return model.OrderStatusHistory{}, err
			}
		}
	}

	if err := r.Orders().UpdateStatusIfCurrent(ctx, o, from, entry); err != nil {
		return model.OrderStatusHistory{}, err
	}
	return entry, nil
}

func (u *OrderUsecase) mapTransitionErr(err error) error {
	return mapTransitionErr(u.log, err)
}

func mapTransitionErr(log *logrus.Logger, err error) error {
	var te *model.TransitionError
	switch {
	case errors.As(err, &te):
		return InvalidStateError(te.Error())
	case errors.Is(err, repo.ErrConflict):
		return InvalidStateError("Order was modified by another request, please retry")
	}
	log.WithError(err).Error("order transition failed")
	return InternalError()
}

func (u *OrderUsecase) internal(err error, op string) error {
	u.log.WithError(err).WithField("op", op).Error("order usecase failed")
	return InternalError()
}
