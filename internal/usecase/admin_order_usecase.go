package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

// 手動で支払い済みにしたときの取引番号
const ManualTransactionID = "MANUAL"

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	orders repo.OrderRepository
	events EventPublisher
	log    *logrus.Logger
	clock  Clock
}

func NewAdminOrderUsecase(tx repo.TransactionManager, orders repo.OrderRepository, events EventPublisher, log *logrus.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, orders: orders, events: events, log: log, clock: systemClock{}}
}

type AdminOrderListInput struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	UserID        *int64
	From          *time.Time
	To            *time.Time
	Search        string
}

type AdminUpdateOrderStatusInput struct {
	Status string
	Note   string
}

type AdminUpdatePaymentInput struct {
	PaymentStatus string
	TransactionID string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, in AdminOrderListInput) (OrderListOutput, error) {
	if in.Page < 1 {
		return OrderListOutput{}, ValidationError("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return OrderListOutput{}, ValidationError("invalid limit")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return OrderListOutput{}, ValidationError("from must be before to")
	}

	f := repo.AdminOrderListFilter{
		Page:   in.Page,
		Limit:  in.Limit,
		UserID: in.UserID,
		From:   in.From,
		To:     in.To,
		Search: strings.TrimSpace(in.Search),
	}
	if in.Status != "" {
		s, err := model.ParseOrderStatus(in.Status)
		if err != nil {
			return OrderListOutput{}, ValidationError("invalid status")
		}
		f.Status = s
	}
	if in.PaymentStatus != "" {
		s, err := model.ParsePaymentStatus(in.PaymentStatus)
		if err != nil {
			return OrderListOutput{}, ValidationError("invalid payment status")
		}
		f.PaymentStatus = s
	}

	items, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		u.log.WithError(err).Error("list admin orders")
		return OrderListOutput{}, InternalError()
	}
	return newOrderListOutput(items, total, in.Page, in.Limit), nil
}

// ステータス更新（cancelledなら在庫戻し）。監査ログも同じTxで残す
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, UnauthorizedError()
	}
	if orderID <= 0 {
		return model.Order{}, ValidationError("invalid id")
	}
	to, err := model.ParseOrderStatus(in.Status)
	if err != nil {
		return model.Order{}, ValidationError("invalid status")
	}
	note := strings.TrimSpace(in.Note)
	if utf8.RuneCountInString(note) > model.MaxNoteLength {
		return model.Order{}, ValidationError(model.ErrNoteTooLong.Error())
	}
	if to == model.OrderStatusCancelled && note == "" {
		note = model.CancelReasonByAdmin
	}

	var (
		updated model.Order
		from    model.OrderStatus
		entry   model.OrderStatusHistory
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("Order not found")
		}
		if err != nil {
			u.log.WithError(err).Error("find order")
			return InternalError()
		}

		from = o.Status
		entry, err = transitionOrder(ctx, r, &o, to, note, &actorAdminUserID, u.clock.Now())
		if err != nil {
			return mapTransitionErr(u.log, err)
		}

		//監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   toJSON(map[string]any{"status": from}),
			AfterJSON:    toJSON(map[string]any{"status": o.Status, "note": note}),
			CreatedAt:    entry.UpdatedAt,
		}); err != nil {
			u.log.WithError(err).Error("create audit log")
			return InternalError()
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

// 支払いステータスの手動更新（振込確認・返金など）
func (u *AdminOrderUsecase) UpdatePaymentStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdatePaymentInput) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, UnauthorizedError()
	}
	if orderID <= 0 {
		return model.Order{}, ValidationError("invalid id")
	}
	status, err := model.ParsePaymentStatus(in.PaymentStatus)
	if err != nil {
		return model.Order{}, ValidationError("invalid payment status")
	}

	var updated model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("Order not found")
		}
		if err != nil {
			u.log.WithError(err).Error("find order")
			return InternalError()
		}

		before := o.PaymentStatus
		details := o.PaymentDetails
		if txn := strings.TrimSpace(in.TransactionID); txn != "" {
			details.TransactionID = txn
		}
		if status == model.PaymentStatusPaid {
			if details.PaidAt == nil {
				now := u.clock.Now()
				details.PaidAt = &now
			}
			if details.TransactionID == "" {
				details.TransactionID = ManualTransactionID
			}
		}

		if err := r.Orders().UpdatePayment(ctx, orderID, status, details); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NotFoundError("Order not found")
			}
			u.log.WithError(err).Error("update payment")
			return InternalError()
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdatePaymentStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   toJSON(map[string]any{"payment_status": before}),
			AfterJSON:    toJSON(map[string]any{"payment_status": status, "transaction_id": details.TransactionID}),
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			u.log.WithError(err).Error("create audit log")
			return InternalError()
		}

		o.PaymentStatus = status
		o.PaymentDetails = details
		updated = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return updated, nil
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
