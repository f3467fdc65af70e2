package repository

import (
	"context"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

// 明細と履歴は古い順
func withDetails(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") })
}

// 外側のTx内ではsavepointになるので、重複で失敗しても外側は続行できる
func (r *OrderGormRepository) Create(ctx context.Context, o *model.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(o).Error
	})
	if err == nil {
		return nil
	}

	resetIDs(o)
	if isDuplicate(err) {
		return repo.ErrDuplicateOrderNumber
	}
	return errors.Wrap(err, "create order")
}

// 失敗したINSERTで振られたIDを戻す（再試行用）
func resetIDs(o *model.Order) {
	o.ID = 0
	for i := range o.Items {
		o.Items[i].ID = 0
		o.Items[i].OrderID = 0
	}
	for i := range o.StatusHistory {
		o.StatusHistory[i].ID = 0
		o.StatusHistory[i].OrderID = 0
	}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := withDetails(r.db.WithContext(ctx)).Where("id = ?", orderID).First(&o).Error
	if isNotFound(err) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "find order")
	}
	return o, nil
}

func (r *OrderGormRepository) FindByTxnRef(ctx context.Context, txnRef string) (model.Order, error) {
	var o model.Order
	err := withDetails(r.db.WithContext(ctx)).Where("payment_txn_ref = ?", txnRef).First(&o).Error
	if isNotFound(err) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "find order by txn ref")
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, q repo.OrderListQuery) ([]model.Order, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)
	if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	var items []model.Order
	err := base.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Order("created_at desc").Order("id desc").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	return items, total, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("order_number ILIKE ? OR shipping_full_name ILIKE ? OR shipping_phone ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count admin orders")
	}

	var items []model.Order
	err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Order("created_at desc").Order("id desc").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list admin orders")
	}
	return items, total, nil
}

func (r *OrderGormRepository) UpdateStatusIfCurrent(ctx context.Context, o *model.Order, from model.OrderStatus, entry model.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", o.ID, from).
			Updates(map[string]any{
				"status":          o.Status,
				"cancel_reason":   o.CancelReason,
				"cancelled_at":    o.CancelledAt,
				"delivered_at":    o.DeliveredAt,
				"payment_status":  o.PaymentStatus,
				"payment_paid_at": o.PaymentDetails.PaidAt,
				"updated_at":      o.UpdatedAt,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update order status")
		}
		if res.RowsAffected == 0 {
			return repo.ErrConflict
		}

		entry.ID = 0
		entry.OrderID = o.ID
		return errors.Wrap(tx.Create(&entry).Error, "append status history")
	})
}

func (r *OrderGormRepository) AssignTxnRefIfEmpty(ctx context.Context, orderID int64, txnRef string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND (payment_txn_ref IS NULL OR payment_txn_ref = '')", orderID).
		Update("payment_txn_ref", txnRef)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "assign txn ref")
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) MarkPaidIfPending(ctx context.Context, orderID int64, p repo.PaymentResult) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status":         model.PaymentStatusPaid,
			"payment_transaction_id": p.TransactionID,
			"payment_bank_code":      p.BankCode,
			"payment_pay_date":       p.PayDate,
			"payment_paid_at":        p.PaidAt,
			"updated_at":             p.PaidAt,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "mark paid")
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) UpdatePayment(ctx context.Context, orderID int64, status model.PaymentStatus, d model.PaymentDetails) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"payment_status":         status,
			"payment_transaction_id": d.TransactionID,
			"payment_paid_at":        d.PaidAt,
			"updated_at":             gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update payment")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
