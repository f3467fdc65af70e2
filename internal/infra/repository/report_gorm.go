package repository

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ReportGormRepository struct {
	db *gorm.DB
}

func NewReportGormRepository(db *gorm.DB) *ReportGormRepository {
	return &ReportGormRepository{db: db}
}

func (r *ReportGormRepository) orders(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Order{})
}

func (r *ReportGormRepository) OrderSummary(ctx context.Context, from, to time.Time) (repo.OrderSummary, error) {
	var s repo.OrderSummary
	err := r.orders(ctx).
		Select("COUNT(*) AS total_orders, COALESCE(SUM(total_price), 0) AS total_revenue, COALESCE(AVG(total_price), 0) AS average_order_value").
		Where("created_at >= ? AND created_at <= ?", from, to).
		Where("status <> ?", model.OrderStatusCancelled).
		Scan(&s).Error
	return s, errors.Wrap(err, "order summary")
}

func (r *ReportGormRepository) StatusCounts(ctx context.Context, from, to time.Time) ([]repo.StatusCount, error) {
	var out []repo.StatusCount
	err := r.orders(ctx).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ? AND created_at <= ?", from, to).
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, errors.Wrap(err, "status counts")
}

func (r *ReportGormRepository) CountByStatuses(ctx context.Context, statuses ...model.OrderStatus) (int64, error) {
	var n int64
	err := r.orders(ctx).Where("status IN ?", statuses).Count(&n).Error
	return n, errors.Wrap(err, "count by statuses")
}

func (r *ReportGormRepository) RevenueSince(ctx context.Context, since time.Time) (int64, int64, error) {
	var orders int64
	if err := r.orders(ctx).Where("created_at >= ?", since).Count(&orders).Error; err != nil {
		return 0, 0, errors.Wrap(err, "count orders since")
	}

	var revenue int64
	err := r.orders(ctx).
		Select("COALESCE(SUM(total_price), 0)").
		Where("created_at >= ? AND status <> ?", since, model.OrderStatusCancelled).
		Scan(&revenue).Error
	if err != nil {
		return 0, 0, errors.Wrap(err, "revenue since")
	}
	return orders, revenue, nil
}

// date_truncの単位と表示形式
var periodFormats = map[repo.Period][2]string{
	repo.PeriodDaily:   {"day", "YYYY-MM-DD"},
	repo.PeriodMonthly: {"month", "YYYY-MM"},
	repo.PeriodYearly:  {"year", "YYYY"},
}

func (r *ReportGormRepository) RevenueByPeriod(ctx context.Context, period repo.Period, since time.Time) ([]repo.RevenuePoint, error) {
	f, ok := periodFormats[period]
	if !ok {
		return nil, errors.Errorf("unknown period %q", period)
	}

	var out []repo.RevenuePoint
	err := r.orders(ctx).
		Select(fmt.Sprintf("to_char(date_trunc('%s', created_at), '%s') AS period, SUM(total_price) AS revenue, COUNT(*) AS orders", f[0], f[1])).
		Where("created_at >= ?", since).
		Where("status <> ? AND payment_status = ?", model.OrderStatusCancelled, model.PaymentStatusPaid).
		Group("period").
		Order("period").
		Scan(&out).Error
	return out, errors.Wrap(err, "revenue by period")
}

func (r *ReportGormRepository) TopProducts(ctx context.Context, limit int, from, to time.Time) ([]repo.TopProduct, error) {
	var out []repo.TopProduct
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.product_id, MAX(oi.product_name_snapshot) AS name, SUM(oi.quantity) AS quantity, SUM(oi.quantity * oi.unit_price_snapshot) AS revenue").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.status <> ?", model.OrderStatusCancelled).
		Where("o.created_at >= ? AND o.created_at <= ?", from, to).
		Group("oi.product_id").
		Order("quantity DESC").Order("revenue DESC").
		Limit(limit).
		Scan(&out).Error
	return out, errors.Wrap(err, "top products")
}
