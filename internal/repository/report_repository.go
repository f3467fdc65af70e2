package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// キャンセルを除いた集計
type OrderSummary struct {
	TotalOrders       int64   `json:"total_orders"`
	TotalRevenue      int64   `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
}

type StatusCount struct {
	Status model.OrderStatus `json:"status"`
	Count  int64             `json:"count"`
}

type RevenuePoint struct {
	//"2026-03-09" / "2026-03" / "2026"
	Period  string `json:"period"`
	Revenue int64  `json:"revenue"`
	Orders  int64  `json:"orders"`
}

type TopProduct struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	Revenue   int64  `json:"revenue"`
}

// 管理画面の集計
type ReportRepository interface {
	OrderSummary(ctx context.Context, from, to time.Time) (OrderSummary, error)
	StatusCounts(ctx context.Context, from, to time.Time) ([]StatusCount, error)
	CountByStatuses(ctx context.Context, statuses ...model.OrderStatus) (int64, error)
	// since以降の注文数（全件）と売上（キャンセル除く）
	RevenueSince(ctx context.Context, since time.Time) (orders int64, revenue int64, err error)
	// 支払い済み・未キャンセルを期間ごとに
	RevenueByPeriod(ctx context.Context, period Period, since time.Time) ([]RevenuePoint, error)
	TopProducts(ctx context.Context, limit int, from, to time.Time) ([]TopProduct, error)
}
