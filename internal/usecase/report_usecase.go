package usecase

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	defaultStatsDays   = 30
	maxRevenueDays     = 3650
	defaultTopProducts = 10
	maxTopProducts     = 100
)

// 管理画面の集計。結果はキャッシュし、同じキーの同時集計は1回にまとめる
type ReportUsecase struct {
	reports repo.ReportRepository
	cache   ReportCache
	ttl     time.Duration
	log     *logrus.Logger
	clock   Clock
	sf      singleflight.Group
}

func NewReportUsecase(reports repo.ReportRepository, cache ReportCache, ttl time.Duration, log *logrus.Logger) *ReportUsecase {
	return &ReportUsecase{reports: reports, cache: cache, ttl: ttl, log: log, clock: systemClock{}}
}

type StatsOutput struct {
	Summary          repo.OrderSummary   `json:"summary"`
	StatusCounts     []repo.StatusCount  `json:"status_counts"`
	Revenue          []repo.RevenuePoint `json:"revenue"`
	PendingOrders    int64               `json:"pending_orders"`
	ProcessingOrders int64               `json:"processing_orders"`
	TodayOrders      int64               `json:"today_orders"`
	TodayRevenue     int64               `json:"today_revenue"`
	From             time.Time           `json:"from"`
	To               time.Time           `json:"to"`
}

type RevenueOutput struct {
	Period            repo.Period         `json:"period"`
	Days              int                 `json:"days"`
	TotalRevenue      int64               `json:"total_revenue"`
	TotalOrders       int64               `json:"total_orders"`
	AverageOrderValue float64             `json:"average_order_value"`
	Data              []repo.RevenuePoint `json:"data"`
}

type TopProductsOutput struct {
	Items []repo.TopProduct `json:"items"`
	From  time.Time         `json:"from"`
	To    time.Time         `json:"to"`
}

// from/toが無ければ直近30日。既定の終端はキャッシュ単位に切り上げる
func (u *ReportUsecase) dateRange(from, to *time.Time) (time.Time, time.Time, error) {
	end := u.defaultEnd(u.clock.Now())
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -defaultStatsDays)
	if from != nil {
		start = *from
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ValidationError("from must be before to")
	}
	return start, end, nil
}

// 同じ区間内なら同じキャッシュキーになる
func (u *ReportUsecase) defaultEnd(now time.Time) time.Time {
	bucket := max(u.ttl, time.Minute)
	if t := now.Truncate(bucket); !t.Equal(now) {
		return t.Add(bucket)
	}
	return now
}

func (u *ReportUsecase) Stats(ctx context.Context, from, to *time.Time) (StatsOutput, error) {
	start, end, err := u.dateRange(from, to)
	if err != nil {
		return StatsOutput{}, err
	}
	key := fmt.Sprintf("stats:%d:%d", start.Unix(), end.Unix())

	var out StatsOutput
	err = u.cached(ctx, key, &out, func() (any, error) {
		return u.buildStats(ctx, start, end)
	})
	return out, err
}

func (u *ReportUsecase) buildStats(ctx context.Context, start, end time.Time) (StatsOutput, error) {
	out := StatsOutput{From: start, To: end}
	var err error

	if out.Summary, err = u.reports.OrderSummary(ctx, start, end); err != nil {
		return StatsOutput{}, err
	}
	if out.StatusCounts, err = u.reports.StatusCounts(ctx, start, end); err != nil {
		return StatsOutput{}, err
	}
	now := u.clock.Now()
	if out.Revenue, err = u.reports.RevenueByPeriod(ctx, repo.PeriodDaily, now.AddDate(0, 0, -defaultStatsDays)); err != nil {
		return StatsOutput{}, err
	}
	if out.PendingOrders, err = u.reports.CountByStatuses(ctx, model.OrderStatusPending); err != nil {
		return StatsOutput{}, err
	}
	if out.ProcessingOrders, err = u.reports.CountByStatuses(ctx,
		model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped); err != nil {
		return StatsOutput{}, err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if out.TodayOrders, out.TodayRevenue, err = u.reports.RevenueSince(ctx, today); err != nil {
		return StatsOutput{}, err
	}
	if out.StatusCounts == nil {
		out.StatusCounts = []repo.StatusCount{}
	}
	if out.Revenue == nil {
		out.Revenue = []repo.RevenuePoint{}
	}
	return out, nil
}

func (u *ReportUsecase) Revenue(ctx context.Context, period string, days int) (RevenueOutput, error) {
	p := repo.Period(period)
	if p == "" {
		p = repo.PeriodDaily
	}
	switch p {
	case repo.PeriodDaily, repo.PeriodMonthly, repo.PeriodYearly:
	default:
		return RevenueOutput{}, ValidationError("period must be daily, monthly or yearly")
	}
	if days == 0 {
		days = defaultStatsDays
	}
	if days < 1 || days > maxRevenueDays {
		return RevenueOutput{}, ValidationError("invalid days")
	}

	key := fmt.Sprintf("revenue:%s:%d", p, days)
	var out RevenueOutput
	err := u.cached(ctx, key, &out, func() (any, error) {
		since := u.clock.Now().AddDate(0, 0, -days)
		points, err := u.reports.RevenueByPeriod(ctx, p, since)
		if err != nil {
			return nil, err
		}
		res := RevenueOutput{Period: p, Days: days, Data: points}
		if res.Data == nil {
			res.Data = []repo.RevenuePoint{}
		}
		for _, pt := range points {
			res.TotalRevenue += pt.Revenue
			res.TotalOrders += pt.Orders
		}
		if res.TotalOrders > 0 {
			res.AverageOrderValue = float64(res.TotalRevenue) / float64(res.TotalOrders)
		}
		return res, nil
	})
	return out, err
}

func (u *ReportUsecase) TopProducts(ctx context.Context, limit int, from, to *time.Time) (TopProductsOutput, error) {
	if limit == 0 {
		limit = defaultTopProducts
	}
	if limit < 1 || limit > maxTopProducts {
		return TopProductsOutput{}, ValidationError("invalid limit")
	}
	start, end, err := u.dateRange(from, to)
	if err != nil {
		return TopProductsOutput{}, err
	}

	key := fmt.Sprintf("top:%d:%d:%d", limit, start.Unix(), end.Unix())
	var out TopProductsOutput
	err = u.cached(ctx, key, &out, func() (any, error) {
		items, err := u.reports.TopProducts(ctx, limit, start, end)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []repo.TopProduct{}
		}
		return TopProductsOutput{Items: items, From: start, To: end}, nil
	})
	return out, err
}

// キャッシュ→singleflight→DB。キャッシュの失敗は無視して集計する
func (u *ReportUsecase) cached(ctx context.Context, key string, dst any, load func() (any, error)) error {
	if found, err := u.cache.Get(ctx, key, dst); err != nil {
		u.log.WithError(err).WithField("key", key).Warn("report cache get failed")
	} else if found {
		return nil
	}

	v, err, _ := u.sf.Do(key, func() (any, error) {
		res, err := load()
		if err != nil {
			return nil, err
		}
		if err := u.cache.Set(ctx, key, res, u.ttl); err != nil {
			u.log.WithError(err).WithField("key", key).Warn("report cache set failed")
		}
		return res, nil
	})
	if err != nil {
		u.log.WithError(err).WithField("key", key).Error("report query failed")
		return InternalError()
	}
	return assign(dst, v)
}

// singleflightの結果を呼び出し側の型に入れる
func assign(dst any, v any) error {
	switch d := dst.(type) {
	case *StatsOutput:
		*d = v.(StatsOutput)
	case *RevenueOutput:
		*d = v.(RevenueOutput)
	case *TopProductsOutput:
		*d = v.(TopProductsOutput)
	default:
		return InternalError()
	}
	return nil
}
