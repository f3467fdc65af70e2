package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type OrderNumberGenerator interface {
	Next(now time.Time) string
}

type randomOrderNumbers struct{}

func (randomOrderNumbers) Next(now time.Time) string {
	return model.NewOrderNumber(now, nil)
}

// 注文イベントの送信先（Kafkaなど）。失敗してもリクエストは失敗させない
type EventPublisher interface {
	Publish(ctx context.Context, topic string, orderID int64, payload any) error
}

// レポート用キャッシュ
type ReportCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// 操作しているユーザー
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}
