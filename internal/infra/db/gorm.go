package db

import (
	"storefront/internal/domain/model"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// ユニーク制約違反は gorm.ErrDuplicatedKey に変換される
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return gdb, nil
}

// テーブル作成・更新
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.InventoryAdjustment{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusHistory{},
		&model.AuditLog{},
	)
	return errors.Wrap(err, "auto migrate")
}
