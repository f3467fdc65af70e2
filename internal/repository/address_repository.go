package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 保存済み配送先を保存・取得する窓口
type AddressRepository interface {
	//作成後はaddress（IDなどが埋まったもの）を返す
	Create(ctx context.Context, address model.Address) (model.Address, error)

	//デフォルトが先頭
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	//ユーザーのデフォルト住所。無ければErrNotFound
	FindDefault(ctx context.Context, userID int64) (model.Address, error)

	Update(ctx context.Context, address model.Address) error

	Delete(ctx context.Context, addressID int64) error

	//ユーザー内でdefaultは1つ
	SetDefault(ctx context.Context, userID, addressID int64) error
}
