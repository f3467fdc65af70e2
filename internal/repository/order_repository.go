package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type OrderListQuery struct {
	Page   int
	Limit  int
	Status model.OrderStatus
}

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	UserID        *int64
	From          *time.Time
	To            *time.Time
	//注文番号・氏名・電話番号の部分一致
	Search string
}

// ゲートウェイから確定した支払い情報
type PaymentResult struct {
	TransactionID string
	BankCode      string
	PayDate       string
	PaidAt        time.Time
}

type OrderRepository interface {
	// 注文・明細・最初の履歴をまとめて保存。注文番号重複はErrDuplicateOrderNumber
	Create(ctx context.Context, order *model.Order) error

	// 明細と履歴も読み込む
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByTxnRef(ctx context.Context, txnRef string) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, q OrderListQuery) ([]model.Order, int64, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	// statusがfromのままのときだけ、Transition後の状態と履歴1件を保存する。
	// 他の更新が先に入っていればErrConflict
	UpdateStatusIfCurrent(ctx context.Context, order *model.Order, from model.OrderStatus, entry model.OrderStatusHistory) error

	// 照合キーが未発行のときだけ書き込む。既にあればfalse
	AssignTxnRefIfEmpty(ctx context.Context, orderID int64, txnRef string) (bool, error)

	// payment_status=pendingのときだけpaidにする。既に処理済みならfalse
	MarkPaidIfPending(ctx context.Context, orderID int64, res PaymentResult) (bool, error)

	// 管理者による手動更新
	UpdatePayment(ctx context.Context, orderID int64, status model.PaymentStatus, details model.PaymentDetails) error
}
