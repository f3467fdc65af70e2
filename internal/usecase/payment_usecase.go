package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/payment/vnpay"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// vnpay.Clientが満たす
type PaymentGateway interface {
	PaymentURL(req vnpay.PaymentRequest) (string, error)
	Verify(values url.Values) error
}

type PaymentUsecase struct {
	orders  repo.OrderRepository
	gateway PaymentGateway
	feURL   string
	events  EventPublisher
	log     *logrus.Logger
	clock   Clock

	newTxnRef func() string
}

// gatewayがnilなら決済URLの発行は503になる
func NewPaymentUsecase(orders repo.OrderRepository, gateway PaymentGateway, feURL string, events EventPublisher, log *logrus.Logger) *PaymentUsecase {
	return &PaymentUsecase{
		orders:  orders,
		gateway: gateway,
		feURL:   strings.TrimRight(feURL, "/"),
		events:  events,
		log:     log,
		clock:   systemClock{},
		newTxnRef: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

type PaymentRedirect struct {
	URL string `json:"payment_url"`
	//支払い済みでゲートウェイを通さない
	AlreadyPaid bool `json:"already_paid"`
}

type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// フロントの結果ページ
func (u *PaymentUsecase) resultURL(success bool, code string) string {
	q := url.Values{}
	q.Set("success", strconv.FormatBool(success))
	if code != "" {
		q.Set("code", code)
	}
	return u.feURL + "/payment/result?" + q.Encode()
}

// 決済ページへのURLを作る。照合キーは注文ごとに1回だけ発行
func (u *PaymentUsecase) CreatePaymentURL(ctx context.Context, userID int64, orderID int64, clientIP string) (PaymentRedirect, error) {
	if userID <= 0 {
		return PaymentRedirect{}, UnauthorizedError()
	}
	if orderID <= 0 {
		return PaymentRedirect{}, ValidationError("invalid id")
	}
	if u.gateway == nil {
		return PaymentRedirect{}, ConfigurationError("VNPay is not configured")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return PaymentRedirect{}, NotFoundError("Order not found")
	}
	if err != nil {
		return PaymentRedirect{}, u.internal(err, "find order")
	}
	if o.UserID != userID {
		return PaymentRedirect{}, ForbiddenError("Not authorized to pay for this order")
	}
	if o.Status == model.OrderStatusCancelled {
		return PaymentRedirect{}, InvalidStateError("Order has been cancelled")
	}
	if o.IsPaid() {
		return PaymentRedirect{URL: u.resultURL(true, vnpay.RspSuccess), AlreadyPaid: true}, nil
	}
	if o.HasTxnRef() && o.PaymentStatus != model.PaymentStatusPending {
		return PaymentRedirect{}, InvalidStateError(fmt.Sprintf("Payment is %q and cannot be retried", o.PaymentStatus))
	}

	if !o.HasTxnRef() {
		ref := u.newTxnRef()
		assigned, err := u.orders.AssignTxnRefIfEmpty(ctx, o.ID, ref)
		if err != nil {
			return PaymentRedirect{}, u.internal(err, "assign txn ref")
		}
		if assigned {
			o.PaymentDetails.TxnRef = &ref
		} else {
			//同時リクエストが先に発行した
			if o, err = u.orders.FindByID(ctx, orderID); err != nil {
				return PaymentRedirect{}, u.internal(err, "reload order")
			}
			if !o.HasTxnRef() || o.PaymentStatus != model.PaymentStatusPending {
				return PaymentRedirect{}, InvalidStateError("Payment state changed, please retry")
			}
		}
	}

	payURL, err := u.gateway.PaymentURL(vnpay.PaymentRequest{
		TxnRef:    *o.PaymentDetails.TxnRef,
		OrderInfo: "Thanh toan don hang " + o.OrderNumber,
		Amount:    o.GatewayAmount(),
		IPAddr:    clientIP,
		Now:       u.clock.Now(),
	})
	if err != nil {
		return PaymentRedirect{}, u.internal(err, "build payment url")
	}
	return PaymentRedirect{URL: payURL}, nil
}

// ブラウザの戻り先。表示用なので注文は更新しない
func (u *PaymentUsecase) HandleReturn(ctx context.Context, values url.Values) string {
	if u.gateway == nil {
		return u.resultURL(false, vnpay.RspUnknownError)
	}
	if err := u.gateway.Verify(values); err != nil {
		u.log.WithField("txn_ref", values.Get("vnp_TxnRef")).Warn("vnpay return: invalid checksum")
		return u.resultURL(false, vnpay.RspInvalidChecksum)
	}
	cb, err := vnpay.ParseCallback(values)
	if err != nil {
		return u.resultURL(false, vnpay.RspUnknownError)
	}
	return u.resultURL(cb.Succeeded(), cb.ResponseCode)
}

// ゲートウェイからの通知。支払い確定はここだけで行う
func (u *PaymentUsecase) HandleIPN(ctx context.Context, values url.Values) (resp IPNResponse) {
	log := u.log.WithField("txn_ref", values.Get("vnp_TxnRef"))
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("vnpay ipn: panic")
			resp = IPNResponse{RspCode: vnpay.RspUnknownError, Message: "Unknown error"}
		}
	}()

	if u.gateway == nil {
		log.Error("vnpay ipn: gateway not configured")
		return IPNResponse{RspCode: vnpay.RspUnknownError, Message: "Unknown error"}
	}
	if err := u.gateway.Verify(values); err != nil {
		log.Warn("vnpay ipn: invalid checksum")
		return IPNResponse{RspCode: vnpay.RspInvalidChecksum, Message: "Invalid checksum"}
	}

	cb, err := vnpay.ParseCallback(values)
	if errors.Is(err, vnpay.ErrMissingTxnRef) {
		log.Warn("vnpay ipn: missing txn ref")
		return IPNResponse{RspCode: vnpay.RspOrderNotFound, Message: "Order not found"}
	}
	if err != nil {
		log.WithError(err).Warn("vnpay ipn: malformed amount")
		return IPNResponse{RspCode: vnpay.RspInvalidAmount, Message: "Invalid amount"}
	}

	//失敗通知は受領だけ返す
	if !cb.Succeeded() {
		log.WithField("response_code", cb.ResponseCode).Info("vnpay ipn: payment not successful")
		return IPNResponse{RspCode: vnpay.RspSuccess, Message: "Confirm Success"}
	}

	o, err := u.orders.FindByTxnRef(ctx, cb.TxnRef)
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn("vnpay ipn: order not found")
		return IPNResponse{RspCode: vnpay.RspOrderNotFound, Message: "Order not found"}
	}
	if err != nil {
		log.WithError(err).Error("vnpay ipn: find order")
		return IPNResponse{RspCode: vnpay.RspUnknownError, Message: "Unknown error"}
	}
	log = log.WithField("order_id", o.ID)

	if o.PaymentStatus != model.PaymentStatusPending {
		//failed/refundedの注文に成功通知が来た。管理者の確認が要る
		if o.PaymentStatus != model.PaymentStatusPaid {
			log.WithField("payment_status", o.PaymentStatus).Warn("vnpay ipn: success reported for settled order")
		}
		return IPNResponse{RspCode: vnpay.RspAlreadyConfirmed, Message: "Order already confirmed"}
	}
	if want := o.GatewayAmount(); cb.Amount != want {
		log.WithFields(logrus.Fields{"amount": cb.Amount, "expected": want}).Warn("vnpay ipn: amount mismatch")
		return IPNResponse{RspCode: vnpay.RspInvalidAmount, Message: "Invalid amount"}
	}

	paidAt := u.clock.Now()
	updated, err := u.orders.MarkPaidIfPending(ctx, o.ID, repo.PaymentResult{
		TransactionID: cb.TransactionNo,
		BankCode:      cb.BankCode,
		PayDate:       cb.PayDate,
		PaidAt:        paidAt,
	})
	if err != nil {
		log.WithError(err).Error("vnpay ipn: mark paid")
		return IPNResponse{RspCode: vnpay.RspUnknownError, Message: "Unknown error"}
	}
	//同時に届いた通知が先に確定させた
	if !updated {
		return IPNResponse{RspCode: vnpay.RspAlreadyConfirmed, Message: "Order already confirmed"}
	}

	log.Info("vnpay ipn: payment confirmed")
	publish(ctx, u.events, u.log, TopicPaymentProcessed, o.ID, PaymentProcessedEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		TxnRef:        cb.TxnRef,
		TransactionID: cb.TransactionNo,
		Amount:        o.TotalPrice,
		PaidAt:        paidAt,
	})
	return IPNResponse{RspCode: vnpay.RspSuccess, Message: "Confirm Success"}
}

func (u *PaymentUsecase) internal(err error, op string) error {
	u.log.WithError(err).WithField("op", op).Error("payment usecase failed")
	return InternalError()
}
