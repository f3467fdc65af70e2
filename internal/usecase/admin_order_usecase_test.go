package usecase

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const adminID int64 = 1

func newAdminOrderUsecaseForTest(s *memStore, pub EventPublisher) *AdminOrderUsecase {
	u := NewAdminOrderUsecase(s, s.Orders(), pub, nullLogger())
	u.clock = fixedClock{t: testNow}
	return u
}

func TestAdminUpdateStatus_RejectsSkippingSteps(t *testing.T) {
	s := newMemStore()
	o, _, _ := placeTwoItemOrder(t, s)

	_, err := newAdminOrderUsecaseForTest(s, nil).UpdateStatus(context.Background(), adminID, o.ID, AdminUpdateOrderStatusInput{Status: "shipped"})
	he := requireHTTPError(t, err, http.StatusConflict)
	assert.Equal(t, CodeInvalidState, he.Code)

	stored := s.order(o.ID)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
	assert.Len(t, stored.StatusHistory, 1)
	assert.Empty(t, s.audits)
}

func TestAdminUpdateStatus_WalksToDeliveredAndSettlesCOD(t *testing.T) {
	s := newMemStore()
	o, _, _ := placeTwoItemOrder(t, s)

	pub := new(PublisherMock)
	pub.On("Publish", mock.Anything, TopicOrderStatusUpdated, o.ID, mock.AnythingOfType("OrderStatusUpdatedEvent")).Return(nil).Times(4)

	u := newAdminOrderUsecaseForTest(s, pub)
	for _, st := range []string{"confirmed", "processing", "shipped", "delivered"} {
		_, err := u.UpdateStatus(context.Background(), adminID, o.ID, AdminUpdateOrderStatusInput{Status: st})
		require.NoError(t, err, st)
	}

	stored := s.order(o.ID)
	assert.Equal(t, model.OrderStatusDelivered, stored.Status)
	assert.NotNil(t, stored.DeliveredAt)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
	require.Len(t, stored.StatusHistory, 5)
	for _, h := range stored.StatusHistory[1:] {
		require.NotNil(t, h.UpdatedBy)
		assert.Equal(t, adminID, *h.UpdatedBy)
	}
	assert.Len(t, s.audits, 4)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, s.audits[0].Action)
	pub.AssertExpectations(t)
}

func TestAdminUpdateStatus_CancelRestoresStock(t *testing.T) {
	s := newMemStore()
	o, a, b := placeTwoItemOrder(t, s)
	u := newAdminOrderUsecaseForTest(s, nil)

	_, err := u.UpdateStatus(context.Background(), adminID, o.ID, AdminUpdateOrderStatusInput{Status: "processing"})
	requireHTTPError(t, err, http.StatusConflict)

	got, err := u.UpdateStatus(context.Background(), adminID, o.ID, AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, model.CancelReasonByAdmin, got.CancelReason)
	assert.Equal(t, int64(10), s.product(a.ID).Stock)
	assert.Equal(t, int64(6), s.product(b.ID).Stock)

	//終端からは動かない
	_, err = u.UpdateStatus(context.Background(), adminID, o.ID, AdminUpdateOrderStatusInput{Status: "confirmed"})
	requireHTTPError(t, err, http.StatusConflict)
	assert.Equal(t, int64(10), s.product(a.ID).Stock)
}

func TestAdminUpdateStatus_StaleReadLosesAndRollsBack(t *testing.T) {
	s := newMemStore()
	o, a, _ := placeTwoItemOrder(t, s)
	h := staleOrderStore(s, o.ID, model.OrderStatusConfirmed)

	pub := new(PublisherMock)
	u := NewAdminOrderUsecase(h, h.Orders(), pub, nullLogger())
	u.clock = fixedClock{t: testNow}

	_, err := u.UpdateStatus(context.Background(), adminID, o.ID, AdminUpdateOrderStatusInput{Status: "cancelled"})
	requireHTTPError(t, err, http.StatusConflict)

	assert.Equal(t, int64(7), s.product(a.ID).Stock)
	assert.Equal(t, model.OrderStatusConfirmed, s.order(o.ID).Status)
	assert.Empty(t, s.audits)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminUpdateStatus_Validation(t *testing.T) {
	u := newAdminOrderUsecaseForTest(newMemStore(), nil)

	_, err := u.UpdateStatus(context.Background(), adminID, 1, AdminUpdateOrderStatusInput{Status: "lost"})
	requireHTTPError(t, err, http.StatusBadRequest)

	_, err = u.UpdateStatus(context.Background(), adminID, 404, AdminUpdateOrderStatusInput{Status: "confirmed"})
	requireHTTPError(t, err, http.StatusNotFound)
}

func TestAdminUpdatePaymentStatus_ManualPaid(t *testing.T) {
	s := newMemStore()
	o, _, _ := placeTwoItemOrder(t, s)

	got, err := newAdminOrderUsecaseForTest(s, nil).UpdatePaymentStatus(context.Background(), adminID, o.ID, AdminUpdatePaymentInput{PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, ManualTransactionID, got.PaymentDetails.TransactionID)
	require.NotNil(t, got.PaymentDetails.PaidAt)
	assert.Equal(t, testNow, *got.PaymentDetails.PaidAt)

	stored := s.order(o.ID)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
	require.Len(t, s.audits, 1)
	assert.Equal(t, model.AuditActionUpdatePaymentStatus, s.audits[0].Action)
	assert.JSONEq(t, `{"payment_status":"pending"}`, s.audits[0].BeforeJSON)
}

func TestAdminList_Validation(t *testing.T) {
	u := newAdminOrderUsecaseForTest(newMemStore(), nil)

	_, err := u.List(context.Background(), AdminOrderListInput{Page: 1, Limit: 101})
	requireHTTPError(t, err, http.StatusBadRequest)

	_, err = u.List(context.Background(), AdminOrderListInput{Page: 1, Limit: 20, PaymentStatus: "unknown"})
	requireHTTPError(t, err, http.StatusBadRequest)

	from, to := testNow, testNow.AddDate(0, 0, -1)
	_, err = u.List(context.Background(), AdminOrderListInput{Page: 1, Limit: 20, From: &from, To: &to})
	requireHTTPError(t, err, http.StatusBadRequest)
}
