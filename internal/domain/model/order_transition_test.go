package model_test

import (
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func newPendingOrder(t *testing.T, method model.PaymentMethod) *model.Order {
	t.Helper()
	o, err := model.NewOrder(model.NewOrderParams{
		UserID: 7,
		Items: []model.OrderItem{
			{ProductID: 1, ProductNameSnapshot: "Tea", UnitPriceSnapshot: 100000, Quantity: 2},
			{ProductID: 2, ProductNameSnapshot: "Cup", UnitPriceSnapshot: 250000, Quantity: 1},
		},
		ShippingAddress: model.ShippingAddress{FullName: "A", Phone: "090", Street: "1 St", City: "HCM"},
		PaymentMethod:   method,
		Pricing:         model.DefaultPricing(),
		Now:             fixedNow,
	})
	require.NoError(t, err)
	return o
}

func assertHistoryInvariant(t *testing.T, o *model.Order) {
	t.Helper()
	last, ok := o.LastHistory()
	require.True(t, ok)
	assert.Equal(t, o.Status, last.Status)
	assert.Equal(t, o.ItemsPrice+o.TaxPrice+o.ShippingPrice, o.TotalPrice)
}

func TestNewOrder_StartsPendingWithHistory(t *testing.T) {
	o := newPendingOrder(t, "")

	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, model.PaymentMethodCOD, o.PaymentMethod)
	assert.Equal(t, "Vietnam", o.ShippingAddress.Country)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, model.NoteOrderPlaced, o.StatusHistory[0].Note)
	assert.Equal(t, int64(525000), o.TotalPrice)
	assertHistoryInvariant(t, o)
}

func TestNewOrder_Rejects(t *testing.T) {
	_, err := model.NewOrder(model.NewOrderParams{Now: fixedNow})
	assert.ErrorIs(t, err, model.ErrEmptyOrder)

	_, err = model.NewOrder(model.NewOrderParams{
		Items: []model.OrderItem{{UnitPriceSnapshot: 1, Quantity: 0}},
		Now:   fixedNow,
	})
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	_, err = model.NewOrder(model.NewOrderParams{
		Items: []model.OrderItem{{UnitPriceSnapshot: 1, Quantity: 1}},
		Note:  strings.Repeat("a", 501),
		Now:   fixedNow,
	})
	assert.ErrorIs(t, err, model.ErrNoteTooLong)
}

func TestTransition_Table(t *testing.T) {
	cases := []struct {
		from model.OrderStatus
		to   model.OrderStatus
		ok   bool
	}{
		{model.OrderStatusPending, model.OrderStatusConfirmed, true},
		{model.OrderStatusPending, model.OrderStatusCancelled, true},
		{model.OrderStatusPending, model.OrderStatusShipped, false},
		{model.OrderStatusPending, model.OrderStatusPending, false},
		{model.OrderStatusConfirmed, model.OrderStatusProcessing, true},
		{model.OrderStatusConfirmed, model.OrderStatusCancelled, true},
		{model.OrderStatusProcessing, model.OrderStatusShipped, true},
		{model.OrderStatusProcessing, model.OrderStatusCancelled, true},
		{model.OrderStatusShipped, model.OrderStatusDelivered, true},
		{model.OrderStatusShipped, model.OrderStatusCancelled, false},
		{model.OrderStatusDelivered, model.OrderStatusCancelled, false},
		{model.OrderStatusCancelled, model.OrderStatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, model.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransition_PendingToShipped_LeavesOrderUnchanged(t *testing.T) {
	o := newPendingOrder(t, model.PaymentMethodCOD)

	_, err := o.Transition(model.OrderStatusShipped, "", nil, fixedNow)

	var te *model.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, model.OrderStatusPending, te.From)
	assert.Equal(t, model.OrderStatusShipped, te.To)
	assert.Contains(t, err.Error(), `"pending"`)
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Len(t, o.StatusHistory, 1)
}

func TestTransition_AppendsHistoryWithActor(t *testing.T) {
	o := newPendingOrder(t, model.PaymentMethodVNPay)
	admin := int64(99)

	h, err := o.Transition(model.OrderStatusConfirmed, "checked", &admin, fixedNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusConfirmed, h.Status)
	assert.Equal(t, "checked", h.Note)
	require.NotNil(t, h.UpdatedBy)
	assert.Equal(t, admin, *h.UpdatedBy)
	assert.Len(t, o.StatusHistory, 2)
	assertHistoryInvariant(t, o)
}

func TestTransition_DeliveredCOD_SettlesPayment(t *testing.T) {
	o := newPendingOrder(t, model.PaymentMethodCOD)
	for _, s := range []model.OrderStatus{
		model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered,
	} {
		_, err := o.Transition(s, "", nil, fixedNow)
		require.NoError(t, err)
	}

	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
	require.NotNil(t, o.PaymentDetails.PaidAt)
	assert.Nil(t, o.CancelledAt)
	assert.Len(t, o.StatusHistory, 5)
	assertHistoryInvariant(t, o)
}

func TestTransition_DeliveredNonCOD_KeepsPaymentStatus(t *testing.T) {
	o := newPendingOrder(t, model.PaymentMethodBankTransfer)
	for _, s := range []model.OrderStatus{
		model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered,
	} {
		_, err := o.Transition(s, "", nil, fixedNow)
		require.NoError(t, err)
	}

	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
	assert.Nil(t, o.PaymentDetails.PaidAt)
}

func TestTransition_Cancelled_SetsReasonAndTime(t *testing.T) {
	o := newPendingOrder(t, model.PaymentMethodCOD)

	_, err := o.Transition(model.OrderStatusCancelled, model.CancelReasonByCustomer, nil, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, model.CancelReasonByCustomer, o.CancelReason)
	require.NotNil(t, o.CancelledAt)
	assert.True(t, o.CancelledAt.Equal(fixedNow))
	assertHistoryInvariant(t, o)

	//終端
	_, err = o.Transition(model.OrderStatusConfirmed, "", nil, fixedNow)
	assert.Error(t, err)
}

func TestCanCustomerCancel(t *testing.T) {
	assert.True(t, model.CanCustomerCancel(model.OrderStatusPending))
	assert.True(t, model.CanCustomerCancel(model.OrderStatusConfirmed))
	assert.False(t, model.CanCustomerCancel(model.OrderStatusProcessing))
	assert.False(t, model.CanCustomerCancel(model.OrderStatusShipped))
}

func TestNewOrderNumber_Format(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	n := model.NewOrderNumber(fixedNow, rnd)

	assert.Regexp(t, regexp.MustCompile(`^ORD-260309-[0-9A-Z]{6}$`), n)
	assert.NotEqual(t, n, model.NewOrderNumber(fixedNow, rnd))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := model.ParsePaymentMethod("")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentMethodCOD, m)

	m, err = model.ParsePaymentMethod("vnpay")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentMethodVNPay, m)

	_, err = model.ParsePaymentMethod("cash")
	assert.ErrorIs(t, err, model.ErrUnknownPaymentMethod)
}
