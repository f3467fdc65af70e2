package usecase

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductUsecaseForTest(s *memStore) *ProductUsecase {
	u := NewProductUsecase(s, s.Products(), nullLogger())
	u.clock = fixedClock{t: testNow}
	return u
}

func TestListPublicProducts_Validation(t *testing.T) {
	u := newProductUsecaseForTest(newMemStore())
	minP, maxP := int64(500), int64(100)

	cases := []struct {
		name string
		in   ListProductsInput
	}{
		{name: "page 0", in: ListProductsInput{Page: 0, Limit: 10}},
		{name: "limit超過", in: ListProductsInput{Page: 1, Limit: 101}},
		{name: "min>max", in: ListProductsInput{Page: 1, Limit: 10, MinPrice: &minP, MaxPrice: &maxP}},
		{name: "不明なsort", in: ListProductsInput{Page: 1, Limit: 10, Sort: "random"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := u.ListPublicProducts(context.Background(), tc.in)
			requireHTTPError(t, err, http.StatusBadRequest)
		})
	}
}

func TestGetProductDetail_HidesInactive(t *testing.T) {
	s := newMemStore()
	p := s.addProduct(model.Product{Name: "H", Price: 1, IsActive: false})
	_, err := newProductUsecaseForTest(s).GetProductDetail(context.Background(), p.ID)
	requireHTTPError(t, err, http.StatusNotFound)
}

func TestAdminUpdateProduct_DoesNotTouchStock(t *testing.T) {
	s := newMemStore()
	u := newProductUsecaseForTest(s)
	p, err := u.AdminCreateProduct(context.Background(), adminID, AdminProductInput{Name: " A ", Price: 1000, Stock: 5, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "A", p.Name)

	err = u.AdminUpdateProduct(context.Background(), adminID, p.ID, AdminProductInput{Name: "A2", Price: 2000, Stock: 99, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.product(p.ID).Stock)
	assert.Equal(t, int64(2000), s.product(p.ID).Price)
}

func TestAdminUpdateInventory_RecordsAdjustmentAndAudit(t *testing.T) {
	s := newMemStore()
	p := s.addProduct(model.Product{Name: "A", Price: 1000, Stock: 5, IsActive: true})

	got, err := newProductUsecaseForTest(s).AdminUpdateInventory(context.Background(), adminID, p.ID, 12, " restock ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Stock)
	assert.Equal(t, int64(12), s.product(p.ID).Stock)

	require.Len(t, s.adjustments, 1)
	assert.Equal(t, int64(7), s.adjustments[0].Delta)
	assert.Equal(t, "restock", s.adjustments[0].Reason)

	require.Len(t, s.audits, 1)
	assert.Equal(t, model.AuditActionUpdateStock, s.audits[0].Action)
	assert.JSONEq(t, `{"stock":5}`, s.audits[0].BeforeJSON)
	assert.JSONEq(t, `{"stock":12}`, s.audits[0].AfterJSON)
}

func TestAdminUpdateInventory_Rejections(t *testing.T) {
	s := newMemStore()
	u := newProductUsecaseForTest(s)

	_, err := u.AdminUpdateInventory(context.Background(), adminID, 404, 1, "x")
	requireHTTPError(t, err, http.StatusNotFound)

	_, err = u.AdminUpdateInventory(context.Background(), adminID, 1, -1, "x")
	requireHTTPError(t, err, http.StatusBadRequest)

	_, err = u.AdminUpdateInventory(context.Background(), adminID, 1, 1, " ")
	requireHTTPError(t, err, http.StatusBadRequest)
	assert.Empty(t, s.audits)
}
