package usecase

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressUsecase_CRUDAndOwnership(t *testing.T) {
	s := newMemStore()
	u := NewAddressUsecase(s.Addresses(), nullLogger())
	ctx := context.Background()

	in := AddressInput{FullName: "Nguyen Van A", Phone: "0901", Street: "1 Le Loi", City: "Hue"}
	a, err := u.Create(ctx, buyerID, in)
	require.NoError(t, err)
	assert.Equal(t, "Vietnam", a.Country)

	_, err = u.Create(ctx, buyerID, AddressInput{FullName: "No City", Phone: "1", Street: "s"})
	requireHTTPError(t, err, http.StatusBadRequest)

	//他人からは見えない
	err = u.Update(ctx, buyerID+1, a.ID, in)
	requireHTTPError(t, err, http.StatusNotFound)
	err = u.Delete(ctx, buyerID+1, a.ID)
	requireHTTPError(t, err, http.StatusNotFound)

	in.City = "Da Nang"
	require.NoError(t, u.Update(ctx, buyerID, a.ID, in))
	require.NoError(t, u.SetDefault(ctx, buyerID, a.ID))

	list, err := u.List(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Da Nang", list[0].City)
	assert.True(t, list[0].IsDefault)

	require.NoError(t, u.Delete(ctx, buyerID, a.ID))
	list, err = u.List(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
