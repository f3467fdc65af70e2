package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func contextWithQuery(q string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/?"+q, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestQueryTime(t *testing.T) {
	c := contextWithQuery("from=2026-03-01&to=2026-03-09&at=2026-03-09T10:00:00Z&bad=03/09")

	from, err := queryTime(c, "from", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *from)

	//日付だけのtoはその日の最後まで含める
	to, err := queryTime(c, "to", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 23, 59, 59, 999999999, time.UTC), *to)

	at, err := queryTime(c, "at", true)
	require.NoError(t, err)
	assert.Equal(t, 10, at.Hour())

	missing, err := queryTime(c, "none", false)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = queryTime(c, "bad", false)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}

func TestQueryInt(t *testing.T) {
	c := contextWithQuery("page=3&limit=abc")

	page, err := queryInt(c, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	def, err := queryInt(c, "missing", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, def)

	_, err = queryInt(c, "limit", 20)
	assert.Error(t, err)
}

func TestRevenueWorkbook(t *testing.T) {
	file, err := revenueWorkbook(usecase.RevenueOutput{
		Period:       repository.PeriodDaily,
		Days:         2,
		TotalRevenue: 300000,
		TotalOrders:  3,
		Data: []repository.RevenuePoint{
			{Period: "2026-03-08", Revenue: 100000, Orders: 1},
			{Period: "2026-03-09", Revenue: 200000, Orders: 2},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))

	//書き出したものを読み戻して確認
	read, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet := read.Sheet["Revenue"]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "Period", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "2026-03-09", sheet.Rows[2].Cells[0].String())
	assert.Equal(t, "200000", sheet.Rows[2].Cells[2].String())
	assert.Equal(t, "Total", sheet.Rows[3].Cells[0].String())
	assert.Equal(t, "300000", sheet.Rows[3].Cells[2].String())
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, writeError(c, assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error","code":"internal_error"}`, rec.Body.String())
}
