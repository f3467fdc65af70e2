package handler

import (
	"fmt"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/tealeg/xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminOrderHandler struct {
	uc      *usecase.AdminOrderUsecase
	reports *usecase.ReportUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase, reports *usecase.ReportUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc, reports: reports}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	Note   string `json:"note" validate:"max=500"`
}

type PaymentStatusUpdateRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid failed refunded"`
	TransactionID string `json:"transaction_id" validate:"max=100"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, g RouteGuards) {
	admin := e.Group("/admin", g.Admin...)

	admin.GET("/orders", h.list)
	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.PUT("/orders/:id/payment", h.updatePayment)
	admin.GET("/orders/stats", h.stats)
	admin.GET("/orders/revenue", h.revenue)
	admin.GET("/orders/revenue.xlsx", h.revenueXLSX)
	admin.GET("/orders/top-products", h.topProducts)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return writeError(c, err)
	}
	userID, err := queryInt64Ptr(c, "user_id")
	if err != nil {
		return writeError(c, err)
	}
	from, err := queryTime(c, "from", false)
	if err != nil {
		return writeError(c, err)
	}
	to, err := queryTime(c, "to", true)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.List(c.Request().Context(), usecase.AdminOrderListInput{
		Page:          page,
		Limit:         limit,
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		UserID:        userID,
		From:          from,
		To:            to,
		Search:        c.QueryParam("search"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	// 操作した管理者ID（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateStatus(c.Request().Context(), adminID, orderID, usecase.AdminUpdateOrderStatusInput{
		Status: req.Status,
		Note:   req.Note,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updatePayment(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req PaymentStatusUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdatePaymentStatus(c.Request().Context(), adminID, orderID, usecase.AdminUpdatePaymentInput{
		PaymentStatus: req.PaymentStatus,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) stats(c echo.Context) error {
	from, err := queryTime(c, "from", false)
	if err != nil {
		return writeError(c, err)
	}
	to, err := queryTime(c, "to", true)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.reports.Stats(c.Request().Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) loadRevenue(c echo.Context) (usecase.RevenueOutput, error) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		return usecase.RevenueOutput{}, err
	}
	return h.reports.Revenue(c.Request().Context(), c.QueryParam("period"), days)
}

func (h *AdminOrderHandler) revenue(c echo.Context) error {
	out, err := h.loadRevenue(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 売上をExcelでダウンロード
func (h *AdminOrderHandler) revenueXLSX(c echo.Context) error {
	out, err := h.loadRevenue(c)
	if err != nil {
		return writeError(c, err)
	}

	file, err := revenueWorkbook(out)
	if err != nil {
		c.Logger().Error(err)
		return writeError(c, usecase.InternalError())
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, xlsxContentType)
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=revenue-%s-%dd.xlsx", out.Period, out.Days))
	res.WriteHeader(http.StatusOK)
	return file.Write(res)
}

func revenueWorkbook(out usecase.RevenueOutput) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Revenue")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range []string{"Period", "Orders", "Revenue"} {
		header.AddCell().SetString(h)
	}
	for _, p := range out.Data {
		row := sheet.AddRow()
		row.AddCell().SetString(p.Period)
		row.AddCell().SetInt64(p.Orders)
		row.AddCell().SetInt64(p.Revenue)
	}

	//合計行
	total := sheet.AddRow()
	total.AddCell().SetString("Total")
	total.AddCell().SetInt64(out.TotalOrders)
	total.AddCell().SetInt64(out.TotalRevenue)
	return file, nil
}

func (h *AdminOrderHandler) topProducts(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return writeError(c, err)
	}
	from, err := queryTime(c, "from", false)
	if err != nil {
		return writeError(c, err)
	}
	to, err := queryTime(c, "to", true)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.reports.TopProducts(c.Request().Context(), limit, from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
