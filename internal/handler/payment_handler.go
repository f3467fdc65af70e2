package handler

import (
	"net/http"

	"storefront/internal/payment/vnpay"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// VNPayの決済開始とコールバック
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// return/ipnはゲートウェイから呼ばれるのでJWTなし（署名で検証）
func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, g RouteGuards) {
	p := e.Group("/payments/vnpay")

	p.POST("/orders/:id", h.create, g.User...)
	p.GET("/return", h.handleReturn)
	p.GET("/ipn", h.ipn)
}

// 既定は302。?format=json ならURLを返す（SPA用）
func (h *PaymentHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.CreatePaymentURL(c.Request().Context(), userID, orderID, vnpay.NormalizeIP(c.RealIP()))
	if err != nil {
		return writeError(c, err)
	}

	if c.QueryParam("format") == "json" {
		return c.JSON(http.StatusOK, out)
	}
	return c.Redirect(http.StatusFound, out.URL)
}

func (h *PaymentHandler) handleReturn(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.uc.HandleReturn(c.Request().Context(), c.QueryParams()))
}

// ゲートウェイには常に200で返す
func (h *PaymentHandler) ipn(c echo.Context) error {
	return c.JSON(http.StatusOK, h.uc.HandleIPN(c.Request().Context(), c.QueryParams()))
}
