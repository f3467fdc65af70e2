package handler

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type ShippingAddressRequest struct {
	FullName string `json:"full_name" validate:"max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=30,phone"`
	Street   string `json:"street" validate:"max=255"`
	City     string `json:"city" validate:"max=255"`
	State    string `json:"state" validate:"max=255"`
	ZipCode  string `json:"zip_code" validate:"max=20"`
	Country  string `json:"country" validate:"max=100"`
}

func (r ShippingAddressRequest) toModel() model.ShippingAddress {
	return model.ShippingAddress{
		FullName: r.FullName,
		Phone:    r.Phone,
		Street:   r.Street,
		City:     r.City,
		State:    r.State,
		ZipCode:  r.ZipCode,
		Country:  r.Country,
	}
}

// shipping_addressが無ければaddress_id、それも無ければデフォルト住所
type OrderCreateRequest struct {
	ShippingAddress ShippingAddressRequest `json:"shipping_address"`
	AddressID       *int64                 `json:"address_id" validate:"omitempty,gte=1"`
	PaymentMethod   string                 `json:"payment_method" validate:"omitempty,oneof=cod bank_transfer credit_card momo zalopay vnpay"`
	Note            string                 `json:"note" validate:"max=500"`
}

type OrderCancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, g RouteGuards) {
	orders := e.Group("/orders", g.User...)

	orders.POST("", h.create)
	orders.GET("", h.list)
	orders.GET("/:id", h.detail)
	orders.PUT("/:id/cancel", h.cancel)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), userID, usecase.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress.toModel(),
		AddressID:       req.AddressID,
		PaymentMethod:   req.PaymentMethod,
		Note:            req.Note,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID, usecase.MyOrdersQuery{
		Status: c.QueryParam("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 管理者は他人の注文も見られる
func (h *OrderHandler) detail(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetOrderDetail(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	//bodyは省略可
	var req OrderCancelRequest
	if c.Request().ContentLength > 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return writeError(c, err)
		}
	}

	out, err := h.uc.CancelMyOrder(c.Request().Context(), userID, id, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
