package server

import (
	"net/http"

	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, g handler.RouteGuards, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})

	h.Auth.RegisterRoutes(e, g)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, g)
	h.Cart.RegisterRoutes(e, g)
	h.Order.RegisterRoutes(e, g)
	h.AdminOrder.RegisterRoutes(e, g)
	h.AdminUser.RegisterRoutes(e, g)
	h.Address.RegisterRoutes(e, g)
	h.Payment.RegisterRoutes(e, g)
}
