package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AddressHandler struct {
	uc *usecase.AddressUsecase
}

func NewAddressHandler(uc *usecase.AddressUsecase) *AddressHandler {
	return &AddressHandler{uc: uc}
}

type AddressRequest struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"required,max=30,phone"`
	Street   string `json:"street" validate:"required,max=255"`
	City     string `json:"city" validate:"required,max=255"`
	State    string `json:"state" validate:"max=255"`
	ZipCode  string `json:"zip_code" validate:"max=20"`
	Country  string `json:"country" validate:"max=100"`
}

func (r AddressRequest) input() usecase.AddressInput {
	return usecase.AddressInput{
		FullName: r.FullName,
		Phone:    r.Phone,
		Street:   r.Street,
		City:     r.City,
		State:    r.State,
		ZipCode:  r.ZipCode,
		Country:  r.Country,
	}
}

func (h *AddressHandler) RegisterRoutes(e *echo.Echo, g RouteGuards) {
	a := e.Group("/addresses", g.User...)

	a.GET("", h.list)
	a.POST("", h.create)
	a.PATCH("/:id", h.update)
	a.DELETE("/:id", h.delete)
	a.POST("/:id/default", h.setDefault)
}

func (h *AddressHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	list, err := h.uc.List(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AddressHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddressRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	created, err := h.uc.Create(c.Request().Context(), userID, req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *AddressHandler) update(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req AddressRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	if err := h.uc.Update(c.Request().Context(), userID, id, req.input()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AddressHandler) delete(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.Delete(c.Request().Context(), userID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AddressHandler) setDefault(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.SetDefault(c.Request().Context(), userID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "default updated"})
}
