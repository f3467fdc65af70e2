package handler

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// ルート登録時に付けるミドルウェア
type RouteGuards struct {
	//JWT必須 + token_version一致
	User []echo.MiddlewareFunc
	//上に加えてADMIN限定
	Admin []echo.MiddlewareFunc
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Code: he.Code})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: usecase.CodeInternal})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: usecase.CodeValidation})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
}

// bind + validate
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return usecase.ValidationError("invalid body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func actorFromContext(c echo.Context) (usecase.Actor, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return usecase.Actor{}, false
	}
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return usecase.Actor{UserID: id, Role: model.Role(role)}, true
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 空ならdef
func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, usecase.ValidationError("invalid " + name)
	}
	return n, nil
}

func queryInt64Ptr(c echo.Context, name string) (*int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, usecase.ValidationError("invalid " + name)
	}
	return &n, nil
}

// RFC3339 か YYYY-MM-DD。日付だけのtoはその日の終わりまで
func queryTime(c echo.Context, name string, endOfDay bool) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, usecase.ValidationError("invalid " + name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
