package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 強制ログアウトと監査ログ閲覧
type AdminUserHandler struct {
	auth   *usecase.AuthUsecase
	audits *usecase.AuditLogUsecase
}

func NewAdminUserHandler(auth *usecase.AuthUsecase, audits *usecase.AuditLogUsecase) *AdminUserHandler {
	return &AdminUserHandler{auth: auth, audits: audits}
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo, g RouteGuards) {
	// /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group("/admin", g.Admin...)

	admin.POST("/users/:id/force-logout", h.forceLogout)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminUserHandler) forceLogout(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	res, err := h.auth.ForceLogout(c.Request().Context(), adminID, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AdminUserHandler) auditLogs(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return writeError(c, err)
	}
	actor, err := queryInt64Ptr(c, "actor_user_id")
	if err != nil {
		return writeError(c, err)
	}
	resourceID, err := queryInt64Ptr(c, "resource_id")
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

	out, err := h.audits.List(c.Request().Context(), usecase.AuditLogQuery{
		ActorUserID:  actor,
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   resourceID,
		From:         from,
		To:           to,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
