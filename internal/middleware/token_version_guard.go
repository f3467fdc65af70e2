package middleware

import (
	"errors"

	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// JWTのtvとDBのtoken_versionが一致するか確認。
// 強制ログアウトや停止されたユーザーのトークンはここで弾く
func TokenVersionGuard(userRepo repository.UserRepository, log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return unauthorized(c)
			}
			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok || tv < 0 {
				return unauthorized(c)
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					log.WithError(err).WithField("user_id", userID).Error("token version lookup failed")
				}
				return unauthorized(c)
			}

			if user.TokenVersion != tv || !user.IsActive {
				return unauthorized(c)
			}

			return next(c)
		}
	}
}
