package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

type Options struct {
	FEURL     string
	JWTSecret string
	Users     repository.UserRepository
	Log       *logrus.Logger
}

// ルートを持つハンドラ一式
type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminUser    *handler.AdminUserHandler
	Address      *handler.AddressHandler
	Payment      *handler.PaymentHandler
}

func New(opts Options, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(opts.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{opts.FEURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	RegisterRoutes(e, guards(opts), h)
	return e
}

func guards(opts Options) handler.RouteGuards {
	user := []echo.MiddlewareFunc{
		middleware.AuthJWT(opts.JWTSecret),
		middleware.TokenVersionGuard(opts.Users, opts.Log),
	}
	admin := append(append([]echo.MiddlewareFunc{}, user...), middleware.AdminRoleGuard())
	return handler.RouteGuards{User: user, Admin: admin}
}

// ctxがキャンセルされたら止める
func Start(ctx context.Context, e *echo.Echo, addr string, log *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("server started")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}
