package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/event"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/payment/vnpay"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel)

	//DB接続
	gormDB, err := db.Connect(cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("connect db")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	reportRepo := infraRepo.NewReportGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//決済ゲートウェイ。未設定でも起動はする（決済だけ503）
	var gateway usecase.PaymentGateway
	if client, err := vnpay.NewClient(vnpay.Config{
		TmnCode:    cfg.VNPayTmnCode,
		HashSecret: cfg.VNPayHashSecret,
		PayURL:     cfg.VNPayURL,
		ReturnURL:  cfg.VNPayReturnURL,
	}); err != nil {
		log.WithError(err).Warn("vnpay disabled")
	} else {
		gateway = client
	}

	//レポートキャッシュ
	var reportCache usecase.ReportCache = cache.NopCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		reportCache = cache.NewRedisCache(rdb, log)
	}

	//注文イベント
	var events usecase.EventPublisher = event.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := event.NewKafkaPublisher(cfg.KafkaBrokers, usecase.EventTopics...)
		defer func() {
			if err := kp.Close(); err != nil {
				log.WithError(err).Warn("close kafka writers")
			}
		}()
		events = kp
	}

	pricing := model.Pricing{
		TaxRate:               cfg.TaxRate,
		ShippingRate:          cfg.ShippingRate,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, auditRepo, cfg.JWTSecret, cfg.JWTTTL, log)
	productUC := usecase.NewProductUsecase(txm, productRepo, log)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo, log)
	orderUC := usecase.NewOrderUsecase(txm, orderRepo, addressRepo, pricing, events, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, orderRepo, events, log)
	paymentUC := usecase.NewPaymentUsecase(orderRepo, gateway, cfg.FEURL, events, log)
	reportUC := usecase.NewReportUsecase(reportRepo, reportCache, cfg.ReportCacheTTL, log)
	addressUC := usecase.NewAddressUsecase(addressRepo, log)
	auditUC := usecase.NewAuditLogUsecase(auditRepo, log)

	//Handler生成
	e := server.New(server.Options{
		FEURL:     cfg.FEURL,
		JWTSecret: cfg.JWTSecret,
		Users:     userRepo,
		Log:       log,
	}, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, reportUC),
		AdminUser:    handler.NewAdminUserHandler(authUC, auditUC),
		Address:      handler.NewAddressHandler(addressUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
	})

	//Server起動
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Start(ctx, e, cfg.Addr(), log); err != nil {
		log.WithError(err).Error("server stopped")
	}
}
