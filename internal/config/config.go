package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultFEURL    = "http://localhost:3000"
	defaultVNPayURL = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット
	JWTTTL    time.Duration

	FEURL    string // フロントURL（CORS・決済結果のリダイレクト先）
	LogLevel string

	//料金
	TaxRate               float64
	ShippingRate          int64
	FreeShippingThreshold int64

	//VNPay。空ならゲートウェイ無効
	VNPayTmnCode    string
	VNPayHashSecret string
	VNPayURL        string
	VNPayReturnURL  string

	//レポートキャッシュ。空ならメモリなし
	RedisAddr      string
	ReportCacheTTL time.Duration

	//注文イベント。空なら送らない
	KafkaBrokers []string
}

// Loadは環境変数
func Load() (Config, error) {
	var err error
	cfg := Config{
		Port: os.Getenv("PORT"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		FEURL:    strings.TrimRight(getenv("FE_URL", defaultFEURL), "/"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		VNPayTmnCode:    os.Getenv("VNP_TMNCODE"),
		VNPayHashSecret: os.Getenv("VNP_HASHSECRET"),
		VNPayURL:        getenv("VNP_URL", defaultVNPayURL),
		VNPayReturnURL:  os.Getenv("VNP_RETURNURL"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
		if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
			return Config{}, err
		}
	}

	if cfg.JWTTTL, err = durationDefault("JWT_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.TaxRate, err = floatDefault("TAX_RATE", 0.10); err != nil {
		return Config{}, err
	}
	if cfg.ShippingRate, err = int64Default("SHIPPING_RATE", 30000); err != nil {
		return Config{}, err
	}
	if cfg.FreeShippingThreshold, err = int64Default("FREE_SHIPPING_THRESHOLD", 500000); err != nil {
		return Config{}, err
	}
	if cfg.ReportCacheTTL, err = durationDefault("REPORT_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.VNPayReturnURL == "" {
		cfg.VNPayReturnURL = "http://localhost:" + strings.TrimPrefix(cfg.Port, ":") + "/payments/vnpay/return"
	}

	return cfg, nil
}

// DB接続文字列
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// listen用（":8080"）
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func int64Default(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%s must be non-negative number", key)
	}
	return i, nil
}

func floatDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%s must be non-negative number", key)
	}
	return f, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
