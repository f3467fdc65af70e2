// Package vnpay はVNPayゲートウェイとのやり取り（署名・検証・コールバック解析）をまとめる。
// DBや注文の状態には触らない。
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultVersion  = "2.1.0"
	DefaultLocale   = "vn"
	DefaultCurrCode = "VND"

	commandPay     = "pay"
	orderTypeOther = "other"
	dateLayout     = "20060102150405"

	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// IPNへの応答コード
const (
	RspSuccess          = "00"
	RspOrderNotFound    = "01"
	RspAlreadyConfirmed = "02"
	RspInvalidAmount    = "04"
	RspInvalidChecksum  = "97"
	RspUnknownError     = "99"
)

var (
	ErrMissingCredentials = errors.New("vnpay: tmn code and hash secret are required")
	ErrInvalidChecksum    = errors.New("vnpay: invalid checksum")
	ErrMissingTxnRef      = errors.New("vnpay: missing vnp_TxnRef")
	ErrInvalidAmount      = errors.New("vnpay: invalid vnp_Amount")
)

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Version    string
	Locale     string
	CurrCode   string
	//vnp_CreateDateのタイムゾーン（既定GMT+7）
	Location *time.Location
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.TmnCode) == "" || strings.TrimSpace(cfg.HashSecret) == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.CurrCode == "" {
		cfg.CurrCode = DefaultCurrCode
	}
	if cfg.Location == nil {
		cfg.Location = time.FixedZone("ICT", 7*60*60)
	}
	return &Client{cfg: cfg}, nil
}

type PaymentRequest struct {
	TxnRef    string
	OrderInfo string
	//ゲートウェイ単位（金額×100）
	Amount   int64
	IPAddr   string
	BankCode string
	Now      time.Time
}

// 署名済みの決済URLを返す
func (c *Client) PaymentURL(req PaymentRequest) (string, error) {
	if req.TxnRef == "" {
		return "", ErrMissingTxnRef
	}
	if req.Amount <= 0 {
		return "", ErrInvalidAmount
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	v := url.Values{}
	v.Set("vnp_Version", c.cfg.Version)
	v.Set("vnp_Command", commandPay)
	v.Set("vnp_TmnCode", c.cfg.TmnCode)
	v.Set("vnp_Locale", c.cfg.Locale)
	v.Set("vnp_CurrCode", c.cfg.CurrCode)
	v.Set("vnp_TxnRef", req.TxnRef)
	v.Set("vnp_OrderInfo", req.OrderInfo)
	v.Set("vnp_OrderType", orderTypeOther)
	v.Set("vnp_Amount", strconv.FormatInt(req.Amount, 10))
	v.Set("vnp_ReturnUrl", c.cfg.ReturnURL)
	v.Set("vnp_IpAddr", NormalizeIP(req.IPAddr))
	v.Set("vnp_CreateDate", now.In(c.cfg.Location).Format(dateLayout))
	if req.BankCode != "" {
		v.Set("vnp_BankCode", req.BankCode)
	}

	v.Set(ParamSecureHash, c.Sign(v))
	return c.cfg.PayURL + "?" + v.Encode(), nil
}

// キー昇順の "k=v&k=v"。署名フィールド以外は空値も "k=" で含める
func CanonicalString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values.Get(k))
	}
	return b.String()
}

// HMAC-SHA512の16進文字列
func (c *Client) Sign(values url.Values) string {
	mac := hmac.New(sha512.New, []byte(c.cfg.HashSecret))
	mac.Write([]byte(CanonicalString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// 受け取った値の署名を検証する。valuesは変更しない
func (c *Client) Verify(values url.Values) error {
	got := strings.ToLower(values.Get(ParamSecureHash))
	if got == "" {
		return ErrInvalidChecksum
	}
	want := c.Sign(values)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrInvalidChecksum
	}
	return nil
}

// return/IPNで受け取る項目
type Callback struct {
	TxnRef            string
	Amount            int64
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	PayDate           string
	OrderInfo         string
}

// ゲートウェイ側で支払い成功か
func (cb Callback) Succeeded() bool {
	if cb.ResponseCode != RspSuccess {
		return false
	}
	return cb.TransactionStatus == "" || cb.TransactionStatus == RspSuccess
}

func ParseCallback(values url.Values) (Callback, error) {
	cb := Callback{
		TxnRef:            values.Get("vnp_TxnRef"),
		ResponseCode:      values.Get("vnp_ResponseCode"),
		TransactionStatus: values.Get("vnp_TransactionStatus"),
		TransactionNo:     values.Get("vnp_TransactionNo"),
		BankCode:          values.Get("vnp_BankCode"),
		PayDate:           values.Get("vnp_PayDate"),
		OrderInfo:         values.Get("vnp_OrderInfo"),
	}
	if cb.TxnRef == "" {
		return Callback{}, ErrMissingTxnRef
	}
	amount, err := strconv.ParseInt(values.Get("vnp_Amount"), 10, 64)
	if err != nil || amount < 0 {
		return Callback{}, ErrInvalidAmount
	}
	cb.Amount = amount
	return cb, nil
}

// IPv4射影アドレスとループバックを整える
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = strings.TrimSpace(ip[:i])
	}
	switch {
	case ip == "":
		return "127.0.0.1"
	case ip == "::1":
		return "127.0.0.1"
	case strings.HasPrefix(ip, "::ffff:"):
		return strings.TrimPrefix(ip, "::ffff:")
	}
	return ip
}
