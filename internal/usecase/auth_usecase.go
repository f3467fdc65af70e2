package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type UserDTO struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	IsActive     bool   `json:"is_active"`
}

type AccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type AuthLoginResponse struct {
	User  UserDTO        `json:"user"`
	Token AccessTokenDTO `json:"token"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

type AuthUsecase struct {
	users     repo.UserRepository
	audits    repo.AuditLogRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	log       *logrus.Logger
	clock     Clock
}

func NewAuthUsecase(users repo.UserRepository, audits repo.AuditLogRepository, jwtSecret string, tokenTTL time.Duration, log *logrus.Logger) *AuthUsecase {
	return &AuthUsecase{
		users:     users,
		audits:    audits,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log,
		clock:     systemClock{},
	}
}

func (u *AuthUsecase) Register(ctx context.Context, email, password string) (UserDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return UserDTO{}, ValidationError("invalid email")
	}
	if len(password) < minPasswordLength {
		return UserDTO{}, ValidationError("password must be at least 8 characters")
	}

	//パスワードは必ずハッシュ化して保存
	pwHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return UserDTO{}, u.internal(err, "hash password")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(pwHash),
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return UserDTO{}, InvalidStateError("email already registered")
		}
		return UserDTO{}, u.internal(err, "create user")
	}
	return toUserDTO(user), nil
}

// メール不一致・パスワード不一致は同じ401
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (AuthLoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthLoginResponse{}, ValidationError("email and password required")
	}

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		return AuthLoginResponse{}, u.internal(err, "find user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	//停止ユーザーはログイン不可
	if !user.IsActive {
		return AuthLoginResponse{}, ForbiddenError("user is inactive")
	}

	now := u.clock.Now()
	user.LastLoginAt = &now
	if err := u.users.Update(ctx, user); err != nil {
		u.log.WithError(err).WithField("user_id", user.ID).Warn("update last login failed")
	}

	token, err := u.issueAccessToken(user, now)
	if err != nil {
		return AuthLoginResponse{}, u.internal(err, "sign token")
	}
	return AuthLoginResponse{
		User: toUserDTO(user),
		Token: AccessTokenDTO{
			AccessToken:  token,
			ExpiresIn:    int(u.tokenTTL.Seconds()),
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserDTO, error) {
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return UserDTO{}, UnauthorizedError()
	}
	if err != nil {
		return UserDTO{}, u.internal(err, "find user")
	}
	return toUserDTO(user), nil
}

// token_versionを上げて発行済みトークンを全て無効にする
func (u *AuthUsecase) ForceLogout(ctx context.Context, adminID, targetUserID int64) (ForceLogoutResponse, error) {
	if adminID <= 0 {
		return ForceLogoutResponse{}, UnauthorizedError()
	}
	if targetUserID <= 0 {
		return ForceLogoutResponse{}, ValidationError("invalid user id")
	}
	user, err := u.users.FindByID(ctx, targetUserID)
	if errors.Is(err, repo.ErrNotFound) {
		return ForceLogoutResponse{}, NotFoundError("User not found")
	}
	if err != nil {
		return ForceLogoutResponse{}, u.internal(err, "find user")
	}

	before := user.TokenVersion
	user.TokenVersion++
	if err := u.users.Update(ctx, user); err != nil {
		return ForceLogoutResponse{}, u.internal(err, "bump token version")
	}
	//監査ログの失敗でログアウト自体は戻さない
	if err := u.audits.Create(ctx, model.AuditLog{
		ActorUserID:  adminID,
		Action:       model.AuditActionForceLogout,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		BeforeJSON:   toJSON(map[string]any{"token_version": before}),
		AfterJSON:    toJSON(map[string]any{"token_version": user.TokenVersion}),
		CreatedAt:    u.clock.Now(),
	}); err != nil {
		u.log.WithError(err).WithField("user_id", user.ID).Warn("force logout audit failed")
	}
	u.log.WithFields(logrus.Fields{"admin_id": adminID, "user_id": user.ID}).Info("user force logged out")
	return ForceLogoutResponse{UserID: user.ID, NewTokenVersion: user.TokenVersion}, nil
}

// jwt発行
func (u *AuthUsecase) issueAccessToken(user *model.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(u.tokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(u.jwtSecret)
}

func toUserDTO(user *model.User) UserDTO {
	return UserDTO{
		ID:           user.ID,
		Email:        user.Email,
		Role:         string(user.Role),
		TokenVersion: user.TokenVersion,
		IsActive:     user.IsActive,
	}
}

func (u *AuthUsecase) internal(err error, op string) error {
	u.log.WithError(err).WithField("op", op).Error("auth usecase failed")
	return InternalError()
}
