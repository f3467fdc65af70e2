package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

type AuditLogUsecase struct {
	audits repo.AuditLogRepository
	log    *logrus.Logger
}

func NewAuditLogUsecase(audits repo.AuditLogRepository, log *logrus.Logger) *AuditLogUsecase {
	return &AuditLogUsecase{audits: audits, log: log}
}

// GET /admin/audit-logs の絞り込み
type AuditLogQuery struct {
	ActorUserID  *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *AuditLogUsecase) List(ctx context.Context, q AuditLogQuery) (AuditLogListOutput, error) {
	if q.Page < 1 {
		return AuditLogListOutput{}, ValidationError("invalid page")
	}
	if q.Limit < 1 || q.Limit > 200 {
		return AuditLogListOutput{}, ValidationError("invalid limit")
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return AuditLogListOutput{}, ValidationError("from must be before to")
	}

	f := repo.AuditLogFilter{
		ActorUserID: q.ActorUserID,
		ResourceID:  q.ResourceID,
		CreatedFrom: q.From,
		CreatedTo:   q.To,
		Limit:       q.Limit,
		Offset:      (q.Page - 1) * q.Limit,
	}
	if q.Action != "" {
		a := model.AuditAction(q.Action)
		if !a.Valid() {
			return AuditLogListOutput{}, ValidationError("invalid action")
		}
		f.Action = &a
	}
	if q.ResourceType != "" {
		rt := model.AuditResourceType(q.ResourceType)
		if !rt.Valid() {
			return AuditLogListOutput{}, ValidationError("invalid resource type")
		}
		f.ResourceType = &rt
	}

	logs, err := u.audits.List(ctx, f)
	if err != nil {
		u.log.WithError(err).Error("list audit logs")
		return AuditLogListOutput{}, InternalError()
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return AuditLogListOutput{Items: logs, Page: q.Page, Limit: q.Limit}, nil
}
