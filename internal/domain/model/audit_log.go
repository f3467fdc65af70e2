package model

import "time"

type AuditAction string

const (
	AuditActionUpdateStock         AuditAction = "UPDATE_STOCK"
	AuditActionUpdateOrderStatus   AuditAction = "UPDATE_ORDER_STATUS"
	AuditActionUpdatePaymentStatus AuditAction = "UPDATE_PAYMENT_STATUS"
	AuditActionForceLogout         AuditAction = "FORCE_LOGOUT"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionUpdateStock, AuditActionUpdateOrderStatus,
		AuditActionUpdatePaymentStatus, AuditActionForceLogout:
		return true
	}
	return false
}

type AuditResourceType string

const (
	AuditResourceProduct AuditResourceType = "product"
	AuditResourceOrder   AuditResourceType = "order"
	AuditResourceUser    AuditResourceType = "user"
)

func (t AuditResourceType) Valid() bool {
	switch t {
	case AuditResourceProduct, AuditResourceOrder, AuditResourceUser:
		return true
	}
	return false
}

// 管理者操作の記録。変更前後はJSON文字列
// 業務データと同じTxで書く（在庫・注文ステータス・支払い）
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index:idx_audit_resource,priority:1" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index:idx_audit_resource,priority:2" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before"`
	AfterJSON    string            `gorm:"type:text" json:"after"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}
