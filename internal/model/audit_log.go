package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 审计日志，创建后不可修改
type AuditLog struct {
	ID             string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	TenantID       string            `gorm:"type:varchar(36);not null;index:idx_audit_tenant_ts,priority:1" json:"tenant_id"`
	UserID         string            `gorm:"type:varchar(255);not null;index" json:"user_id"`
	SessionID      *string           `gorm:"type:varchar(255)" json:"session_id"`
	Action         string            `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType   string            `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID     string            `gorm:"type:varchar(255);not null" json:"resource_id"`
	Timestamp      time.Time         `gorm:"not null;index:idx_audit_tenant_ts,priority:2" json:"timestamp"` // 事件发生时间
	IPAddress      *string           `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent      *string           `gorm:"type:text" json:"user_agent"`
	BeforeState    datatypes.JSONMap `json:"before_state"`
	AfterState     datatypes.JSONMap `json:"after_state"`
	CustomMetadata datatypes.JSONMap `json:"custom_metadata"`
	Message        *string           `gorm:"type:text" json:"message"`
	Severity       Severity          `gorm:"type:varchar(20);not null;default:INFO;index" json:"severity"`
	CreatedAt      time.Time         `json:"created_at"` // 记录写入时间，与 Timestamp 区分
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// Severity 严重级别
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Valid 是否为合法级别
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}
