package model

import (
	"time"
)

// User 后台用户，角色决定可见范围
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username     string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null;default:user" json:"role"`
	TenantID     string    `gorm:"type:varchar(36);index;not null" json:"tenant_id"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role 用户角色
type Role string

const (
	RoleAdmin   Role = "admin"   // 管理员：不受租户限制
	RoleAuditor Role = "auditor" // 审计员：仅本租户
	RoleUser    Role = "user"    // 普通用户：仅本租户
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAuditor, RoleUser:
		return true
	}
	return false
}

func (User) TableName() string {
	return "users"
}
