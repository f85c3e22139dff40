package service

import (
	"audit-server/internal/model"
)

// Identity 已认证的调用方
type Identity struct {
	UserID   string
	Username string
	Role     model.Role
	TenantID string
}

// IsAdmin 是否管理员
func (i Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin
}
