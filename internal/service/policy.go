package service

import (
	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
)

// Action 受控操作
type Action string

const (
	ActionUserRegister   Action = "user:register"
	ActionUserList       Action = "user:list"
	ActionUserRead       Action = "user:read"
	ActionUserActivate   Action = "user:activate"
	ActionUserDeactivate Action = "user:deactivate"

	ActionTenantCreate Action = "tenant:create"
	ActionTenantUpdate Action = "tenant:update"
	ActionTenantDelete Action = "tenant:delete"
	ActionTenantList   Action = "tenant:list"
	ActionTenantRead   Action = "tenant:read"

	ActionLogCreate Action = "log:create"
	ActionLogList   Action = "log:list"
	ActionLogRead   Action = "log:read"
	ActionLogStats  Action = "log:stats"
)

// ScopeDecision 授权结果。TenantID 为实际生效的租户范围，空串表示全部租户
type ScopeDecision struct {
	Allowed  bool
	TenantID string
	Reason   string
}

// Err 拒绝时返回 Forbidden
func (d ScopeDecision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason != "" {
		return apperror.WithMessage(apperror.ErrForbidden, d.Reason)
	}
	return apperror.ErrForbidden
}

func allow(tenantID string) ScopeDecision {
	return ScopeDecision{Allowed: true, TenantID: tenantID}
}

func deny(reason string) ScopeDecision {
	return ScopeDecision{Reason: reason}
}

// Authorize 判断调用方能否以目标租户执行 action，并给出生效的租户范围。
//
// target 的含义随 action 不同：
//   - log:create   请求体中的 tenant_id，可为空
//   - log:list / log:stats / tenant:list   查询过滤条件中的 tenant_id，可为空
//   - log:read / tenant:read   被读取记录所属的租户
//
// 管理员不受租户限制；审计员与普通用户只能访问本租户，显式指定其他租户一律拒绝。
// 未知角色或未知操作默认拒绝
func Authorize(id Identity, action Action, target string) ScopeDecision {
	switch {
	case id.IsAdmin():
		return authorizeAdmin(id, action, target)
	case id.Role == model.RoleAuditor, id.Role == model.RoleUser:
		return authorizeMember(id, action, target)
	default:
		return deny("未知角色")
	}
}

func authorizeAdmin(id Identity, action Action, target string) ScopeDecision {
	switch action {
	case ActionLogCreate:
		if target == "" {
			return allow(id.TenantID)
		}
		return allow(target)
	case ActionUserRegister, ActionUserList, ActionUserRead, ActionUserActivate, ActionUserDeactivate,
		ActionTenantCreate, ActionTenantUpdate, ActionTenantDelete, ActionTenantList, ActionTenantRead,
		ActionLogList, ActionLogRead, ActionLogStats:
		return allow(target)
	default:
		return deny("未知操作")
	}
}

func authorizeMember(id Identity, action Action, target string) ScopeDecision {
	switch action {
	case ActionLogCreate, ActionLogList, ActionLogStats, ActionTenantList:
		if target == "" || target == id.TenantID {
			return allow(id.TenantID)
		}
		return deny("无权访问其他租户的数据")
	case ActionLogRead, ActionTenantRead:
		if target != "" && target == id.TenantID {
			return allow(id.TenantID)
		}
		return deny("无权访问其他租户的数据")
	case ActionTenantCreate, ActionTenantUpdate, ActionTenantDelete,
		ActionUserRegister, ActionUserList, ActionUserRead, ActionUserActivate, ActionUserDeactivate:
		return deny("需要管理员权限")
	default:
		return deny("未知操作")
	}
}
