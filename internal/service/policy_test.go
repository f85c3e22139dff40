package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
)

var allActions = []Action{
	ActionUserRegister, ActionUserList, ActionUserRead, ActionUserActivate, ActionUserDeactivate,
	ActionTenantCreate, ActionTenantUpdate, ActionTenantDelete, ActionTenantList, ActionTenantRead,
	ActionLogCreate, ActionLogList, ActionLogRead, ActionLogStats,
}

func identity(role model.Role, tenantID string) Identity {
	return Identity{UserID: "u-" + string(role), Role: role, TenantID: tenantID}
}

func TestAuthorize_AdminUnrestricted(t *testing.T) {
	admin := identity(model.RoleAdmin, "home")
	for _, action := range allActions {
		for _, target := range []string{"", "home", "other"} {
			d := Authorize(admin, action, target)
			assert.True(t, d.Allowed, "%s target=%q", action, target)
			if action == ActionLogCreate && target == "" {
				assert.Equal(t, "home", d.TenantID)
			} else {
				assert.Equal(t, target, d.TenantID, "%s target=%q", action, target)
			}
		}
	}
}

func TestAuthorize_MemberScopedActions(t *testing.T) {
	for _, role := range []model.Role{model.RoleAuditor, model.RoleUser} {
		id := identity(role, "acme")
		for _, action := range []Action{ActionLogCreate, ActionLogList, ActionLogStats, ActionTenantList} {
			d := Authorize(id, action, "")
			assert.True(t, d.Allowed, "%s %s empty", role, action)
			assert.Equal(t, "acme", d.TenantID)

			d = Authorize(id, action, "acme")
			assert.True(t, d.Allowed, "%s %s own", role, action)
			assert.Equal(t, "acme", d.TenantID)

			d = Authorize(id, action, "other")
			assert.False(t, d.Allowed, "%s %s foreign must not be re-scoped", role, action)
			assert.ErrorIs(t, d.Err(), apperror.ErrForbidden)
		}
	}
}

func TestAuthorize_MemberReadsRowTenant(t *testing.T) {
	for _, role := range []model.Role{model.RoleAuditor, model.RoleUser} {
		id := identity(role, "acme")
		for _, action := range []Action{ActionLogRead, ActionTenantRead} {
			assert.True(t, Authorize(id, action, "acme").Allowed)

			d := Authorize(id, action, "other")
			assert.False(t, d.Allowed)
			assert.ErrorIs(t, d.Err(), apperror.ErrForbidden)
			assert.NotErrorIs(t, d.Err(), apperror.ErrNotFound)

			assert.False(t, Authorize(id, action, "").Allowed)
		}
	}
}

func TestAuthorize_MemberAdminOnlyActions(t *testing.T) {
	adminOnly := []Action{
		ActionTenantCreate, ActionTenantUpdate, ActionTenantDelete,
		ActionUserRegister, ActionUserList, ActionUserRead, ActionUserActivate, ActionUserDeactivate,
	}
	for _, role := range []model.Role{model.RoleAuditor, model.RoleUser} {
		id := identity(role, "acme")
		for _, action := range adminOnly {
			for _, target := range []string{"", "acme", "other"} {
				d := Authorize(id, action, target)
				assert.False(t, d.Allowed, "%s %s %q", role, action, target)
				assert.ErrorIs(t, d.Err(), apperror.ErrForbidden)
			}
		}
	}
}

func TestAuthorize_DefaultDeny(t *testing.T) {
	for _, action := range allActions {
		assert.False(t, Authorize(identity("owner", "acme"), action, "acme").Allowed)
		assert.False(t, Authorize(identity("", "acme"), action, "").Allowed)
	}
	for _, role := range []model.Role{model.RoleAdmin, model.RoleAuditor, model.RoleUser} {
		assert.False(t, Authorize(identity(role, "acme"), "log:purge", "acme").Allowed)
	}
}

func TestScopeDecision_Err(t *testing.T) {
	assert.NoError(t, allow("acme").Err())
	assert.ErrorIs(t, ScopeDecision{}.Err(), apperror.ErrForbidden)
}
