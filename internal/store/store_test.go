package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"audit-server/internal/config"
	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := model.OpenDB(&config.DatabaseConfig{
		URL:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, false)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fixture struct {
	audits  *AuditStore
	tenants *TenantDirectory
	users   *UserStore
}

func newFixture(t *testing.T) *fixture {
	db := openTestDB(t)
	audits := NewAuditStore(db)
	return &fixture{
		audits:  audits,
		tenants: NewTenantDirectory(db, audits),
		users:   NewUserStore(db),
	}
}

func (f *fixture) tenant(t *testing.T, name string) *model.Tenant {
	t.Helper()
	tenant, err := f.tenants.Create(context.Background(), name, nil)
	require.NoError(t, err)
	return tenant
}

func (f *fixture) log(t *testing.T, tenantID, action string, severity model.Severity, ts time.Time) *model.AuditLog {
	t.Helper()
	entry := &model.AuditLog{
		TenantID:     tenantID,
		UserID:       "u1",
		Action:       action,
		ResourceType: "document",
		ResourceID:   "doc-1",
		Severity:     severity,
		Timestamp:    ts,
	}
	require.NoError(t, f.audits.Create(context.Background(), entry))
	return entry
}

func strPtr(s string) *string { return &s }

var base = time.Date(2025, 8, 11, 10, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// AuditStore
// ---------------------------------------------------------------------------

func TestAuditStore_CreateAssignsFields(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme")

	entry := &model.AuditLog{
		TenantID:     acme.ID,
		UserID:       "bob",
		Action:       "UPDATE",
		ResourceType: "document",
		ResourceID:   "42",
		AfterState:   map[string]interface{}{"title": "v2"},
	}
	require.NoError(t, f.audits.Create(context.Background(), entry))

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, model.SeverityInfo, entry.Severity)
	assert.False(t, entry.Timestamp.IsZero())
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := f.audits.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE", got.Action)
	assert.Equal(t, "v2", got.AfterState["title"])
	assert.Nil(t, got.BeforeState)
}

func TestAuditStore_CreateUnknownTenant(t *testing.T) {
	f := newFixture(t)
	err := f.audits.Create(context.Background(), &model.AuditLog{
		TenantID: "missing", UserID: "u", Action: "CREATE", ResourceType: "x", ResourceID: "1",
	})
	assert.ErrorIs(t, err, apperror.ErrTenantNotFound)
}

func TestAuditStore_CreateInvalidSeverity(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme")
	err := f.audits.Create(context.Background(), &model.AuditLog{
		TenantID: acme.ID, UserID: "u", Action: "CREATE", ResourceType: "x", ResourceID: "1", Severity: "DEBUG",
	})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestAuditStore_GetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.audits.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAuditStore_ListFiltersAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.tenant(t, "acme")
	other := f.tenant(t, "other")

	first := f.log(t, acme.ID, "CREATE", model.SeverityInfo, base)
	second := f.log(t, acme.ID, "DELETE", model.SeverityCritical, base.Add(time.Hour))
	third := f.log(t, acme.ID, "CREATE", model.SeverityWarning, base.Add(2*time.Hour))
	f.log(t, other.ID, "CREATE", model.SeverityInfo, base.Add(3*time.Hour))

	page, err := f.audits.List(ctx, AuditFilter{TenantID: acme.ID}, Pagination{Page: 1, PageSize: 50})
	require.NoError(t, err)
	require.Len(t, page.Logs, 3)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, []string{third.ID, second.ID, first.ID},
		[]string{page.Logs[0].ID, page.Logs[1].ID, page.Logs[2].ID})

	page, err = f.audits.List(ctx, AuditFilter{TenantID: acme.ID, Action: "CREATE"}, Pagination{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.audits.List(ctx, AuditFilter{Severity: model.SeverityCritical}, Pagination{Page: 1, PageSize: 50})
	require.NoError(t, err)
	require.Len(t, page.Logs, 1)
	assert.Equal(t, second.ID, page.Logs[0].ID)

	start := base.Add(30 * time.Minute)
	end := base.Add(2 * time.Hour)
	page, err = f.audits.List(ctx, AuditFilter{TenantID: acme.ID, StartDate: &start, EndDate: &end}, Pagination{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "end bound is inclusive")

	page, err = f.audits.List(ctx, AuditFilter{}, Pagination{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
}

func TestAuditStore_ListPagination(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme")
	for i := 0; i < 5; i++ {
		f.log(t, acme.ID, "READ", model.SeverityInfo, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := f.audits.List(context.Background(), AuditFilter{}, Pagination{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Logs, 1)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)

	page, err = f.audits.List(context.Background(), AuditFilter{}, Pagination{Page: 4, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Logs)
	assert.NotNil(t, page.Logs)
}

func TestAuditStore_ListRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []Pagination{{0, 50}, {1, 0}, {1, 1001}} {
		_, err := f.audits.List(ctx, AuditFilter{}, p)
		assert.ErrorIs(t, err, apperror.ErrBadRequest, "%+v", p)
	}

	start := base.Add(time.Hour)
	end := base
	_, err := f.audits.List(ctx, AuditFilter{StartDate: &start, EndDate: &end}, Pagination{Page: 1, PageSize: 50})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestAuditStore_Stats(t *testing.T) {
	f := newFixture(t)
	acme := f.tenant(t, "acme")
	other := f.tenant(t, "other")
	f.log(t, acme.ID, "CREATE", model.SeverityInfo, base)
	f.log(t, acme.ID, "CREATE", model.SeverityWarning, base)
	f.log(t, acme.ID, "DELETE", model.SeverityWarning, base)
	f.log(t, other.ID, "LOGIN", model.SeverityInfo, base)

	stats, err := f.audits.Stats(context.Background(), acme.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalLogs)
	assert.Equal(t, map[string]int64{"CREATE": 2, "DELETE": 1}, stats.ActionCounts)
	assert.Equal(t, map[string]int64{"INFO": 1, "WARNING": 2}, stats.SeverityCounts)

	all, err := f.audits.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalLogs)
	assert.Equal(t, int64(1), all.ActionCounts["LOGIN"])

	empty, err := f.audits.Stats(context.Background(), "none")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalLogs)
	assert.Empty(t, empty.ActionCounts)
}

// ---------------------------------------------------------------------------
// TenantDirectory
// ---------------------------------------------------------------------------

func TestTenantDirectory_CreateDuplicate(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "acme")
	_, err := f.tenants.Create(context.Background(), "acme", nil)
	assert.ErrorIs(t, err, apperror.ErrDuplicateName)

	_, err = f.tenants.Create(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestTenantDirectory_NameLengthCountsCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 100 个汉字占 300 字节，仍在 255 个字符以内
	cjk, err := f.tenants.Create(ctx, strings.Repeat("租", 100), nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("租", 100), cjk.Name)

	_, err = f.tenants.Create(ctx, strings.Repeat("户", 255), nil)
	require.NoError(t, err)

	_, err = f.tenants.Create(ctx, strings.Repeat("名", 256), nil)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	long := strings.Repeat("界", 200)
	updated, err := f.tenants.PartialUpdate(ctx, cjk.ID, TenantPatch{Name: &long})
	require.NoError(t, err)
	assert.Equal(t, long, updated.Name)
}

func TestTenantDirectory_ListScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tenant(t, "zeta")
	acme := f.tenant(t, "acme")

	all, err := f.tenants.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "acme", all[0].Name)

	scoped, err := f.tenants.List(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, acme.ID, scoped[0].ID)
}

func TestTenantDirectory_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.tenant(t, "acme")
	f.tenant(t, "other")

	_, err := f.tenants.Update(ctx, acme.ID, "other", nil)
	assert.ErrorIs(t, err, apperror.ErrDuplicateName)

	_, err = f.tenants.Update(ctx, "missing", "x", nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	updated, err := f.tenants.Update(ctx, acme.ID, "acme-corp", strPtr("renamed"))
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", updated.Name)
	require.NotNil(t, updated.Description)

	// PUT 语义：未提供的描述被清空
	updated, err = f.tenants.Update(ctx, acme.ID, "acme-corp", nil)
	require.NoError(t, err)
	assert.Nil(t, updated.Description)

	got, err := f.tenants.Get(ctx, acme.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Description)
}

func TestTenantDirectory_PartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme, err := f.tenants.Create(ctx, "acme", strPtr("original"))
	require.NoError(t, err)
	f.tenant(t, "other")

	_, err = f.tenants.PartialUpdate(ctx, acme.ID, TenantPatch{})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	_, err = f.tenants.PartialUpdate(ctx, acme.ID, TenantPatch{Name: strPtr("other")})
	assert.ErrorIs(t, err, apperror.ErrDuplicateName)

	// 名称未变化时不算重复
	updated, err := f.tenants.PartialUpdate(ctx, acme.ID, TenantPatch{Name: strPtr("acme")})
	require.NoError(t, err)
	assert.Equal(t, "original", *updated.Description)

	updated, err = f.tenants.PartialUpdate(ctx, acme.ID, TenantPatch{Description: strPtr("changed"), DescriptionSet: true})
	require.NoError(t, err)
	assert.Equal(t, "acme", updated.Name)
	assert.Equal(t, "changed", *updated.Description)

	// 显式置空描述
	updated, err = f.tenants.PartialUpdate(ctx, acme.ID, TenantPatch{DescriptionSet: true})
	require.NoError(t, err)
	assert.Equal(t, "acme", updated.Name)
	assert.Nil(t, updated.Description)

	got, err := f.tenants.Get(ctx, acme.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Description)
}

func TestTenantDirectory_DeleteWithDependents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.tenant(t, "acme")
	other := f.tenant(t, "other")
	for i := 0; i < 3; i++ {
		f.log(t, acme.ID, "CREATE", model.SeverityInfo, base)
	}
	f.log(t, other.ID, "CREATE", model.SeverityInfo, base)

	_, err := f.tenants.Delete(ctx, acme.ID, false)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.tenants.Get(ctx, acme.ID)
	require.NoError(t, err, "tenant must survive a refused delete")
	count, err := f.audits.CountByTenant(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	deleted, err := f.tenants.Delete(ctx, acme.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = f.tenants.Get(ctx, acme.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	count, err = f.audits.CountByTenant(ctx, acme.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = f.audits.CountByTenant(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTenantDirectory_DeleteEmptyAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.tenant(t, "acme")

	deleted, err := f.tenants.Delete(ctx, acme.ID, false)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = f.tenants.Delete(ctx, acme.ID, false)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// ---------------------------------------------------------------------------
// UserStore
// ---------------------------------------------------------------------------

func newUser(tenantID, username, email string) *model.User {
	return &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		Role:         model.RoleUser,
		TenantID:     tenantID,
		IsActive:     true,
	}
}

func TestUserStore_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.tenant(t, "acme")

	bob := newUser(acme.ID, "bob", "bob@acme.io")
	require.NoError(t, f.users.Create(ctx, bob))
	assert.NotEmpty(t, bob.ID)

	err := f.users.Create(ctx, newUser(acme.ID, "bob", "other@acme.io"))
	assert.ErrorIs(t, err, apperror.ErrDuplicateName)

	err = f.users.Create(ctx, newUser(acme.ID, "robert", "bob@acme.io"))
	assert.ErrorIs(t, err, apperror.ErrDuplicateName)

	err = f.users.Create(ctx, newUser("missing", "carol", "carol@acme.io"))
	assert.ErrorIs(t, err, apperror.ErrTenantNotFound)

	got, err := f.users.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)
	assert.True(t, got.IsActive)

	_, err = f.users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserStore_CreateInactivePersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.tenant(t, "acme")

	u := newUser(acme.ID, "dormant", "dormant@acme.io")
	u.IsActive = false
	require.NoError(t, f.users.Create(ctx, u))

	got, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestUserStore_SetActiveAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.tenant(t, "acme")
	bob := newUser(acme.ID, "bob", "bob@acme.io")
	require.NoError(t, f.users.Create(ctx, bob))
	require.NoError(t, f.users.Create(ctx, newUser(acme.ID, "alice", "alice@acme.io")))

	u, err := f.users.SetActive(ctx, bob.ID, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	got, err := f.users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = f.users.SetActive(ctx, "missing", true)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	users, total, err := f.users.List(ctx, Pagination{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 1)
}
