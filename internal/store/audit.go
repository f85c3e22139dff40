package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
	"audit-server/internal/pkg/utils"
)

// AuditFilter 审计日志查询条件，空值表示不过滤，各条件之间为 AND
type AuditFilter struct {
	TenantID     string
	UserID       string
	Action       string
	ResourceType string
	Severity     model.Severity
	StartDate    *time.Time
	EndDate      *time.Time
}

// AuditPage 分页查询结果
type AuditPage struct {
	Logs       []model.AuditLog `json:"logs"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// AuditStats 聚合统计
type AuditStats struct {
	TotalLogs      int64            `json:"total_logs"`
	ActionCounts   map[string]int64 `json:"action_counts"`
	SeverityCounts map[string]int64 `json:"severity_counts"`
}

// AuditStore 审计日志存储。记录只增不改，仅在强制删除租户时批量删除
type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// WithTx 返回绑定到指定事务的副本
func (s *AuditStore) WithTx(tx *gorm.DB) *AuditStore {
	return &AuditStore{db: tx}
}

// Create 写入一条审计日志。租户必须存在；ID、Timestamp（为空时）和 CreatedAt 由这里赋值
func (s *AuditStore) Create(ctx context.Context, entry *model.AuditLog) error {
	if entry.Severity == "" {
		entry.Severity = model.SeverityInfo
	}
	if !entry.Severity.Valid() {
		return apperror.WithMessage(apperror.ErrBadRequest, "无效的严重级别: "+string(entry.Severity))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Tenant{}).Where("id = ?", entry.TenantID).Count(&count).Error; err != nil {
			return fmt.Errorf("check tenant: %w", err)
		}
		if count == 0 {
			return apperror.ErrTenantNotFound
		}

		now := time.Now().UTC()
		entry.ID = utils.GenerateUUID()
		if entry.Timestamp.IsZero() {
			entry.Timestamp = now
		} else {
			entry.Timestamp = entry.Timestamp.UTC()
		}
		entry.CreatedAt = now

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create audit log: %w", err)
		}
		return nil
	})
}

// List 按条件分页查询，按 timestamp、id 倒序
func (s *AuditStore) List(ctx context.Context, filter AuditFilter, page Pagination) (*AuditPage, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, apperror.WithMessage(apperror.ErrBadRequest, "start_date 不能晚于 end_date")
	}

	query := s.applyFilter(s.db.WithContext(ctx).Model(&model.AuditLog{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	logs := make([]model.AuditLog, 0)
	if err := query.Order("timestamp DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	return &AuditPage{
		Logs:       logs,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: utils.TotalPages(total, page.PageSize),
	}, nil
}

func (s *AuditStore) applyFilter(query *gorm.DB, filter AuditFilter) *gorm.DB {
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.StartDate != nil {
		query = query.Where("timestamp >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query = query.Where("timestamp <= ?", filter.EndDate.UTC())
	}
	return query
}

// Get 按 ID 获取
func (s *AuditStore) Get(ctx context.Context, id string) (*model.AuditLog, error) {
	var entry model.AuditLog
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "get audit log")
	}
	return &entry, nil
}

type groupCount struct {
	Name  string
	Total int64
}

// Stats 统计总数及按 action、severity 分组的数量。tenantID 为空时统计全部
func (s *AuditStore) Stats(ctx context.Context, tenantID string) (*AuditStats, error) {
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.AuditLog{})
		if tenantID != "" {
			q = q.Where("tenant_id = ?", tenantID)
		}
		return q
	}

	stats := &AuditStats{
		ActionCounts:   map[string]int64{},
		SeverityCounts: map[string]int64{},
	}
	if err := scoped().Count(&stats.TotalLogs).Error; err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	var actions []groupCount
	if err := scoped().Select("action AS name, COUNT(*) AS total").Group("action").Scan(&actions).Error; err != nil {
		return nil, fmt.Errorf("group by action: %w", err)
	}
	for _, row := range actions {
		stats.ActionCounts[row.Name] = row.Total
	}

	var severities []groupCount
	if err := scoped().Select("severity AS name, COUNT(*) AS total").Group("severity").Scan(&severities).Error; err != nil {
		return nil, fmt.Errorf("group by severity: %w", err)
	}
	for _, row := range severities {
		stats.SeverityCounts[row.Name] = row.Total
	}

	return stats, nil
}

// CountByTenant 租户下的日志数量
func (s *AuditStore) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.AuditLog{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return count, nil
}

// DeleteByTenant 删除租户下全部日志，只应在强制删除租户的事务中调用
func (s *AuditStore) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&model.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete audit logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
