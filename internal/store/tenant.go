package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
	"audit-server/internal/pkg/utils"
)

// TenantDirectory 租户目录
type TenantDirectory struct {
	db     *gorm.DB
	audits *AuditStore
}

func NewTenantDirectory(db *gorm.DB, audits *AuditStore) *TenantDirectory {
	return &TenantDirectory{db: db, audits: audits}
}

func validTenantName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 255 {
		return "", apperror.WithMessage(apperror.ErrBadRequest, "租户名称长度必须在 1 到 255 之间")
	}
	return name, nil
}

// nameTaken 名称是否已被其他租户使用，excludeID 为空时检查全部
func nameTaken(tx *gorm.DB, name, excludeID string) (bool, error) {
	query := tx.Model(&model.Tenant{}).Where("name = ?", name)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check tenant name: %w", err)
	}
	return count > 0, nil
}

// Create 创建租户
func (d *TenantDirectory) Create(ctx context.Context, name string, description *string) (*model.Tenant, error) {
	name, err := validTenantName(name)
	if err != nil {
		return nil, err
	}

	tenant := &model.Tenant{
		ID:          utils.GenerateUUID(),
		Name:        name,
		Description: description,
	}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, name, "")
		if err != nil {
			return err
		}
		if taken {
			return apperror.WithMessage(apperror.ErrDuplicateName, "租户名称已存在")
		}
		if err := tx.Create(tenant).Error; err != nil {
			return duplicateOr(err, "create tenant")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// List 列出租户，scope 为空时返回全部，否则只返回该租户
func (d *TenantDirectory) List(ctx context.Context, scope string) ([]model.Tenant, error) {
	query := d.db.WithContext(ctx).Order("name ASC")
	if scope != "" {
		query = query.Where("id = ?", scope)
	}
	tenants := make([]model.Tenant, 0)
	if err := query.Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// Get 获取租户
func (d *TenantDirectory) Get(ctx context.Context, id string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := d.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "get tenant")
	}
	return &tenant, nil
}

// Exists 租户是否存在
func (d *TenantDirectory) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&model.Tenant{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check tenant: %w", err)
	}
	return count > 0, nil
}

// Update 整体更新，description 为 nil 时清空
func (d *TenantDirectory) Update(ctx context.Context, id, name string, description *string) (*model.Tenant, error) {
	name, err := validTenantName(name)
	if err != nil {
		return nil, err
	}
	return d.update(ctx, id, func(t *model.Tenant) {
		t.Name = name
		t.Description = description
	}, name)
}

// TenantPatch 部分更新字段。DescriptionSet 为 true 时写入 Description，nil 表示清空
type TenantPatch struct {
	Name           *string
	Description    *string
	DescriptionSet bool
}

// PartialUpdate 部分更新，至少提供一个字段
func (d *TenantDirectory) PartialUpdate(ctx context.Context, id string, patch TenantPatch) (*model.Tenant, error) {
	if patch.Name == nil && !patch.DescriptionSet {
		return nil, apperror.WithMessage(apperror.ErrBadRequest, "至少需要提供一个更新字段")
	}
	newName := ""
	if patch.Name != nil {
		n, err := validTenantName(*patch.Name)
		if err != nil {
			return nil, err
		}
		newName = n
	}
	return d.update(ctx, id, func(t *model.Tenant) {
		if newName != "" {
			t.Name = newName
		}
		if patch.DescriptionSet {
			t.Description = patch.Description
		}
	}, newName)
}

func (d *TenantDirectory) update(ctx context.Context, id string, apply func(*model.Tenant), newName string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tenant, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "get tenant")
		}
		if newName != "" && newName != tenant.Name {
			taken, err := nameTaken(tx, newName, id)
			if err != nil {
				return err
			}
			if taken {
				return apperror.WithMessage(apperror.ErrDuplicateName, "租户名称已存在")
			}
		}
		apply(&tenant)
		if err := tx.Save(&tenant).Error; err != nil {
			return duplicateOr(err, "update tenant")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// Delete 删除租户，返回随之删除的日志条数。
// 存在关联日志且未指定 force 时返回 Conflict，不做任何删除
func (d *TenantDirectory) Delete(ctx context.Context, id string, force bool) (int64, error) {
	var deleted int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant model.Tenant
		if err := tx.First(&tenant, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "get tenant")
		}

		audits := d.audits.WithTx(tx)
		count, err := audits.CountByTenant(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			if !force {
				return apperror.WithMessage(apperror.ErrConflict,
					fmt.Sprintf("租户下存在 %d 条审计日志，请使用 force=true 强制删除", count))
			}
			if deleted, err = audits.DeleteByTenant(ctx, id); err != nil {
				return err
			}
		}

		if err := tx.Delete(&tenant).Error; err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
