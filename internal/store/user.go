package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
	"audit-server/internal/pkg/utils"
)

// UserStore 用户凭据存储，用户只会被停用，不做物理删除
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create 创建用户。租户必须存在，用户名和邮箱唯一
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Tenant{}).Where("id = ?", user.TenantID).Count(&count).Error; err != nil {
			return fmt.Errorf("check tenant: %w", err)
		}
		if count == 0 {
			return apperror.ErrTenantNotFound
		}

		if err := tx.Model(&model.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if count > 0 {
			return apperror.WithMessage(apperror.ErrDuplicateName, "用户名已存在")
		}

		if err := tx.Model(&model.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return apperror.WithMessage(apperror.ErrDuplicateName, "邮箱已被注册")
		}

		user.ID = utils.GenerateUUID()
		if err := tx.Create(user).Error; err != nil {
			return duplicateOr(err, "create user")
		}
		return nil
	})
}

// GetByUsername 按用户名查找
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, notFoundOr(err, "get user")
	}
	return &user, nil
}

// GetByID 按 ID 查找
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "get user")
	}
	return &user, nil
}

// List 分页列出用户，按创建时间排序
func (s *UserStore) List(ctx context.Context, page Pagination) ([]model.User, int64, error) {
	if err := page.Validate(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	users := make([]model.User, 0)
	if err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// SetActive 启用或停用用户
func (s *UserStore) SetActive(ctx context.Context, id string, active bool) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "get user")
		}
		if err := tx.Model(&user).Update("is_active", active).Error; err != nil {
			return fmt.Errorf("update user status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	return &user, nil
}
