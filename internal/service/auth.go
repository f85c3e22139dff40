package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
	"audit-server/internal/pkg/crypto"
	"audit-server/internal/store"
)

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int64      `json:"expires_in"` // 秒
	UserID      string     `json:"user_id"`
	Role        model.Role `json:"role"`
	TenantID    string     `json:"tenant_id"`
}

// RegisterInput 创建用户参数
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     model.Role
	TenantID string
}

var (
	placeholderOnce sync.Once
	placeholder     string
)

// placeholderHash 与真实密码同成本的 bcrypt 哈希，仅用于不存在的用户
func placeholderHash() string {
	placeholderOnce.Do(func() {
		placeholder, _ = crypto.HashPassword("audit-server-placeholder-password")
	})
	return placeholder
}

// AuthService 登录、令牌解析与用户管理
type AuthService struct {
	users  *store.UserStore
	tokens *crypto.TokenService
}

func NewAuthService(users *store.UserStore, tokens *crypto.TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Authenticate 校验用户名密码并签发令牌
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// 用户不存在时同样执行一次 bcrypt 比较，使耗时与密码错误一致
			crypto.CheckPassword(password, placeholderHash())
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.CheckPassword(password, user.PasswordHash) {
		return nil, apperror.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperror.ErrInactiveAccount
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, string(user.Role), user.TenantID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
		UserID:      user.ID,
		Role:        user.Role,
		TenantID:    user.TenantID,
	}, nil
}

// Resolve 解析令牌并重新加载用户。用户被停用后，其已签发的令牌随即失效
func (s *AuthService) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return Identity{}, apperror.Wrap(apperror.ErrUnauthenticated, err)
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return Identity{}, apperror.ErrUnauthenticated
		}
		return Identity{}, err
	}
	if !user.IsActive {
		return Identity{}, apperror.WithMessage(apperror.ErrUnauthenticated, "账号已被禁用")
	}

	return Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		TenantID: user.TenantID,
	}, nil
}

// Register 创建用户，新用户默认启用
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if !in.Role.Valid() {
		return nil, apperror.WithMessage(apperror.ErrBadRequest, "无效的角色: "+string(in.Role))
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         in.Role,
		TenantID:     in.TenantID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername 按用户名获取用户
func (s *AuthService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// ListUsers 分页列出用户
func (s *AuthService) ListUsers(ctx context.Context, page store.Pagination) ([]model.User, int64, error) {
	return s.users.List(ctx, page)
}

// GetUser 获取用户
func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// SetActive 启用或停用用户
func (s *AuthService) SetActive(ctx context.Context, id string, active bool) (*model.User, error) {
	return s.users.SetActive(ctx, id, active)
}
