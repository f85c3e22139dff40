package handler

import (
	"github.com/gin-gonic/gin"

	"audit-server/internal/metrics"
	"audit-server/internal/middleware"
	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
	"audit-server/internal/pkg/response"
	"audit-server/internal/pkg/utils"
	"audit-server/internal/service"
	"audit-server/internal/store"
)

type AuthHandler struct {
	auth    *service.AuthService
	metrics *metrics.Metrics
}

func NewAuthHandler(auth *service.AuthService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{auth: auth, metrics: m}
}

// LoginRequest 登录请求，支持 JSON 与表单
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RegisterRequest 创建用户请求（仅管理员）
type RegisterRequest struct {
	Username string     `json:"username" binding:"required,min=3,max=50"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     model.Role `json:"role"`
	TenantID string     `json:"tenant_id" binding:"required"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.LoginAttempt(loginOutcome(err))
		middleware.GetRequestLogger(c).WithField("username", req.Username).
			WithError(err).Info("登录失败")
		response.Fail(c, err)
		return
	}
	h.metrics.LoginAttempt("success")

	response.Success(c, result)
}

func loginOutcome(err error) string {
	switch apperror.CodeOf(err) {
	case apperror.CodeInvalidCredentials:
		return "invalid_credentials"
	case apperror.CodeInactiveAccount:
		return "inactive_account"
	default:
		return "error"
	}
}

// Me 当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	user, err := h.auth.GetUser(c.Request.Context(), id.UserID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, user)
}

// Register 创建用户（仅管理员）
func (h *AuthHandler) Register(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)

	if err := service.Authorize(id, service.ActionUserRegister, "").Err(); err != nil {
		response.Fail(c, err)
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		TenantID: req.TenantID,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	middleware.GetRequestLogger(c).WithField("email", utils.MaskEmail(user.Email)).
		WithField("role", user.Role).Info("用户已创建")
	response.Created(c, user)
}

// UserListQuery 用户列表查询参数
type UserListQuery struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=50"`
}

// ListUsers 用户列表（仅管理员）
func (h *AuthHandler) ListUsers(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	if err := service.Authorize(id, service.ActionUserList, "").Err(); err != nil {
		response.Fail(c, err)
		return
	}

	var q UserListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	page := store.Pagination{Page: q.Page, PageSize: q.PageSize}

	users, total, err := h.auth.ListUsers(c.Request.Context(), page)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"users":       users,
		"total":       total,
		"page":        page.Page,
		"page_size":   page.PageSize,
		"total_pages": utils.TotalPages(total, page.PageSize),
	})
}

// GetUser 查看用户，本人或管理员
func (h *AuthHandler) GetUser(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	userID := c.Param("id")

	if userID != id.UserID {
		if err := service.Authorize(id, service.ActionUserRead, "").Err(); err != nil {
			response.Fail(c, err)
			return
		}
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, user)
}

// Activate 启用用户
func (h *AuthHandler) Activate(c *gin.Context) {
	h.setActive(c, service.ActionUserActivate, true)
}

// Deactivate 停用用户，其已签发的令牌在下一次请求时失效
func (h *AuthHandler) Deactivate(c *gin.Context) {
	h.setActive(c, service.ActionUserDeactivate, false)
}

func (h *AuthHandler) setActive(c *gin.Context, action service.Action, active bool) {
	id, _ := middleware.GetIdentity(c)
	if err := service.Authorize(id, action, "").Err(); err != nil {
		response.Fail(c, err)
		return
	}

	user, err := h.auth.SetActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		response.Fail(c, err)
		return
	}

	msg := "用户已停用"
	if active {
		msg = "用户已启用"
	}
	response.SuccessWithMessage(c, msg, user)
}
