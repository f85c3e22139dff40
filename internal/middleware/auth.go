package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"audit-server/internal/pkg/response"
	"audit-server/internal/service"
)

const identityKey = "identity"

// AuthMiddleware Bearer 令牌认证中间件，每次请求都重新校验用户状态
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "缺少认证信息")
			c.Abort()
			return
		}

		// Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "认证格式错误")
			c.Abort()
			return
		}

		id, err := auth.Resolve(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			GetRequestLogger(c).WithError(err).Debug("令牌校验失败")
			response.Fail(c, err)
			c.Abort()
			return
		}

		// 将用户信息存入上下文
		c.Set(identityKey, id)
		c.Set("user_id", id.UserID)
		c.Set("tenant_id", id.TenantID)
		c.Set("role", string(id.Role))

		c.Next()
	}
}

// GetIdentity 从上下文获取调用方身份
func GetIdentity(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return service.Identity{}, false
	}
	id, ok := v.(service.Identity)
	return id, ok
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetTenantID 从上下文获取租户 ID
func GetTenantID(c *gin.Context) string {
	tenantID, _ := c.Get("tenant_id")
	if id, ok := tenantID.(string); ok {
		return id
	}
	return ""
}

// GetUserRole 从上下文获取用户角色
func GetUserRole(c *gin.Context) string {
	role, _ := c.Get("role")
	if r, ok := role.(string); ok {
		return r
	}
	return ""
}
