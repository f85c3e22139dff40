package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"audit-server/internal/config"
	"audit-server/internal/metrics"
	"audit-server/internal/middleware"
	"audit-server/internal/service"
	"audit-server/internal/store"
)

// Dependencies 路由所需的依赖。Metrics 为 nil 表示关闭指标
type Dependencies struct {
	Config  *config.Config
	DB      *gorm.DB
	Auth    *service.AuthService
	Audits  *store.AuditStore
	Tenants *store.TenantDirectory
	Metrics *metrics.Metrics
}

// SetupRouter 设置路由
func SetupRouter(r *gin.Engine, deps *Dependencies) {
	cfg := deps.Config

	// 全局中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(!cfg.IsRelease()))
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.Security.AllowedOrigins))

	// 安全响应头
	if cfg.Security.EnableSecurityHeaders {
		r.Use(middleware.SecurityHeadersMiddleware())
	}

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// 初始化 Handler
	healthHandler := NewHealthHandler(deps.DB)
	authHandler := NewAuthHandler(deps.Auth, deps.Metrics)
	tenantHandler := NewTenantHandler(deps.Tenants)
	auditHandler := NewAuditHandler(deps.Audits, deps.Tenants, deps.Metrics)

	// 健康检查
	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)

	api := r.Group("/api/v1")

	// ==================== 认证 ====================
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	authed := auth.Group("")
	authed.Use(middleware.AuthMiddleware(deps.Auth))
	{
		authed.GET("/me", authHandler.Me)
		authed.POST("/register", authHandler.Register)
		authed.GET("/users", authHandler.ListUsers)
		authed.GET("/users/:id", authHandler.GetUser)
		authed.PATCH("/users/:id/activate", authHandler.Activate)
		authed.PATCH("/users/:id/deactivate", authHandler.Deactivate)
	}

	// ==================== 审计日志 ====================
	logs := api.Group("/logs")
	logs.Use(middleware.AuthMiddleware(deps.Auth))
	{
		// 租户
		logs.POST("/tenants", tenantHandler.Create)
		logs.GET("/tenants", tenantHandler.List)
		logs.GET("/tenants/:id", tenantHandler.Get)
		logs.PUT("/tenants/:id", tenantHandler.Update)
		logs.PATCH("/tenants/:id", tenantHandler.Patch)
		logs.DELETE("/tenants/:id", tenantHandler.Delete)

		logs.GET("/stats", auditHandler.Stats)
		logs.POST("", auditHandler.Create)
		logs.POST("/", auditHandler.Create)
		logs.GET("", auditHandler.List)
		logs.GET("/", auditHandler.List)
		logs.GET("/:id", auditHandler.Get)
	}
}
