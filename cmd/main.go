package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"audit-server/internal/config"
	"audit-server/internal/handler"
	"audit-server/internal/logger"
	"audit-server/internal/metrics"
	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
	"audit-server/internal/pkg/crypto"
	"audit-server/internal/service"
	"audit-server/internal/store"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	migrate := flag.Bool("migrate", false, "执行数据库迁移后退出")
	initAdmin := flag.Bool("init-admin", false, "初始化管理员账号后退出")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log().Fatalf("加载配置失败: %v", err)
	}
	if err := logger.Init(cfg.Log, os.Stdout); err != nil {
		logger.Log().Fatalf("初始化日志失败: %v", err)
	}

	// 设置 Gin 模式
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	db, err := model.OpenDB(&cfg.Database, !cfg.IsRelease())
	if err != nil {
		logger.Log().Fatalf("初始化数据库失败: %v", err)
	}
	logger.WithFields(logrus.Fields{"driver": cfg.Database.ResolveDriver()}).Info("数据库连接成功")

	// 自动执行数据库迁移（确保表结构是最新的）
	if err := model.AutoMigrate(db); err != nil {
		logger.Log().Fatalf("数据库迁移失败: %v", err)
	}
	if *migrate {
		logger.Log().Info("数据库迁移完成")
		os.Exit(0)
	}

	tokens, err := crypto.NewTokenService(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.TTL())
	if err != nil {
		logger.Log().Fatalf("初始化令牌服务失败: %v", err)
	}

	audits := store.NewAuditStore(db)
	tenants := store.NewTenantDirectory(db, audits)
	auth := service.NewAuthService(store.NewUserStore(db), tokens)

	// 初始化管理员账号
	if *initAdmin {
		if err := bootstrapAdmin(context.Background(), auth, tenants); err != nil {
			logger.Log().Fatalf("初始化管理员失败: %v", err)
		}
		os.Exit(0)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(registry)
	}

	// 创建 Gin 引擎
	r := gin.New()

	// 设置路由
	handler.SetupRouter(r, &handler.Dependencies{
		Config:  cfg,
		DB:      db,
		Auth:    auth,
		Audits:  audits,
		Tenants: tenants,
		Metrics: m,
	})

	// 启动服务器
	addr := cfg.Server.Addr()
	logger.WithFields(logrus.Fields{"addr": addr, "mode": cfg.Server.Mode}).Info("服务器启动")
	if err := r.Run(addr); err != nil {
		logger.Log().Fatalf("服务器启动失败: %v", err)
	}
}

// bootstrapAdmin 根据环境变量创建初始租户与管理员，用户名已存在时跳过
func bootstrapAdmin(ctx context.Context, auth *service.AuthService, tenants *store.TenantDirectory) error {
	username := envOr("ADMIN_USERNAME", "admin")
	email := envOr("ADMIN_EMAIL", "admin@example.com")
	password := os.Getenv("ADMIN_PASSWORD")
	tenantName := envOr("ADMIN_TENANT", "default")

	if _, err := auth.GetUserByUsername(ctx, username); err == nil {
		logger.WithFields(logrus.Fields{"username": username}).Info("管理员账号已存在")
		return nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	if len(password) < 8 {
		return errors.New("ADMIN_PASSWORD 必须设置且不少于 8 位")
	}

	tenantID, err := findOrCreateTenant(ctx, tenants, tenantName)
	if err != nil {
		return err
	}

	user, err := auth.Register(ctx, service.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     model.RoleAdmin,
		TenantID: tenantID,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"username":  user.Username,
		"user_id":   user.ID,
		"tenant_id": tenantID,
	}).Info("管理员账号创建成功")
	return nil
}

func findOrCreateTenant(ctx context.Context, tenants *store.TenantDirectory, name string) (string, error) {
	list, err := tenants.List(ctx, "")
	if err != nil {
		return "", err
	}
	for _, t := range list {
		if t.Name == name {
			return t.ID, nil
		}
	}
	tenant, err := tenants.Create(ctx, name, nil)
	if err != nil {
		return "", err
	}
	return tenant.ID, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
