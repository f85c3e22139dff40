package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Security SecurityConfig `yaml:"security"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug / release
}

// Addr 监听地址
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql / postgres / sqlite
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`

	MaxIdleConns           int `yaml:"max_idle_conns"`
	MaxOpenConns           int `yaml:"max_open_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DSN 返回驱动可用的连接串，优先使用 URL
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.Charset)
}

// ResolveDriver 未显式配置驱动时根据 URL 推断
func (d *DatabaseConfig) ResolveDriver() string {
	if d.Driver != "" {
		return strings.ToLower(d.Driver)
	}
	url := strings.ToLower(d.URL)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"), url == ":memory:":
		return "sqlite"
	default:
		return "mysql"
	}
}

type JWTConfig struct {
	Secret        string `yaml:"secret"`
	Algorithm     string `yaml:"algorithm"`
	ExpireMinutes int    `yaml:"expire_minutes"`
}

// TTL Token 有效期
func (j *JWTConfig) TTL() time.Duration {
	return time.Duration(j.ExpireMinutes) * time.Minute
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text / json
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

type SecurityConfig struct {
	// 安全头
	EnableSecurityHeaders bool `yaml:"enable_security_headers"`

	// 允许的来源（CORS）
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// IsRelease 是否生产模式
func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}

var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Load 加载配置：默认值 -> YAML 文件（可选）-> .env -> 环境变量
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// 配置文件可选
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// .env 不存在时忽略
	_ = godotenv.Load()

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Charset:                "utf8mb4",
			MaxIdleConns:           10,
			MaxOpenConns:           50,
			ConnMaxLifetimeMinutes: 5,
		},
		JWT: JWTConfig{
			Algorithm:     "HS256",
			ExpireMinutes: 30,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Security: SecurityConfig{
			EnableSecurityHeaders: true,
			AllowedOrigins:        []string{"*"},
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// applyEnv 环境变量覆盖文件配置
func applyEnv(cfg *Config) error {
	var errs []error

	setString(&cfg.Server.Mode, "APP_ENV")
	setString(&cfg.Server.Host, "SERVER_HOST")
	errs = append(errs, setInt(&cfg.Server.Port, "SERVER_PORT"))

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	errs = append(errs,
		setInt(&cfg.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS"),
		setInt(&cfg.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS"),
		setInt(&cfg.Database.ConnMaxLifetimeMinutes, "DB_CONN_MAX_LIFETIME_MINUTES"),
	)

	setString(&cfg.JWT.Secret, "SECRET_KEY")
	setString(&cfg.JWT.Algorithm, "ALGORITHM")
	errs = append(errs, setInt(&cfg.JWT.ExpireMinutes, "ACCESS_TOKEN_EXPIRE_MINUTES"))

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.File, "LOG_FILE")
	errs = append(errs,
		setInt(&cfg.Log.MaxSize, "LOG_MAX_SIZE"),
		setInt(&cfg.Log.MaxBackups, "LOG_MAX_BACKUPS"),
		setInt(&cfg.Log.MaxAge, "LOG_MAX_AGE"),
	)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Security.AllowedOrigins = origins
	}
	errs = append(errs,
		setBool(&cfg.Security.EnableSecurityHeaders, "SECURITY_HEADERS"),
		setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED"),
	)

	return errors.Join(errs...)
}

// validate 校验配置，沿用生产环境必须显式配置密钥的约定
func validate(cfg *Config) error {
	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" {
		return fmt.Errorf("未知运行模式: %s", cfg.Server.Mode)
	}

	if cfg.Database.URL == "" && cfg.Database.Host == "" {
		return errors.New("必须配置 DATABASE_URL")
	}
	switch cfg.Database.ResolveDriver() {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", cfg.Database.Driver)
	}

	cfg.JWT.Algorithm = strings.ToUpper(cfg.JWT.Algorithm)
	if !supportedAlgorithms[cfg.JWT.Algorithm] {
		return fmt.Errorf("不支持的签名算法: %s", cfg.JWT.Algorithm)
	}
	if cfg.JWT.ExpireMinutes <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES 必须大于 0")
	}

	if cfg.JWT.Secret == "" {
		if cfg.IsRelease() {
			return errors.New("生产环境必须设置 SECRET_KEY")
		}
		// 开发环境自动生成随机密钥
		cfg.JWT.Secret = generateRandomSecret(32)
		fmt.Fprintln(os.Stderr, "[WARNING] 使用自动生成的 SECRET_KEY，请在生产环境配置安全的密钥")
	}
	if len(cfg.JWT.Secret) < 32 {
		if cfg.IsRelease() {
			return errors.New("SECRET_KEY 长度至少需要 32 个字符")
		}
		fmt.Fprintln(os.Stderr, "[WARNING] SECRET_KEY 长度建议至少 32 个字符")
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s 不是合法整数: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s 不是合法布尔值: %w", key, err)
	}
	*dst = b
	return nil
}

// generateRandomSecret 生成随机密钥
func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
