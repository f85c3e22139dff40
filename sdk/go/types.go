package audit

import (
	"net/url"
	"strconv"
	"time"
)

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id"`
}

// User 用户
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TenantID  string    `json:"tenant_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterUserRequest 创建用户请求
type RegisterUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	TenantID string `json:"tenant_id"`
}

// Tenant 租户
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuditLog 审计日志
type AuditLog struct {
	ID             string                 `json:"id"`
	TenantID       string                 `json:"tenant_id"`
	UserID         string                 `json:"user_id"`
	SessionID      *string                `json:"session_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Timestamp      time.Time              `json:"timestamp"`
	IPAddress      *string                `json:"ip_address"`
	UserAgent      *string                `json:"user_agent"`
	BeforeState    map[string]interface{} `json:"before_state"`
	AfterState     map[string]interface{} `json:"after_state"`
	CustomMetadata map[string]interface{} `json:"custom_metadata"`
	Message        *string                `json:"message"`
	Severity       string                 `json:"severity"`
	CreatedAt      time.Time              `json:"created_at"`
}

// CreateLogRequest 写入审计日志请求，零值字段不发送
type CreateLogRequest struct {
	TenantID       string                 `json:"tenant_id,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	SessionID      *string                `json:"session_id,omitempty"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Timestamp      *time.Time             `json:"timestamp,omitempty"`
	IPAddress      *string                `json:"ip_address,omitempty"`
	UserAgent      *string                `json:"user_agent,omitempty"`
	BeforeState    map[string]interface{} `json:"before_state,omitempty"`
	AfterState     map[string]interface{} `json:"after_state,omitempty"`
	CustomMetadata map[string]interface{} `json:"custom_metadata,omitempty"`
	Message        *string                `json:"message,omitempty"`
	Severity       string                 `json:"severity,omitempty"`
}

// ListLogsParams 查询参数，零值表示不过滤
type ListLogsParams struct {
	TenantID     string
	UserID       string
	Action       string
	ResourceType string
	Severity     string
	StartDate    string // RFC3339 或 YYYY-MM-DD
	EndDate      string
	Page         int
	PageSize     int
}

func (p ListLogsParams) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("tenant_id", p.TenantID)
	set("user_id", p.UserID)
	set("action", p.Action)
	set("resource_type", p.ResourceType)
	set("severity", p.Severity)
	set("start_date", p.StartDate)
	set("end_date", p.EndDate)
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return v
}

// LogPage 分页结果
type LogPage struct {
	Logs       []AuditLog `json:"logs"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// Stats 聚合统计
type Stats struct {
	TotalLogs      int64            `json:"total_logs"`
	ActionCounts   map[string]int64 `json:"action_counts"`
	SeverityCounts map[string]int64 `json:"severity_counts"`
}
