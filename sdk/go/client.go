// Package audit 提供审计日志服务的 Go 客户端 SDK
//
// 使用示例：
//
//	client := audit.NewClient("http://localhost:8000",
//	    audit.WithTimeout(10*time.Second),
//	)
//
//	// 登录后令牌保存在客户端内
//	if _, err := client.Login(ctx, "bob", "password"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// 写入审计日志，tenant_id 缺省为当前用户所在租户
//	entry, err := client.CreateLog(ctx, audit.CreateLogRequest{
//	    Action:       "CREATE",
//	    ResourceType: "order",
//	    ResourceID:   "42",
//	})
//
//	// 查询
//	page, err := client.ListLogs(ctx, audit.ListLogsParams{Severity: "CRITICAL"})
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotLoggedIn 未登录
var ErrNotLoggedIn = errors.New("尚未登录，请先调用 Login 或 SetToken")

// APIError 服务端返回的错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsForbidden 是否权限不足
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsNotFound 是否资源不存在
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized 是否认证失败（令牌无效、过期或账号被停用）
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client 审计日志客户端，可并发使用
type Client struct {
	serverURL  string
	timeout    time.Duration
	httpClient *http.Client

	token string
	mu    sync.RWMutex
}

// Option 客户端配置选项
type Option func(*Client)

// WithTimeout 设置请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient 使用自定义 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken 使用已有的访问令牌
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient 创建客户端
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// GetServerURL 服务地址
func (c *Client) GetServerURL() string {
	return c.serverURL
}

// SetToken 设置访问令牌
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token 当前访问令牌
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) request(ctx context.Context, method, endpoint string, query url.Values, data, out interface{}, authed bool) error {
	u := c.serverURL + "/api/v1" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.Token()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("网络请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var result envelope
	if err := json.Unmarshal(respBody, &result); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	if resp.StatusCode >= http.StatusBadRequest || result.Code != 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: result.Message}
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}

// ==================== 认证 ====================

// Login 使用用户名密码登录，成功后令牌保存在客户端内
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var result LoginResult
	err := c.request(ctx, http.MethodPost, "/auth/login", nil, map[string]string{
		"username": username,
		"password": password,
	}, &result, false)
	if err != nil {
		return nil, err
	}
	c.SetToken(result.AccessToken)
	return &result, nil
}

// Me 当前用户
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.request(ctx, http.MethodGet, "/auth/me", nil, nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// RegisterUser 创建用户（需要管理员）
func (c *Client) RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, error) {
	var user User
	if err := c.request(ctx, http.MethodPost, "/auth/register", nil, req, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser 查看用户
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := c.request(ctx, http.MethodGet, "/auth/users/"+url.PathEscape(id), nil, nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetUserActive 启用或停用用户（需要管理员）
func (c *Client) SetUserActive(ctx context.Context, id string, active bool) (*User, error) {
	action := "/deactivate"
	if active {
		action = "/activate"
	}
	var user User
	if err := c.request(ctx, http.MethodPatch, "/auth/users/"+url.PathEscape(id)+action, nil, nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// ==================== 审计日志 ====================

// CreateLog 写入审计日志
func (c *Client) CreateLog(ctx context.Context, req CreateLogRequest) (*AuditLog, error) {
	var entry AuditLog
	if err := c.request(ctx, http.MethodPost, "/logs", nil, req, &entry, true); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListLogs 分页查询审计日志
func (c *Client) ListLogs(ctx context.Context, params ListLogsParams) (*LogPage, error) {
	var page LogPage
	if err := c.request(ctx, http.MethodGet, "/logs", params.values(), nil, &page, true); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetLog 获取单条审计日志
func (c *Client) GetLog(ctx context.Context, id string) (*AuditLog, error) {
	var entry AuditLog
	if err := c.request(ctx, http.MethodGet, "/logs/"+url.PathEscape(id), nil, nil, &entry, true); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Stats 聚合统计，tenantID 为空时使用默认范围
func (c *Client) Stats(ctx context.Context, tenantID string) (*Stats, error) {
	var query url.Values
	if tenantID != "" {
		query = url.Values{"tenant_id": {tenantID}}
	}
	var stats Stats
	if err := c.request(ctx, http.MethodGet, "/logs/stats", query, nil, &stats, true); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ==================== 租户 ====================

// CreateTenant 创建租户（需要管理员）
func (c *Client) CreateTenant(ctx context.Context, name string, description *string) (*Tenant, error) {
	var tenant Tenant
	body := map[string]interface{}{"name": name, "description": description}
	if err := c.request(ctx, http.MethodPost, "/logs/tenants", nil, body, &tenant, true); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ListTenants 可见的租户列表
func (c *Client) ListTenants(ctx context.Context) ([]Tenant, error) {
	var tenants []Tenant
	if err := c.request(ctx, http.MethodGet, "/logs/tenants", nil, nil, &tenants, true); err != nil {
		return nil, err
	}
	return tenants, nil
}

// GetTenant 获取租户
func (c *Client) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	var tenant Tenant
	if err := c.request(ctx, http.MethodGet, "/logs/tenants/"+url.PathEscape(id), nil, nil, &tenant, true); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// DeleteTenant 删除租户，返回随之删除的日志条数
func (c *Client) DeleteTenant(ctx context.Context, id string, force bool) (int64, error) {
	query := url.Values{"force": {strconv.FormatBool(force)}}
	var result struct {
		DeletedLogCount int64 `json:"deleted_log_count"`
	}
	if err := c.request(ctx, http.MethodDelete, "/logs/tenants/"+url.PathEscape(id), query, nil, &result, true); err != nil {
		return 0, err
	}
	return result.DeletedLogCount, nil
}
