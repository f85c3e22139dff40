package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"audit-server/internal/metrics"
	"audit-server/internal/middleware"
	"audit-server/internal/model"
	"audit-server/internal/pkg/apperror"
	"audit-server/internal/pkg/response"
	"audit-server/internal/pkg/utils"
	"audit-server/internal/service"
	"audit-server/internal/store"
)

type AuditHandler struct {
	audits  *store.AuditStore
	tenants *store.TenantDirectory
	metrics *metrics.Metrics
}

func NewAuditHandler(audits *store.AuditStore, tenants *store.TenantDirectory, m *metrics.Metrics) *AuditHandler {
	return &AuditHandler{audits: audits, tenants: tenants, metrics: m}
}

// CreateLogRequest 创建审计日志请求
type CreateLogRequest struct {
	TenantID       string                 `json:"tenant_id"`
	UserID         string                 `json:"user_id" binding:"max=255"`
	SessionID      *string                `json:"session_id" binding:"omitempty,max=255"`
	Action         string                 `json:"action" binding:"required,max=50"`
	ResourceType   string                 `json:"resource_type" binding:"required,max=50"`
	ResourceID     string                 `json:"resource_id" binding:"required,max=255"`
	Timestamp      *time.Time             `json:"timestamp"`
	IPAddress      *string                `json:"ip_address" binding:"omitempty,ip"`
	UserAgent      *string                `json:"user_agent"`
	BeforeState    map[string]interface{} `json:"before_state"`
	AfterState     map[string]interface{} `json:"after_state"`
	CustomMetadata map[string]interface{} `json:"custom_metadata"`
	Message        *string                `json:"message"`
	Severity       string                 `json:"severity" binding:"omitempty,oneof=INFO WARNING ERROR CRITICAL"`
}

// Create 创建审计日志。tenant_id 缺省为调用方所在租户，user_id 缺省为调用方
func (h *AuditHandler) Create(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)

	var req CreateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)

	// 不存在的租户对任何角色都返回 TenantNotFound
	if req.TenantID != "" {
		exists, err := h.tenants.Exists(c.Request.Context(), req.TenantID)
		if err != nil {
			response.Fail(c, err)
			return
		}
		if !exists {
			response.Fail(c, apperror.ErrTenantNotFound)
			return
		}
	}

	decision := service.Authorize(id, service.ActionLogCreate, req.TenantID)
	if err := decision.Err(); err != nil {
		response.Fail(c, err)
		return
	}

	entry := &model.AuditLog{
		TenantID:       decision.TenantID,
		UserID:         req.UserID,
		SessionID:      req.SessionID,
		Action:         req.Action,
		ResourceType:   req.ResourceType,
		ResourceID:     req.ResourceID,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		BeforeState:    req.BeforeState,
		AfterState:     req.AfterState,
		CustomMetadata: req.CustomMetadata,
		Message:        req.Message,
		Severity:       model.Severity(req.Severity),
	}
	if entry.UserID == "" {
		entry.UserID = id.UserID
	}
	if req.Timestamp != nil {
		entry.Timestamp = *req.Timestamp
	}

	if err := h.audits.Create(c.Request.Context(), entry); err != nil {
		response.Fail(c, err)
		return
	}
	h.metrics.AuditCreated(string(entry.Severity))

	middleware.GetRequestLogger(c).WithFields(logrus.Fields{
		"log_id":    entry.ID,
		"tenant_id": entry.TenantID,
		"action":    entry.Action,
		"severity":  entry.Severity,
	}).Debug("审计日志已写入")

	response.Created(c, entry)
}

// ListLogsQuery 审计日志查询参数
type ListLogsQuery struct {
	TenantID     string `form:"tenant_id"`
	UserID       string `form:"user_id"`
	Action       string `form:"action"`
	ResourceType string `form:"resource_type"`
	Severity     string `form:"severity" binding:"omitempty,oneof=INFO WARNING ERROR CRITICAL"`
	StartDate    string `form:"start_date"`
	EndDate      string `form:"end_date"`
	Page         int    `form:"page,default=1"`
	PageSize     int    `form:"page_size,default=50"`
}

// List 分页查询审计日志，非管理员只能看到本租户
func (h *AuditHandler) List(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)

	var q ListLogsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	decision := service.Authorize(id, service.ActionLogList, q.TenantID)
	if err := decision.Err(); err != nil {
		response.Fail(c, err)
		return
	}

	filter := store.AuditFilter{
		TenantID:     decision.TenantID,
		UserID:       q.UserID,
		Action:       q.Action,
		ResourceType: q.ResourceType,
		Severity:     model.Severity(q.Severity),
	}
	if q.StartDate != "" {
		t, err := utils.ParseTimeParam(q.StartDate, false)
		if err != nil {
			response.BadRequest(c, "start_date 格式错误")
			return
		}
		filter.StartDate = &t
	}
	if q.EndDate != "" {
		t, err := utils.ParseTimeParam(q.EndDate, true)
		if err != nil {
			response.BadRequest(c, "end_date 格式错误")
			return
		}
		filter.EndDate = &t
	}

	page, err := h.audits.List(c.Request.Context(), filter, store.Pagination{Page: q.Page, PageSize: q.PageSize})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, page)
}

// Get 获取单条审计日志。跨租户访问返回 Forbidden 而不是 NotFound
func (h *AuditHandler) Get(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)

	entry, err := h.audits.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}

	if err := service.Authorize(id, service.ActionLogRead, entry.TenantID).Err(); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, entry)
}

// Stats 聚合统计
func (h *AuditHandler) Stats(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)

	decision := service.Authorize(id, service.ActionLogStats, c.Query("tenant_id"))
	if err := decision.Err(); err != nil {
		response.Fail(c, err)
		return
	}

	stats, err := h.audits.Stats(c.Request.Context(), decision.TenantID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, stats)
}
