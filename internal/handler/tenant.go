package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"audit-server/internal/middleware"
	"audit-server/internal/pkg/response"
	"audit-server/internal/service"
	"audit-server/internal/store"
)

type TenantHandler struct {
	tenants *store.TenantDirectory
}

func NewTenantHandler(tenants *store.TenantDirectory) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// TenantRequest 创建 / 整体更新租户请求
type TenantRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=255"`
	Description *string `json:"description"`
}

// NullableString 区分字段缺省与显式 null
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// PatchTenantRequest 部分更新租户请求，description 为 null 时清空
type PatchTenantRequest struct {
	Name        *string        `json:"name" binding:"omitempty,min=1,max=255"`
	Description NullableString `json:"description"`
}

// Create 创建租户（仅管理员）
func (h *TenantHandler) Create(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	if err := service.Authorize(id, service.ActionTenantCreate, "").Err(); err != nil {
		response.Fail(c, err)
		return
	}

	var req TenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	tenant, err := h.tenants.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, tenant)
}

// List 租户列表，非管理员只返回本租户
func (h *TenantHandler) List(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	decision := service.Authorize(id, service.ActionTenantList, c.Query("tenant_id"))
	if err := decision.Err(); err != nil {
		response.Fail(c, err)
		return
	}

	tenants, err := h.tenants.List(c.Request.Context(), decision.TenantID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tenants)
}

// Get 获取租户
func (h *TenantHandler) Get(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	tenantID := c.Param("id")

	// 先做权限判断，非管理员访问其他租户时无论其是否存在都返回 Forbidden
	if err := service.Authorize(id, service.ActionTenantRead, tenantID).Err(); err != nil {
		response.Fail(c, err)
		return
	}

	tenant, err := h.tenants.Get(c.Request.Context(), tenantID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tenant)
}

// Update 整体更新租户（仅管理员）
func (h *TenantHandler) Update(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	tenantID := c.Param("id")
	if err := service.Authorize(id, service.ActionTenantUpdate, tenantID).Err(); err != nil {
		response.Fail(c, err)
		return
	}

	var req TenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	tenant, err := h.tenants.Update(c.Request.Context(), tenantID, req.Name, req.Description)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tenant)
}

// Patch 部分更新租户（仅管理员）
func (h *TenantHandler) Patch(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	tenantID := c.Param("id")
	if err := service.Authorize(id, service.ActionTenantUpdate, tenantID).Err(); err != nil {
		response.Fail(c, err)
		return
	}

	var req PatchTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	tenant, err := h.tenants.PartialUpdate(c.Request.Context(), tenantID, store.TenantPatch{
		Name:           req.Name,
		Description:    req.Description.Value,
		DescriptionSet: req.Description.Set,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, tenant)
}

// Delete 删除租户（仅管理员）。存在审计日志时需要 force=true
func (h *TenantHandler) Delete(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	tenantID := c.Param("id")
	if err := service.Authorize(id, service.ActionTenantDelete, tenantID).Err(); err != nil {
		response.Fail(c, err)
		return
	}

	force := false
	if v := c.Query("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "force 参数必须为布尔值")
			return
		}
		force = parsed
	}

	deleted, err := h.tenants.Delete(c.Request.Context(), tenantID, force)
	if err != nil {
		response.Fail(c, err)
		return
	}

	middleware.GetRequestLogger(c).WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"deleted_logs": deleted,
		"force":        force,
		"operator":     id.UserID,
	}).Warn("租户已删除")

	response.SuccessWithMessage(c, "删除成功", gin.H{
		"tenant_id":         tenantID,
		"deleted_log_count": deleted,
	})
}
