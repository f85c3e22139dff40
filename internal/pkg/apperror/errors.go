package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeInactiveAccount    Code = "INACTIVE_ACCOUNT"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeTenantNotFound     Code = "TENANT_NOT_FOUND"
	CodeDuplicateName      Code = "DUPLICATE_NAME"
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error 业务错误，errors.Is 按错误码匹配
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// 预定义错误
var (
	ErrInvalidCredentials = New(CodeInvalidCredentials, "用户名或密码错误")
	ErrInactiveAccount    = New(CodeInactiveAccount, "账号已被禁用")
	ErrUnauthenticated    = New(CodeUnauthenticated, "无效的认证信息")
	ErrForbidden          = New(CodeForbidden, "没有操作权限")
	ErrNotFound           = New(CodeNotFound, "资源不存在")
	ErrTenantNotFound     = New(CodeTenantNotFound, "租户不存在")
	ErrDuplicateName      = New(CodeDuplicateName, "名称已被使用")
	ErrBadRequest         = New(CodeBadRequest, "参数错误")
	ErrConflict           = New(CodeConflict, "存在关联数据，无法删除")
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMessage 复制一个同码错误并替换消息
func WithMessage(base *Error, message string) *Error {
	return &Error{Code: base.Code, Message: message}
}

// Wrap 包装底层错误
func Wrap(base *Error, cause error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Cause: cause}
}

// HTTPStatus 错误码对应的 HTTP 状态码
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeInvalidCredentials, CodeInactiveAccount, CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeTenantNotFound:
		return http.StatusNotFound
	case CodeDuplicateName, CodeBadRequest, CodeConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf 取错误码，非业务错误视为内部错误
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
