/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 17:02:32
 * @FilePath: \prompt-vault\backend\internal\infra\common\response.go
 * @LastEditTime: 2025-10-21 11:04:51
 */
package response

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorCode 表示统一的错误码，便于客户端识别失败原因。
type ErrorCode string

const (
	ErrBadRequest           ErrorCode = "BAD_REQUEST"
	ErrUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrForbidden            ErrorCode = "FORBIDDEN"
	ErrValidation           ErrorCode = "VALIDATION_ERROR"
	ErrInvalidJSON          ErrorCode = "INVALID_JSON"
	ErrInvalidID            ErrorCode = "INVALID_ID"
	ErrUserNotFound         ErrorCode = "USER_NOT_FOUND"
	ErrPromptNotFound       ErrorCode = "PROMPT_NOT_FOUND"
	ErrVersionNotFound      ErrorCode = "VERSION_NOT_FOUND"
	ErrMarketPromptNotFound ErrorCode = "MARKET_PROMPT_NOT_FOUND"
	ErrFeedNotFound         ErrorCode = "FEED_NOT_FOUND"
	ErrNotFound             ErrorCode = "NOT_FOUND"
	ErrRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrEmailAlreadyExists   ErrorCode = "EMAIL_ALREADY_EXISTS"
	ErrInvalidOldPassword   ErrorCode = "INVALID_OLD_PASSWORD"
	ErrInvalidCredentials   ErrorCode = "INVALID_CREDENTIALS"
	ErrCaptchaInvalid       ErrorCode = "CAPTCHA_INVALID"
	ErrCaptchaExpired       ErrorCode = "CAPTCHA_EXPIRED"
	ErrCaptchaRequired      ErrorCode = "CAPTCHA_REQUIRED"
	ErrServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	ErrInternal             ErrorCode = "INTERNAL_ERROR"
)

// AppError 是唯一的领域错误类型，携带 HTTP 状态码、提示信息与机器可读的错误码。
type AppError struct {
	Status  int
	Code    ErrorCode
	Message string
	Details any
}

func (e *AppError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError 构造 AppError。
func NewError(status int, code ErrorCode, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

// WithDetails 返回附带 details 的副本。
func (e *AppError) WithDetails(details any) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// AsAppError 从错误链中提取 AppError。
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Unauthorized 未登录。
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "未授权，请先登录"
	}
	return NewError(http.StatusUnauthorized, ErrUnauthorized, message)
}

// Forbidden 已登录但无权访问。
func Forbidden(message string) *AppError {
	return NewError(http.StatusForbidden, ErrForbidden, message)
}

// BadRequest 通用参数错误。
func BadRequest(message string) *AppError {
	return NewError(http.StatusBadRequest, ErrBadRequest, message)
}

// NotFound 资源不存在，code 区分具体资源类型。
func NotFound(code ErrorCode, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// Internal 返回对外安全的 500 错误。
func Internal(message string) *AppError {
	if message == "" {
		message = "服务器内部错误"
	}
	return NewError(http.StatusInternalServerError, ErrInternal, message)
}

// ErrorBody 描述错误响应的统一结构。
type ErrorBody struct {
	Error   string    `json:"error"`
	Code    ErrorCode `json:"code,omitempty"`
	Details any       `json:"details,omitempty"`
}

// Body 是所有成功响应的公共结构。
type Body struct {
	Data any `json:"data"`
}

// Paginated 描述分页结果。
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// NewPaginated 组装分页结果，totalPages 向上取整。
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// Success 以统一格式返回成功结果。
func Success(c *gin.Context, status int, data any) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, Body{Data: data})
}

// Created 返回 201 Created 的成功响应。
func Created(c *gin.Context, data any) {
	Success(c, http.StatusCreated, data)
}

// Fail 以统一格式返回错误结果。
func Fail(c *gin.Context, err *AppError) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, ErrorBody{
		Error:   err.Message,
		Code:    err.Code,
		Details: err.Details,
	})
}

// Abort 将错误挂到 gin.Context 上并中止后续处理，由最外层的错误渲染中间件统一输出。
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// FormatTime 以 ISO-8601（UTC、毫秒精度）输出时间。
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Documents 对数组中的每个文档应用同一个序列化函数。
func Documents[T any, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
