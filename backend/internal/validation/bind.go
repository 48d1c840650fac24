/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-12 10:18:06
 * @FilePath: \prompt-vault\backend\internal\validation\bind.go
 * @LastEditTime: 2025-10-20 16:42:19
 */
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	response "prompt-vault/backend/internal/infra/common"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldViolation 描述单个字段的校验失败。
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// Register 让 gin 的校验器以 label 标签（缺省为 json 名）作为字段名，重复调用无副作用。
func Register() {
	registerOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			if label := strings.TrimSpace(field.Tag.Get("label")); label != "" {
				return label
			}
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
}

// BindJSON 解析并校验请求体，失败时返回 INVALID_JSON 或聚合全部字段错误的 VALIDATION_ERROR。
func BindJSON(c *gin.Context, dst any) error {
	Register()
	if err := c.ShouldBindJSON(dst); err != nil {
		return Translate(err)
	}
	return nil
}

// BindQuery 解析并校验查询参数，类型不匹配返回 BAD_REQUEST。
func BindQuery(c *gin.Context, dst any) error {
	Register()
	if err := c.ShouldBindQuery(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return Translate(err)
		}
		return response.BadRequest("查询参数格式错误")
	}
	return nil
}

// Translate 将 gin 绑定错误转换为统一的 AppError。
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		violations := make([]FieldViolation, 0, len(verrs))
		messages := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msg := fieldMessage(fe)
			violations = append(violations, FieldViolation{Field: fe.Field(), Message: msg})
			messages = append(messages, msg)
		}
		return response.NewError(http.StatusBadRequest, response.ErrValidation, strings.Join(messages, ", ")).
			WithDetails(violations)
	}
	return response.NewError(http.StatusBadRequest, response.ErrInvalidJSON, "请求体格式错误")
}

func fieldMessage(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + "不能为空"
	case "email":
		return "无效的邮箱格式"
	case "url":
		return label + "必须是有效的 URL"
	case "min":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("%s不能小于 %s", label, fe.Param())
		}
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("%s至少 %s 项", label, fe.Param())
		}
		return fmt.Sprintf("%s至少 %s 个字符", label, fe.Param())
	case "max":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("%s不能大于 %s", label, fe.Param())
		}
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("%s最多 %s 项", label, fe.Param())
		}
		return fmt.Sprintf("%s最多 %s 个字符", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s必须是 [%s] 之一", label, fe.Param())
	default:
		return label + "格式不正确"
	}
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isCollection(kind reflect.Kind) bool {
	return kind == reflect.Slice || kind == reflect.Array || kind == reflect.Map
}
