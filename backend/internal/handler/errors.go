package handler

import (
	"errors"
	"net/http"

	response "prompt-vault/backend/internal/infra/common"
	authsvc "prompt-vault/backend/internal/service/auth"
	feedsvc "prompt-vault/backend/internal/service/feed"
	marketsvc "prompt-vault/backend/internal/service/market"
	promptsvc "prompt-vault/backend/internal/service/prompt"
	usersvc "prompt-vault/backend/internal/service/user"

	"github.com/gin-gonic/gin"
)

// mapError 把服务层的哨兵错误翻译成对外的 AppError，未识别的错误原样交给 ErrorRenderer。
func mapError(err error) error {
	switch {
	case errors.Is(err, authsvc.ErrEmailTaken):
		return response.NewError(http.StatusConflict, response.ErrEmailAlreadyExists, "该邮箱已被注册")
	case errors.Is(err, authsvc.ErrInvalidLogin):
		return response.NewError(http.StatusUnauthorized, response.ErrInvalidCredentials, "邮箱或密码错误")
	case errors.Is(err, authsvc.ErrCaptchaRequired):
		return response.NewError(http.StatusBadRequest, response.ErrCaptchaRequired, "请输入验证码")
	case errors.Is(err, authsvc.ErrCaptchaInvalid):
		return response.NewError(http.StatusBadRequest, response.ErrCaptchaInvalid, "验证码错误")
	case errors.Is(err, authsvc.ErrCaptchaExpired):
		return response.NewError(http.StatusBadRequest, response.ErrCaptchaExpired, "验证码已过期，请刷新后重试")
	case errors.Is(err, authsvc.ErrCaptchaRateLimited):
		return response.NewError(http.StatusTooManyRequests, response.ErrRateLimitExceeded, "验证码请求过于频繁，请稍后再试")
	case errors.Is(err, authsvc.ErrCaptchaDisabled):
		return response.NotFound(response.ErrNotFound, "验证码未启用")
	case errors.Is(err, usersvc.ErrUserNotFound):
		return response.NotFound(response.ErrUserNotFound, "用户不存在")
	case errors.Is(err, usersvc.ErrInvalidOldPassword):
		return response.NewError(http.StatusBadRequest, response.ErrInvalidOldPassword, "旧密码不正确")
	case errors.Is(err, promptsvc.ErrPromptNotFound), errors.Is(err, marketsvc.ErrPromptNotFound):
		return response.NotFound(response.ErrPromptNotFound, "提示词不存在")
	case errors.Is(err, promptsvc.ErrVersionNotFound):
		return response.NotFound(response.ErrVersionNotFound, "版本不存在")
	case errors.Is(err, marketsvc.ErrMarketPromptNotFound):
		return response.NotFound(response.ErrMarketPromptNotFound, "市场提示词不存在")
	case errors.Is(err, feedsvc.ErrUserIDRequired):
		return response.BadRequest("缺少 userId 参数")
	case errors.Is(err, feedsvc.ErrFeedNotFound):
		return response.NotFound(response.ErrFeedNotFound, "未找到数据")
	}
	return err
}

// fail 中止请求并交由 ErrorRenderer 输出错误。
func fail(c *gin.Context, err error) {
	response.Abort(c, mapError(err))
}
