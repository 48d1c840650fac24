package handler

import (
	response "prompt-vault/backend/internal/infra/common"
	"prompt-vault/backend/internal/middleware"
	usersvc "prompt-vault/backend/internal/service/user"
	"prompt-vault/backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责账号资料与密码相关接口。
type UserHandler struct {
	service *usersvc.Service
}

// NewUserHandler 构造用户 handler。
func NewUserHandler(service *usersvc.Service) *UserHandler {
	return &UserHandler{service: service}
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required,min=8" label:"旧密码"`
	NewPassword string `json:"newPassword" binding:"required,min=8" label:"新密码"`
}

type updateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=64" label:"名称"`
	Image *string `json:"image" binding:"omitempty,url" label:"头像"`
}

// Me 返回当前登录用户。
func (h *UserHandler) Me(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	user, err := h.service.Me(c.Request.Context(), identity.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, toUserDTO(user))
}

// ChangePassword 校验旧密码并设置新密码。
func (h *UserHandler) ChangePassword(c *gin.Context) {
	identity := middleware.MustIdentity(c)

	var req changePasswordRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Abort(c, err)
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), identity.UserID, req.OldPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, gin.H{"success": true, "message": "密码修改成功"})
}

// UpdateProfile 更新展示名称与头像。
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	identity := middleware.MustIdentity(c)

	var req updateProfileRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Abort(c, err)
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), identity.UserID, usersvc.ProfileUpdate{
		Name:  req.Name,
		Image: req.Image,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, gin.H{
		"success": true,
		"name":    user.Name,
		"image":   user.Image,
		"message": "个人信息更新成功",
	})
}
