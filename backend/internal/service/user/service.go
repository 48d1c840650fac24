/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 22:37:41
 * @FilePath: \prompt-vault\backend\internal\service\user\service.go
 * @LastEditTime: 2025-10-21 15:40:18
 */
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "prompt-vault/backend/internal/domain/user"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 表示请求的用户不存在，或账号没有本地密码。
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidOldPassword 表示修改密码时旧密码校验失败。
	ErrInvalidOldPassword = errors.New("old password mismatch")
)

// Service 负责账号资料与密码。
type Service struct {
	users    *repository.UserRepository
	logger   *zap.SugaredLogger
	hashCost int
}

// NewService 构造用户服务层实例。
func NewService(users *repository.UserRepository) *Service {
	return &Service{
		users:    users,
		logger:   appLogger.Component("user.service"),
		hashCost: bcrypt.DefaultCost,
	}
}

// WithHashCost 调整 bcrypt 成本。
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Me 返回当前用户。
func (s *Service) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// ChangePassword 校验旧密码后写入新的哈希。
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	log := s.logger.With("operation", "change_password", "user_id", userID)

	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !u.HasPassword() {
		log.Warnw("account has no local password")
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(oldPassword)); err != nil {
		log.Warnw("old password mismatch")
		return ErrInvalidOldPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	log.Infow("password changed")
	return nil
}

// ProfileUpdate 描述资料修改，nil 字段保持不变。
type ProfileUpdate struct {
	Name  *string
	Image *string
}

// UpdateProfile 更新展示名称与头像并返回最新资料。
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*domain.User, error) {
	fields := make(map[string]any, 2)
	if update.Name != nil {
		fields["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Image != nil {
		fields["image"] = strings.TrimSpace(*update.Image)
	}

	if err := s.users.UpdateProfile(ctx, userID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("profile updated", "user_id", userID, "fields", len(fields))
	return u, nil
}
