/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:39:17
 * @FilePath: \prompt-vault\backend\internal\repository\user_repository.go
 * @LastEditTime: 2025-10-20 17:26:51
 */
package repository

import (
	"context"

	"prompt-vault/backend/internal/domain/user"
	"prompt-vault/backend/internal/infra/store"

	"gorm.io/gorm"
)

// UserRepository 封装用户相关的数据访问方法，基于 GORM 实现。
type UserRepository struct {
	src store.Source
}

// NewUserRepository 创建用户仓储实例。
func NewUserRepository(src store.Source) *UserRepository {
	return &UserRepository{src: src}
}

// WithTx 返回绑定到事务句柄的仓储副本。
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{src: store.Fixed(tx)}
}

// Create 写入用户记录，邮箱重复时返回 gorm.ErrDuplicatedKey。
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	return db.Create(u).Error
}

// FindByID 根据主键查找用户。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var u user.User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByEmail 通过邮箱查找用户，若不存在返回 gorm.ErrRecordNotFound。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var u user.User
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword 更新密码哈希。
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	return r.update(ctx, userID, map[string]any{"password_hash": hash})
}

// UpdateProfile 更新展示名称与头像，fields 只包含需要修改的列。
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.update(ctx, userID, fields)
}

func (r *UserRepository) update(ctx context.Context, userID string, fields map[string]any) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	result := db.Model(&user.User{}).Where("id = ?", userID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
