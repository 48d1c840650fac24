/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:38:45
 * @FilePath: \prompt-vault\backend\internal\domain\user\entity.go
 * @LastEditTime: 2025-10-21 11:40:02
 */
package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CollectionUsers 用户表名。
const CollectionUsers = "users"

// User represents the persisted user entity in the system.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`      // UUID 主键
	Email        string    `gorm:"size:255;uniqueIndex" json:"email"` // 登录邮箱（唯一）
	PasswordHash *string   `gorm:"size:255" json:"-"`                 // Bcrypt 哈希，第三方登录账号为空
	Name         string    `gorm:"size:64" json:"name"`               // 展示名称
	Image        string    `gorm:"size:512" json:"image"`             // 头像地址
	CreatedAt    time.Time `json:"createdAt"`                         // 创建时间戳（gorm 自动维护）
	UpdatedAt    time.Time `json:"updatedAt"`                         // 更新时间戳（gorm 自动维护）
}

// TableName 指定数据库表名。
func (User) TableName() string {
	return CollectionUsers
}

// BeforeCreate 在缺省时生成 UUID。
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// HasPassword 判断账号是否设置过本地密码。
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// Identity 是鉴权通过后注入请求上下文的用户摘要。
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// IdentityOf 由持久化实体生成用户摘要。
func IdentityOf(u *User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image}
}
