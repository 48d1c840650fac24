package prompt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Collection 名称即数据表名，供文档访问层与调试接口引用。
const (
	CollectionPrompts        = "prompts"
	CollectionPromptVersions = "prompt_versions"
	CollectionMarketPrompts  = "market_prompts"
	CollectionFavorites      = "favorites"
)

// Prompt 表示用户私有的提示词记录。
type Prompt struct {
	ID            string         `gorm:"primaryKey;size:36"`                                         // UUID 主键。
	UserID        string         `gorm:"size:36;not null;index:idx_prompts_user_updated,priority:1"` // 所属用户。
	Name          string         `gorm:"size:255;not null"`                                          // 名称。
	Body          string         `gorm:"type:text;not null"`                                         // 提示词正文。
	Emoji         string         `gorm:"size:32"`                                                    // 可选图标。
	Description   string         `gorm:"type:text"`                                                  // 可选描述。
	Groups        datatypes.JSON `gorm:"column:group_labels;type:json"`                              // 分组标签 JSON 数组。
	IsPublished   bool           `gorm:"not null;default:false"`                                     // 是否已发布到市场。
	LatestVersion int            `gorm:"not null;default:0"`                                         // 已分配的最大版本号。
	CreatedAt     time.Time      // 创建时间。
	UpdatedAt     time.Time      `gorm:"index:idx_prompts_user_updated,priority:2"` // 最近更新时间。
}

// TableName 指定数据库表名。
func (Prompt) TableName() string {
	return CollectionPrompts
}

// BeforeCreate 在缺省时生成 UUID。
func (p *Prompt) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Groups == nil {
		p.Groups = EncodeGroups(nil)
	}
	return nil
}

// GroupList 解码分组标签，解析失败时返回空切片。
func (p Prompt) GroupList() []string {
	return DecodeGroups(p.Groups)
}

// PromptVersion 是提示词名称/正文/描述在某一时刻的不可变快照。
type PromptVersion struct {
	ID          string    `gorm:"primaryKey;size:36"`                                                        // UUID 主键。
	PromptID    string    `gorm:"size:36;not null;uniqueIndex:uk_prompt_versions_prompt_version,priority:1"` // 所属提示词。
	Version     int       `gorm:"not null;uniqueIndex:uk_prompt_versions_prompt_version,priority:2"`         // 版本号，从 1 开始。
	Name        string    `gorm:"size:255;not null"`                                                         // 快照名称。
	Body        string    `gorm:"type:text;not null"`                                                        // 快照正文。
	Description string    `gorm:"size:512"`                                                                  // 版本说明。
	CreatedBy   string    `gorm:"size:36;not null"`                                                          // 创建者。
	CreatedAt   time.Time // 创建时间。
}

// TableName 指定数据库表名。
func (PromptVersion) TableName() string {
	return CollectionPromptVersions
}

// BeforeCreate 在缺省时生成 UUID。
func (v *PromptVersion) BeforeCreate(_ *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// EncodeGroups 将标签切片编码为 JSON，nil 编码为空数组。
func EncodeGroups(groups []string) datatypes.JSON {
	if groups == nil {
		groups = []string{}
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

// DecodeGroups 解码 JSON 标签数组。
func DecodeGroups(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var groups []string
	if err := json.Unmarshal(raw, &groups); err != nil || groups == nil {
		return []string{}
	}
	return groups
}
