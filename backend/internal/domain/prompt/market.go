package prompt

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MarketPrompt 是发布到市场的公开副本，按 (OriginalPromptID, UserID) 唯一。
// 通过种子数据导入的条目没有来源提示词与发布者，两个字段均为 NULL。
type MarketPrompt struct {
	ID               string         `gorm:"primaryKey;size:36"`                                           // UUID 主键。
	OriginalPromptID *string        `gorm:"size:36;uniqueIndex:uk_market_prompts_origin_user,priority:1"` // 来源提示词。
	UserID           *string        `gorm:"size:36;uniqueIndex:uk_market_prompts_origin_user,priority:2"` // 发布者。
	Name             string         `gorm:"size:255;not null"`                                            // 名称。
	Body             string         `gorm:"type:text;not null"`                                           // 提示词正文。
	Emoji            string         `gorm:"size:32"`                                                      // 图标。
	Description      string         `gorm:"type:text"`                                                    // 描述。
	Groups           datatypes.JSON `gorm:"column:group_labels;type:json"`                                // 分组标签 JSON 数组。
	PublishedAt      time.Time      `gorm:"not null;index:idx_market_prompts_rank,priority:2"`            // 最近一次发布/更新时间。
	FavoriteCount    int            `gorm:"not null;default:0;index:idx_market_prompts_rank,priority:1"`  // 收藏数。
	CreatedAt        time.Time      // 创建时间。
	UpdatedAt        time.Time      // 更新时间。
}

// TableName 指定数据库表名。
func (MarketPrompt) TableName() string {
	return CollectionMarketPrompts
}

// BeforeCreate 在缺省时生成 UUID 并补齐发布时间。
func (m *MarketPrompt) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Groups == nil {
		m.Groups = EncodeGroups(nil)
	}
	if m.PublishedAt.IsZero() {
		m.PublishedAt = time.Now()
	}
	return nil
}

// GroupList 解码分组标签。
func (m MarketPrompt) GroupList() []string {
	return DecodeGroups(m.Groups)
}

// Favorite 记录用户对市场条目的收藏，(UserID, MarketPromptID) 唯一。
type Favorite struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"size:36;not null;uniqueIndex:uk_favorites_user_market,priority:1"`
	MarketPromptID string `gorm:"size:36;not null;uniqueIndex:uk_favorites_user_market,priority:2;index"`
	CreatedAt      time.Time
}

// TableName 指定数据库表名。
func (Favorite) TableName() string {
	return CollectionFavorites
}

// BeforeCreate 在缺省时生成 UUID。
func (f *Favorite) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
