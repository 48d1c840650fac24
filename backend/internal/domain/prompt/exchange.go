package prompt

// AgentItem 是外部交换格式中的单个条目，分组字段名为 group（单数）。
type AgentItem struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Prompt      string   `json:"prompt" yaml:"prompt"`
	Emoji       string   `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Group       []string `json:"group" yaml:"group"`
}

// ToAgent 将内部 Prompt 转成交换格式，groups 改名为 group。
func ToAgent(p Prompt) AgentItem {
	return AgentItem{
		ID:          p.ID,
		Name:        p.Name,
		Prompt:      p.Body,
		Emoji:       p.Emoji,
		Description: p.Description,
		Group:       p.GroupList(),
	}
}

// NewPromptFromAgent 按交换格式构造属于 userID 的新 Prompt，不沿用外部 ID。
func NewPromptFromAgent(userID string, item AgentItem) Prompt {
	return Prompt{
		UserID:      userID,
		Name:        item.Name,
		Body:        item.Prompt,
		Emoji:       item.Emoji,
		Description: item.Description,
		Groups:      EncodeGroups(NormalizeGroups(item.Group)),
	}
}

// NewMarketPromptFromAgent 构造没有来源与发布者的市场条目，用于种子数据。
func NewMarketPromptFromAgent(item AgentItem) MarketPrompt {
	return MarketPrompt{
		Name:        item.Name,
		Body:        item.Prompt,
		Emoji:       item.Emoji,
		Description: item.Description,
		Groups:      EncodeGroups(NormalizeGroups(item.Group)),
	}
}
