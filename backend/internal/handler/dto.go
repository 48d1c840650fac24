package handler

import (
	promptdomain "prompt-vault/backend/internal/domain/prompt"
	userdomain "prompt-vault/backend/internal/domain/user"
	response "prompt-vault/backend/internal/infra/common"
	marketsvc "prompt-vault/backend/internal/service/market"
)

// promptDTO 是返回给前端的 Prompt，正文字段名为 prompt。
type promptDTO struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	Name          string   `json:"name"`
	Prompt        string   `json:"prompt"`
	Emoji         string   `json:"emoji"`
	Description   string   `json:"description"`
	Groups        []string `json:"groups"`
	IsPublished   bool     `json:"isPublished"`
	LatestVersion int      `json:"latestVersion"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

func toPromptDTO(p promptdomain.Prompt) promptDTO {
	return promptDTO{
		ID:            p.ID,
		UserID:        p.UserID,
		Name:          p.Name,
		Prompt:        p.Body,
		Emoji:         p.Emoji,
		Description:   p.Description,
		Groups:        p.GroupList(),
		IsPublished:   p.IsPublished,
		LatestVersion: p.LatestVersion,
		CreatedAt:     response.FormatTime(p.CreatedAt),
		UpdatedAt:     response.FormatTime(p.UpdatedAt),
	}
}

type versionDTO struct {
	ID          string `json:"id"`
	PromptID    string `json:"promptId"`
	Version     int    `json:"version"`
	Name        string `json:"name"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
}

func toVersionDTO(v promptdomain.PromptVersion) versionDTO {
	return versionDTO{
		ID:          v.ID,
		PromptID:    v.PromptID,
		Version:     v.Version,
		Name:        v.Name,
		Prompt:      v.Body,
		Description: v.Description,
		CreatedBy:   v.CreatedBy,
		CreatedAt:   response.FormatTime(v.CreatedAt),
	}
}

type marketPromptDTO struct {
	ID               string   `json:"id"`
	OriginalPromptID string   `json:"originalPromptId,omitempty"`
	UserID           string   `json:"userId,omitempty"`
	Name             string   `json:"name"`
	Prompt           string   `json:"prompt"`
	Emoji            string   `json:"emoji"`
	Description      string   `json:"description"`
	Groups           []string `json:"groups"`
	FavoriteCount    int      `json:"favoriteCount"`
	IsFavorited      bool     `json:"isFavorited"`
	PublishedAt      string   `json:"publishedAt"`
}

func toMarketPromptDTO(l marketsvc.Listing) marketPromptDTO {
	dto := marketPromptDTO{
		ID:            l.ID,
		Name:          l.Name,
		Prompt:        l.Body,
		Emoji:         l.Emoji,
		Description:   l.Description,
		Groups:        l.GroupList(),
		FavoriteCount: l.FavoriteCount,
		IsFavorited:   l.IsFavorited,
		PublishedAt:   response.FormatTime(l.PublishedAt),
	}
	if l.OriginalPromptID != nil {
		dto.OriginalPromptID = *l.OriginalPromptID
	}
	if l.UserID != nil {
		dto.UserID = *l.UserID
	}
	return dto
}

type userDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

func toUserDTO(u *userdomain.User) userDTO {
	if u == nil {
		return userDTO{}
	}
	return userDTO{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image}
}
