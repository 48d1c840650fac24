// Package access 负责资源 ID 解析与归属校验。
package access

import (
	"strings"

	response "prompt-vault/backend/internal/infra/common"

	"github.com/google/uuid"
)

// ParseID 将外部传入的 ID 解析为规范 UUID 字符串，非法时返回 INVALID_ID。
func ParseID(raw, label string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", invalidID(label)
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return "", invalidID(label)
	}
	return id.String(), nil
}

// ParseIDs 批量解析，任意一个非法即整体失败。
func ParseIDs(raws []string, label string) ([]string, error) {
	ids := make([]string, 0, len(raws))
	for _, raw := range raws {
		id, err := ParseID(raw, label)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EnsureOwnership 校验资源归属，调用方不是所有者时返回 FORBIDDEN。
func EnsureOwnership(ownerID, callerID, label string) error {
	if ownerID == "" || callerID == "" || ownerID != callerID {
		return response.Forbidden("无权访问该" + label)
	}
	return nil
}

func invalidID(label string) *response.AppError {
	if label == "" {
		label = "ID"
	}
	return response.NewError(400, response.ErrInvalidID, "无效的 "+label)
}
