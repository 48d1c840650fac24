package prompt

import (
	"sort"
	"strings"
)

// AllGroupsLabel 是前端“全部”分组，查询时等同于不过滤。
const AllGroupsLabel = "全部"

// NormalizeGroups 去掉首尾空白与空标签，保留原有顺序。
func NormalizeGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if trimmed := strings.TrimSpace(g); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsGroupFilter 判断请求中的分组参数是否需要过滤。
func IsGroupFilter(group string) bool {
	group = strings.TrimSpace(group)
	return group != "" && group != AllGroupsLabel
}

// GroupSummary 汇总一组文档中的分组标签与出现次数。
type GroupSummary struct {
	Groups      []string       `json:"groups"`
	GroupCounts map[string]int `json:"groupCounts"`
	Total       int            `json:"total"`
}

// CountGroups 统计每个标签出现在多少个文档中，同一文档内重复的标签只计一次。
func CountGroups(lists [][]string) GroupSummary {
	counts := make(map[string]int)
	for _, groups := range lists {
		seen := make(map[string]struct{}, len(groups))
		for _, g := range groups {
			if g == "" {
				continue
			}
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			counts[g]++
		}
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return GroupSummary{Groups: labels, GroupCounts: counts, Total: len(lists)}
}
