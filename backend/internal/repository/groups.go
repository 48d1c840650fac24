package repository

import "gorm.io/gorm"

// whereGroup 追加“分组标签包含 label”的条件，按方言选择 JSON 查询写法。
func whereGroup(db *gorm.DB, table, label string) *gorm.DB {
	column := table + ".group_labels"
	if db.Dialector.Name() == "mysql" {
		return db.Where("JSON_CONTAINS("+column+", JSON_QUOTE(?))", label)
	}
	return db.Where("EXISTS (SELECT 1 FROM json_each("+column+") WHERE json_each.value = ?)", label)
}
