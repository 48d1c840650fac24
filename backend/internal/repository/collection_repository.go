package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	userdomain "prompt-vault/backend/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultCollectionLimit = 50
	maxCollectionLimit     = 500
)

// ErrInvalidDocument 表示写入的文档引用了不存在的列或为空。
var ErrInvalidDocument = errors.New("invalid document")

var indexNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// IndexInfo 描述一个已存在的索引。
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Primary bool     `json:"primary"`
}

// IndexSpec 是调试接口创建索引的参数，Name 为空时按表名与列名生成。
type IndexSpec struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// CollectionSource 提供按集合名访问数据表的能力，由 store.Accessor 实现。
type CollectionSource interface {
	Collection(ctx context.Context, name string) (*gorm.DB, error)
}

// Document 是调试浏览接口使用的无模式记录，只在该边界出现。
type Document = map[string]any

// CollectionRepository 以通用文档形式读取任意已注册集合，供调试接口使用。
type CollectionRepository struct {
	src CollectionSource
}

// NewCollectionRepository 创建 CollectionRepository。
func NewCollectionRepository(src CollectionSource) *CollectionRepository {
	return &CollectionRepository{src: src}
}

// List 返回集合中的前 limit 条记录。
func (r *CollectionRepository) List(ctx context.Context, name string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = defaultCollectionLimit
	}
	if limit > maxCollectionLimit {
		limit = maxCollectionLimit
	}
	db, err := r.src.Collection(ctx, name)
	if err != nil {
		return nil, err
	}
	rows := make([]Document, 0)
	if err := db.Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	for _, row := range rows {
		redact(name, row)
	}
	return rows, nil
}

// Get 按主键读取单条记录，不存在时返回 gorm.ErrRecordNotFound。
func (r *CollectionRepository) Get(ctx context.Context, name, id string) (Document, error) {
	db, err := r.src.Collection(ctx, name)
	if err != nil {
		return nil, err
	}
	row := Document{}
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, err
	}
	redact(name, row)
	return row, nil
}

// Insert 写入一条记录并返回其 ID。缺少 id 时生成 UUID，时间戳列未给出时取当前时间。
func (r *CollectionRepository) Insert(ctx context.Context, name string, doc Document) (string, error) {
	db, err := r.src.Collection(ctx, name)
	if err != nil {
		return "", err
	}
	columns, err := columnSet(db, name)
	if err != nil {
		return "", err
	}
	row, err := normalize(doc, columns)
	if err != nil {
		return "", err
	}

	id, _ := row["id"].(string)
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	row["id"] = id
	now := time.Now().UTC()
	for _, col := range []string{"created_at", "updated_at"} {
		if _, ok := columns[col]; ok {
			if _, given := row[col]; !given {
				row[col] = now
			}
		}
	}

	if err := db.Create(row).Error; err != nil {
		return "", fmt.Errorf("insert %s: %w", name, err)
	}
	return id, nil
}

// Update 按 ID 覆盖给定列，返回受影响行数。id 列不可修改。
func (r *CollectionRepository) Update(ctx context.Context, name, id string, doc Document) (int64, error) {
	db, err := r.src.Collection(ctx, name)
	if err != nil {
		return 0, err
	}
	columns, err := columnSet(db, name)
	if err != nil {
		return 0, err
	}
	delete(doc, "id")
	row, err := normalize(doc, columns)
	if err != nil {
		return 0, err
	}
	if _, ok := columns["updated_at"]; ok {
		if _, given := row["updated_at"]; !given {
			row["updated_at"] = time.Now().UTC()
		}
	}

	result := db.Where("id = ?", id).Updates(row)
	if result.Error != nil {
		return 0, fmt.Errorf("update %s: %w", name, result.Error)
	}
	return result.RowsAffected, nil
}

// Delete 删除指定 ID 的记录，ids 为空时清空整个集合。
func (r *CollectionRepository) Delete(ctx context.Context, name string, ids []string) (int64, error) {
	db, err := r.src.Collection(ctx, name)
	if err != nil {
		return 0, err
	}
	var result *gorm.DB
	if len(ids) == 0 {
		result = db.Exec("DELETE FROM ?", clause.Table{Name: name})
	} else {
		result = db.Exec("DELETE FROM ? WHERE id IN ?", clause.Table{Name: name}, ids)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", name, result.Error)
	}
	return result.RowsAffected, nil
}

// Indexes 列出集合上的索引。
func (r *CollectionRepository) Indexes(ctx context.Context, name string) ([]IndexInfo, error) {
	db, err := r.src.Collection(ctx, name)
	if err != nil {
		return nil, err
	}
	indexes, err := db.Migrator().GetIndexes(name)
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", name, err)
	}
	out := make([]IndexInfo, 0, len(indexes))
	for _, idx := range indexes {
		unique, _ := idx.Unique()
		primary, _ := idx.PrimaryKey()
		out = append(out, IndexInfo{
			Name:    idx.Name(),
			Columns: idx.Columns(),
			Unique:  unique,
			Primary: primary,
		})
	}
	return out, nil
}

// CreateIndex 在已有列上建索引，返回最终使用的索引名。
func (r *CollectionRepository) CreateIndex(ctx context.Context, name string, spec IndexSpec) (string, error) {
	db, err := r.src.Collection(ctx, name)
	if err != nil {
		return "", err
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("%w: columns required", ErrInvalidDocument)
	}
	columns, err := columnSet(db, name)
	if err != nil {
		return "", err
	}
	quoted := make([]any, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		if _, ok := columns[col]; !ok {
			return "", fmt.Errorf("%w: unknown column %q", ErrInvalidDocument, col)
		}
		quoted = append(quoted, clause.Column{Name: col})
	}

	indexName := strings.TrimSpace(spec.Name)
	if indexName == "" {
		indexName = "idx_" + name + "_" + strings.Join(spec.Columns, "_")
	}
	if !indexNamePattern.MatchString(indexName) {
		return "", fmt.Errorf("%w: invalid index name %q", ErrInvalidDocument, indexName)
	}

	stmt := "CREATE INDEX ? ON ? ?"
	if spec.Unique {
		stmt = "CREATE UNIQUE INDEX ? ON ? ?"
	}
	if err := db.Exec(stmt, clause.Table{Name: indexName}, clause.Table{Name: name}, quoted).Error; err != nil {
		return "", fmt.Errorf("create index %s: %w", indexName, err)
	}
	return indexName, nil
}

func columnSet(db *gorm.DB, name string) (map[string]struct{}, error) {
	types, err := db.Migrator().ColumnTypes(name)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t.Name()] = struct{}{}
	}
	return set, nil
}

// normalize 校验列名，把数组与对象编码成 JSON 文本以便写入 json 列。
func normalize(doc Document, columns map[string]struct{}) (Document, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	row := make(Document, len(doc))
	for key, value := range doc {
		if _, ok := columns[key]; !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidDocument, key)
		}
		switch value.(type) {
		case []any, map[string]any:
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, key, err)
			}
			row[key] = string(raw)
		default:
			row[key] = value
		}
	}
	return row, nil
}

// redact 去掉不应离开服务端的列。
func redact(collection string, row Document) {
	if collection == userdomain.CollectionUsers {
		delete(row, "password_hash")
	}
}
