// Package storetest 为其它包的测试提供基于临时 SQLite 文件的文档存储。
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"prompt-vault/backend/internal/infra/store"
)

// Open 在 t.TempDir 下创建 SQLite 数据库并完成迁移，测试结束时自动关闭。
func Open(t testing.TB) *store.Accessor {
	t.Helper()
	acc := store.New(store.Options{
		Driver:     store.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "vault.db"),
	})
	if err := acc.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { _ = acc.Close() })
	return acc
}
