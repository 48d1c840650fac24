package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	userdomain "prompt-vault/backend/internal/domain/user"

	mysqlDriver "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrUnavailable 表示底层数据库无法建立连接，所有依赖它的操作都会返回该错误。
var ErrUnavailable = errors.New("document store unavailable")

// ErrUnknownCollection 表示请求了未注册的集合名。
var ErrUnknownCollection = errors.New("unknown collection")

// Collections 列出所有已注册的集合（数据表）。
var Collections = []string{
	userdomain.CollectionUsers,
	promptdomain.CollectionPrompts,
	promptdomain.CollectionPromptVersions,
	promptdomain.CollectionMarketPrompts,
	promptdomain.CollectionFavorites,
}

// Source 抽象出获取 *gorm.DB 的能力，仓储层通过它访问数据库。
type Source interface {
	DB(ctx context.Context) (*gorm.DB, error)
}

// Accessor 懒加载并复用唯一的数据库连接，并发调用只会建立一次连接。
// 连接失败的结果同样被缓存，不在本层重试。
type Accessor struct {
	opts Options

	once sync.Once
	mu   sync.RWMutex // 保护 db/err，Dialect 与 Close 不经过 once
	db   *gorm.DB
	err  error
}

// New 创建访问器，首次调用 DB/Collection 时才会真正连接。
func New(opts Options) *Accessor {
	return &Accessor{opts: opts}
}

// NewWithDB 使用已建立的连接构造访问器，常用于测试与命令行工具。
func NewWithDB(db *gorm.DB) *Accessor {
	a := &Accessor{db: db}
	if db == nil {
		a.err = fmt.Errorf("%w: nil db", ErrUnavailable)
	}
	a.once.Do(func() {})
	return a
}

// DB 返回共享的 *gorm.DB，并绑定请求上下文。
func (a *Accessor) DB(ctx context.Context) (*gorm.DB, error) {
	a.once.Do(func() {
		db, err := open(a.opts)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		a.mu.Lock()
		a.db, a.err = db, err
		a.mu.Unlock()
	})
	db, err := a.conn()
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// Collection 返回限定到指定集合的查询句柄。
func (a *Accessor) Collection(ctx context.Context, name string) (*gorm.DB, error) {
	if !IsKnownCollection(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	db, err := a.DB(ctx)
	if err != nil {
		return nil, err
	}
	return db.Table(name), nil
}

// Migrate 同步所有实体的表结构与唯一索引。
func (a *Accessor) Migrate(ctx context.Context) error {
	db, err := a.DB(ctx)
	if err != nil {
		return err
	}
	return AutoMigrate(db)
}

// Dialect 返回当前连接的方言名称，未连接时返回空串。
func (a *Accessor) Dialect() string {
	db, _ := a.conn()
	if db == nil {
		return ""
	}
	return db.Dialector.Name()
}

// Close 关闭底层连接池。
func (a *Accessor) Close() error {
	db, _ := a.conn()
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (a *Accessor) conn() (*gorm.DB, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db, a.err
}

// AutoMigrate 对所有实体执行 AutoMigrate。
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&userdomain.User{},
		&promptdomain.Prompt{},
		&promptdomain.PromptVersion{},
		&promptdomain.MarketPrompt{},
		&promptdomain.Favorite{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// IsKnownCollection 判断集合名是否已注册。
func IsKnownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Fixed 把一个现成的 *gorm.DB（通常是事务句柄）包装成 Source。
func Fixed(db *gorm.DB) Source {
	return fixedSource{db: db}
}

type fixedSource struct {
	db *gorm.DB
}

func (f fixedSource) DB(ctx context.Context) (*gorm.DB, error) {
	if f.db == nil {
		return nil, ErrUnavailable
	}
	return f.db.WithContext(ctx), nil
}

// Transaction 在 src 上开启事务，fn 内的仓储应通过 Fixed(tx) 访问数据库。
func Transaction(ctx context.Context, src Source, fn func(tx *gorm.DB) error) error {
	db, err := src.DB(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(fn)
}

// open 根据驱动类型建立 GORM 连接并配置连接池。
func open(opts Options) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch opts.Driver {
	case DriverSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if dir := filepath.Dir(opts.SQLitePath); dir != "" && dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(opts.SQLitePath+"?_busy_timeout=5000"), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open gorm sqlite: %w", err)
		}
	case DriverMySQL, "":
		dsn, dsnErr := BuildMySQLDSN(opts.MySQL)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = gorm.Open(mysqlDriver.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open gorm mysql: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if opts.Driver == DriverSQLite {
		// SQLite 只允许单写者，串行化连接避免 database is locked。
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
		}
		if opts.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdle)
		}
		if opts.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpen)
		}
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	return db, nil
}
