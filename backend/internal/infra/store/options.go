/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 17:16:56
 * @FilePath: \prompt-vault\backend\internal\infra\store\options.go
 * @LastEditTime: 2025-10-21 13:22:10
 */
package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"prompt-vault/backend/internal/config"

	"github.com/go-sql-driver/mysql"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

const (
	envStoreDriver   = "STORE_DRIVER"
	envMySQLHost     = "MYSQL_HOST"
	envMySQLPort     = "MYSQL_PORT"
	envMySQLUser     = "MYSQL_USER"
	envMySQLPassword = "MYSQL_PASSWORD"
	envMySQLDatabase = "MYSQL_DATABASE"
	envMySQLParams   = "MYSQL_PARAMS"
)

const (
	defaultMySQLPort     = 3306
	defaultMySQLDatabase = "prompt_vault"
	defaultMySQLParams   = "charset=utf8mb4&parseTime=true&loc=UTC"
)

// MySQLConfig 描述 MySQL 连接配置。
type MySQLConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	Params   string
}

// Options 描述文档访问层的连接参数。
type Options struct {
	Driver      string
	MySQL       MySQLConfig
	SQLitePath  string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// LoadOptions 根据运行模式与环境变量推导连接参数：本地模式默认使用 SQLite，其余使用 MySQL。
func LoadOptions(flags config.RuntimeFlags) Options {
	config.LoadEnvFiles()

	driver := strings.ToLower(strings.TrimSpace(os.Getenv(envStoreDriver)))
	if driver == "" {
		driver = DriverMySQL
		if flags.IsLocal() {
			driver = DriverSQLite
		}
	}

	port := defaultMySQLPort
	if raw := strings.TrimSpace(os.Getenv(envMySQLPort)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			port = parsed
		}
	}
	database := strings.TrimSpace(os.Getenv(envMySQLDatabase))
	if database == "" {
		database = defaultMySQLDatabase
	}
	params := strings.TrimSpace(os.Getenv(envMySQLParams))
	if params == "" {
		params = defaultMySQLParams
	}

	return Options{
		Driver: driver,
		MySQL: MySQLConfig{
			Host:     strings.TrimSpace(os.Getenv(envMySQLHost)),
			Port:     port,
			Username: strings.TrimSpace(os.Getenv(envMySQLUser)),
			Password: os.Getenv(envMySQLPassword),
			Database: database,
			Params:   params,
		},
		SQLitePath:  flags.Local.DBPath,
		MaxOpen:     25,
		MaxIdle:     10,
		MaxLifetime: 60 * time.Minute,
	}
}

// validateMySQLConfig 校验配置字段是否完整。
func validateMySQLConfig(cfg MySQLConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("mysql host is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("mysql username is required")
	}
	if cfg.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	return nil
}

// BuildMySQLDSN 在通过校验后借助驱动的 Config 生成 DSN，避免手工拼接转义问题。
func BuildMySQLDSN(cfg MySQLConfig) (string, error) {
	if err := validateMySQLConfig(cfg); err != nil {
		return "", err
	}

	port := cfg.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.Username
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC

	params := cfg.Params
	if params == "" {
		params = defaultMySQLParams
	}
	dsnCfg.Params = map[string]string{}
	for _, pair := range strings.Split(params, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		switch key {
		case "parseTime", "loc":
			continue
		}
		dsnCfg.Params[key] = value
	}

	return dsnCfg.FormatDSN(), nil
}
