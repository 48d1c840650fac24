package config

import "time"

// RateLimitRule 描述单个接口的固定窗口配额。
type RateLimitRule struct {
	Window time.Duration
	Max    int
}

// RateLimitTable 汇总所有受限接口的配额，可通过 RATE_LIMIT_<NAME>_MAX / _WINDOW 覆盖。
type RateLimitTable struct {
	Register       RateLimitRule
	Login          RateLimitRule
	ChangePassword RateLimitRule
	Publish        RateLimitRule
	CreateVersion  RateLimitRule
	Favorite       RateLimitRule
	Import         RateLimitRule
}

// DefaultRateLimitTable 返回默认配额。
func DefaultRateLimitTable() RateLimitTable {
	return RateLimitTable{
		Register:       RateLimitRule{Window: 10 * time.Minute, Max: 5},
		Login:          RateLimitRule{Window: 10 * time.Minute, Max: 10},
		ChangePassword: RateLimitRule{Window: time.Hour, Max: 10},
		Publish:        RateLimitRule{Window: 24 * time.Hour, Max: 30},
		CreateVersion:  RateLimitRule{Window: time.Hour, Max: 60},
		Favorite:       RateLimitRule{Window: time.Hour, Max: 60},
		Import:         RateLimitRule{Window: time.Hour, Max: 10},
	}
}

// LoadRateLimitTable 在默认配额基础上读取环境变量覆盖。
func LoadRateLimitTable() RateLimitTable {
	table := DefaultRateLimitTable()
	table.Register = overrideRule("REGISTER", table.Register)
	table.Login = overrideRule("LOGIN", table.Login)
	table.ChangePassword = overrideRule("CHANGE_PASSWORD", table.ChangePassword)
	table.Publish = overrideRule("PUBLISH", table.Publish)
	table.CreateVersion = overrideRule("CREATE_VERSION", table.CreateVersion)
	table.Favorite = overrideRule("FAVORITE", table.Favorite)
	table.Import = overrideRule("IMPORT", table.Import)
	return table
}

func overrideRule(name string, rule RateLimitRule) RateLimitRule {
	prefix := "RATE_LIMIT_" + name
	return RateLimitRule{
		Window: DurationFromEnv(prefix+"_WINDOW", rule.Window),
		Max:    IntFromEnv(prefix+"_MAX", rule.Max),
	}
}
