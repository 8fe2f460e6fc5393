package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config 餐厅楼面同步引擎配置
type Config struct {
	// 远端订单管理后端（所有楼面数据的权威存储）
	API struct {
		BaseURL string // 版本化基础路径，如 http://pos.example.com/api/v1
		Token   string // 凭证，附加到每一次请求的 Authorization 头
		Timeout int    // 单次请求超时（秒），默认 15
	}

	Floor struct {
		// 实体 ID（一个餐厅对应一个 entity，布局/订单都按它归属）
		Entity string

		// 运营状态轮询间隔（秒），默认 30 秒
		PollInterval int

		// 错误槽自动清除超时（秒），默认 6 秒
		ErrorTimeout int
	}

	// 楼面状态快照发布配置（供同店其他终端/看板读取）
	Snapshot struct {
		Enabled bool
		TTL     int // 快照过期时间（秒），默认 2 倍轮询间隔
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.API.BaseURL = getEnv("FLOOR_API_BASE_URL", "")
	cfg.API.Token = getEnv("FLOOR_API_TOKEN", "")
	cfg.API.Timeout = getEnvInt("FLOOR_API_TIMEOUT", 15)

	cfg.Floor.Entity = getEnv("FLOOR_ENTITY_ID", "")
	cfg.Floor.PollInterval = getEnvInt("FLOOR_POLL_INTERVAL", 30)
	cfg.Floor.ErrorTimeout = getEnvInt("FLOOR_ERROR_TIMEOUT", 6)

	cfg.Snapshot.Enabled = getEnv("FLOOR_SNAPSHOT_ENABLED", "false") == "true"
	cfg.Snapshot.TTL = getEnvInt("FLOOR_SNAPSHOT_TTL", cfg.Floor.PollInterval*2)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置合法性
// 注意：BaseURL/Token 缺失不是 Load 错误——引擎会把它们转成 ConfigurationError，
// 以便 UI 提示用户补全配置，而不是进程直接退出。
func (c *Config) Validate() error {
	if c.Floor.Entity == "" {
		return fmt.Errorf("FLOOR_ENTITY_ID is required")
	}
	if c.Floor.PollInterval <= 0 {
		return fmt.Errorf("FLOOR_POLL_INTERVAL must be positive, got %d", c.Floor.PollInterval)
	}
	if c.Floor.ErrorTimeout <= 0 {
		return fmt.Errorf("FLOOR_ERROR_TIMEOUT must be positive, got %d", c.Floor.ErrorTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
