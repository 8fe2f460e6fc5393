package config

import (
	"os"
	"testing"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()
	os.Setenv("FLOOR_ENTITY_ID", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 检查默认值
	if cfg.API.Timeout != 15 {
		t.Errorf("Expected FLOOR_API_TIMEOUT default 15, got %d", cfg.API.Timeout)
	}

	if cfg.Floor.PollInterval != 30 {
		t.Errorf("Expected FLOOR_POLL_INTERVAL default 30, got %d", cfg.Floor.PollInterval)
	}

	if cfg.Floor.ErrorTimeout != 6 {
		t.Errorf("Expected FLOOR_ERROR_TIMEOUT default 6, got %d", cfg.Floor.ErrorTimeout)
	}

	if cfg.Snapshot.Enabled {
		t.Error("Expected snapshot publishing disabled by default")
	}

	if cfg.Snapshot.TTL != 60 {
		t.Errorf("Expected FLOOR_SNAPSHOT_TTL default to 2x poll interval (60), got %d", cfg.Snapshot.TTL)
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_MissingEntity(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Expected error when FLOOR_ENTITY_ID is missing")
	}
}

func TestLoad_Overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("FLOOR_ENTITY_ID", "7")
	os.Setenv("FLOOR_API_BASE_URL", "http://pos.local/api/v1")
	os.Setenv("FLOOR_API_TOKEN", "secret")
	os.Setenv("FLOOR_POLL_INTERVAL", "10")
	os.Setenv("FLOOR_SNAPSHOT_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Floor.Entity != "7" {
		t.Errorf("Expected entity '7', got '%s'", cfg.Floor.Entity)
	}
	if cfg.API.BaseURL != "http://pos.local/api/v1" {
		t.Errorf("Unexpected base URL '%s'", cfg.API.BaseURL)
	}
	if cfg.Floor.PollInterval != 10 {
		t.Errorf("Expected poll interval 10, got %d", cfg.Floor.PollInterval)
	}
	if cfg.Snapshot.TTL != 20 {
		t.Errorf("Expected snapshot TTL to follow poll interval (20), got %d", cfg.Snapshot.TTL)
	}
	if !cfg.Snapshot.Enabled {
		t.Error("Expected snapshot publishing enabled")
	}
}

func TestValidate_BadInterval(t *testing.T) {
	cfg := &Config{}
	cfg.Floor.Entity = "1"
	cfg.Floor.PollInterval = 0
	cfg.Floor.ErrorTimeout = 6

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected error for non-positive poll interval")
	}
}
