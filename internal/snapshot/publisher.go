package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"floorsync/internal/models"

	"go.uber.org/zap"
)

// Publisher 楼面快照发布器
// 把派生的楼面状态序列化后写进 KV 存储（带 TTL），供同店其他
// 收银终端/看板只读消费。TTL 取轮询间隔的倍数：发布方一旦停止，
// 陈旧快照会自行过期，消费方不会一直读到过时楼面。
type Publisher struct {
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewPublisher 创建快照发布器
func NewPublisher(kv KVStore, ttl time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{kv: kv, ttl: ttl, logger: logger}
}

// Key 快照的存储键
func Key(entity string) string {
	return fmt.Sprintf("floorsync:floor:%s:state", entity)
}

// Publish 发布楼面快照
func (p *Publisher) Publish(ctx context.Context, snap *models.FloorSnapshot) error {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal floor snapshot: %w", err)
	}

	key := Key(snap.Entity)
	if err := p.kv.Set(ctx, key, string(jsonData), p.ttl); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	p.logger.Debug("Floor snapshot published",
		zap.String("key", key),
		zap.Int("tables", len(snap.Tables)),
		zap.Int("open_orders", len(snap.States)),
	)
	return nil
}

// Load 读取楼面快照（消费端使用）
func (p *Publisher) Load(ctx context.Context, entity string) (*models.FloorSnapshot, error) {
	raw, err := p.kv.Get(ctx, Key(entity))
	if err != nil {
		return nil, err
	}
	var snap models.FloorSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal floor snapshot: %w", err)
	}
	return &snap, nil
}
