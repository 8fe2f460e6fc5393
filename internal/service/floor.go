package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"floorsync/internal/client"
	"floorsync/internal/config"
	"floorsync/internal/floor"
	"floorsync/internal/report"
	"floorsync/internal/snapshot"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// FloorService 楼面同步服务
// 组装请求客户端、同步引擎和快照发布器，并作为轮询定时器的
// 显式持有者：定时器随服务 Start/Stop 创建和取消，而不是匿名
// 挂在某个视图生命周期上。
type FloorService struct {
	config      *config.Config
	logger      *zap.Logger
	api         *client.Client
	engine      *floor.Engine
	redisClient *redis.Client

	mu       sync.Mutex
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// NewFloorService 创建楼面同步服务
func NewFloorService(cfg *config.Config, logger *zap.Logger) (*FloorService, error) {
	api := client.New(
		cfg.API.BaseURL,
		cfg.API.Token,
		time.Duration(cfg.API.Timeout)*time.Second,
		logger,
	)

	engine := floor.New(
		api,
		cfg.Floor.Entity,
		time.Duration(cfg.Floor.ErrorTimeout)*time.Second,
		logger,
	)

	svc := &FloorService{
		config: cfg,
		logger: logger,
		api:    api,
		engine: engine,
	}

	// 快照发布是可选能力：未启用时引擎照常工作，只是不发布
	if cfg.Snapshot.Enabled {
		redisClient := snapshot.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := snapshot.Ping(context.Background(), redisClient); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		svc.redisClient = redisClient

		publisher := snapshot.NewPublisher(
			snapshot.NewRedisKVStore(redisClient),
			time.Duration(cfg.Snapshot.TTL)*time.Second,
			logger,
		)
		engine.SetPublisher(publisher)
	}

	return svc, nil
}

// Engine 暴露给视图层/协作方的引擎接口
func (s *FloorService) Engine() *floor.Engine {
	return s.engine
}

// Start 启动服务（阻塞直至 ctx 取消）
// 先走引导流程，然后按固定间隔做后台静默刷新。引导失败不致命：
// 每个周期先重试引导，连通后自动进入正常轮询。
func (s *FloorService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	interval := time.Duration(s.config.Floor.PollInterval) * time.Second
	s.logger.Info("Starting floor sync service",
		zap.String("entity", s.config.Floor.Entity),
		zap.Duration("poll_interval", interval),
		zap.Bool("snapshot_enabled", s.config.Snapshot.Enabled),
	)

	if err := s.engine.Bootstrap(ctx); err != nil {
		s.logger.Error("Bootstrap failed, will retry on next tick", zap.Error(err))
	}
	if s.engine.NeedsSetup() {
		s.logger.Warn("Floor has no layout yet, waiting for first-time setup",
			zap.String("entity", s.config.Floor.Entity),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick 一个轮询周期
// 未就绪时重试引导；就绪且几何集合非空时做后台静默刷新。
func (s *FloorService) tick(ctx context.Context) {
	if s.engine.Phase() != floor.PhaseReady {
		if s.engine.NeedsSetup() {
			return
		}
		if err := s.engine.Bootstrap(ctx); err != nil {
			s.logger.Warn("Bootstrap retry failed", zap.Error(err))
		}
		return
	}
	if !s.engine.HasGeometry() {
		return
	}
	if err := s.engine.Refresh(ctx, true); err != nil {
		// 后台刷新失败已在轮询器里记录，上一次良好状态保持不变
		return
	}
}

// Stop 停止服务
// 轮询定时器恰好取消一次；Redis 连接随之关闭。
func (s *FloorService) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		if s.redisClient != nil {
			if err := s.redisClient.Close(); err != nil {
				s.logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		s.logger.Info("Floor sync service stopped")
	})
	return nil
}

// ExportReport 导出当前楼面占用报表到文件
// 一次性操作：引导（如未就绪）→ 前台刷新 → 生成 xlsx。
func (s *FloorService) ExportReport(ctx context.Context, path string) error {
	if s.engine.Phase() != floor.PhaseReady {
		if err := s.engine.Bootstrap(ctx); err != nil {
			return fmt.Errorf("failed to bootstrap before export: %w", err)
		}
		if s.engine.NeedsSetup() {
			return fmt.Errorf("floor has no layout yet, run first-time setup before exporting")
		}
	}
	if err := s.engine.Refresh(ctx, false); err != nil {
		return fmt.Errorf("failed to refresh before export: %w", err)
	}

	data, err := report.GenerateOccupancy(s.engine.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to generate occupancy report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	s.logger.Info("Occupancy report exported", zap.String("path", path))
	return nil
}
