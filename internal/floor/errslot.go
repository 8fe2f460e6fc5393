package floor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncError 引擎当前呈现的同步错误（同一时刻最多一个）
type SyncError struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorSlot 单一错误槽
// 新错误覆盖旧错误；固定超时后自动清除，或由用户显式关闭/重试
// 立即清除。自动清除定时器由错误槽自己持有，覆盖/关闭时先取消
// 旧定时器，避免两个定时器竞争清掉不相干的新错误。
type ErrorSlot struct {
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	cur   *SyncError
	timer *time.Timer
}

// NewErrorSlot 创建错误槽
func NewErrorSlot(timeout time.Duration, logger *zap.Logger) *ErrorSlot {
	return &ErrorSlot{timeout: timeout, logger: logger}
}

// Set 记录一个失败操作
func (s *ErrorSlot) Set(op string, err error) *SyncError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	syncErr := &SyncError{
		ID:        uuid.NewString(),
		Op:        op,
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
	s.cur = syncErr

	s.logger.Error("Operation failed",
		zap.String("op", op),
		zap.String("error_id", syncErr.ID),
		zap.Error(err),
	)

	id := syncErr.ID
	s.timer = time.AfterFunc(s.timeout, func() {
		s.clearIf(id)
	})
	return syncErr
}

// Current 当前错误（无错误时为 nil）
func (s *ErrorSlot) Current() *SyncError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	cur := *s.cur
	return &cur
}

// Clear 显式清除当前错误并取消自动清除定时器
func (s *ErrorSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cur = nil
}

// clearIf 仅当错误仍是超时定时器启动时的那一个才清除
func (s *ErrorSlot) clearIf(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil && s.cur.ID == id {
		s.cur = nil
		s.timer = nil
	}
}
