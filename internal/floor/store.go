package floor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"floorsync/internal/client"
	"floorsync/internal/models"

	"go.uber.org/zap"
)

// ErrNeedsSetup 该 entity 还没有楼面布局，需要运行首次初始化
var ErrNeedsSetup = errors.New("floor layout does not exist yet")

// ErrNoLayout 在布局未加载时调用了依赖布局的操作
var ErrNoLayout = errors.New("no layout loaded")

// Store 配置存储
// 持有一个楼面的结构描述：布局元数据、桌台几何集合、装饰元素。
// 每个集合都是整体替换、单写多读；加载失败时集合重置为空而不是
// 保留半新半旧的数据（残缺的楼面图比空楼面图更危险）。
type Store struct {
	api    *client.Client
	logger *zap.Logger

	mu          sync.RWMutex
	layout      *models.Layout
	tables      []models.TableGeometry
	decorations []models.DecorativeElement
	needsSetup  bool
}

// NewStore 创建配置存储
func NewStore(api *client.Client, logger *zap.Logger) *Store {
	return &Store{api: api, logger: logger}
}

// LoadLayout 加载指定 entity 的布局
// 404 不是一般错误：它表示该楼面从未初始化过，存储进入显式的
// "无布局"状态并返回 ErrNeedsSetup，由引导状态机转入 NeedsSetup。
func (s *Store) LoadLayout(ctx context.Context, entity string) error {
	var layout models.Layout
	err := s.api.Get(ctx, fmt.Sprintf("/layout/%s", entity), &layout)
	if err != nil {
		s.mu.Lock()
		s.layout = nil
		if client.IsNotFound(err) {
			s.needsSetup = true
			s.mu.Unlock()
			s.logger.Info("No layout found for entity, first-time setup required",
				zap.String("entity", entity),
			)
			return ErrNeedsSetup
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to load layout: %w", err)
	}

	s.mu.Lock()
	s.layout = &layout
	s.needsSetup = false
	s.mu.Unlock()

	s.logger.Info("Layout loaded",
		zap.String("entity", entity),
		zap.Int64("layout_id", layout.ID),
		zap.Int("width", layout.Width),
		zap.Int("height", layout.Height),
	)
	return nil
}

// LoadTables 加载当前布局的桌台几何集合
// 失败时集合重置为空。
func (s *Store) LoadTables(ctx context.Context) error {
	layout := s.Layout()
	if layout == nil {
		return ErrNoLayout
	}

	var tables []models.TableGeometry
	err := s.api.Get(ctx, fmt.Sprintf("/layout/%d/tables", layout.ID), &tables)

	s.mu.Lock()
	if err != nil {
		s.tables = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to load tables: %w", err)
	}
	s.tables = tables
	s.mu.Unlock()

	s.logger.Debug("Tables loaded", zap.Int("count", len(tables)))
	return nil
}

// LoadDecorations 加载当前布局的装饰元素集合
// 失败时集合重置为空。
func (s *Store) LoadDecorations(ctx context.Context) error {
	layout := s.Layout()
	if layout == nil {
		return ErrNoLayout
	}

	var elements []models.DecorativeElement
	err := s.api.Get(ctx, fmt.Sprintf("/layout/%d/elements", layout.ID), &elements)

	s.mu.Lock()
	if err != nil {
		s.decorations = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to load decorations: %w", err)
	}
	s.decorations = elements
	s.mu.Unlock()

	s.logger.Debug("Decorations loaded", zap.Int("count", len(elements)))
	return nil
}

// LoadAll 并发加载桌台几何与装饰元素
// 两者是相互独立的读取，没有先后依赖，但都严格晚于布局加载。
func (s *Store) LoadAll(ctx context.Context) error {
	var wg sync.WaitGroup
	var tablesErr, decorationsErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		tablesErr = s.LoadTables(ctx)
	}()
	go func() {
		defer wg.Done()
		decorationsErr = s.LoadDecorations(ctx)
	}()
	wg.Wait()

	if tablesErr != nil {
		return tablesErr
	}
	return decorationsErr
}

// CreateLayout 创建布局（仅首次初始化使用）
// 成功后退出"需要初始化"状态。
func (s *Store) CreateLayout(ctx context.Context, draft models.Layout) (*models.Layout, error) {
	if draft.Width <= 0 || draft.Height <= 0 {
		return nil, &client.APIError{
			Kind:    client.KindValidation,
			Message: fmt.Sprintf("canvas size must be positive, got %dx%d", draft.Width, draft.Height),
		}
	}

	var created models.Layout
	if err := s.api.Post(ctx, "/layout", draft, &created); err != nil {
		return nil, fmt.Errorf("failed to create layout: %w", err)
	}

	s.mu.Lock()
	s.layout = &created
	s.needsSetup = false
	s.mu.Unlock()

	s.logger.Info("Layout created",
		zap.Int64("layout_id", created.ID),
		zap.String("entity", created.Entity),
	)
	return &created, nil
}

// UploadBackground 上传背景图
// 需要已有布局；成功后只在本地更新背景引用，不做整体重载
// （避免多余的往返）。
func (s *Store) UploadBackground(ctx context.Context, entity, fileName string, file io.Reader) (string, error) {
	layout := s.Layout()
	if layout == nil {
		return "", ErrNoLayout
	}

	fields := map[string]string{
		"layout_id": fmt.Sprintf("%d", layout.ID),
		"entity":    entity,
	}
	var result struct {
		URL string `json:"url"`
	}
	if err := s.api.Upload(ctx, "/upload-image", fields, "image", fileName, file, &result); err != nil {
		return "", fmt.Errorf("failed to upload background image: %w", err)
	}

	s.mu.Lock()
	if s.layout != nil {
		s.layout.BackgroundImage = result.URL
	}
	s.mu.Unlock()

	s.logger.Info("Background image uploaded", zap.String("url", result.URL))
	return result.URL, nil
}

// Layout 返回当前布局的副本（未加载时为 nil）
func (s *Store) Layout() *models.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.layout == nil {
		return nil
	}
	layout := *s.layout
	return &layout
}

// Tables 返回桌台几何集合的副本
func (s *Store) Tables() []models.TableGeometry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tables := make([]models.TableGeometry, len(s.tables))
	copy(tables, s.tables)
	return tables
}

// Decorations 返回装饰元素集合的副本
func (s *Store) Decorations() []models.DecorativeElement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	elements := make([]models.DecorativeElement, len(s.decorations))
	copy(elements, s.decorations)
	return elements
}

// NeedsSetup 是否处于"需要首次初始化"状态
func (s *Store) NeedsSetup() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.needsSetup
}

// TableByID 按 ID 查找桌台几何
func (s *Store) TableByID(id int64) (models.TableGeometry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tables {
		if t.ID == id {
			return t, true
		}
	}
	return models.TableGeometry{}, false
}

// NextTableNumber 下一个可用桌号：max(现有桌号)+1，无桌台时为 1
func (s *Store) NextTableNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, t := range s.tables {
		if t.Numero > max {
			max = t.Numero
		}
	}
	return max + 1
}
