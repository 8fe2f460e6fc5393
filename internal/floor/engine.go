package floor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"floorsync/internal/client"
	"floorsync/internal/models"

	"go.uber.org/zap"
)

// Phase 引导状态机阶段
// ErrorDisplayed 不是独立阶段：错误槽非空即为"错误已呈现"，
// 它非破坏性地叠加在当前阶段之上，已加载的数据全部保留。
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseNeedsSetup    Phase = "needs_setup"
	PhaseReady         Phase = "ready"
)

// SnapshotPublisher 楼面快照发布接口（可选依赖）
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap *models.FloorSnapshot) error
}

// Engine 桌台状态同步引擎
// 把本地可编辑的楼面表示（布局、桌台几何、运营状态）与只能通过
// 不可靠 HTTP API 访问的权威远端存储保持一致。所有可变状态都由
// 引擎独占持有，视图层只通过这里的窄接口读取和变更。
type Engine struct {
	api       *client.Client
	logger    *zap.Logger
	entity    string
	store     *Store
	poller    *Poller
	editor    *Editor
	errs      *ErrorSlot
	publisher SnapshotPublisher

	mu      sync.RWMutex
	phase   Phase
	loading int32
}

// New 创建同步引擎
func New(api *client.Client, entity string, errorTimeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		api:    api,
		logger: logger,
		entity: entity,
		store:  NewStore(api, logger),
		poller: NewPoller(api, entity, logger),
		editor: NewEditor(),
		errs:   NewErrorSlot(errorTimeout, logger),
		phase:  PhaseUninitialized,
	}
}

// SetPublisher 注入快照发布器（不注入则不发布）
func (e *Engine) SetPublisher(p SnapshotPublisher) {
	e.publisher = p
}

// Bootstrap 引导流程
// 连通性探测 → 布局加载 → 并发加载几何/装饰 → 首次前台刷新。
// 布局 404 转入 NeedsSetup（UI 应提供"运行初始化"而不是"重试"）；
// 探测失败停留在 Uninitialized，不尝试布局加载。
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.beginLoading()
	defer e.endLoading()

	if err := e.api.Probe(ctx); err != nil {
		e.errs.Set("bootstrap", err)
		return fmt.Errorf("connectivity probe failed: %w", err)
	}

	if err := e.store.LoadLayout(ctx, e.entity); err != nil {
		if errors.Is(err, ErrNeedsSetup) {
			e.setPhase(PhaseNeedsSetup)
			return nil
		}
		e.errs.Set("load_layout", err)
		return err
	}
	e.setPhase(PhaseReady)

	if err := e.store.LoadAll(ctx); err != nil {
		e.errs.Set("load_floor", err)
		return err
	}

	// 几何集合非空时立即做一次前台刷新，不等第一个定时周期
	if len(e.store.Tables()) > 0 {
		if _, err := e.poller.Refresh(ctx, false); err != nil {
			e.errs.Set("refresh", err)
			return err
		}
	}

	e.publishSnapshot(ctx)
	e.logger.Info("Floor engine ready",
		zap.String("entity", e.entity),
		zap.Int("tables", len(e.store.Tables())),
	)
	return nil
}

// Refresh 刷新运营状态
// silent=true 为后台定时刷新：失败不写错误槽（不打断进行中的
// 手势、不在已有错误上再弹新错误），但日志里仍有记录。
func (e *Engine) Refresh(ctx context.Context, silent bool) error {
	_, err := e.poller.Refresh(ctx, silent)
	if err != nil {
		if !silent {
			e.errs.Set("refresh", err)
		}
		return err
	}
	e.publishSnapshot(ctx)
	return nil
}

// CreateTable 创建桌台
// 桌号为零值时自动取 NextTableNumber；成功后只重载桌台几何集合。
func (e *Engine) CreateTable(ctx context.Context, draft models.TableGeometry) (*models.TableGeometry, error) {
	e.beginLoading()
	defer e.endLoading()

	layout := e.store.Layout()
	if layout == nil {
		e.errs.Set("create_table", ErrNoLayout)
		return nil, ErrNoLayout
	}

	if draft.Numero == 0 {
		draft.Numero = e.store.NextTableNumber()
	}
	draft.Normalize()
	draft.LayoutID = layout.ID

	if err := e.validateGeometry(draft, *layout); err != nil {
		e.errs.Set("create_table", err)
		return nil, err
	}

	body := struct {
		models.TableGeometry
		Entity string `json:"entity"`
	}{TableGeometry: draft, Entity: e.entity}

	var created models.TableGeometry
	if err := e.api.Post(ctx, "/table", body, &created); err != nil {
		e.errs.Set("create_table", err)
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	e.reloadTables(ctx)
	e.logger.Info("Table created",
		zap.Int64("table_id", created.ID),
		zap.Int("numero", created.Numero),
	)
	return &created, nil
}

// DeleteTable 删除桌台；成功后只重载桌台几何集合
func (e *Engine) DeleteTable(ctx context.Context, id int64) error {
	e.beginLoading()
	defer e.endLoading()

	if err := e.api.Delete(ctx, fmt.Sprintf("/table/%d", id)); err != nil {
		e.errs.Set("delete_table", err)
		return fmt.Errorf("failed to delete table: %w", err)
	}
	e.reloadTables(ctx)
	e.logger.Info("Table deleted", zap.Int64("table_id", id))
	return nil
}

// UpdateTablePosition 更新桌台位置（拖拽提交和非拖拽编辑共用）
// 越界位置在发起网络请求之前就以 ValidationError 拒绝。
func (e *Engine) UpdateTablePosition(ctx context.Context, id int64, pos models.Position) error {
	layout := e.store.Layout()
	if layout == nil {
		e.errs.Set("update_position", ErrNoLayout)
		return ErrNoLayout
	}
	table, ok := e.store.TableByID(id)
	if !ok {
		err := &client.APIError{
			Kind:    client.KindValidation,
			Message: fmt.Sprintf("unknown table id %d", id),
		}
		e.errs.Set("update_position", err)
		return err
	}
	if pos.X < 0 || pos.Y < 0 ||
		pos.X+table.Width > layout.Width || pos.Y+table.Height > layout.Height {
		err := &client.APIError{
			Kind: client.KindValidation,
			Message: fmt.Sprintf("position (%d,%d) out of canvas bounds %dx%d",
				pos.X, pos.Y, layout.Width, layout.Height),
		}
		e.errs.Set("update_position", err)
		return err
	}

	if err := e.api.Put(ctx, fmt.Sprintf("/table/%d/position", id), pos, nil); err != nil {
		e.errs.Set("update_position", err)
		return fmt.Errorf("failed to update table position: %w", err)
	}
	e.reloadTables(ctx)
	return nil
}

// OpenTable 为空闲桌台开台（创建新订单）
// 成功后立即前台刷新：UI 的下一步操作依赖新状态可见，
// 不等下一个定时周期。
func (e *Engine) OpenTable(ctx context.Context, numero int) error {
	body := struct {
		Entity string `json:"entity"`
	}{Entity: e.entity}

	if err := e.api.Post(ctx, fmt.Sprintf("/table/%d/open", numero), body, nil); err != nil {
		e.errs.Set("open_table", err)
		return fmt.Errorf("failed to open table %d: %w", numero, err)
	}
	e.logger.Info("Table opened", zap.Int("numero", numero))
	return e.Refresh(ctx, false)
}

// CloseTable 关台（结束订单）；成功后立即前台刷新
func (e *Engine) CloseTable(ctx context.Context, ref int64) error {
	if err := e.api.Post(ctx, fmt.Sprintf("/table/%d/close", ref), nil, nil); err != nil {
		e.errs.Set("close_table", err)
		return fmt.Errorf("failed to close table %d: %w", ref, err)
	}
	e.logger.Info("Table closed", zap.Int64("ref", ref))
	return e.Refresh(ctx, false)
}

// AddItem 向桌台的未结订单追加商品；成功后立即前台刷新
func (e *Engine) AddItem(ctx context.Context, tableID int64, item models.OrderItem) error {
	if err := e.api.Post(ctx, fmt.Sprintf("/table/%d/product", tableID), item, nil); err != nil {
		e.errs.Set("add_item", err)
		return fmt.Errorf("failed to add item to table %d: %w", tableID, err)
	}
	return e.Refresh(ctx, false)
}

// CreateLayout 首次初始化：创建布局并做一次全量加载
func (e *Engine) CreateLayout(ctx context.Context, draft models.Layout) (*models.Layout, error) {
	e.beginLoading()
	defer e.endLoading()

	draft.Entity = e.entity
	created, err := e.store.CreateLayout(ctx, draft)
	if err != nil {
		e.errs.Set("create_layout", err)
		return nil, err
	}
	e.setPhase(PhaseReady)

	if err := e.store.LoadAll(ctx); err != nil {
		e.errs.Set("load_floor", err)
	}
	e.publishSnapshot(ctx)
	return created, nil
}

// UploadBackground 上传背景图（成功后只更新本地背景引用）
func (e *Engine) UploadBackground(ctx context.Context, fileName string, file io.Reader) (string, error) {
	url, err := e.store.UploadBackground(ctx, e.entity, fileName, file)
	if err != nil {
		e.errs.Set("upload_background", err)
		return "", err
	}
	return url, nil
}

// BeginDrag 开始拖拽手势
func (e *Engine) BeginDrag(tableID int64, pointerX, pointerY int) error {
	layout := e.store.Layout()
	if layout == nil {
		return ErrNoLayout
	}
	table, ok := e.store.TableByID(tableID)
	if !ok {
		return fmt.Errorf("unknown table id %d", tableID)
	}
	return e.editor.Begin(table, *layout, pointerX, pointerY)
}

// MoveDrag 手势移动，返回钳制后的投机位置
func (e *Engine) MoveDrag(pointerX, pointerY int) (models.Position, error) {
	return e.editor.Move(pointerX, pointerY)
}

// EndDrag 结束手势并提交最终位置
// 无论提交成败都回到 Idle，投机位置总是被丢弃；成功后只重载
// 桌台几何集合。
func (e *Engine) EndDrag(ctx context.Context) error {
	tableID, pos, err := e.editor.End()
	if err != nil {
		return err
	}
	defer e.editor.Finish()

	if err := e.api.Put(ctx, fmt.Sprintf("/table/%d/position", tableID), pos, nil); err != nil {
		e.errs.Set("drag_commit", err)
		return fmt.Errorf("failed to commit table position: %w", err)
	}
	e.reloadTables(ctx)
	e.logger.Debug("Drag committed",
		zap.Int64("table_id", tableID),
		zap.Int("pos_x", pos.X),
		zap.Int("pos_y", pos.Y),
	)
	return nil
}

// DragPhase 当前手势阶段（供渲染层查询）
func (e *Engine) DragPhase() GesturePhase {
	return e.editor.Phase()
}

// DragDraft 当前投机位置（仅手势进行中有效）
func (e *Engine) DragDraft() (models.Position, bool) {
	return e.editor.Draft()
}

// Retry 重试
// 清除当前错误；未就绪时重走引导流程，已就绪时做一次前台刷新。
func (e *Engine) Retry(ctx context.Context) error {
	e.errs.Clear()
	if e.Phase() != PhaseReady {
		return e.Bootstrap(ctx)
	}
	return e.Refresh(ctx, false)
}

// ClearError 显式关闭当前错误
func (e *Engine) ClearError() {
	e.errs.Clear()
}

// CurrentError 当前错误（无错误时为 nil）
func (e *Engine) CurrentError() *SyncError {
	return e.errs.Current()
}

// Phase 当前引导阶段
func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// NeedsSetup 是否需要首次初始化
func (e *Engine) NeedsSetup() bool {
	return e.store.NeedsSetup()
}

// Loading 是否有加载中的操作
func (e *Engine) Loading() bool {
	return atomic.LoadInt32(&e.loading) > 0
}

// Layout 当前布局（未加载时为 nil）
func (e *Engine) Layout() *models.Layout {
	return e.store.Layout()
}

// Tables 桌台几何集合
func (e *Engine) Tables() []models.TableGeometry {
	return e.store.Tables()
}

// Decorations 装饰元素集合
func (e *Engine) Decorations() []models.DecorativeElement {
	return e.store.Decorations()
}

// States 运营状态集合
func (e *Engine) States() []models.TableState {
	return e.poller.States()
}

// StateFor 指定桌号的运营状态
func (e *Engine) StateFor(numero int) models.TableState {
	return e.poller.StateFor(numero)
}

// Stats 按状态聚合的楼面统计
func (e *Engine) Stats() models.Stats {
	return models.ComputeStats(e.store.Tables(), e.poller.States())
}

// NextTableNumber 下一个可用桌号
func (e *Engine) NextTableNumber() int {
	return e.store.NextTableNumber()
}

// Snapshot 构建当前楼面快照
func (e *Engine) Snapshot() *models.FloorSnapshot {
	tables := e.store.Tables()
	states := e.poller.States()
	return &models.FloorSnapshot{
		Entity:      e.entity,
		Layout:      e.store.Layout(),
		Tables:      tables,
		Decorations: e.store.Decorations(),
		States:      states,
		Stats:       models.ComputeStats(tables, states),
		UpdatedAt:   time.Now(),
	}
}

// HasGeometry 布局与非空几何集合是否都已就绪（轮询启动条件）
func (e *Engine) HasGeometry() bool {
	return e.store.Layout() != nil && len(e.store.Tables()) > 0
}

// reloadTables 变更成功后的定向重载（只动桌台几何集合）
func (e *Engine) reloadTables(ctx context.Context) {
	if err := e.store.LoadTables(ctx); err != nil {
		e.errs.Set("load_tables", err)
		return
	}
	e.publishSnapshot(ctx)
}

// publishSnapshot 发布楼面快照
// 发布失败只记日志，不写错误槽（快照是旁路输出，不能打断主流程）。
func (e *Engine) publishSnapshot(ctx context.Context) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, e.Snapshot()); err != nil {
		e.logger.Warn("Failed to publish floor snapshot", zap.Error(err))
	}
}

// validateGeometry 本地几何校验（在任何网络请求之前）
func (e *Engine) validateGeometry(t models.TableGeometry, layout models.Layout) error {
	if t.Numero <= 0 {
		return &client.APIError{
			Kind:    client.KindValidation,
			Message: fmt.Sprintf("table number must be positive, got %d", t.Numero),
		}
	}
	for _, existing := range e.store.Tables() {
		if existing.Numero == t.Numero && existing.ID != t.ID {
			return &client.APIError{
				Kind:    client.KindValidation,
				Message: fmt.Sprintf("table number %d already exists in this layout", t.Numero),
			}
		}
	}
	if t.Width <= 0 || t.Height <= 0 {
		return &client.APIError{
			Kind:    client.KindValidation,
			Message: fmt.Sprintf("table size must be positive, got %dx%d", t.Width, t.Height),
		}
	}
	if t.PosX < 0 || t.PosY < 0 ||
		t.PosX+t.Width > layout.Width || t.PosY+t.Height > layout.Height {
		return &client.APIError{
			Kind: client.KindValidation,
			Message: fmt.Sprintf("table at (%d,%d) size %dx%d exceeds canvas %dx%d",
				t.PosX, t.PosY, t.Width, t.Height, layout.Width, layout.Height),
		}
	}
	return nil
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

func (e *Engine) beginLoading() { atomic.AddInt32(&e.loading, 1) }
func (e *Engine) endLoading()  { atomic.AddInt32(&e.loading, -1) }
