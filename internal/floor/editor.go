package floor

import (
	"errors"
	"sync"

	"floorsync/internal/models"
)

// GesturePhase 拖拽手势阶段
type GesturePhase int

const (
	GestureIdle GesturePhase = iota
	GestureDragging
	GestureCommitting
)

var (
	// ErrGestureActive 已有手势进行中时又开始了新手势
	ErrGestureActive = errors.New("a drag gesture is already in progress")
	// ErrNoGesture 没有进行中的手势
	ErrNoGesture = errors.New("no drag gesture in progress")
)

// Editor 位置编辑器
// 管理一次进行中的拖拽手势：手势期间只改一份投机副本，权威的
// 桌台几何集合不受影响（并发读取——轮询、重绘——看到的始终是
// 上一次已提交的位置）。手势结束时才把最终位置发给远端。
type Editor struct {
	mu      sync.Mutex
	phase   GesturePhase
	table   models.TableGeometry
	offsetX int
	offsetY int
	draft   models.Position
	canvasW int
	canvasH int
}

// NewEditor 创建位置编辑器
func NewEditor() *Editor {
	return &Editor{}
}

// Begin 开始拖拽手势
// 记录指针相对桌台左上角的偏移，后续移动保持抓取点不变。
func (e *Editor) Begin(table models.TableGeometry, canvas models.Layout, pointerX, pointerY int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != GestureIdle {
		return ErrGestureActive
	}

	e.phase = GestureDragging
	e.table = table
	e.offsetX = pointerX - table.PosX
	e.offsetY = pointerY - table.PosY
	e.draft = models.Position{X: table.PosX, Y: table.PosY}
	e.canvasW = canvas.Width
	e.canvasH = canvas.Height
	return nil
}

// Move 手势移动
// 重算候选位置并按画布边界独立钳制两个坐标轴，只更新投机副本。
func (e *Editor) Move(pointerX, pointerY int) (models.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != GestureDragging {
		return models.Position{}, ErrNoGesture
	}

	e.draft = clampPosition(
		models.Position{X: pointerX - e.offsetX, Y: pointerY - e.offsetY},
		e.table.Width, e.table.Height,
		e.canvasW, e.canvasH,
	)
	return e.draft, nil
}

// End 结束手势，进入提交阶段
// 返回待提交的桌台 ID 与最终投机位置；提交结果无论成败，
// 调用方都必须再调 Finish 回到 Idle（投机位置总是被丢弃）。
func (e *Editor) End() (int64, models.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != GestureDragging {
		return 0, models.Position{}, ErrNoGesture
	}
	e.phase = GestureCommitting
	return e.table.ID, e.draft, nil
}

// Finish 提交完成（或失败）后回到 Idle
func (e *Editor) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = GestureIdle
	e.table = models.TableGeometry{}
	e.draft = models.Position{}
}

// Phase 当前手势阶段
func (e *Editor) Phase() GesturePhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Draft 当前投机位置（仅手势进行中有效）
func (e *Editor) Draft() (models.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == GestureIdle {
		return models.Position{}, false
	}
	return e.draft, true
}

// clampPosition 把候选位置钳制进 [0, canvas-table] 区间（按轴独立）
func clampPosition(pos models.Position, tableW, tableH, canvasW, canvasH int) models.Position {
	pos.X = clamp(pos.X, 0, canvasW-tableW)
	pos.Y = clamp(pos.Y, 0, canvasH-tableH)
	return pos
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
