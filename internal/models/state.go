package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// TableStatus 桌台占用状态（由远端订单状态派生）
type TableStatus string

const (
	StatusLibre    TableStatus = "LIBRE"    // 空闲（无未结订单）
	StatusOcupada  TableStatus = "OCUPADA"  // 占用中
	StatusCobrando TableStatus = "COBRANDO" // 结账中
)

// StatusCode 远端订单状态码
// 远端偶尔会返回字符串形式的数字甚至非数字值，解码时全部容忍，
// 未知值落到 -1，派生时按保守默认映射为 LIBRE。
type StatusCode int

// UnmarshalJSON 容忍数字、字符串数字和任意其他 JSON 值
func (s *StatusCode) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*s = StatusCode(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if v, err := strconv.Atoi(str); err == nil {
			*s = StatusCode(v)
			return nil
		}
	}
	*s = StatusCode(-1)
	return nil
}

// StatusFromCode 状态码到占用状态的映射
// 1→OCUPADA，2→COBRANDO，其余一律 LIBRE（保守默认）。
// 该映射必须是全函数：任何整数输入都有确定输出。
func StatusFromCode(code StatusCode) TableStatus {
	switch code {
	case 1:
		return StatusOcupada
	case 2:
		return StatusCobrando
	default:
		return StatusLibre
	}
}

// Order 远端系统的未结订单（/proposals 返回的条目）
type Order struct {
	ID           int64      `json:"id"`
	Numero       int        `json:"numero"`
	Statut       StatusCode `json:"fk_statut"`
	Customer     string     `json:"customer,omitempty"`
	Total        float64    `json:"total"`
	DateCreation int64      `json:"date_creation"`
}

// OrderItem 追加到桌台订单的单个商品行
type OrderItem struct {
	ProductID int64   `json:"fk_product"`
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price,omitempty"`
	Note      string  `json:"note,omitempty"`
}

// TableState 桌台的运营状态（每个轮询周期整体重建，无独立生命周期）
// 与 TableGeometry 通过桌号（numero）关联而不是通过 ID——
// 这是远端数据形状决定的反规范化设计，必须保留。
type TableState struct {
	Numero    int         `json:"numero"`
	Status    TableStatus `json:"status"`
	Customer  string      `json:"customer,omitempty"`
	Total     float64     `json:"total"`
	OrderID   int64       `json:"order_id,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
}

// StateFromOrder 从远端订单派生桌台运营状态
func StateFromOrder(o Order) TableState {
	st := TableState{
		Numero:   o.Numero,
		Status:   StatusFromCode(o.Statut),
		Customer: o.Customer,
		Total:    o.Total,
		OrderID:  o.ID,
	}
	if o.DateCreation > 0 {
		st.CreatedAt = time.Unix(o.DateCreation, 0)
	}
	return st
}

// Stats 楼面聚合统计（按状态计数）
type Stats struct {
	Total    int `json:"total"`
	Libre    int `json:"libre"`
	Ocupada  int `json:"ocupada"`
	Cobrando int `json:"cobrando"`
}

// ComputeStats 联接桌台几何与运营状态，按状态聚合计数
// 没有对应订单的桌台计为 LIBRE。
func ComputeStats(tables []TableGeometry, states []TableState) Stats {
	byNumero := make(map[int]TableStatus, len(states))
	for _, s := range states {
		byNumero[s.Numero] = s.Status
	}

	stats := Stats{Total: len(tables)}
	for _, t := range tables {
		switch byNumero[t.Numero] {
		case StatusOcupada:
			stats.Ocupada++
		case StatusCobrando:
			stats.Cobrando++
		default:
			stats.Libre++
		}
	}
	return stats
}

// FloorSnapshot 完整楼面快照（布局+几何+运营状态+统计）
// 引擎在每次成功刷新后发布，供同店其他终端/看板只读消费。
type FloorSnapshot struct {
	Entity      string              `json:"entity"`
	Layout      *Layout             `json:"layout,omitempty"`
	Tables      []TableGeometry     `json:"tables"`
	Decorations []DecorativeElement `json:"decorations,omitempty"`
	States      []TableState        `json:"states"`
	Stats       Stats               `json:"stats"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
