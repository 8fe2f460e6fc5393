package models

// Shape 桌台外形
type Shape string

const (
	ShapeRect   Shape = "rect"
	ShapeCircle Shape = "circle"
	ShapeSquare Shape = "square"
)

// Layout 楼面布局（每个 entity 一份）：画布尺寸与背景图
type Layout struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	BackgroundImage string `json:"background_image,omitempty"`
	Entity          string `json:"entity"`
}

// Position 画布坐标（左上角原点，像素）
type Position struct {
	X int `json:"pos_x"`
	Y int `json:"pos_y"`
}

// TableGeometry 桌台的结构描述（位置、尺寸、外形）
// 线路字段名沿用远端系统的西班牙语命名（numero/ancho/alto），
// 这是与远端数据形状的既定约定，不要"修正"。
type TableGeometry struct {
	ID       int64  `json:"id"`
	LayoutID int64  `json:"fk_layout"`
	Numero   int    `json:"numero"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Shape    Shape  `json:"shape"`
	PosX     int    `json:"pos_x"`
	PosY     int    `json:"pos_y"`
	Width    int    `json:"ancho"`
	Height   int    `json:"alto"`
	Color    string `json:"color,omitempty"`
}

// Normalize 规范化外形约束：圆形/正方形强制 width == height
func (t *TableGeometry) Normalize() {
	if t.Shape == ShapeCircle || t.Shape == ShapeSquare {
		t.Height = t.Width
	}
}

// DecorativeElement 装饰元素（标签/矩形/圆形），对本引擎只读
type DecorativeElement struct {
	ID       int64  `json:"id"`
	LayoutID int64  `json:"fk_layout"`
	Kind     string `json:"kind"`
	PosX     int    `json:"pos_x"`
	PosY     int    `json:"pos_y"`
	Width    int    `json:"ancho"`
	Height   int    `json:"alto"`
	Color    string `json:"color,omitempty"`
	Text     string `json:"text,omitempty"`
}
