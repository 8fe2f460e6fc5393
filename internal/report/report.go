package report

import (
	"bytes"
	"fmt"
	"time"

	"floorsync/internal/models"

	"github.com/xuri/excelize/v2"
)

// OccupancyHeader 楼面占用报表表头
var OccupancyHeader = []string{
	"Table No.",
	"Name",
	"Capacity",
	"Status",
	"Customer",
	"Open Total",
	"Order Opened At",
}

// GenerateOccupancy 生成楼面占用报表 Excel 文件
// 表头一行 + 每个桌台一行；没有未结订单的桌台按 LIBRE 输出。
func GenerateOccupancy(snap *models.FloorSnapshot) ([]byte, error) {
	f := excelize.NewFile()
	// 注意：这里不要 defer Close()，WriteTo 需要文件保持打开

	sheetName := "Floor Occupancy"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range OccupancyHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to build cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	stateByNumero := make(map[int]models.TableState, len(snap.States))
	for _, s := range snap.States {
		stateByNumero[s.Numero] = s
	}

	for i, table := range snap.Tables {
		state, ok := stateByNumero[table.Numero]
		if !ok {
			state = models.TableState{Numero: table.Numero, Status: models.StatusLibre}
		}

		openedAt := ""
		if !state.CreatedAt.IsZero() {
			openedAt = state.CreatedAt.Format(time.RFC3339)
		}

		row := []any{
			table.Numero,
			table.Name,
			table.Capacity,
			string(state.Status),
			state.Customer,
			state.Total,
			openedAt,
		}
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to build cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
