package pipeline

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Cell carries one cell's displayed value and its fill descriptor, if
// the cell has a patterned background.
type Cell struct {
	Value string
	Fill  *Fill
}

type Sheet struct {
	Name string
	Rows [][]Cell
}

type Workbook struct {
	Sheets []Sheet
}

// ReadWorkbook decodes an xlsx blob into sheets of value+fill cells.
// Styles are looked up per cell; cells without a pattern fill carry a
// nil Fill.
func ReadWorkbook(blob []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		sheet := Sheet{Name: name, Rows: make([][]Cell, 0, len(rows))}
		for ri, row := range rows {
			cells := make([]Cell, 0, len(row))
			for ci, value := range row {
				cells = append(cells, Cell{
					Value: value,
					Fill:  cellFill(f, name, ci+1, ri+1),
				})
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func cellFill(f *excelize.File, sheet string, col, row int) *Fill {
	cellName, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil
	}
	styleID, err := f.GetCellStyle(sheet, cellName)
	if err != nil || styleID == 0 {
		return nil
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return nil
	}
	if style.Fill.Type != "pattern" || style.Fill.Pattern == 0 || len(style.Fill.Color) == 0 {
		return nil
	}
	hex := style.Fill.Color[0]
	if hex == "" {
		return nil
	}
	return &Fill{Hex: hex}
}
