package pipeline

import (
	"fmt"
	"strings"

	"eliggi/internal"
)

// headerScanDepth is how many leading rows are searched for a header
// before falling back to the first row.
const headerScanDepth = 5

var accentFold = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U",
	"á", "A", "é", "E", "í", "I", "ó", "O", "ú", "U", "ü", "U",
)

func normalizeHeader(name string) string {
	return strings.ToUpper(strings.TrimSpace(accentFold.Replace(name)))
}

type headerMap struct {
	row      int
	names    []string
	codeIdx  int
	stockIdx int
}

// findHeader scans the first rows of a sheet for one that names the
// code or stock column. A sheet with no recognizable header still gets
// a usable mapping: row 0 as header, first two columns as code/stock.
func findHeader(rows [][]Cell) headerMap {
	for ri := 0; ri < len(rows) && ri < headerScanDepth; ri++ {
		codeIdx, stockIdx := -1, -1
		for ci, cell := range rows[ri] {
			switch norm := normalizeHeader(cell.Value); {
			case norm == "CODIGO" || norm == "CODIGOS":
				if codeIdx < 0 {
					codeIdx = ci
				}
			case norm == "STOCK":
				if stockIdx < 0 {
					stockIdx = ci
				}
			}
		}
		if codeIdx >= 0 || stockIdx >= 0 {
			if codeIdx < 0 {
				codeIdx = 0
			}
			return headerMap{row: ri, names: headerNames(rows[ri]), codeIdx: codeIdx, stockIdx: stockIdx}
		}
	}

	hm := headerMap{row: 0, codeIdx: 0, stockIdx: 1}
	if len(rows) > 0 {
		hm.names = headerNames(rows[0])
	}
	return hm
}

func headerNames(row []Cell) []string {
	names := make([]string, len(row))
	for i, cell := range row {
		name := strings.TrimSpace(cell.Value)
		if name == "" {
			name = fmt.Sprintf("Col_%d", i)
		}
		names[i] = name
	}
	return names
}

// WalkWorkbook iterates every sheet, builds one classified record per
// data row, and consolidates the per-sheet lists in sheet order. Rows
// without a code are rejected and only counted; blank rows are skipped
// silently. Every non-blank row also lands in Data as a per-column map
// with "<col>__color" and "<col>__estado" keys, rejected or not.
func WalkWorkbook(wb *Workbook, classifier *Classifier) internal.WorkbookResult {
	result := internal.WorkbookResult{Data: make(map[string][]map[string]any, len(wb.Sheets))}
	for _, sheet := range wb.Sheets {
		summary := internal.SheetSummary{Name: sheet.Name}
		hm := findHeader(sheet.Rows)
		sheetData := []map[string]any{}

		for ri := hm.row + 1; ri < len(sheet.Rows); ri++ {
			row := sheet.Rows[ri]
			if blankRow(row) {
				continue
			}
			sheetData = append(sheetData, classifiedRow(hm.names, row, classifier))

			code := AsText(cellValue(row, hm.codeIdx))
			if code == "" {
				summary.Rejected++
				continue
			}

			var stockCell Cell
			if hm.stockIdx >= 0 && hm.stockIdx < len(row) {
				stockCell = row[hm.stockIdx]
			}
			token := ExtractColor(stockCell.Fill)

			record := internal.ClassifiedRecord{
				Codigo:      code,
				Stock:       AsNumber(stockCell.Value),
				Estado:      classifier.Classify(token, stockCell.Value),
				Color:       token.Hex,
				Campos:      rowFields(hm.names, row),
				SourceSheet: sheet.Name,
				SourceRow:   ri + 1,
			}
			summary.Rows++
			result.Records = append(result.Records, record)
		}

		result.Sheets = append(result.Sheets, summary)
		result.Data[sheet.Name] = sheetData
	}
	return result
}

// classifiedRow expands one row into a map carrying, per column, the
// cell value plus its fill color and classified state. Cells without a
// resolvable color keep a nil "__color" and classify by fill alone, so
// an unfilled cell reads NO DEFINIDO.
func classifiedRow(names []string, row []Cell, classifier *Classifier) map[string]any {
	out := make(map[string]any, len(row)*3)
	for i, cell := range row {
		name := fmt.Sprintf("Col_%d", i)
		if i < len(names) {
			name = names[i]
		}
		token := ExtractColor(cell.Fill)
		out[name] = strings.TrimSpace(cell.Value)
		if token.Hex != "" {
			out[name+"__color"] = token.Hex
		} else {
			out[name+"__color"] = nil
		}
		out[name+"__estado"] = classifier.Classify(token, "")
	}
	return out
}

func blankRow(row []Cell) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell.Value) != "" {
			return false
		}
	}
	return true
}

func cellValue(row []Cell, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx].Value
}

func rowFields(names []string, row []Cell) map[string]string {
	fields := make(map[string]string, len(row))
	for i, cell := range row {
		name := fmt.Sprintf("Col_%d", i)
		if i < len(names) {
			name = names[i]
		}
		fields[name] = strings.TrimSpace(cell.Value)
	}
	return fields
}
