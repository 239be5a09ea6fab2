package internal

// StockState is the availability classification derived from a cell's
// fill color or literal text. The string values are the labels the
// spreadsheet operators see, so they go out on the wire as-is.
type StockState string

const (
	StateHasStock  StockState = "HAY STOCK"
	StateAsk       StockState = "PREGUNTAR"
	StateNoStock   StockState = "NO HAY STOCK"
	StateUndefined StockState = "NO DEFINIDO"
	StateUnknown   StockState = "DESCONOCIDO"
)

// StockRecord is one article row for the stock_items table.
// Business key: (Codigo, Marca).
type StockRecord struct {
	Codigo      string  `json:"codigo"`
	Articulo    string  `json:"articulo"`
	Stock       float64 `json:"stock"`
	StockMinimo float64 `json:"stock_minimo"`
	StockOptimo float64 `json:"stock_optimo"`
	Marca       string  `json:"marca"`
}

// PriceRecord is one article row for the lista_precios table.
// Business key: (Proveedor, Codigo).
type PriceRecord struct {
	Codigo      string  `json:"codigo"`
	Articulo    string  `json:"articulo"`
	Proveedor   string  `json:"proveedor"`
	PrecioFinal float64 `json:"precio_final"`
	Marca       string  `json:"marca"`
	Rubro       string  `json:"rubro"`
	CodProv     string  `json:"cod_prov"`
}

// ClassifiedRecord is one data row of an uploaded workbook after
// normalization and color classification of its stock cell.
type ClassifiedRecord struct {
	Codigo      string            `json:"codigo"`
	Stock       float64           `json:"stock"`
	Estado      StockState        `json:"estado"`
	Color       string            `json:"color,omitempty"`
	Campos      map[string]string `json:"campos,omitempty"`
	SourceSheet string            `json:"hoja"`
	SourceRow   int               `json:"fila"`
}

type SheetSummary struct {
	Name     string `json:"hoja"`
	Rows     int    `json:"filas"`
	Rejected int    `json:"rechazadas"`
}

// WorkbookResult is the consolidated output of walking every sheet of
// one workbook: per-sheet counts, all records in sheet order, and the
// raw per-sheet row maps. Each row map carries, per column, the cell
// value plus "<col>__color" and "<col>__estado" keys so the client can
// see every cell's classification, not just the stock column's.
type WorkbookResult struct {
	Sheets  []SheetSummary              `json:"hojas"`
	Records []ClassifiedRecord          `json:"registros"`
	Data    map[string][]map[string]any `json:"datos"`
}
