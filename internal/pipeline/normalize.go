package pipeline

import (
	"fmt"
	"strconv"

	"eliggi/internal"
	"eliggi/internal/util"
)

// SentinelBrand is what blank brand/supplier cells collapse to. It is
// the marker the source system already uses for "sin datos".
const SentinelBrand = "S/D"

// ValidationError reports a record that cannot be reconciled. Only rows
// missing their business key fail validation; everything else defaults.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("campo %s: %s", e.Field, e.Reason)
}

// AsText coerces a raw cell value to a trimmed string. Numeric cells
// that are really codes come back without the float artifact: 41021.0
// turns into "41021".
func AsText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return util.CleanCode(t)
	case float64:
		return util.CleanCode(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return strconv.Itoa(t)
	default:
		return util.CleanCode(fmt.Sprintf("%v", t))
	}
}

// AsNumber coerces a raw cell value to a float64. Blank and unparseable
// values yield 0 by policy; this layer never fails on numbers.
func AsNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		return util.CleanNumber(t)
	default:
		return util.CleanNumber(fmt.Sprintf("%v", t))
	}
}

func requiredText(field string, v any) (string, error) {
	s := AsText(v)
	if s == "" {
		return "", &ValidationError{Field: field, Reason: "vacío tras normalizar"}
	}
	return s, nil
}

func textOrSentinel(v any) string {
	if s := AsText(v); s != "" {
		return s
	}
	return SentinelBrand
}

// NormalizeStockRecord applies the per-field policies for stock rows:
// codigo is the business key and rejects the record when blank, marca
// defaults to the sentinel, numerics default to 0.
func NormalizeStockRecord(codigo, articulo, stock, stockMinimo, stockOptimo, marca any) (internal.StockRecord, error) {
	code, err := requiredText("codigo", codigo)
	if err != nil {
		return internal.StockRecord{}, err
	}
	return internal.StockRecord{
		Codigo:      code,
		Articulo:    AsText(articulo),
		Stock:       AsNumber(stock),
		StockMinimo: AsNumber(stockMinimo),
		StockOptimo: AsNumber(stockOptimo),
		Marca:       textOrSentinel(marca),
	}, nil
}

// NormalizePriceRecord applies the per-field policies for price rows.
// The key is (proveedor, codigo); codigo rejects when blank, proveedor
// defaults to the sentinel like marca does.
func NormalizePriceRecord(codigo, articulo, proveedor, precio, marca, rubro, codProv any) (internal.PriceRecord, error) {
	code, err := requiredText("codigo", codigo)
	if err != nil {
		return internal.PriceRecord{}, err
	}
	return internal.PriceRecord{
		Codigo:      code,
		Articulo:    AsText(articulo),
		Proveedor:   textOrSentinel(proveedor),
		PrecioFinal: AsNumber(precio),
		Marca:       textOrSentinel(marca),
		Rubro:       AsText(rubro),
		CodProv:     AsText(codProv),
	}, nil
}
