package storage

import (
	"context"
	"fmt"
	"strings"

	"eliggi/internal"
)

type Strategy string

const (
	// FullReplace deletes the whole table before inserting the batch.
	// Unsafe against concurrent writers; the delete happens once, in
	// the first chunk's transaction.
	FullReplace Strategy = "full_replace"
	// Upsert updates all non-key columns on key conflict.
	Upsert Strategy = "upsert"
	// InsertSkip leaves existing rows untouched on key conflict.
	InsertSkip Strategy = "insert_skip"
)

const DefaultChunkSize = 1000

// TableSpec describes the merge target: column order and which columns
// form the business key backed by the table's uniqueness constraint.
type TableSpec struct {
	Name       string
	Columns    []string
	KeyColumns []string
}

// Row is one deduplicable record: Values parallel to spec.Columns, Key
// derived from the business-key fields.
type Row struct {
	Key    string
	Values []any
}

type Result struct {
	RowsAffected int64
	Chunks       int
	Deduped      int
}

// ReconcileError reports a chunk-level transaction failure. Chunks
// committed before the failure stay committed; callers resubmit the
// batch, the key constraint makes that safe for Upsert and InsertSkip.
type ReconcileError struct {
	Chunk        int
	ChunksDone   int
	RowsAffected int64
	Err          error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("chunk %d falló tras %d confirmados (%d filas): %v",
		e.Chunk, e.ChunksDone, e.RowsAffected, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Reconcile merges rows into spec.Name: dedupe by key (last write
// wins), split into chunks, apply one atomic transaction per chunk.
// The affected count sums the driver's RowsAffected per statement; on
// Postgres an ON CONFLICT DO UPDATE counts inserted and updated rows
// alike, so an identical re-run reports the full count, not zero.
func (d *DB) Reconcile(ctx context.Context, spec TableSpec, rows []Row, strategy Strategy, chunkSize int) (Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	deduped := dedupe(rows)
	result := Result{Deduped: len(rows) - len(deduped)}
	if len(deduped) == 0 && strategy != FullReplace {
		return result, nil
	}

	insertSQL := d.insertStatement(spec, strategy)
	chunks := chunkRows(deduped, chunkSize)
	if len(chunks) == 0 {
		// FullReplace of an empty batch still truncates the table.
		chunks = [][]Row{nil}
	}

	for ci, chunk := range chunks {
		affected, err := d.applyChunk(ctx, spec, insertSQL, chunk, strategy == FullReplace && ci == 0)
		if err != nil {
			return result, &ReconcileError{
				Chunk:        ci + 1,
				ChunksDone:   result.Chunks,
				RowsAffected: result.RowsAffected,
				Err:          err,
			}
		}
		result.RowsAffected += affected
		result.Chunks++
	}

	return result, nil
}

func (d *DB) applyChunk(ctx context.Context, spec TableSpec, insertSQL string, chunk []Row, truncateFirst bool) (int64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if truncateFirst {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+spec.Name); err != nil {
			return 0, fmt.Errorf("vaciar %s: %w", spec.Name, err)
		}
	}

	var affected int64
	if len(chunk) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		for _, row := range chunk {
			res, err := stmt.ExecContext(ctx, row.Values...)
			if err != nil {
				return 0, err
			}
			n, _ := res.RowsAffected()
			affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

func (d *DB) insertStatement(spec TableSpec, strategy Strategy) string {
	placeholders := make([]string, len(spec.Columns))
	for i := range spec.Columns {
		placeholders[i] = d.placeholder(i + 1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		spec.Name, strings.Join(spec.Columns, ", "), strings.Join(placeholders, ", "))

	switch strategy {
	case Upsert:
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET ", strings.Join(spec.KeyColumns, ", "))
		assignments := make([]string, 0, len(spec.Columns))
		for _, col := range spec.Columns {
			if isKeyColumn(spec, col) {
				continue
			}
			assignments = append(assignments, col+" = excluded."+col)
		}
		b.WriteString(strings.Join(assignments, ", "))
	case InsertSkip:
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", strings.Join(spec.KeyColumns, ", "))
	}

	return b.String()
}

func isKeyColumn(spec TableSpec, col string) bool {
	for _, key := range spec.KeyColumns {
		if key == col {
			return true
		}
	}
	return false
}

// dedupe keeps one row per key: first occurrence keeps its position,
// later occurrences overwrite its values.
func dedupe(rows []Row) []Row {
	seen := make(map[string]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if idx, ok := seen[row.Key]; ok {
			out[idx] = row
			continue
		}
		seen[row.Key] = len(out)
		out = append(out, row)
	}
	return out
}

func chunkRows(rows []Row, size int) [][]Row {
	var chunks [][]Row
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func stockTableSpec() TableSpec {
	return TableSpec{
		Name:       "stock_items",
		Columns:    []string{"codigo", "articulo", "stock", "stock_minimo", "stock_optimo", "marca"},
		KeyColumns: []string{"codigo", "marca"},
	}
}

func priceTableSpec() TableSpec {
	return TableSpec{
		Name:       "lista_precios",
		Columns:    []string{"codigo", "articulo", "proveedor", "precio_final", "marca", "rubro", "cod_prov"},
		KeyColumns: []string{"proveedor", "codigo"},
	}
}

func stockRow(rec internal.StockRecord) Row {
	return Row{
		Key:    rec.Codigo + "\x1f" + rec.Marca,
		Values: []any{rec.Codigo, rec.Articulo, rec.Stock, rec.StockMinimo, rec.StockOptimo, rec.Marca},
	}
}

func priceRow(rec internal.PriceRecord) Row {
	return Row{
		Key:    rec.Proveedor + "\x1f" + rec.Codigo,
		Values: []any{rec.Codigo, rec.Articulo, rec.Proveedor, rec.PrecioFinal, rec.Marca, rec.Rubro, rec.CodProv},
	}
}

// SyncStockItems upserts a batch into stock_items keyed on
// (codigo, marca).
func (d *DB) SyncStockItems(ctx context.Context, records []internal.StockRecord, chunkSize int) (Result, error) {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, stockRow(rec))
	}
	return d.Reconcile(ctx, stockTableSpec(), rows, Upsert, chunkSize)
}

// ReplacePriceList swaps the whole lista_precios table for the batch.
func (d *DB) ReplacePriceList(ctx context.Context, records []internal.PriceRecord, chunkSize int) (Result, error) {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, priceRow(rec))
	}
	return d.Reconcile(ctx, priceTableSpec(), rows, FullReplace, chunkSize)
}

// CountRows is a small read helper for handlers and tests.
func (d *DB) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, err
}
