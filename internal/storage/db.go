package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// OpenPostgres connects through the pgx stdlib driver and ensures the
// schema exists. This is the production store.
func OpenPostgres(ctx context.Context, url string) (*DB, error) {
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &DB{conn: conn, dialect: DialectPostgres}
	if err := db.init(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a local file store. Used for development runs and
// throughout the tests.
func OpenSQLite(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, dialect: DialectSQLite}
	if err := db.init(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS stock_items (
  id SERIAL PRIMARY KEY,
  codigo TEXT NOT NULL,
  articulo TEXT,
  stock DOUBLE PRECISION DEFAULT 0,
  stock_minimo DOUBLE PRECISION DEFAULT 0,
  stock_optimo DOUBLE PRECISION DEFAULT 0,
  marca TEXT NOT NULL,
  UNIQUE (codigo, marca)
);
CREATE INDEX IF NOT EXISTS idx_stock_items_codigo ON stock_items(codigo);
CREATE INDEX IF NOT EXISTS idx_stock_items_marca ON stock_items(marca);

CREATE TABLE IF NOT EXISTS lista_precios (
  id SERIAL PRIMARY KEY,
  codigo TEXT,
  articulo TEXT,
  proveedor TEXT,
  precio_final DOUBLE PRECISION DEFAULT 0,
  marca TEXT,
  rubro TEXT,
  cod_prov TEXT,
  UNIQUE (proveedor, codigo)
);
CREATE INDEX IF NOT EXISTS idx_lista_precios_codigo ON lista_precios(codigo);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS stock_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  codigo TEXT NOT NULL,
  articulo TEXT,
  stock REAL DEFAULT 0,
  stock_minimo REAL DEFAULT 0,
  stock_optimo REAL DEFAULT 0,
  marca TEXT NOT NULL,
  UNIQUE (codigo, marca)
);
CREATE INDEX IF NOT EXISTS idx_stock_items_codigo ON stock_items(codigo);
CREATE INDEX IF NOT EXISTS idx_stock_items_marca ON stock_items(marca);

CREATE TABLE IF NOT EXISTS lista_precios (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  codigo TEXT,
  articulo TEXT,
  proveedor TEXT,
  precio_final REAL DEFAULT 0,
  marca TEXT,
  rubro TEXT,
  cod_prov TEXT,
  UNIQUE (proveedor, codigo)
);
CREATE INDEX IF NOT EXISTS idx_lista_precios_codigo ON lista_precios(codigo);
`

func (d *DB) init(ctx context.Context) error {
	schema := schemaSQLite
	if d.dialect == DialectPostgres {
		schema = schemaPostgres
	}
	_, err := d.conn.ExecContext(ctx, schema)
	return err
}

// placeholder returns the dialect's parameter marker for position n
// (1-based).
func (d *DB) placeholder(n int) string {
	if d.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
