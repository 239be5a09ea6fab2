package archive

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// The desktop system exports its article catalog as a SQLite database,
// usually zipped. The only table of interest is Articulos.

const articlesTable = "Articulos"

var (
	ErrNoDatabase = errors.New("el archivo no contiene una base .sqlite")
	ErrBadZip     = errors.New("zip inválido")
)

// ExtractFromSQLite reads every Articulos row out of a raw SQLite blob.
// An empty codigos slice means no filter.
func ExtractFromSQLite(blob []byte, codigos []string) ([]map[string]any, error) {
	path, cleanup, err := writeTemp(blob, "*.sqlite")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return ReadArticles(path, codigos)
}

// ExtractFromZip unpacks a zip blob, locates the first embedded SQLite
// database, and reads its Articulos rows.
func ExtractFromZip(blob []byte, codigos []string) ([]map[string]any, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadZip, err)
	}

	for _, entry := range zr.File {
		if !isDatabaseName(entry.Name) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("abrir %s: %w", entry.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("leer %s: %w", entry.Name, err)
		}
		return ExtractFromSQLite(content, codigos)
	}

	return nil, ErrNoDatabase
}

// ReadArticles opens the SQLite file at path and returns its Articulos
// rows as generic column maps, optionally filtered by Codigo.
func ReadArticles(path string, codigos []string) ([]map[string]any, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `SELECT * FROM ` + articlesTable
	args := make([]any, 0, len(codigos))
	if len(codigos) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(codigos)), ",")
		query += ` WHERE Codigo IN (` + placeholders + `)`
		for _, c := range codigos {
			args = append(args, c)
		}
	}

	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("consultar %s: %w", articlesTable, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		out = append(out, record)
	}

	return out, rows.Err()
}

func isDatabaseName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".sqlite") ||
		strings.HasSuffix(lower, ".sqlite3") ||
		strings.HasSuffix(lower, ".db")
}

func writeTemp(blob []byte, pattern string) (string, func(), error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	path := tmp.Name()
	cleanup := func() {
		_ = os.Remove(path)
		// modernc sqlite leaves WAL side files behind on some systems
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")
	}
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return filepath.Clean(path), cleanup, nil
}
