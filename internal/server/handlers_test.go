package server

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"eliggi/internal/config"
	"eliggi/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{ColorTolerance: 100, ChunkSize: 1000, DevMode: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, db, logger), db
}

func doJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func doMultipart(t *testing.T, s *Server, path string, fields map[string]string, fileName string, file []byte) *httptest.ResponseRecorder {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(file); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestUploadStock(t *testing.T) {
	s, db := newTestServer(t)

	body := `[
		{"Código": "41021.0", "Artículo": "Bujía", "Stock": "1,5", "Marca": "NGK"},
		{"Código": "A-77", "Artículo": "Filtro", "Stock": 3, "Marca": ""},
		{"Código": "", "Artículo": "sin código", "Stock": 9}
	]`
	w := doJSON(t, s, "/upload-sheet", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		Detalle struct {
			TotalEnviados int   `json:"total_enviados"`
			Rechazados    int   `json:"rechazados"`
			Afectadas     int64 `json:"filas_afectadas_db"`
		} `json:"detalle"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" {
		t.Fatalf("status = %q", resp.Status)
	}
	if resp.Detalle.TotalEnviados != 3 || resp.Detalle.Rechazados != 1 || resp.Detalle.Afectadas != 2 {
		t.Fatalf("detalle = %+v", resp.Detalle)
	}

	if n, _ := db.CountRows(t.Context(), "stock_items"); n != 2 {
		t.Fatalf("stock_items = %d, want 2", n)
	}

	// Re-sending the same batch keeps the table at the same size.
	w = doJSON(t, s, "/upload-sheet", body)
	if w.Code != http.StatusOK {
		t.Fatalf("resend status = %d", w.Code)
	}
	if n, _ := db.CountRows(t.Context(), "stock_items"); n != 2 {
		t.Fatalf("stock_items tras reenvío = %d, want 2", n)
	}
}

func TestUploadStockEmptyBatch(t *testing.T) {
	s, _ := newTestServer(t)
	if w := doJSON(t, s, "/upload-sheet", `[]`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if w := doJSON(t, s, "/upload-sheet", `no es json`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadPrecios(t *testing.T) {
	s, db := newTestServer(t)

	first := `[
		{"codigo": "A", "articulo": "uno", "proveedor": "p1", "precio": "1.234,56"},
		{"codigo": "B", "articulo": "dos", "proveedor": "p1", "precio": 20}
	]`
	w := doJSON(t, s, "/upload-precios", first)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if n, _ := db.CountRows(t.Context(), "lista_precios"); n != 2 {
		t.Fatalf("lista_precios = %d, want 2", n)
	}

	// Full replace: the second upload wipes the first.
	second := `[{"codigo": "Z", "proveedor": "p9", "precio": 5}]`
	if w := doJSON(t, s, "/upload-precios", second); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if n, _ := db.CountRows(t.Context(), "lista_precios"); n != 1 {
		t.Fatalf("lista_precios = %d, want 1", n)
	}
}

func TestUploadPreciosAllRejected(t *testing.T) {
	s, db := newTestServer(t)

	seed := `[{"codigo": "A", "articulo": "uno", "proveedor": "p1", "precio": 10}]`
	if w := doJSON(t, s, "/upload-precios", seed); w.Code != http.StatusOK {
		t.Fatalf("seed status = %d", w.Code)
	}

	// A batch where every row lacks a code must not reach the full
	// replace: the existing list survives untouched.
	bad := `[
		{"codigo": "", "articulo": "sin código", "proveedor": "p1", "precio": 1},
		{"articulo": "tampoco", "proveedor": "p2", "precio": 2}
	]`
	w := doJSON(t, s, "/upload-precios", bad)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", w.Code, w.Body.String())
	}
	if n, _ := db.CountRows(t.Context(), "lista_precios"); n != 1 {
		t.Fatalf("lista_precios = %d, want 1", n)
	}
}

func TestLeerExcel(t *testing.T) {
	s, _ := newTestServer(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Código")
	_ = f.SetCellValue(sheet, "B1", "Stock")
	_ = f.SetCellValue(sheet, "C1", "Marca")
	_ = f.SetCellValue(sheet, "A2", "41021.0")
	_ = f.SetCellValue(sheet, "B2", "1,5")
	_ = f.SetCellValue(sheet, "C2", "NGK")
	for cell, hex := range map[string]string{"B2": "00B050", "C2": "FF0000"} {
		styleID, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{hex}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
			t.Fatal(err)
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}

	w := doMultipart(t, s, "/leer-excel", nil, "listado.xlsx", buf.Bytes())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Registros []struct {
			Codigo string  `json:"codigo"`
			Stock  float64 `json:"stock"`
			Estado string  `json:"estado"`
		} `json:"registros"`
		Datos map[string][]map[string]any `json:"datos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Registros) != 1 {
		t.Fatalf("registros = %d, want 1", len(resp.Registros))
	}
	rec := resp.Registros[0]
	if rec.Codigo != "41021" || rec.Stock != 1.5 || rec.Estado != "HAY STOCK" {
		t.Fatalf("registro = %+v", rec)
	}

	// Every column comes back with its own color and classified state,
	// not just the stock column.
	filas := resp.Datos[sheet]
	if len(filas) != 1 {
		t.Fatalf("datos[%q] = %d filas, want 1", sheet, len(filas))
	}
	fila := filas[0]
	if fila["Stock__estado"] != "HAY STOCK" || fila["Stock__color"] != "00B050" {
		t.Fatalf("fila = %v", fila)
	}
	if fila["Marca__estado"] != "NO HAY STOCK" || fila["Marca__color"] != "FF0000" {
		t.Fatalf("fila = %v", fila)
	}
	if fila["Código__color"] != nil || fila["Código__estado"] != "NO DEFINIDO" {
		t.Fatalf("fila = %v", fila)
	}
}

func TestLeerExcelBadFile(t *testing.T) {
	s, _ := newTestServer(t)
	w := doMultipart(t, s, "/leer-excel", nil, "roto.xlsx", []byte("no es excel"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestProcesarZipSQLite(t *testing.T) {
	s, _ := newTestServer(t)

	dbPath := filepath.Join(t.TempDir(), "articulos.sqlite")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`CREATE TABLE Articulos (Codigo TEXT, Descripcion TEXT)`); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`INSERT INTO Articulos VALUES ('41021', 'Bujía'), ('A-77', 'Filtro')`); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	dbBlob, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	zipBuf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(zipBuf)
	fw, err := zw.Create("articulos.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(dbBlob); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	w := doMultipart(t, s, "/procesar-zip-sqlite",
		map[string]string{"codigos": `["41021"]`}, "export.zip", zipBuf.Bytes())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Mensaje     string           `json:"mensaje"`
		Encontrados int              `json:"encontrados"`
		Datos       []map[string]any `json:"datos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Encontrados != 1 || len(resp.Datos) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Datos[0]["Codigo"] != "41021" {
		t.Fatalf("datos = %v", resp.Datos)
	}

	// Bad codigos form field.
	w = doMultipart(t, s, "/procesar-zip-sqlite",
		map[string]string{"codigos": `no-json`}, "export.zip", zipBuf.Bytes())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	// Zip without a database inside.
	emptyBuf := bytes.NewBuffer(nil)
	zw = zip.NewWriter(emptyBuf)
	tw, _ := zw.Create("readme.txt")
	_, _ = tw.Write([]byte("hola"))
	_ = zw.Close()
	w = doMultipart(t, s, "/procesar-zip-sqlite",
		map[string]string{"codigos": `["41021"]`}, "export.zip", emptyBuf.Bytes())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHome(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "mensaje") {
		t.Fatalf("body = %s", w.Body.String())
	}
}
