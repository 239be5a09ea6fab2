package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eliggi/internal"
	"eliggi/internal/archive"
	"eliggi/internal/pipeline"
	"eliggi/internal/storage"
)

// stockRow mirrors the column headers the spreadsheet client sends.
type stockRow struct {
	Codigo      any `json:"Código"`
	Articulo    any `json:"Artículo"`
	Stock       any `json:"Stock"`
	StockMinimo any `json:"Stock Mínimo"`
	StockOptimo any `json:"Stock Optimo"`
	Marca       any `json:"Marca"`
}

type precioRow struct {
	Codigo    any `json:"codigo"`
	Articulo  any `json:"articulo"`
	Proveedor any `json:"proveedor"`
	Precio    any `json:"precio"`
	Marca     any `json:"marca"`
	Rubro     any `json:"rubro"`
	CodProv   any `json:"cod_prov"`
}

func jsonError(c *gin.Context, status int, message string, detail string) {
	c.JSON(status, gin.H{"error": message, "detalle": detail})
}

func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mensaje": "API Eliggi funcionando"})
}

func (s *Server) handleUploadStock(c *gin.Context) {
	var filas []stockRow
	if err := c.ShouldBindJSON(&filas); err != nil {
		jsonError(c, http.StatusBadRequest, "JSON inválido", err.Error())
		return
	}
	if len(filas) == 0 {
		jsonError(c, http.StatusBadRequest, "No se recibieron datos", "")
		return
	}

	uploadID := uuid.NewString()
	records := make([]internal.StockRecord, 0, len(filas))
	rejected := 0
	for _, fila := range filas {
		rec, err := pipeline.NormalizeStockRecord(
			fila.Codigo, fila.Articulo, fila.Stock, fila.StockMinimo, fila.StockOptimo, fila.Marca,
		)
		if err != nil {
			rejected++
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		jsonError(c, http.StatusBadRequest, "Ninguna fila tiene código", "")
		return
	}

	s.log.Info("carga de stock recibida",
		"upload_id", uploadID, "filas", len(filas), "rechazadas", rejected)

	res, err := s.db.SyncStockItems(c.Request.Context(), records, s.cfg.ChunkSize)
	if err != nil {
		s.respondReconcileFailure(c, uploadID, err)
		return
	}

	s.log.Info("stock sincronizado",
		"upload_id", uploadID, "filas_afectadas", res.RowsAffected, "chunks", res.Chunks)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Sincronización completa",
		"detalle": gin.H{
			"total_enviados":     len(filas),
			"rechazados":         rejected,
			"duplicados":         res.Deduped,
			"filas_afectadas_db": res.RowsAffected,
			"metodo":             "UPSERT (codigo, marca)",
		},
	})
}

func (s *Server) handleUploadPrecios(c *gin.Context) {
	var filas []precioRow
	if err := c.ShouldBindJSON(&filas); err != nil {
		jsonError(c, http.StatusBadRequest, "JSON inválido", err.Error())
		return
	}
	if len(filas) == 0 {
		jsonError(c, http.StatusBadRequest, "La lista enviada está vacía", "")
		return
	}

	uploadID := uuid.NewString()
	records := make([]internal.PriceRecord, 0, len(filas))
	rejected := 0
	for _, fila := range filas {
		rec, err := pipeline.NormalizePriceRecord(
			fila.Codigo, fila.Articulo, fila.Proveedor, fila.Precio, fila.Marca, fila.Rubro, fila.CodProv,
		)
		if err != nil {
			rejected++
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		jsonError(c, http.StatusBadRequest, "Ninguna fila tiene código", "")
		return
	}

	s.log.Info("carga de precios recibida",
		"upload_id", uploadID, "filas", len(filas), "rechazadas", rejected)

	res, err := s.db.ReplacePriceList(c.Request.Context(), records, s.cfg.ChunkSize)
	if err != nil {
		s.respondReconcileFailure(c, uploadID, err)
		return
	}

	s.log.Info("lista de precios reemplazada",
		"upload_id", uploadID, "registros", res.RowsAffected)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Base de datos actualizada con éxito",
		"detalle": gin.H{
			"registros_insertados": res.RowsAffected,
			"rechazados":           rejected,
			"tabla":                "lista_precios",
		},
	})
}

// respondReconcileFailure reports a batch failure with the partial
// result: chunks committed before the failing one stay committed.
func (s *Server) respondReconcileFailure(c *gin.Context, uploadID string, err error) {
	var rerr *storage.ReconcileError
	if errors.As(err, &rerr) {
		s.log.Error("fallo de reconciliación",
			"upload_id", uploadID, "chunk", rerr.Chunk,
			"chunks_confirmados", rerr.ChunksDone, "error", rerr.Err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "fallo parcial de sincronización",
			"detalle": gin.H{
				"chunk_fallido":      rerr.Chunk,
				"chunks_confirmados": rerr.ChunksDone,
				"filas_confirmadas":  rerr.RowsAffected,
			},
		})
		return
	}
	s.log.Error("fallo de base de datos", "upload_id", uploadID, "error", err)
	jsonError(c, http.StatusInternalServerError, "Error interno del servidor", err.Error())
}

func (s *Server) handleLeerExcel(c *gin.Context) {
	blob, ok := s.readUpload(c)
	if !ok {
		return
	}

	wb, err := pipeline.ReadWorkbook(blob)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "No se pudo leer el Excel", err.Error())
		return
	}

	result := pipeline.WalkWorkbook(wb, s.classifier)
	s.log.Info("excel clasificado",
		"hojas", len(result.Sheets), "registros", len(result.Records))
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExtract(c *gin.Context) {
	blob, ok := s.readUpload(c)
	if !ok {
		return
	}

	rows, err := archive.ExtractFromSQLite(blob, nil)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "No se pudo leer la base", err.Error())
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleProcesarZip(c *gin.Context) {
	codigos, ok := parseCodigos(c)
	if !ok {
		return
	}
	blob, ok := s.readUpload(c)
	if !ok {
		return
	}

	rows, err := archive.ExtractFromZip(blob, codigos)
	switch {
	case errors.Is(err, archive.ErrBadZip):
		jsonError(c, http.StatusBadRequest, "ZIP inválido", "")
		return
	case errors.Is(err, archive.ErrNoDatabase):
		jsonError(c, http.StatusBadRequest, "No hay .sqlite en el ZIP", "")
		return
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "Error SQL", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mensaje":     "Éxito",
		"encontrados": len(rows),
		"datos":       rows,
	})
}

func parseCodigos(c *gin.Context) ([]string, bool) {
	raw := c.PostForm("codigos")
	if raw == "" {
		jsonError(c, http.StatusBadRequest, "El campo 'codigos' es requerido", "")
		return nil, false
	}
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		jsonError(c, http.StatusBadRequest, "El campo 'codigos' debe ser array JSON", err.Error())
		return nil, false
	}
	codigos := make([]string, 0, len(values))
	for _, v := range values {
		if s := pipeline.AsText(v); s != "" {
			codigos = append(codigos, s)
		}
	}
	return codigos, true
}

func (s *Server) readUpload(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		jsonError(c, http.StatusBadRequest, "Falta el archivo 'file'", err.Error())
		return nil, false
	}
	blob, err := readMultipart(file)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "No se pudo leer el archivo", err.Error())
		return nil, false
	}
	return blob, true
}

func readMultipart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
