package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"eliggi/internal/config"
	"eliggi/internal/pipeline"
	"eliggi/internal/storage"
)

type Server struct {
	router     *gin.Engine
	db         *storage.DB
	cfg        config.Config
	classifier *pipeline.Classifier
	log        *slog.Logger
}

func New(cfg config.Config, db *storage.DB, logger *slog.Logger) *Server {
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	classifierCfg := pipeline.DefaultClassifierConfig()
	classifierCfg.Tolerance = cfg.ColorTolerance

	s := &Server{
		router:     gin.New(),
		db:         db,
		cfg:        cfg,
		classifier: pipeline.NewClassifier(classifierCfg),
		log:        logger,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	s.router.GET("/", s.handleHome)
	s.router.POST("/upload-sheet", s.handleUploadStock)
	s.router.POST("/upload-precios", s.handleUploadPrecios)
	s.router.POST("/leer-excel", s.handleLeerExcel)
	s.router.POST("/extract", s.handleExtract)
	s.router.POST("/procesar-zip-sqlite", s.handleProcesarZip)
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
