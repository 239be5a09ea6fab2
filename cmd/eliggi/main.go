package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eliggi/internal/config"
	"eliggi/internal/server"
	"eliggi/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(ctx, cfg)
	must(err)
	defer db.Close()

	logger.Info("almacén listo", "driver", cfg.DBDriver)

	srv := server.New(cfg, db, logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("escuchando", "addr", cfg.HTTPAddr)
		errCh <- srv.Run(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		must(err)
	case <-ctx.Done():
		logger.Info("apagando")
	}
}

func openStore(ctx context.Context, cfg config.Config) (*storage.DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL es requerido con DB_DRIVER=postgres")
		}
		return storage.OpenPostgres(ctx, cfg.DatabaseURL)
	case "sqlite":
		return storage.OpenSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("DB_DRIVER no soportado: %s", cfg.DBDriver)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
