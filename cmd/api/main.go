package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/app"
	"github.com/yokitheyo/wmremover/internal/config"
	httpHandler "github.com/yokitheyo/wmremover/internal/handler/http"
	"github.com/yokitheyo/wmremover/internal/handler/middleware"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Watermark Remover API Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	app.SetLogLevel(cfg.Logging.Level)
	zlog.Logger.Info().
		Int("max_upload_size_mb", cfg.Server.MaxUploadSizeMB).
		Int("max_files", cfg.Server.MaxFiles).
		Msg("Loaded server config")

	application, err := app.New(ctx, cfg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	// Gin engine + middleware
	engine := ginext.New(cfg.Server.GinMode)
	engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.ErrorHandlerMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{
			"status":   "ok",
			"provider": application.Provider.Name(),
			"demoMode": cfg.DemoMode(),
		})
	})

	handler := httpHandler.NewWatermarkHandler(application.Usecase, cfg.Server.MaxUploadSizeMB, cfg.Server.MaxFiles)
	handler.RegisterRoutes(engine)

	if cfg.Storage.Type == "local" {
		engine.Static("/uploads", cfg.Storage.LocalPath)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	if err := application.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("closing application resources failed")
	}

	zlog.Logger.Info().Msg("API shutdown complete")
}
