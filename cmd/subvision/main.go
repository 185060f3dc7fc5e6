package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dezexus/SubVision/internal/cleanup"
	"github.com/Dezexus/SubVision/internal/config"
	"github.com/Dezexus/SubVision/internal/ocr"
	"github.com/Dezexus/SubVision/internal/server"
	"github.com/Dezexus/SubVision/internal/storage"
	"github.com/Dezexus/SubVision/internal/upload"
	"github.com/Dezexus/SubVision/internal/ws"
)

const cleanupInterval = time.Hour

func main() {
	logger := log.New(os.Stderr, "[subvision] ", log.Ltime)

	cfg := config.Load()
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		logger.Fatalf("create cache dir %s: %v", cfg.CacheDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewManager(ctx, cfg)
	if err != nil {
		logger.Fatalf("storage init: %v", err)
	}

	uploads, err := upload.NewManager(cfg.CacheDir)
	if err != nil {
		logger.Fatalf("upload init: %v", err)
	}

	hub := ws.NewHub()

	engines := ocr.NewEngineCache(func(lang string, gpu bool) (*ocr.Engine, error) {
		rec := ocr.NewHTTPRecognizer(cfg.OCREndpoint, lang, gpu)
		if !rec.IsHealthy() {
			return nil, fmt.Errorf("OCR service at %s is not responding", cfg.OCREndpoint)
		}
		return ocr.NewEngine(rec), nil
	})

	srv := server.New(cfg, hub, uploads, store, engines)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Routes(),
	}

	stopCleanup := make(chan struct{})
	sweeper := cleanup.NewSweeper(cfg.CacheDir, time.Duration(cfg.CleanupMaxAgeHours)*time.Hour)
	go sweeper.Run(cleanupInterval, stopCleanup)

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	logger.Printf("exiting (%v)", <-errc)
	close(stopCleanup)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	logger.Println("exited")
}
