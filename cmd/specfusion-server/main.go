// Command specfusion-server is the query-side HTTP entry point: it loads
// configuration, opens the document store, builds the adapter registry
// (needed for /api/sources and /api/categories), and serves the public
// search API until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/bootstrap"
	"github.com/specfusion/specfusion/internal/config"
	"github.com/specfusion/specfusion/internal/httpapi"
	"github.com/specfusion/specfusion/internal/search"
	"github.com/specfusion/specfusion/internal/storage"
	"github.com/specfusion/specfusion/internal/tokenizer"
	"github.com/specfusion/specfusion/pkg/utils"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("specfusion-server version %s\n", version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tok := tokenizer.Default()
	if err := tok.Init(cfg.UserDictPath); err != nil {
		logger.Fatal("failed to initialize tokenizer", zap.Error(err))
	}

	store, err := storage.Open(cfg.DBPath, tok)
	if err != nil {
		logger.Fatal("failed to open document store", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := bootstrap.BuildRegistry(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("failed to build source registry", zap.Error(err))
	}

	engine := search.NewEngine(store, tok, logger)
	srv := httpapi.NewServer(engine, store, registry, cfg.AdminToken, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	case <-sigChan:
		logger.Info("shutting down")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func printUsage() {
	fmt.Println(`specfusion-server - SpecFusion documentation search HTTP API

Usage:
  specfusion-server          Start the HTTP server (reads config from the environment)
  specfusion-server version  Show version
  specfusion-server help     Show this help

Environment:
  PORT, DB_PATH, ADMIN_TOKEN, USERDICT_PATH, WECOM_COOKIES, TAOBAO_COOKIE,
  PDD_COOKIE, PDD_JSON_PATH, SPECFUSION_API_URL`)
}
