package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"hireflow-engine/internal/config"
	"hireflow-engine/internal/controller"
	"hireflow-engine/internal/events"
	"hireflow-engine/internal/logging"
	"hireflow-engine/internal/parse"
	"hireflow-engine/internal/pipeline"
	"hireflow-engine/internal/secrets"
	"hireflow-engine/internal/storage"
	"hireflow-engine/internal/store"
)

func main() {
	// Engine data dir: use env if provided, else local folder.
	dataDir := os.Getenv("HIREFLOW_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// Only one engine may run against a data dir: the processing registry
	// is in-memory, so a second instance would double-poll accounts.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	held, err := lock.TryLock()
	if err != nil {
		log.Fatalf("instance lock failed: %v", err)
	}
	if !held {
		log.Fatalf("another engine instance holds %s", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	cfgPath, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", cfgPath, err)
	}
	cfg, report := config.NormalizeAndValidate(cfg)
	if !report.OK() {
		log.Fatalf("config invalid: %v", report.Errors)
	}

	logger, err := logging.New(cfg.App.Dev)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range report.Warnings {
		logger.Warn("[config] " + w)
	}

	dbPath := filepath.Join(dataDir, "hireflow.db")
	db, err := store.Open(dbPath)
	if err != nil {
		logger.Fatal("[store] open failed", zap.String("path", dbPath), zap.Error(err))
	}
	defer db.Close()

	box, err := secrets.Open()
	if err != nil {
		logger.Fatal("[secrets] master key unavailable", zap.Error(err))
	}

	apiKey := os.Getenv(cfg.Parser.APIKeyEnv)
	model, err := parse.NewOpenAIClient(apiKey)
	if err != nil {
		logger.Fatal("[parse] model client init failed",
			zap.String("env", cfg.Parser.APIKeyEnv), zap.Error(err))
	}
	gate := &parse.Gate{
		Model: model,
		Opts: parse.CompleteOptions{
			Model:       cfg.Parser.Model,
			Temperature: cfg.Parser.Temperature,
			MaxTokens:   cfg.Parser.MaxTokens,
		},
		MinQualityScore: cfg.Parser.MinQualityScore,
	}

	hub := events.NewHub()
	uploads := storage.NewLocalDisk(filepath.Join(dataDir, "files"))

	proc := &pipeline.Processor{
		Store:   db,
		Uploads: uploads,
		Gate:    gate,
		Folder:  cfg.Storage.Folder,
		Log:     logger.Named("pipeline"),
		Hub:     hub,
	}

	ctrl := controller.New(db, controller.NewIMAPDialer(), box, proc,
		logger.Named("controller"), hub, controller.SettingsFromConfig(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Automation.Enabled {
		if err := ctrl.Start(ctx); err != nil {
			logger.Fatal("[controller] start failed", zap.Error(err))
		}
	} else {
		logger.Info("[controller] automation disabled in config, standing by")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("[http] listen failed", zap.String("addr", addr), zap.Error(err))
	}
	logger.Info("engine listening",
		zap.String("addr", "http://"+addr),
		zap.String("db", dbPath),
	)

	srv := &http.Server{
		Handler:           newServer(ctx, db, ctrl, hub, box, cfgPath, cfg, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[http] serve failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	ctrl.Stop()
}
