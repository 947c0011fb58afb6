package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/Brownie44l1/node-detect-api/internal/config"
	"github.com/Brownie44l1/node-detect-api/internal/handlers"
	"github.com/Brownie44l1/node-detect-api/internal/model"
	"github.com/Brownie44l1/node-detect-api/internal/pipeline"
)

// Version is set by ldflags; "dev" also enables the source-tree model lookup.
var Version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("node-detect-server %s\n", Version)
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(cfg.LogLevel)

	dirs := model.DefaultCandidates(model.CandidateOptions{
		OverrideDir: cfg.ModelDir,
		Dev:         Version == "dev",
	})
	session := model.NewSession(
		model.NewResolver(dirs),
		model.NewORTLoader(model.ORTOptions{
			SharedLibraryPath: cfg.OrtLibrary,
			IntraOpThreads:    1,
			InterOpThreads:    1,
		}),
	)
	defer session.Close()

	// Load in the background so /health answers while weights are read; a
	// failure is kept and reported by every prediction.
	go func() {
		if err := session.Load(); err == nil {
			paths, _ := session.Paths()
			log.WithField("model", paths.Model).Info("Model ready")
		}
	}()

	predictor := pipeline.NewPredictor(session)
	pool := pipeline.NewPool(predictor, cfg.Workers, cfg.QueueSize)
	defer pool.Close()

	mux := http.NewServeMux()
	handlers.NewHandler(session, predictor, pool, cfg.MaxBodyBytes).Routes(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           cors.AllowAll().Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"workers": cfg.Workers,
			"version": Version,
		}).Info("Server starting")
		log.Info("Endpoints:")
		log.Info("  GET  /health           - Health check")
		log.Info("  POST /predict          - Detect nodes in a base64 PNG crop")
		log.Info("  POST /predict/internal - Internal and root nodes only")
		log.Info("  POST /predict/image    - Detect nodes in an uploaded image")
		log.Info("  POST /detect/tips      - Threshold line-tip detector (no model)")
		log.Info("  GET  /ws               - Streaming predictions over WebSocket")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Shutdown incomplete")
	}
}
