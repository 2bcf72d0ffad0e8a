// Command server is the gateway's HTTP entrypoint: it loads configuration,
// builds the structured logger, constructs the composition root, and
// registers the protected and exempt routes before serving with graceful
// shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fitcore/aigateway/internal/admission"
	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/config"
	"github.com/fitcore/aigateway/internal/gateway"
	"github.com/fitcore/aigateway/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	mgr := config.NewManager(*configPath)
	if err := mgr.Load(); err != nil {
		log.Fatalf("server: config load failed: %v", err)
	}
	cfg := mgr.Get()

	logger, err := logging.New(logging.Config{
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   true,
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
	})
	if err != nil {
		log.Fatalf("server: logger init failed: %v", err)
	}
	defer logger.Close()

	// The knowledge-base search index is an out-of-scope external
	// collaborator (§1); wire a placeholder in-memory index here so the
	// binary is runnable standalone. Production deployments replace this
	// with a real client before calling gateway.New.
	searchIndex := collaborators.NewMemorySearchIndex()
	tokenVerifier := collaborators.NewMemoryTokenVerifier()

	gw, err := gateway.New(cfg, gateway.Collaborators{
		TokenVerifier: tokenVerifier,
		SearchIndex:   searchIndex,
		Clock:         collaborators.SystemClock{},
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("gateway construction failed", zap.Error(err))
	}
	defer gw.Close()

	mux := registerRoutes(gw, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("gateway listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func registerRoutes(gw *gateway.Gateway, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	mon := gw.Monitoring()
	mux.Handle("/health", mon.HealthHandler())
	mux.Handle("/summary", mon.SummaryHandler())
	mux.Handle("/alerts", mon.AlertsHandler(monitoringDefaultRules()))
	mux.Handle("/metrics", mon.MetricsHandler())
	mux.HandleFunc("/admin/ratelimit/reset", adminRatelimitResetHandler(gw, logger))

	protected := http.NewServeMux()
	protected.HandleFunc("/api/coach/ask", coachAskHandler(gw, logger))
	protected.HandleFunc("/ws/completions", streamingHandler(gw, logger))

	var protectedHandler http.Handler = protected
	if mw := gw.Admission(); mw != nil {
		protectedHandler = mw.Wrap(protected)
	}
	mux.Handle("/api/", protectedHandler)
	mux.Handle("/ws/", protectedHandler)

	return mux
}

func coachAskHandler(gw *gateway.Gateway, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		question := r.URL.Query().Get("q")
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		reqLogger := logger
		if l, ok := admission.LoggerFromContext(ctx); ok {
			reqLogger = l
		}

		blob, err := gw.Retrieval().GetContext(ctx, retrievalParamsFor(question))
		if err != nil {
			reqLogger.Error("retrieval failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"context_chunks":%d,"degraded":%t}`, blob.ChunkCount, blob.Degraded)
	}
}
