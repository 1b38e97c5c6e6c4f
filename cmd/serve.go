package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long:  "Exposes POST /run, which executes a full pipeline run for the posted source_url and streams back the enriched CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, err := pipeline.NewOrchestrator(cfg)
		if err != nil {
			return err
		}
		runner := func(runCtx context.Context, runCfg model.RunConfig) (*model.RunManifest, error) {
			return executeAndRecord(runCtx, cfg, orch, runCfg)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		runTimeout := time.Duration(cfg.Server.RunTimeoutSecs) * time.Second

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(runner, cfg.Output.Dir, runTimeout),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("serve: shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("serve: listening", zap.Int("port", port), zap.Duration("run_timeout", runTimeout))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runnerFunc executes one pipeline run. Handlers depend on this rather than
// the orchestrator so tests can substitute a stub.
type runnerFunc func(ctx context.Context, runCfg model.RunConfig) (*model.RunManifest, error)

// newRouter builds the HTTP surface: health probes plus a synchronous run
// endpoint that streams back the enriched CSV.
func newRouter(run runnerFunc, outputDir string, runTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "healthy",
			"service":   "expo-cli",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Post("/run", handleRun(run, outputDir, runTimeout))

	return r
}

// handleRun executes a fresh pipeline run for the posted source URL and
// responds with the enriched CSV. Runs are synchronous and bounded by the
// configured timeout.
func handleRun(run runnerFunc, outputDir string, runTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			SourceURL string `json:"source_url"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if !validSourceURL(body.SourceURL) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_url must be an absolute http(s) URL"})
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), runTimeout)
		defer cancel()

		log := zap.L().With(zap.String("source_url", body.SourceURL))
		log.Info("serve: run requested")

		if _, err := run(ctx, model.RunConfig{SourceURL: body.SourceURL}); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
				log.Warn("serve: run timed out")
				writeJSON(w, http.StatusGatewayTimeout, map[string]any{
					"error":           "pipeline run timed out",
					"timeout_seconds": int(runTimeout.Seconds()),
				})
				return
			}
			log.Error("serve: run failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "pipeline run failed"})
			return
		}

		// A run that skipped enrichment produces no CSV to return; that is
		// a server-side misconfiguration from the caller's point of view.
		csvPath := filepath.Join(outputDir, pipeline.EnrichedCSV)
		f, err := os.Open(csvPath)
		if err != nil {
			log.Error("serve: enriched output missing", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":         "output file not generated",
				"expected_path": csvPath,
			})
			return
		}
		defer f.Close() //nolint:errcheck

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pipeline.EnrichedCSV))
		if _, err := io.Copy(w, f); err != nil {
			log.Warn("serve: stream enriched csv", zap.Error(err))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// validSourceURL accepts absolute http(s) URLs only.
func validSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
