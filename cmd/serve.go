package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steinik-group/rentscout/internal/orchestrator"
	"github.com/steinik-group/rentscout/internal/quota"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long:  "Exposes session start/stop, sweep history and quota state over HTTP for dashboards and automation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/sessions/{id}/start", func(w http.ResponseWriter, req *http.Request) {
			sessionID, ok := sessionParam(w, req)
			if !ok {
				return
			}
			if err := env.Orch.Start(ctx, sessionID); err != nil {
				if errors.Is(err, orchestrator.ErrAlreadyRunning) {
					writeJSON(w, http.StatusConflict, map[string]string{"error": "session already running"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{
				"session_id": sessionID,
				"state":      env.Orch.State(sessionID),
			})
		})

		r.Post("/sessions/{id}/stop", func(w http.ResponseWriter, req *http.Request) {
			sessionID, ok := sessionParam(w, req)
			if !ok {
				return
			}
			stopped := env.Orch.Stop(sessionID)
			writeJSON(w, http.StatusOK, map[string]any{
				"session_id": sessionID,
				"stopping":   stopped,
				"state":      env.Orch.State(sessionID),
			})
		})

		r.Get("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
			sessionID, ok := sessionParam(w, req)
			if !ok {
				return
			}
			body := map[string]any{
				"session_id": sessionID,
				"state":      env.Orch.State(sessionID),
			}
			if stats, ok := env.Orch.Stats(sessionID); ok {
				body["stats"] = stats
			}
			writeJSON(w, http.StatusOK, body)
		})

		r.Get("/sweeps", func(w http.ResponseWriter, req *http.Request) {
			sweeps, err := env.Store.LastSweeps(req.Context(), 20)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, sweeps)
		})

		r.Get("/quota", func(w http.ResponseWriter, req *http.Request) {
			qc := quota.New(env.Store, cfg.Quota.DailyCap)
			remaining, err := qc.Remaining(req.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"day":       qc.Day(),
				"cap":       qc.Cap(),
				"remaining": remaining,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func sessionParam(w http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
