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
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/consolidate"
	"github.com/claimsight/claimsight/internal/fetcher"
	"github.com/claimsight/claimsight/internal/layout"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/rule"
	"github.com/claimsight/claimsight/internal/runlog"
	"github.com/claimsight/claimsight/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		labels, err := rule.NewLabelSet(cfg.Labels)
		if err != nil {
			return err
		}

		api := &apiServer{
			store:  st,
			source: newRunSource(st),
			labels: labels,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
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

// apiServer bundles the dependencies of the dashboard API handlers.
type apiServer struct {
	store  store.Store
	source fetcher.RunSource
	labels *rule.LabelSet
}

func (s *apiServer) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/runs/{id}/consolidate", s.handleConsolidateRun)
		r.Get("/pipelines/{id}/layout", s.handlePipelineLayout)
		r.Post("/label", s.handleLabel)
	})

	return r
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:     model.RunStatus(q.Get("status")),
		PipelineID: q.Get("pipeline"),
		Limit:      50,
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.RunCore{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetRunDetail(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleConsolidateRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	entries, err := s.source.FetchRunLog(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	detail := &model.RunDetail{
		Run:   model.RunCore{ID: runID, Status: model.RunStatusRunning},
		Steps: runlog.ParseSteps(entries),
	}
	consolidate.Aggregate(detail)

	if err := s.store.SaveRunDetail(r.Context(), detail); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handlePipelineLayout(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPipeline(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, layout.Rows(p.Steps))
}

func (s *apiServer) handleLabel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
		return
	}

	label, ok := s.labels.Pick(req.Score)
	writeJSON(w, http.StatusOK, map[string]any{
		"label":   label,
		"matched": ok,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Warn("serve: request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
