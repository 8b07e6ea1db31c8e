package main

import (
	"context"
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

	"github.com/sells-group/careers-cli/internal/approval"
	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/internal/monitoring"
	"github.com/sells-group/careers-cli/internal/pipeline"
	"github.com/sells-group/careers-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review API server",
	Long:  "Serves endpoints for triggering discovery runs and reviewing pending drafts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background alert checks run for the lifetime of the server.
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.WithoutCancel(ctx))
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the review API. baseCtx outlives individual requests and
// scopes discovery runs triggered over HTTP.
func newRouter(baseCtx context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/runs", handleStartRun(baseCtx, env))
	r.Get("/runs", handleListRuns(env))
	r.Get("/runs/{runID}", handleGetRun(env))

	r.Get("/firms/{firmID}/drafts", handleListDrafts(env))
	r.Post("/drafts/programs/{draftID}/approve", handleProgramDecision(env, true))
	r.Post("/drafts/programs/{draftID}/dismiss", handleProgramDecision(env, false))
	r.Post("/drafts/roles/{draftID}/approve", handleRoleDecision(env, true))
	r.Post("/drafts/roles/{draftID}/dismiss", handleRoleDecision(env, false))

	return r
}

// handleStartRun kicks off a discovery run asynchronously and returns the
// queued run record.
func handleStartRun(baseCtx context.Context, env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FirmID     int64  `json:"firm_id"`
			ListingURL string `json:"listing_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FirmID == 0 || req.ListingURL == "" {
			writeError(w, http.StatusBadRequest, "firm_id and listing_url are required")
			return
		}

		go func() {
			run, err := env.Pipeline.Run(baseCtx, pipeline.RunRequest{
				FirmID:     req.FirmID,
				ListingURL: req.ListingURL,
			})
			if err != nil {
				zap.L().Error("api discovery run failed",
					zap.String("listing_url", req.ListingURL),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("api discovery run complete",
				zap.String("run_id", run.ID),
				zap.Int("roles_found", run.Metrics.RolesFound),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":      "accepted",
			"firm_id":     req.FirmID,
			"listing_url": req.ListingURL,
		})
	}
}

func handleListRuns(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.RunFilter{
			ListingURL: q.Get("listing"),
			Status:     model.RunStatus(q.Get("status")),
			Limit:      50,
		}
		if v := q.Get("firm"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid firm id")
				return
			}
			filter.FirmID = id
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}

		runs, err := env.Store.ListRuns(r.Context(), filter)
		if err != nil {
			zap.L().Error("api list runs", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleGetRun(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := env.Store.GetRun(r.Context(), chi.URLParam(r, "runID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func handleListDrafts(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		firmID, err := strconv.ParseInt(chi.URLParam(r, "firmID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid firm id")
			return
		}

		programs, err := env.Store.ListPendingProgramDrafts(r.Context(), firmID)
		if err != nil {
			zap.L().Error("api list program drafts", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list drafts failed")
			return
		}
		roles, err := env.Store.ListPendingRoleDrafts(r.Context(), firmID)
		if err != nil {
			zap.L().Error("api list role drafts", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list drafts failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"program_drafts": programs,
			"role_drafts":    roles,
		})
	}
}

func handleProgramDecision(env *pipelineEnv, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "draftID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid draft id")
			return
		}

		if approve {
			res, err := env.Approval.ApproveProgramDraft(r.Context(), id)
			if err != nil {
				writeDecisionError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
			return
		}

		if err := env.Approval.DismissProgramDraft(r.Context(), id); err != nil {
			writeDecisionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
	}
}

func handleRoleDecision(env *pipelineEnv, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "draftID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid draft id")
			return
		}

		var decideErr error
		status := "approved"
		if approve {
			decideErr = env.Approval.ApproveRoleDraft(r.Context(), id)
		} else {
			decideErr = env.Approval.DismissRoleDraft(r.Context(), id)
			status = "dismissed"
		}
		if decideErr != nil {
			writeDecisionError(w, decideErr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

// writeDecisionError maps approval failures onto HTTP statuses. A draft that
// was already decided is a conflict, not a server fault.
func writeDecisionError(w http.ResponseWriter, err error) {
	if errors.Is(err, approval.ErrNotPending) {
		writeError(w, http.StatusConflict, "draft is not pending")
		return
	}
	zap.L().Error("api draft decision", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "decision failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
