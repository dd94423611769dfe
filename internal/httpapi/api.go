package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/afrojuju1/hyperlocal/internal/domain"
	"github.com/afrojuju1/hyperlocal/internal/platform/httpserver"
)

// Runner executes one creative run for a brief.
type Runner interface {
	Run(ctx context.Context, brief domain.CreativeBrief) (domain.RunResult, error)
}

type API struct {
	logger *slog.Logger
	runner Runner
	sem    *semaphore.Weighted
}

func New(logger *slog.Logger, runner Runner, maxConcurrentRuns int) *API {
	if maxConcurrentRuns < 1 {
		maxConcurrentRuns = 1
	}
	return &API{
		logger: logger,
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxConcurrentRuns)),
	}
}

func (api *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /generate", api.handleGenerate)
}

func (api *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var brief domain.CreativeBrief
	if err := decodeJSON(r, &brief); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := brief.Validate(); err != nil {
		api.logger.Warn("rejected brief", "error", err)
		api.writeError(w, r, http.StatusBadRequest, "invalid_brief")
		return
	}

	// Excess requests queue here instead of fanning out runs.
	if err := api.sem.Acquire(r.Context(), 1); err != nil {
		api.writeError(w, r, http.StatusServiceUnavailable, "shutting_down")
		return
	}
	defer api.sem.Release(1)

	result, err := api.runner.Run(r.Context(), brief)
	if err != nil {
		api.logger.Error("run failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "run_failed")
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *API) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	httpserver.WriteJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}
