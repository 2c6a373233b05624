package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/trigger"
)

// maxRequestBodySize bounds request bodies.
const maxRequestBodySize = 1 << 20 // 1MB

type handler struct {
	store                *store.Store
	pub                  trigger.Publisher
	defaultRemindMinutes int
	logger               zerolog.Logger
}

type createSessionRequest struct {
	Email              string `json:"email"`
	Name               string `json:"name"`
	TelegramChatID     int64  `json:"telegramChatId,omitempty"`
	Topic              string `json:"topic"`
	Goal               string `json:"goal"`
	TimeAvailable      *int   `json:"timeAvailable,omitempty"`
	RemindAfterMinutes int    `json:"remindAfterMinutes,omitempty"`
}

type createSessionResponse struct {
	RunID     string `json:"runId"`
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

// createSession finds or creates the account, creates a RUNNING run at
// iteration 0, and emits the first wake trigger.
func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Topic == "" || req.Goal == "" {
		h.writeError(w, http.StatusBadRequest, "topic and goal are required")
		return
	}

	ctx := r.Context()

	account, err := h.store.FindAccountByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) || req.Email == "" {
		account, err = h.store.CreateAccount(ctx, req.Email, req.Name, req.TelegramChatID)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to resolve account")
		h.writeError(w, http.StatusInternalServerError, "failed to resolve account")
		return
	}

	remind := req.RemindAfterMinutes
	if remind <= 0 {
		remind = h.defaultRemindMinutes
	}

	run, err := h.store.CreateRun(ctx, store.CreateRunParams{
		AccountID:          account.ID,
		Topic:              req.Topic,
		Goal:               req.Goal,
		TimeAvailable:      req.TimeAvailable,
		RemindAfterMinutes: remind,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create run")
		h.writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	if _, err := h.pub.Emit(ctx, trigger.RunRequested, trigger.RunPayload{RunID: run.ID}); err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to emit run trigger")
		h.writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	h.logger.Info().Str("run_id", run.ID).Str("topic", run.Topic).Msg("Study session created")
	h.writeJSON(w, http.StatusCreated, createSessionResponse{
		RunID:     run.ID,
		AccountID: account.ID,
		Status:    string(run.Status),
	})
}

// startRun re-emits a wake trigger for an existing RUNNING run. This is the
// manual re-trigger path for runs stalled by a fatal planner response.
func (h *handler) startRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	ctx := r.Context()

	run, err := h.store.GetRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to load run")
		h.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run.Status != store.RunStatusRunning {
		h.writeError(w, http.StatusConflict, "run is already terminal")
		return
	}

	if _, err := h.pub.Emit(ctx, trigger.RunRequested, trigger.RunPayload{RunID: run.ID}); err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to emit run trigger")
		h.writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"runId":  run.ID,
		"status": string(run.Status),
	})
}

type toggleTaskRequest struct {
	Done bool `json:"done"`
}

// toggleTask sets a task's completion flag.
func (h *handler) toggleTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req toggleTaskRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	err := h.store.SetTaskDone(r.Context(), taskID, req.Done)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("Failed to toggle task")
		h.writeError(w, http.StatusInternalServerError, "failed to toggle task")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"taskId": taskID,
		"done":   req.Done,
	})
}

func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
