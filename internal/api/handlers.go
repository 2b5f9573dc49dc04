package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/leadloop/leadloop-go/internal/db"
	"github.com/leadloop/leadloop-go/internal/models"
	"github.com/leadloop/leadloop-go/internal/scheduler"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps persistence errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, db.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var in models.ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if err := validateScheduleInput(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	nextRunAt := initialNextRun(&in, time.Now().UTC())

	created, err := h.db.QueryCreateSchedule(r.Context(), uuid.NewString()[:8], UserID(r.Context()), in, nextRunAt)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// validateScheduleInput enforces the creation contract: a known action, a
// runnable time definition, a valid nested tool payload, and a bounded
// per-run goal.
func validateScheduleInput(in *models.ScheduleInput) error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch in.ActionType {
	case models.ActionSourceViaPersona, models.ActionPersonaOutreach:
		if in.PersonaID == nil && in.Payload == nil {
			return fmt.Errorf("action %q requires a persona_id or a tool payload", in.ActionType)
		}
	case models.ActionLaunchCampaign, models.ActionSendSequence:
		if in.CampaignID == nil {
			return fmt.Errorf("action %q requires a campaign_id", in.ActionType)
		}
	default:
		return fmt.Errorf("unknown action_type %q", in.ActionType)
	}

	switch in.ScheduleKind {
	case models.ScheduleOneTime:
		if in.RunAt == nil {
			return fmt.Errorf("one_time schedules require run_at")
		}
	case models.ScheduleRecurring:
		if in.CronExpr == nil || *in.CronExpr == "" {
			return fmt.Errorf("recurring schedules require cron_expr")
		}
		if err := scheduler.ValidateCron(*in.CronExpr); err != nil {
			return fmt.Errorf("invalid cron_expr: %v", err)
		}
	default:
		return fmt.Errorf("unknown schedule_kind %q", in.ScheduleKind)
	}

	if in.LeadsPerRun < 0 || in.LeadsPerRun > 500 {
		return fmt.Errorf("leads_per_run must be between 1 and 500")
	}

	if _, err := scheduler.ParseToolInvocation(in.Payload); err != nil {
		return err
	}
	return nil
}

// initialNextRun computes the first due time at creation.
func initialNextRun(in *models.ScheduleInput, now time.Time) *time.Time {
	if in.ScheduleKind == models.ScheduleOneTime {
		return in.RunAt
	}
	s := &models.Schedule{ScheduleKind: in.ScheduleKind, CronExpr: in.CronExpr}
	return scheduler.ComputeNextRun(s, now, nil)
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.db.QueryListSchedules(r.Context(), UserID(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func (h *Handler) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.db.QueryGetSchedule(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var upd models.ScheduleUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if upd.Name == nil && upd.Status == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if upd.Status != nil {
		switch *upd.Status {
		case models.ScheduleActive, models.SchedulePaused:
		default:
			writeError(w, http.StatusBadRequest, "status must be active or paused")
			return
		}
	}

	s, err := h.db.QueryUpdateSchedule(r.Context(), UserID(r.Context()), r.PathValue("id"), upd)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.db.QueryDeleteSchedule(r.Context(), UserID(r.Context()), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleForceRun marks the schedule due now; the next scheduler tick picks
// it up under the normal locking path.
func (h *Handler) handleForceRun(w http.ResponseWriter, r *http.Request) {
	if err := h.db.QueryForceRun(r.Context(), UserID(r.Context()), r.PathValue("id"), time.Now().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.db.QueryListRunLogs(r.Context(), UserID(r.Context()), r.PathValue("id"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.db.QueryGetRunLog(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleUpsertSettings(w http.ResponseWriter, r *http.Request) {
	var s models.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s.UserID = UserID(r.Context())

	if err := h.db.QueryUpsertNotificationSettings(r.Context(), &s); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &s)
}
