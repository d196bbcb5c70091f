package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbbskl/finalsoftware/internal/api/request"
	"github.com/jbbskl/finalsoftware/internal/api/response"
	"github.com/jbbskl/finalsoftware/internal/core"
	"github.com/jbbskl/finalsoftware/internal/executor"
	"github.com/jbbskl/finalsoftware/internal/jobconfig"
	"github.com/jbbskl/finalsoftware/internal/model"
	"github.com/jbbskl/finalsoftware/internal/platform"
)

// Run handles manual run starts, stop requests and the status/event
// callbacks from the execution subsystem.
type Run struct {
	services *core.Services
	exec     executor.Executor
}

// NewRun creates a new Run handler.
func NewRun(services *core.Services, exec executor.Executor) *Run {
	return &Run{services: services, exec: exec}
}

// Create starts a run immediately, outside any schedule. The job config is
// built the same way the dispatch scanner builds it, minus schedule context.
func (h *Run) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRun
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	instance, err := h.services.BotInstance.GetByID(r.Context(), req.BotInstanceID)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	base, err := jobconfig.Load(instance.ConfigPath, instance.BotCode)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var job jobconfig.Job = jobconfig.FullJob{Base: base}
	kind := model.ScheduleKindFull
	if req.PhaseID != nil {
		phase, err := h.services.Phase.GetForInstance(r.Context(), *req.PhaseID, instance.ID)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		job = jobconfig.PhaseJob{Base: base, PhaseConfig: phase.Config}
		kind = model.ScheduleKindPhase
	}

	summary, _ := json.Marshal(map[string]any{
		"manual":   true,
		"kind":     kind,
		"phase_id": req.PhaseID,
		"payload":  req.Payload,
	})

	run, err := h.services.Run.Create(r.Context(), core.CreateRunParams{
		OwnerID:  instance.OwnerID,
		BotCode:  instance.BotCode,
		ConfigID: platform.NewID(),
		ImageRef: "bot-" + instance.BotCode + ":latest",
		Summary:  summary,
	})
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = h.exec.Submit(r.Context(), executor.Job{
		ImageRef: run.ImageRef,
		RunID:    run.ID,
		Config: job.Merge(jobconfig.Meta{
			Kind:    kind,
			PhaseID: req.PhaseID,
			Payload: req.Payload,
		}),
	})
	if err != nil {
		// The run never reached a worker; remove it rather than leaving a
		// queued row nothing will ever pick up.
		_ = h.services.Run.DeleteQueued(r.Context(), run.ID)
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, run)
}

// Get retrieves a run by ID.
func (h *Run) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.services.Run.GetByID(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, run)
}

// Stop marks a queued or running run stopped.
func (h *Run) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.services.Run.Stop(r.Context(), id); err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ReportStatus applies a status report from the execution subsystem.
func (h *Run) ReportStatus(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.ReportRunStatus
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.services.Run.ReportStatus(r.Context(), id, core.StatusReport{
		Status:   req.Status,
		ExitCode: req.ExitCode,
		Summary:  req.Summary,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, run)
}

// AppendEvent records a log event against a run.
func (h *Run) AppendEvent(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.AppendRunEvent
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.services.Run.AppendEvent(r.Context(), id, core.AppendEventParams{
		Level:   req.Level,
		Code:    req.Code,
		Message: req.Message,
		Data:    req.Data,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, ev)
}

// ListEvents returns a run's events in chronological order.
func (h *Run) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.services.Run.ListEvents(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, events)
}
