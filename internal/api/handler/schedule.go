package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbbskl/finalsoftware/internal/api/request"
	"github.com/jbbskl/finalsoftware/internal/api/response"
	"github.com/jbbskl/finalsoftware/internal/core"
)

// Schedule handles schedule CRUD and the day-copy endpoint.
type Schedule struct {
	svc *core.ScheduleService
}

// NewSchedule creates a new Schedule handler.
func NewSchedule(svc *core.ScheduleService) *Schedule {
	return &Schedule{svc: svc}
}

// Create creates a schedule. Fails with 422 TooSoon inside the 1-hour lead
// window and 422 InvalidKindPhase on a kind/phase_id mismatch.
func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	startAt, err := h.svc.Rules().ParseStartAt(req.StartAt)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc, err := h.svc.Create(r.Context(), core.CreateScheduleParams{
		BotInstanceID: req.BotInstanceID,
		Kind:          req.Kind,
		PhaseID:       req.PhaseID,
		Payload:       req.Payload,
		StartAt:       startAt,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, sc)
}

// List lists schedules, filterable by bot instance and an inclusive day
// range (?bot_instance_id=&from=YYYY-MM-DD&to=YYYY-MM-DD).
func (h *Schedule) List(w http.ResponseWriter, r *http.Request) {
	filter := core.ScheduleFilter{
		BotInstanceID: r.URL.Query().Get("bot_instance_id"),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		day, err := h.svc.Rules().ParseDay(from)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		start, _ := h.svc.Rules().DayBounds(day)
		filter.From = &start
	}
	if to := r.URL.Query().Get("to"); to != "" {
		day, err := h.svc.Rules().ParseDay(to)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		_, end := h.svc.Rules().DayBounds(day)
		filter.To = &end
	}

	schedules, err := h.svc.List(r.Context(), filter)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, schedules)
}

// Get retrieves a schedule by ID.
func (h *Schedule) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sc)
}

// Update moves a schedule and/or replaces its payload. A move to a future
// instant re-arms the schedule for dispatch.
func (h *Schedule) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := core.UpdateScheduleParams{Payload: req.Payload}
	if req.StartAt != nil {
		startAt, err := h.svc.Rules().ParseStartAt(*req.StartAt)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.StartAt = &startAt
	}

	sc, err := h.svc.Update(r.Context(), id, params)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sc)
}

// Delete removes a schedule. Fails with 422 TooCloseToFire inside the
// 10-minute cutoff.
func (h *Schedule) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CopyDay clones one day's schedules onto another day and reports how many
// were copied and how many skipped.
func (h *Schedule) CopyDay(w http.ResponseWriter, r *http.Request) {
	var req request.CopyDay
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	fromDate, err := h.svc.Rules().ParseDay(req.FromDate)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	toDate, err := h.svc.Rules().ParseDay(req.ToDate)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.CopyDay(r.Context(), req.BotInstanceID, fromDate, toDate)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}
