package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbbskl/finalsoftware/internal/api/request"
	"github.com/jbbskl/finalsoftware/internal/api/response"
	"github.com/jbbskl/finalsoftware/internal/core"
)

// BotInstance handles read endpoints for bot instances and their phases.
// Instances themselves are provisioned elsewhere.
type BotInstance struct {
	services *core.Services
}

// NewBotInstance creates a new BotInstance handler.
func NewBotInstance(services *core.Services) *BotInstance {
	return &BotInstance{services: services}
}

// List lists bot instances with cursor-based pagination.
func (h *BotInstance) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	instances, hasMore, err := h.services.BotInstance.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(instances) > 0 {
		nextCursor = instances[len(instances)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, instances, nextCursor, hasMore)
}

// Get retrieves a bot instance by ID.
func (h *BotInstance) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	instance, err := h.services.BotInstance.GetByID(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, instance)
}

// ListPhases returns an instance's phases ordered by their position.
func (h *BotInstance) ListPhases(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.services.BotInstance.GetByID(r.Context(), id); err != nil {
		writeCoreError(w, err)
		return
	}

	phases, err := h.services.Phase.ListByInstance(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, phases)
}

// ListRuns returns the instance's most recent runs.
func (h *BotInstance) ListRuns(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	instance, err := h.services.BotInstance.GetByID(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	pg := request.ParsePagination(r)
	runs, err := h.services.Run.ListByBot(r.Context(), instance.BotCode, instance.OwnerID, pg.Limit)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, runs)
}
