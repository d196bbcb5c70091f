package handler

import (
	"errors"
	"net/http"

	"github.com/jbbskl/finalsoftware/internal/api/response"
	"github.com/jbbskl/finalsoftware/internal/core"
)

// writeCoreError maps core sentinel errors onto HTTP statuses: missing
// entities are 404, rule violations are 422 with the rule's short code as
// the error string, everything else is a 500.
func writeCoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if code := core.Code(err); code != "" {
		response.WriteError(w, http.StatusUnprocessableEntity, code)
		return
	}
	response.WriteError(w, http.StatusInternalServerError, err.Error())
}
