package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jbbskl/finalsoftware/internal/core"
	"github.com/jbbskl/finalsoftware/internal/executor"
	"github.com/jbbskl/finalsoftware/internal/timerule"
)

func newRunHandler(db core.DB, exec executor.Executor) *Run {
	rules, _ := timerule.New("UTC")
	return NewRun(core.NewServices(db, rules), exec)
}

func TestRunCreate_MissingInstanceID(t *testing.T) {
	h := newRunHandler(nil, executor.Nop{})
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/runs", map[string]any{})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestRunCreate_InstanceNotFound(t *testing.T) {
	db := &handlerMockDB{}
	db.On("QueryRow", mock.Anything, sqlContains("FROM bot_instances"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}).Once()

	h := newRunHandler(db, executor.Nop{})
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/runs", map[string]any{"bot_instance_id": "missing"})

	h.Create(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunStop_NotActive(t *testing.T) {
	db := &handlerMockDB{}
	db.On("Exec", mock.Anything, sqlContains("UPDATE runs"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil).Once()
	db.On("QueryRow", mock.Anything, sqlContains("SELECT EXISTS"), mock.Anything).
		Return(existsRow(true)).Once()

	h := newRunHandler(db, executor.Nop{})
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/runs/"+validID+"/stop", nil), "id", validID)

	h.Stop(rec, r)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Equal(t, "RunNotActive", body["error"])
}

func TestRunStop_Success(t *testing.T) {
	db := &handlerMockDB{}
	db.On("Exec", mock.Anything, sqlContains("UPDATE runs"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()

	h := newRunHandler(db, executor.Nop{})
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/runs/"+validID+"/stop", nil), "id", validID)

	h.Stop(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	db.AssertExpectations(t)
}

func TestRunReportStatus_InvalidStatus(t *testing.T) {
	h := newRunHandler(nil, executor.Nop{})
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/runs/"+validID+"/status",
		map[string]any{"status": "paused"}), "id", validID)

	h.ReportStatus(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAppendEvent_MissingMessage(t *testing.T) {
	h := newRunHandler(nil, executor.Nop{})
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/runs/"+validID+"/events",
		map[string]any{"level": "info"}), "id", validID)

	h.AppendEvent(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunGet_EmptyID(t *testing.T) {
	h := newRunHandler(nil, executor.Nop{})
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/runs/", nil), "id", "")

	h.Get(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
