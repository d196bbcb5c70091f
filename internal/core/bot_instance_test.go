package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jbbskl/finalsoftware/internal/model"
)

func instanceScanFunc(b model.BotInstance) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = b.ID
		*(dest[1].(*string)) = b.OwnerType
		*(dest[2].(*string)) = b.OwnerID
		*(dest[3].(*string)) = b.BotCode
		*(dest[4].(*string)) = b.Status
		*(dest[5].(*string)) = b.ConfigPath
		*(dest[6].(*time.Time)) = b.CreatedAt
		*(dest[7].(*time.Time)) = b.UpdatedAt
		return nil
	}
}

func phaseScanFunc(p model.Phase) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = p.ID
		*(dest[1].(*string)) = p.BotInstanceID
		*(dest[2].(*string)) = p.Name
		*(dest[3].(*int)) = p.OrderNo
		*(dest[4].(*json.RawMessage)) = p.Config
		*(dest[5].(*time.Time)) = p.CreatedAt
		*(dest[6].(*time.Time)) = p.UpdatedAt
		return nil
	}
}

func testBotInstance(id string) model.BotInstance {
	return model.BotInstance{
		ID:         id,
		OwnerType:  "org",
		OwnerID:    "org-1",
		BotCode:    "f2f_post",
		Status:     model.InstanceStatusActive,
		ConfigPath: "/configs/f2f_post.yaml",
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func TestBotInstanceService_GetByID(t *testing.T) {
	db := &mockDB{}
	svc := NewBotInstanceService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM bot_instances WHERE id = $1"), mock.Anything).
		Return(&mockRow{scanFunc: instanceScanFunc(testBotInstance("inst-1"))}).Once()

	b, err := svc.GetByID(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", b.ID)
	assert.Equal(t, "f2f_post", b.BotCode)
	db.AssertExpectations(t)
}

func TestBotInstanceService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewBotInstanceService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM bot_instances"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}).Once()

	_, err := svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}

func TestBotInstanceService_List_TrimsToLimitAndReportsMore(t *testing.T) {
	db := &mockDB{}
	svc := NewBotInstanceService(db)
	ctx := context.Background()

	// Limit 2 queries for 3 rows; a full extra row means another page exists.
	db.On("Query", ctx, sqlContains("ORDER BY id"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 1 && args[0] == 3
	})).Return(newMockRows(
		instanceScanFunc(testBotInstance("inst-1")),
		instanceScanFunc(testBotInstance("inst-2")),
		instanceScanFunc(testBotInstance("inst-3")),
	), nil).Once()

	instances, hasMore, err := svc.List(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "inst-2", instances[1].ID)
	db.AssertExpectations(t)
}

func TestBotInstanceService_List_CursorAndLastPage(t *testing.T) {
	db := &mockDB{}
	svc := NewBotInstanceService(db)
	ctx := context.Background()

	db.On("Query", ctx, sqlContains("WHERE id > $1"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 2 && args[0] == "inst-2" && args[1] == 3
	})).Return(newMockRows(instanceScanFunc(testBotInstance("inst-3"))), nil).Once()

	instances, hasMore, err := svc.List(ctx, 2, "inst-2")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.False(t, hasMore)
	db.AssertExpectations(t)
}

func TestPhaseService_GetForInstance_ScopedToInstance(t *testing.T) {
	db := &mockDB{}
	svc := NewPhaseService(db)
	ctx := context.Background()

	phase := model.Phase{
		ID:            "phase-1",
		BotInstanceID: "inst-1",
		Name:          "warmup",
		OrderNo:       1,
		Config:        json.RawMessage(`{"album":"teasers"}`),
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	db.On("QueryRow", ctx, sqlContains("AND bot_instance_id = $2"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 2 && args[0] == "phase-1" && args[1] == "inst-1"
	})).Return(&mockRow{scanFunc: phaseScanFunc(phase)}).Once()

	got, err := svc.GetForInstance(ctx, "phase-1", "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "warmup", got.Name)
	db.AssertExpectations(t)
}

func TestPhaseService_GetForInstance_WrongInstanceIsNotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewPhaseService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlContains("FROM phases"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}).Once()

	_, err := svc.GetForInstance(ctx, "phase-1", "other-inst")
	assert.ErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}

func TestPhaseService_ListByInstance_OrderedByPosition(t *testing.T) {
	db := &mockDB{}
	svc := NewPhaseService(db)
	ctx := context.Background()

	first := model.Phase{ID: "phase-1", BotInstanceID: "inst-1", Name: "warmup", OrderNo: 1,
		Config: json.RawMessage(`{}`), CreatedAt: testNow, UpdatedAt: testNow}
	second := model.Phase{ID: "phase-2", BotInstanceID: "inst-1", Name: "posting", OrderNo: 2,
		Config: json.RawMessage(`{}`), CreatedAt: testNow, UpdatedAt: testNow}

	db.On("Query", ctx, sqlContains("ORDER BY order_no"), mock.Anything).
		Return(newMockRows(phaseScanFunc(first), phaseScanFunc(second)), nil).Once()

	phases, err := svc.ListByInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, phases, 2)
	assert.Equal(t, "warmup", phases[0].Name)
	assert.Equal(t, "posting", phases[1].Name)
	db.AssertExpectations(t)
}
