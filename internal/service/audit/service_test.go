package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
)

func TestLog_WritesRowAndSink(t *testing.T) {
	store := memory.NewStore()
	core, observed := observer.New(zap.InfoLevel)
	svc := NewService(store.Audit(), zap.New(core))

	ctx := WithRequestInfo(context.Background(), RequestInfo{
		IPAddress: "10.0.0.1",
		UserAgent: "test",
		RequestID: "req-1",
	})
	actor := model.Actor{UserID: 7, Role: model.RoleSecretary}

	err := svc.Log(ctx, actor, ActionCreate, "appointment", "abc", &LogOptions{
		Changes: map[string]string{"status": "scheduled"},
	})
	require.NoError(t, err)

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, int64(7), logs[0].UserID)
	assert.Equal(t, model.RoleSecretary, logs[0].Role)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.JSONEq(t, `{"status":"scheduled"}`, string(logs[0].Changes))

	require.Equal(t, 1, observed.Len())
	fields := observed.All()[0].ContextMap()
	assert.Equal(t, "appointment", fields["entity_type"])
	assert.Equal(t, "10.0.0.1", fields["ip"])
}

func TestCleanup_RemovesOldEntries(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit(), nil)
	actor := model.Actor{UserID: 1, Role: model.RoleManager}

	require.NoError(t, svc.Log(context.Background(), actor, ActionRead, "patient", "1", nil))

	removed, err := svc.Cleanup(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Empty(t, store.AuditLogs())
}
