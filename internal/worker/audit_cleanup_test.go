package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
)

func TestAuditCleanup_RemovesEntriesPastRetention(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Audit().Create(ctx, &model.AuditLog{Action: "read", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.Audit().Create(ctx, &model.AuditLog{Action: "read", CreatedAt: now.AddDate(0, 0, -5)}))

	w := NewAuditCleanupWorker(audit.NewService(store.Audit(), nil), 30, time.Hour, nil)
	w.now = func() time.Time { return now }

	rows, err := w.cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Len(t, store.AuditLogs(), 1)
}

func TestAuditCleanup_DisabledReturnsImmediately(t *testing.T) {
	w := NewAuditCleanupWorker(audit.NewService(memory.NewStore().Audit(), nil), 0, time.Hour, nil)
	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return when retention is disabled")
	}
}
