package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
)

func TestEmit_WritesPendingEvent(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Outbox())
	id := uuid.New()

	err := svc.Emit(context.Background(), model.EventAppointmentCreated, id.String(), model.AppointmentEvent{
		AppointmentID: id,
		Status:        model.AppointmentStatusScheduled,
	})
	require.NoError(t, err)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	assert.Equal(t, id.String(), events[0].AggregateID)
	assert.Contains(t, string(events[0].Payload), `"status":"scheduled"`)
}

func TestEmit_RolledBackWithTransaction(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Outbox())

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, svc.Emit(ctx, model.EventAppointmentDeleted, "x", map[string]string{}))
		return errors.New("abort")
	})
	assert.Error(t, err)
	assert.Empty(t, store.OutboxEvents())
}
