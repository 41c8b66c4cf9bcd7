package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from   model.AppointmentStatus
		action Action
		want   model.AppointmentStatus
	}{
		{model.AppointmentStatusScheduled, ActionCancel, model.AppointmentStatusCanceled},
		{model.AppointmentStatusScheduled, ActionComplete, model.AppointmentStatusCompleted},
		{model.AppointmentStatusScheduled, ActionQueue, model.AppointmentStatusInQueue},
		{model.AppointmentStatusInQueue, ActionComplete, model.AppointmentStatusCompleted},
		{model.AppointmentStatusInQueue, ActionCancel, model.AppointmentStatusCanceled},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Next(tt.from, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_TerminalStatesRejectEverything(t *testing.T) {
	for _, from := range []model.AppointmentStatus{model.AppointmentStatusCompleted, model.AppointmentStatusCanceled} {
		for _, action := range []Action{ActionCancel, ActionComplete, ActionQueue} {
			_, err := Next(from, action)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
		}
	}

	_, err := Next(model.AppointmentStatusCanceled, ActionComplete)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Cannot complete an appointment that is already canceled.", appErr.Fields["status"])
}

func TestNext_UnknownAction(t *testing.T) {
	_, err := Next(model.AppointmentStatusScheduled, Action("reopen"))
	assert.Error(t, err)
}

func TestPaymentEffect(t *testing.T) {
	status, ok := PaymentEffect(ActionCancel)
	assert.True(t, ok)
	assert.Equal(t, model.PaymentStatusFailed, status)

	status, ok = PaymentEffect(ActionComplete)
	assert.True(t, ok)
	assert.Equal(t, model.PaymentStatusPaid, status)

	_, ok = PaymentEffect(ActionQueue)
	assert.False(t, ok)
}
