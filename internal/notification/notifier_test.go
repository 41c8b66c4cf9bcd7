package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
)

type recordingMailer struct {
	sent []*model.Notification
	err  error
}

func (m *recordingMailer) Send(_ context.Context, n *model.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

func envelope(t *testing.T, eventType string, ev model.AppointmentEvent) model.Envelope {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return model.Envelope{ID: uuid.New(), Type: eventType, Payload: payload}
}

func booking() model.AppointmentEvent {
	return model.AppointmentEvent{
		AppointmentID:   uuid.New(),
		PatientName:     "Jane Doe",
		PatientEmail:    "jane@example.com",
		DoctorName:      "Greg House",
		AppointmentDate: model.NewDate(2030, 1, 2),
		AppointmentTime: model.NewTimeOfDay(9, 30),
		Duration:        45,
		Status:          model.AppointmentStatusScheduled,
	}
}

func TestNotify_CreatedAndCanceled(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, true, nil)
	ctx := context.Background()

	status, err := n.Notify(ctx, envelope(t, model.EventAppointmentCreated, booking()))
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, status)

	status, err = n.Notify(ctx, envelope(t, model.EventAppointmentCanceled, booking()))
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, status)

	require.Len(t, mailer.sent, 2)
	first := mailer.sent[0]
	assert.Equal(t, "jane@example.com", first.Recipient)
	assert.Equal(t, "Your appointment is booked", first.Subject)
	assert.Contains(t, first.Body, "Hello Jane Doe")
	assert.Contains(t, first.Body, "with Greg House on 2030-01-02 at 09:30 is booked")
	assert.Contains(t, first.Body, "45 minutes")
	assert.Equal(t, "Your appointment was canceled", mailer.sent[1].Subject)
	assert.NotContains(t, mailer.sent[1].Body, "minutes")
}

func TestNotify_Skips(t *testing.T) {
	mailer := &recordingMailer{}
	ctx := context.Background()

	noEmail := booking()
	noEmail.PatientEmail = ""
	cases := map[string]model.Envelope{
		"other event":   envelope(t, model.EventAppointmentCompleted, booking()),
		"no recipient":  envelope(t, model.EventAppointmentCreated, noEmail),
		"patient event": {ID: uuid.New(), Type: model.EventPatientDeactivated, Payload: json.RawMessage(`{}`)},
	}
	n := NewNotifier(mailer, true, nil)
	for name, env := range cases {
		status, err := n.Notify(ctx, env)
		require.NoError(t, err, name)
		assert.Equal(t, model.NotificationStatusSkipped, status, name)
	}

	disabled := NewNotifier(mailer, false, nil)
	status, err := disabled.Notify(ctx, envelope(t, model.EventAppointmentCreated, booking()))
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSkipped, status)
	assert.Empty(t, mailer.sent)
}

func TestNotify_RedeliveryIsMailedOnce(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, true, nil)
	env := envelope(t, model.EventAppointmentCreated, booking())

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, n.Handle(context.Background(), raw))
	require.NoError(t, n.Handle(context.Background(), raw))
	assert.Len(t, mailer.sent, 1)
}

func TestNotify_FailedSendCanBeRetried(t *testing.T) {
	mailer := &recordingMailer{err: assert.AnError}
	n := NewNotifier(mailer, true, nil)
	env := envelope(t, model.EventAppointmentCreated, booking())

	status, err := n.Notify(context.Background(), env)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, model.NotificationStatusFailed, status)

	mailer.err = nil
	status, err = n.Notify(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, status)
}

func TestHandle_RejectsGarbage(t *testing.T) {
	n := NewNotifier(&recordingMailer{}, true, nil)
	assert.Error(t, n.Handle(context.Background(), []byte("not json")))
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "localhost", Port: 2525, From: "clinic@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Send(ctx, &model.Notification{Recipient: "jane@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}
