package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

var clock = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	svc       *Service
	doctor    model.Doctor
	other     model.Doctor
	patient   *model.Patient
	patient2  *model.Patient
	secretary model.Actor
}

func newFixture(t *testing.T, checker Checker) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	store.Now = func() time.Time { return clock }

	u1 := store.AddUser(model.User{Email: "house@clinic.test", FirstName: "Greg", LastName: "House", Role: model.RoleDoctor, IsActive: true})
	u2 := store.AddUser(model.User{Email: "wilson@clinic.test", FirstName: "James", LastName: "Wilson", Role: model.RoleDoctor, IsActive: true})
	sec := store.AddUser(model.User{Email: "desk@clinic.test", Role: model.RoleSecretary, IsActive: true})

	f := &fixture{
		store:     store,
		doctor:    store.AddDoctor(model.Doctor{UserID: u1.ID, LicenseNumber: "L-1"}),
		other:     store.AddDoctor(model.Doctor{UserID: u2.ID, LicenseNumber: "L-2"}),
		patient:   &model.Patient{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", IsActive: true},
		patient2:  &model.Patient{FirstName: "Bo", LastName: "Kim", Email: "bo@example.com", IsActive: true},
		secretary: model.Actor{UserID: sec.ID, Role: model.RoleSecretary},
	}
	require.NoError(t, store.Patients().Create(ctx, f.patient))
	require.NoError(t, store.Patients().Create(ctx, f.patient2))

	f.svc = NewService(Deps{
		Tx:           store.Transactor(),
		Appointments: store.Appointments(),
		Payments:     store.Payments(),
		Patients:     store.Patients(),
		Doctors:      store.Doctors(),
		SoftDelete:   store.SoftDelete(),
		Events:       event.NewService(store.Outbox()),
		Auditor:      audit.NewService(store.Audit(), nil),
		Metrics:      metrics.NewNop(),
	}, Options{
		Checker:  checker,
		Location: time.UTC,
		Now:      func() time.Time { return clock },
	})
	return f
}

func (f *fixture) doctorActor(d model.Doctor) model.Actor {
	id := d.ID
	return model.Actor{UserID: d.UserID, Role: model.RoleDoctor, DoctorID: &id}
}

func request(patient *model.Patient, doctor model.Doctor, hhmm string, duration int) model.CreateAppointmentRequest {
	doctorID := doctor.ID
	return model.CreateAppointmentRequest{
		PatientID:       patient.PatientID.String(),
		DoctorID:        &doctorID,
		AppointmentDate: "2030-01-02",
		AppointmentTime: hhmm,
		Duration:        &duration,
		BillingAmount:   json.RawMessage(`"150.00"`),
		BillingMethod:   "Credit Card",
	}
}

func requireAppError(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func TestCreateAppointment_BooksSlotAndPendingPayment(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})

	res, err := f.svc.CreateAppointment(context.Background(), f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	apt := res.Appointment
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, "10:00", apt.AppointmentTime.String())
	assert.Equal(t, "Ann Lee", apt.PatientName)
	assert.Equal(t, "Greg House", apt.DoctorName)
	assert.True(t, apt.IsActive)

	require.NotNil(t, res.Payment)
	assert.Equal(t, model.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, model.PaymentMethodCredit, res.Payment.Method)
	assert.Equal(t, "150", res.Payment.Amount.String())
	stored, ok := f.store.Payment(res.Payment.ID)
	require.True(t, ok)
	assert.Equal(t, apt.ID, *stored.AppointmentID)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, apt.AppointmentID.String(), events[0].AggregateID)

	logs := f.store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionCreate, logs[0].Action)
}

func TestCreateAppointment_DefaultsDurationAndMethod(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	req := request(f.patient, f.doctor, "09:00", 0)
	req.Duration = nil
	req.BillingMethod = ""

	res, err := f.svc.CreateAppointment(context.Background(), f.secretary, req)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAppointmentDuration, res.Appointment.Duration)
	assert.Equal(t, model.PaymentMethodCash, res.Payment.Method)
}

func TestCreateAppointment_DoctorConflict(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient2, f.doctor, "10:15", 30))
	appErr := requireAppError(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Doctor already has an appointment at this time", appErr.Fields["appointment_time"])
	assert.Equal(t, 1, f.store.AppointmentCount())
	assert.Len(t, f.store.OutboxEvents(), 1)
}

func TestCreateAppointment_PatientConflict(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.other, "10:20", 30))
	appErr := requireAppError(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Patient already has an appointment at this time", appErr.Fields["appointment_time"])
}

func TestCreateAppointment_BackToBackIsAllowed(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient2, f.doctor, "10:30", 30))
	require.NoError(t, err)
}

func TestCreateAppointment_StartAnchoredMissesEarlierLongBooking(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeStartAnchored})
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient2, f.doctor, "10:15", 30))
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.AppointmentCount())
}

func TestCreateAppointment_CanceledSlotRelease(t *testing.T) {
	ctx := context.Background()

	for _, release := range []bool{false, true} {
		f := newFixture(t, Checker{Mode: ModeOverlap, ReleaseCanceled: release})
		res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
		require.NoError(t, err)
		_, err = f.svc.CancelAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
		require.NoError(t, err)

		_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient2, f.doctor, "10:00", 30))
		if release {
			assert.NoError(t, err)
		} else {
			requireAppError(t, err, apperrors.ErrValidation)
		}
	}
}

func TestCreateAppointment_BillingValidation(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})

	tests := []struct {
		name    string
		amount  string
		method  string
		field   string
		message string
	}{
		{"zero", `0`, "Cash", "billing_amount", "Billing amount must be greater than zero."},
		{"negative", `"-5"`, "Cash", "billing_amount", "Billing amount must be greater than zero."},
		{"missing", ``, "Cash", "billing_amount", "Billing amount is required."},
		{"malformed", `"abc"`, "Cash", "billing_amount", "Invalid billing amount format."},
		{"method", `10`, "Bitcoin", "billing_method", "Invalid billing method. Must be one of: Cash, Credit Card, Debit Card, Insurance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(f.patient, f.doctor, "10:00", 30)
			req.BillingAmount = json.RawMessage(tt.amount)
			req.BillingMethod = tt.method

			_, err := f.svc.CreateAppointment(context.Background(), f.secretary, req)
			appErr := requireAppError(t, err, apperrors.ErrValidation)
			assert.Equal(t, tt.message, appErr.Fields[tt.field])
		})
	}
	assert.Equal(t, 0, f.store.AppointmentCount())
}

func TestCreateAppointment_RequestValidation(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()

	req := request(f.patient, f.doctor, "10:00", 30)
	req.PatientID = " "
	appErr := requireAppError(t, mustFail(f.svc.CreateAppointment(ctx, f.secretary, req)), apperrors.ErrValidation)
	assert.Equal(t, "Patient UUID is required.", appErr.Fields["patient_id"])

	req = request(f.patient, f.doctor, "10:00", 30)
	req.AppointmentDate = "2029-12-31"
	appErr = requireAppError(t, mustFail(f.svc.CreateAppointment(ctx, f.secretary, req)), apperrors.ErrValidation)
	assert.Equal(t, "Cannot create appointment in the past", appErr.Fields["appointment_date"])

	req = request(f.patient, f.doctor, "23:45", 30)
	appErr = requireAppError(t, mustFail(f.svc.CreateAppointment(ctx, f.secretary, req)), apperrors.ErrValidation)
	assert.Contains(t, appErr.Fields, "duration")

	req = request(f.patient, f.doctor, "10:00", math.MaxInt64)
	appErr = requireAppError(t, mustFail(f.svc.CreateAppointment(ctx, f.secretary, req)), apperrors.ErrValidation)
	assert.Equal(t, "Appointment must end on the same day.", appErr.Fields["duration"])
	assert.Zero(t, f.store.AppointmentCount())

	req = request(f.patient, f.doctor, "25:00", 30)
	appErr = requireAppError(t, mustFail(f.svc.CreateAppointment(ctx, f.secretary, req)), apperrors.ErrValidation)
	assert.Contains(t, appErr.Fields, "appointment_time")

	inactive := &model.Patient{FirstName: "Old", Email: "old@example.com", IsActive: false}
	require.NoError(t, f.store.Patients().Create(ctx, inactive))
	req = request(inactive, f.doctor, "10:00", 30)
	appErr = requireAppError(t, mustFail(f.svc.CreateAppointment(ctx, f.secretary, req)), apperrors.ErrValidation)
	assert.Contains(t, appErr.Fields, "patient_id")
}

func mustFail(_ *CreateResult, err error) error {
	return err
}

func TestCreateAppointment_DoctorActor(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()

	// A doctor always books on their own calendar.
	res, err := f.svc.CreateAppointment(ctx, f.doctorActor(f.doctor), request(f.patient, f.other, "10:00", 30))
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, res.Appointment.DoctorID)

	noProfile := model.Actor{UserID: 99, Role: model.RoleDoctor}
	_, err = f.svc.CreateAppointment(ctx, noProfile, request(f.patient2, f.doctor, "11:00", 30))
	appErr := requireAppError(t, err, apperrors.ErrNotConfigured)
	assert.True(t, strings.HasPrefix(appErr.Message, "Your doctor profile is not set up."))
}

func TestCreateAppointment_PaymentFailureRollsBack(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	f.store.FailOn("payments.create", errors.New("disk full"))

	_, err := f.svc.CreateAppointment(context.Background(), f.secretary, request(f.patient, f.doctor, "10:00", 30))
	appErr := requireAppError(t, err, apperrors.ErrConsistency)
	assert.True(t, strings.HasPrefix(appErr.Message, "Failed to create billing record: "))

	assert.Equal(t, 0, f.store.AppointmentCount())
	assert.Empty(t, f.store.OutboxEvents())
	assert.Empty(t, f.store.AuditLogs())

	f.store.FailOn("payments.create", nil)
	_, err = f.svc.CreateAppointment(context.Background(), f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)
}

func TestCancelAppointment_FailsPayment(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	out, err := f.svc.CancelAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCanceled, out.Status)
	require.NotNil(t, out.PaymentStatus)
	assert.Equal(t, model.PaymentStatusFailed, *out.PaymentStatus)

	apt, _ := f.store.Appointment(res.Appointment.ID)
	assert.Equal(t, model.AppointmentStatusCanceled, apt.Status)
	payment, _ := f.store.Payment(res.Payment.ID)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)

	events := f.store.OutboxEvents()
	assert.Equal(t, model.EventAppointmentCanceled, events[len(events)-1].EventType)
}

func TestCompleteAppointment_PaysPayment(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	queued, err := f.svc.QueueAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInQueue, queued.Status)
	assert.Nil(t, queued.PaymentStatus)

	out, err := f.svc.CompleteAppointment(ctx, f.doctorActor(f.doctor), res.Appointment.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, out.Status)
	payment, _ := f.store.Payment(res.Payment.ID)
	assert.Equal(t, model.PaymentStatusPaid, payment.Status)

	_, err = f.svc.CancelAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	appErr := requireAppError(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Cannot cancel an appointment that is already completed.", appErr.Fields["status"])
	payment, _ = f.store.Payment(res.Payment.ID)
	assert.Equal(t, model.PaymentStatusPaid, payment.Status)
}

func TestCancelAppointment_WithoutPayment(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	apt := &model.Appointment{
		PatientID:       f.patient.ID,
		DoctorID:        f.doctor.ID,
		AppointmentDate: model.NewDate(2030, 1, 2),
		AppointmentTime: model.NewTimeOfDay(9, 0),
		Duration:        30,
		Status:          model.AppointmentStatusScheduled,
		IsActive:        true,
	}
	require.NoError(t, f.store.Appointments().Create(ctx, apt))

	out, err := f.svc.CancelAppointment(ctx, f.secretary, apt.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCanceled, out.Status)
	assert.Nil(t, out.PaymentStatus)
}

func TestTransition_PaymentUpdateFailureRollsBackStatus(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	f.store.FailOn("payments.update_status", errors.New("boom"))
	_, err = f.svc.CancelAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	require.Error(t, err)

	apt, _ := f.store.Appointment(res.Appointment.ID)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
}

func TestGetAppointment_OwnScope(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	got, err := f.svc.GetAppointment(ctx, f.doctorActor(f.doctor), res.Appointment.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, res.Appointment.ID, got.ID)

	_, err = f.svc.GetAppointment(ctx, f.doctorActor(f.other), res.Appointment.AppointmentID)
	appErr := requireAppError(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "Appointment not found or you don't have permission to view it.", appErr.Message)

	_, err = f.svc.CancelAppointment(ctx, f.doctorActor(f.other), res.Appointment.AppointmentID)
	requireAppError(t, err, apperrors.ErrNotFound)
}

func TestListAppointments_Scoped(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	_, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient2, f.other, "10:00", 30))
	require.NoError(t, err)

	all, total, err := f.svc.ListAppointments(ctx, f.secretary, model.AppointmentFilter{Page: model.NewPage(1, 10, 50)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	own, total, err := f.svc.ListAppointments(ctx, f.doctorActor(f.other), model.AppointmentFilter{Page: model.NewPage(1, 10, 50)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, own, 1)
	assert.Equal(t, f.other.ID, own[0].DoctorID)

	_, _, err = f.svc.ListAppointments(ctx, model.Actor{Role: model.RoleDoctor}, model.AppointmentFilter{})
	requireAppError(t, err, apperrors.ErrNotConfigured)
}

func TestUpdateAppointment_RescheduleExcludesSelf(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	first, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient2, f.doctor, "11:00", 30))
	require.NoError(t, err)

	shifted := "10:15"
	updated, err := f.svc.UpdateAppointment(ctx, f.secretary, first.Appointment.AppointmentID, model.UpdateAppointmentRequest{
		AppointmentTime: &shifted,
	})
	require.NoError(t, err)
	assert.Equal(t, "10:15", updated.AppointmentTime.String())

	clash := "10:45"
	_, err = f.svc.UpdateAppointment(ctx, f.secretary, first.Appointment.AppointmentID, model.UpdateAppointmentRequest{
		AppointmentTime: &clash,
	})
	appErr := requireAppError(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Doctor already has an appointment at this time", appErr.Fields["appointment_time"])

	stored, _ := f.store.Appointment(first.Appointment.ID)
	assert.Equal(t, "10:15", stored.AppointmentTime.String())
}

func TestUpdateAppointment_TerminalAllowsNotesOnly(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	require.NoError(t, err)

	notes := "patient called"
	updated, err := f.svc.UpdateAppointment(ctx, f.secretary, res.Appointment.AppointmentID, model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, model.AppointmentStatusCanceled, updated.Status)

	later := "12:00"
	_, err = f.svc.UpdateAppointment(ctx, f.secretary, res.Appointment.AppointmentID, model.UpdateAppointmentRequest{AppointmentTime: &later})
	requireAppError(t, err, apperrors.ErrValidation)
}

func TestDeleteAppointment_CascadesAndFreesSlot(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	set, err := f.svc.DeleteAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, []int64{res.Appointment.ID}, set.Appointments)
	assert.Equal(t, []int64{res.Payment.ID}, set.Payments)
	assert.Empty(t, set.Patients)

	apt, _ := f.store.Appointment(res.Appointment.ID)
	assert.False(t, apt.IsActive)
	payment, _ := f.store.Payment(res.Payment.ID)
	assert.False(t, payment.IsActive)
	patient, _ := f.store.Patient(f.patient.ID)
	assert.True(t, patient.IsActive)

	_, err = f.svc.GetAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	requireAppError(t, err, apperrors.ErrNotFound)

	_, err = f.svc.CreateAppointment(ctx, f.secretary, request(f.patient2, f.doctor, "10:00", 30))
	require.NoError(t, err)
}

func TestCreateAppointment_LogsStartTime(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).With().Timestamp().Logger()
	t.Cleanup(func() { log.Logger = prev })

	f := newFixture(t, Checker{Mode: ModeOverlap})
	_, err := f.svc.CreateAppointment(context.Background(), f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	var raw []byte
	for _, l := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if bytes.Contains(l, []byte("appointment created")) {
			raw = l
		}
	}
	require.NotEmpty(t, raw)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "10:00", line["start_time"])
	assert.Equal(t, 1, bytes.Count(raw, []byte(`"time":`)))
}

func TestUpdateAppointment_RejectsOverflowingDuration(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	huge := math.MaxInt64
	_, err = f.svc.UpdateAppointment(ctx, f.secretary, res.Appointment.AppointmentID, model.UpdateAppointmentRequest{Duration: &huge})
	appErr := requireAppError(t, err, apperrors.ErrValidation)
	assert.Contains(t, appErr.Fields, "duration")

	apt, _ := f.store.Appointment(res.Appointment.ID)
	assert.Equal(t, 30, apt.Duration)
}

// racingAppointments completes the appointment right after it has been read,
// as a concurrent request would.
type racingAppointments struct {
	repository.AppointmentRepository
	race func(apt *model.Appointment)
}

func (r racingAppointments) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := r.AppointmentRepository.GetByUUID(ctx, id)
	if err == nil {
		r.race(apt)
	}
	return apt, err
}

func TestTransition_LosesRaceToConcurrentCompletion(t *testing.T) {
	f := newFixture(t, Checker{Mode: ModeOverlap})
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, f.secretary, request(f.patient, f.doctor, "10:00", 30))
	require.NoError(t, err)

	f.svc.Appointments = racingAppointments{
		AppointmentRepository: f.store.Appointments(),
		race: func(apt *model.Appointment) {
			_ = f.store.Appointments().UpdateStatus(ctx, apt.ID, model.AppointmentStatusScheduled, model.AppointmentStatusCompleted)
		},
	}

	_, err = f.svc.CancelAppointment(ctx, f.secretary, res.Appointment.AppointmentID)
	appErr := requireAppError(t, err, apperrors.ErrConflict)
	assert.Equal(t, model.MsgAppointmentStatusChanged, appErr.Message)

	apt, _ := f.store.Appointment(res.Appointment.ID)
	assert.Equal(t, model.AppointmentStatusCompleted, apt.Status)
	payment, _ := f.store.Payment(res.Payment.ID)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
}
