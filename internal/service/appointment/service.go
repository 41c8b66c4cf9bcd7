package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/cascade"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const (
	msgNotVisible      = "Appointment not found or you don't have permission to view it."
	msgPastDate        = "Cannot create appointment in the past"
	msgNoWriteAccess   = "You do not have permission to modify appointments."
	msgNoReadAccess    = "You do not have permission to view appointments."
	msgPatientRequired = "Patient UUID is required."
)

type Deps struct {
	Tx           repository.Transactor
	Appointments repository.AppointmentRepository
	Payments     repository.PaymentRepository
	Patients     repository.PatientRepository
	Doctors      repository.DoctorRepository
	SoftDelete   repository.SoftDeleteRepository
	Events       event.Emitter
	Auditor      *audit.Service
	Metrics      *metrics.Metrics
}

type Options struct {
	Checker         Checker
	DefaultDuration int
	Location        *time.Location
	// Now is the clock used for the past-date check.
	Now func() time.Time
}

type Service struct {
	Deps
	checker         Checker
	defaultDuration int
	loc             *time.Location
	now             func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = model.DefaultAppointmentDuration
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Checker.Mode == "" {
		opts.Checker.Mode = ModeOverlap
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	return &Service{
		Deps:            deps,
		checker:         opts.Checker,
		defaultDuration: opts.DefaultDuration,
		loc:             opts.Location,
		now:             opts.Now,
	}
}

func (s *Service) today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}

// CreateResult is a new appointment and the billing record booked with it.
type CreateResult struct {
	Appointment *model.Appointment `json:"appointment"`
	Payment     *model.Payment     `json:"payment"`
}

// CreateAppointment books a slot and its billing record in one transaction.
func (s *Service) CreateAppointment(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*CreateResult, error) {
	if !access.CanWrite(actor.Role, access.Appointments) {
		return nil, apperrors.NewForbidden(msgNoWriteAccess)
	}

	patientRef := strings.TrimSpace(req.PatientID)
	if patientRef == "" {
		return nil, apperrors.NewValidation("patient_id", msgPatientRequired)
	}
	patientUUID, err := uuid.Parse(patientRef)
	if err != nil {
		return nil, apperrors.NewValidation("patient_id", "Invalid patient UUID.")
	}

	amount, err := model.ParseBillingAmount(req.BillingAmount)
	if err != nil {
		return nil, billingAmountError(err)
	}
	method, err := model.ParsePaymentMethod(req.BillingMethod)
	if err != nil {
		return nil, apperrors.NewValidation("billing_method",
			"Invalid billing method. Must be one of: "+model.PaymentMethodList())
	}

	doctorID, err := s.resolveDoctor(actor, req.DoctorID)
	if err != nil {
		return nil, err
	}

	date, start, err := parseSlot(req.AppointmentDate, req.AppointmentTime)
	if err != nil {
		return nil, err
	}
	duration := s.defaultDuration
	if req.Duration != nil {
		duration = *req.Duration
	}
	if err := validateDuration(start, duration); err != nil {
		return nil, err
	}
	if date.Before(s.today()) {
		return nil, apperrors.NewValidation("appointment_date", msgPastDate)
	}

	patient, err := s.Patients.GetByUUID(ctx, patientUUID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidation("patient_id", "Patient not found.")
		}
		return nil, err
	}
	if !patient.IsActive {
		return nil, apperrors.NewValidation("patient_id", "Cannot create appointment for inactive patient")
	}
	doctor, err := s.Doctors.GetByID(ctx, doctorID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidation("doctor_id", "Doctor not found.")
		}
		return nil, err
	}

	creator := actor.UserID
	apt := &model.Appointment{
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		AppointmentDate: date,
		AppointmentTime: start,
		Duration:        duration,
		Status:          model.AppointmentStatusScheduled,
		Notes:           req.Notes,
		IsActive:        true,
		CreatedBy:       &creator,
	}

	var payment *model.Payment
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.checkSlot(ctx, apt, nil); err != nil {
			return err
		}
		if err := s.Appointments.Create(ctx, apt); err != nil {
			return err
		}

		appointmentID := apt.ID
		payment = &model.Payment{
			PatientID:     patient.ID,
			AppointmentID: &appointmentID,
			Amount:        amount,
			PaymentDate:   s.now().UTC(),
			Method:        method,
			Status:        model.PaymentStatusPending,
			IsActive:      true,
		}
		if err := s.Payments.Create(ctx, payment); err != nil {
			return apperrors.NewConsistency("Failed to create billing record: "+err.Error(), err)
		}

		apt.PatientUUID = patient.PatientID
		apt.PatientName = patient.FullName()
		apt.PatientEmail = patient.Email
		apt.DoctorName = doctor.FullName()
		payment.PatientName = patient.FullName()
		payment.DoctorID = &apt.DoctorID

		return s.Events.Emit(ctx, model.EventAppointmentCreated, apt.AppointmentID.String(), eventFor(apt))
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.AppointmentsCreated.Inc()
	s.Auditor.Record(ctx, actor, audit.ActionCreate, "appointment", apt.AppointmentID.String(), &audit.LogOptions{Changes: apt})
	log.Info().
		Str("appointment_id", apt.AppointmentID.String()).
		Int64("doctor_id", apt.DoctorID).
		Str("date", apt.AppointmentDate.String()).
		Str("start_time", apt.AppointmentTime.String()).
		Msg("appointment created")

	return &CreateResult{Appointment: apt, Payment: payment}, nil
}

// resolveDoctor forces doctor actors onto their own profile.
func (s *Service) resolveDoctor(actor model.Actor, requested *int64) (int64, error) {
	if actor.IsDoctor() {
		if !actor.HasDoctorProfile() {
			return 0, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
		}
		return *actor.DoctorID, nil
	}
	if requested == nil || *requested <= 0 {
		return 0, apperrors.NewValidation("doctor_id", "Doctor is required.")
	}
	return *requested, nil
}

func billingAmountError(err error) error {
	switch {
	case errors.Is(err, model.ErrBillingAmountMissing):
		return apperrors.NewValidation("billing_amount", "Billing amount is required.")
	case errors.Is(err, model.ErrBillingAmountPositive):
		return apperrors.NewValidation("billing_amount", "Billing amount must be greater than zero.")
	default:
		return apperrors.NewValidation("billing_amount", "Invalid billing amount format.")
	}
}

func parseSlot(dateStr, timeStr string) (model.Date, model.TimeOfDay, error) {
	if strings.TrimSpace(dateStr) == "" {
		return model.Date{}, 0, apperrors.NewValidation("appointment_date", "Appointment date is required.")
	}
	date, err := model.ParseDate(strings.TrimSpace(dateStr))
	if err != nil {
		return model.Date{}, 0, apperrors.NewValidation("appointment_date", "Invalid date format. Use YYYY-MM-DD.")
	}
	if strings.TrimSpace(timeStr) == "" {
		return model.Date{}, 0, apperrors.NewValidation("appointment_time", "Appointment time is required.")
	}
	start, err := model.ParseTimeOfDay(timeStr)
	if err != nil {
		return model.Date{}, 0, apperrors.NewValidation("appointment_time", "Invalid time format. Use HH:MM.")
	}
	return date, start, nil
}

func validateDuration(start model.TimeOfDay, duration int) error {
	if duration <= 0 {
		return apperrors.NewValidation("duration", "Duration must be a positive number of minutes.")
	}
	if duration > model.MinutesInDay-int(start) {
		return apperrors.NewValidation("duration", "Appointment must end on the same day.")
	}
	return nil
}

// checkSlot serialises bookings on the doctor's and patient's day and then
// looks for a conflict on each calendar. Must run inside a transaction.
func (s *Service) checkSlot(ctx context.Context, apt *model.Appointment, exclude *int64) error {
	day := apt.AppointmentDate.String()
	err := s.Appointments.LockSlots(ctx,
		fmt.Sprintf("doctor:%d:%s", apt.DoctorID, day),
		fmt.Sprintf("patient:%d:%s", apt.PatientID, day),
	)
	if err != nil {
		return err
	}

	parties := []struct {
		party model.SlotParty
		id    int64
	}{
		{model.SlotPartyDoctor, apt.DoctorID},
		{model.SlotPartyPatient, apt.PatientID},
	}
	for _, p := range parties {
		candidates, err := s.Appointments.ListForSlot(ctx, model.SlotQuery{
			Party:        p.party,
			PartyID:      p.id,
			Date:         apt.AppointmentDate,
			ExcludeID:    exclude,
			SkipCanceled: s.checker.ReleaseCanceled,
		})
		if err != nil {
			return err
		}
		if hit := s.checker.Find(candidates, apt.AppointmentTime, apt.Duration); hit != nil {
			s.Metrics.AppointmentConflicts.WithLabelValues(string(p.party)).Inc()
			log.Debug().
				Str("party", string(p.party)).
				Int64("existing_id", hit.ID).
				Str("requested", apt.AppointmentTime.String()).
				Msg("slot conflict")
			return ConflictError(p.party)
		}
	}
	return nil
}

// load fetches an appointment and applies the row-level visibility rule.
// Missing and not-visible are reported the same way.
func (s *Service) load(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, access.Scope, error) {
	scope := access.ScopeFor(actor, access.Appointments)
	if scope.ProfileMissing {
		return nil, scope, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
	}
	if scope.Level == access.LevelNone {
		return nil, scope, apperrors.NewForbidden(msgNoReadAccess)
	}

	apt, err := s.Appointments.GetByUUID(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, scope, apperrors.NotFoundWithMessage(msgNotVisible)
		}
		return nil, scope, err
	}
	if !access.CanView(scope, apt) {
		return nil, scope, apperrors.NotFoundWithMessage(msgNotVisible)
	}
	return apt, scope, nil
}

func (s *Service) GetAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.Auditor.Record(ctx, actor, audit.ActionRead, "appointment", id.String(), nil)
	return apt, nil
}

// ListAppointments returns one page of the appointments visible to actor.
// Doctors are narrowed to their own calendar regardless of the filter.
func (s *Service) ListAppointments(ctx context.Context, actor model.Actor, filter model.AppointmentFilter) ([]*model.Appointment, int, error) {
	scope := access.ScopeFor(actor, access.Appointments)
	if scope.ProfileMissing {
		return nil, 0, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
	}
	if scope.Empty() {
		return []*model.Appointment{}, 0, nil
	}
	if owner := scope.OwnerFilter(); owner != nil {
		filter.DoctorID = owner
	}

	rows, total, err := s.Appointments.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return access.Filter(scope, rows), total, nil
}

// UpdateAppointment edits schedule fields and notes. Schedule changes on a
// completed or canceled appointment are rejected; notes stay editable.
func (s *Service) UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, scope, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanWrite() {
		return nil, apperrors.NewForbidden(msgNoWriteAccess)
	}

	rescheduled := req.PatientID != nil || req.DoctorID != nil || req.AppointmentDate != nil ||
		req.AppointmentTime != nil || req.Duration != nil
	if rescheduled && apt.Status.IsTerminal() {
		return nil, apperrors.NewValidation("status",
			fmt.Sprintf("Cannot reschedule an appointment that is already %s.", apt.Status))
	}

	before := *apt
	if req.PatientID != nil {
		patientUUID, err := uuid.Parse(strings.TrimSpace(*req.PatientID))
		if err != nil {
			return nil, apperrors.NewValidation("patient_id", "Invalid patient UUID.")
		}
		patient, err := s.Patients.GetByUUID(ctx, patientUUID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewValidation("patient_id", "Patient not found.")
			}
			return nil, err
		}
		if !patient.IsActive {
			return nil, apperrors.NewValidation("patient_id", "Cannot create appointment for inactive patient")
		}
		apt.PatientID = patient.ID
		apt.PatientUUID = patient.PatientID
		apt.PatientName = patient.FullName()
		apt.PatientEmail = patient.Email
	}
	if req.DoctorID != nil {
		if scope.Level == access.LevelOwn && *req.DoctorID != scope.DoctorID {
			return nil, apperrors.NewForbidden("You can only assign appointments to yourself.")
		}
		doctor, err := s.Doctors.GetByID(ctx, *req.DoctorID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewValidation("doctor_id", "Doctor not found.")
			}
			return nil, err
		}
		apt.DoctorID = doctor.ID
		apt.DoctorName = doctor.FullName()
	}
	if req.AppointmentDate != nil {
		date, err := model.ParseDate(strings.TrimSpace(*req.AppointmentDate))
		if err != nil {
			return nil, apperrors.NewValidation("appointment_date", "Invalid date format. Use YYYY-MM-DD.")
		}
		if date.Before(s.today()) {
			return nil, apperrors.NewValidation("appointment_date", "Cannot move appointment into the past")
		}
		apt.AppointmentDate = date
	}
	if req.AppointmentTime != nil {
		start, err := model.ParseTimeOfDay(*req.AppointmentTime)
		if err != nil {
			return nil, apperrors.NewValidation("appointment_time", "Invalid time format. Use HH:MM.")
		}
		apt.AppointmentTime = start
	}
	if req.Duration != nil {
		apt.Duration = *req.Duration
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}
	if err := validateDuration(apt.AppointmentTime, apt.Duration); err != nil {
		return nil, err
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if rescheduled {
			if err := s.checkSlot(ctx, apt, &apt.ID); err != nil {
				return err
			}
		}
		if err := s.Appointments.Update(ctx, apt); err != nil {
			return err
		}
		return s.Events.Emit(ctx, model.EventAppointmentUpdated, apt.AppointmentID.String(), eventFor(apt))
	})
	if err != nil {
		return nil, err
	}

	s.Auditor.Record(ctx, actor, audit.ActionUpdate, "appointment", id.String(), &audit.LogOptions{
		Changes: map[string]interface{}{"before": before, "after": apt},
	})
	return apt, nil
}

func (s *Service) CancelAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.TransitionResult, error) {
	return s.Transition(ctx, actor, id, ActionCancel)
}

func (s *Service) CompleteAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.TransitionResult, error) {
	return s.Transition(ctx, actor, id, ActionComplete)
}

func (s *Service) QueueAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.TransitionResult, error) {
	return s.Transition(ctx, actor, id, ActionQueue)
}

// Transition applies a lifecycle action and its billing side effect. An
// appointment without a payment transitions all the same.
func (s *Service) Transition(ctx context.Context, actor model.Actor, id uuid.UUID, action Action) (*model.TransitionResult, error) {
	apt, scope, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanWrite() {
		return nil, apperrors.NewForbidden(msgNoWriteAccess)
	}

	next, err := Next(apt.Status, action)
	if err != nil {
		return nil, err
	}

	result := &model.TransitionResult{AppointmentID: apt.AppointmentID, Status: next}
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Appointments.UpdateStatus(ctx, apt.ID, apt.Status, next); err != nil {
			return err
		}
		apt.Status = next

		if effect, ok := PaymentEffect(action); ok {
			payment, err := s.Payments.GetByAppointment(ctx, apt.ID)
			switch {
			case apperrors.Is(err, apperrors.ErrNotFound):
				log.Debug().Str("appointment_id", id.String()).Msg("no payment linked to appointment")
			case err != nil:
				return err
			default:
				if err := s.Payments.UpdateStatus(ctx, payment.ID, effect); err != nil {
					return err
				}
				result.PaymentStatus = &effect
			}
		}

		return s.Events.Emit(ctx, transitions[action].event, apt.AppointmentID.String(), eventFor(apt))
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.Transitions.WithLabelValues(string(action)).Inc()
	s.Auditor.Record(ctx, actor, transitions[action].audit, "appointment", id.String(), &audit.LogOptions{Changes: result})
	return result, nil
}

// DeleteAppointment soft-deletes the appointment together with its medical
// record subtree and payment.
func (s *Service) DeleteAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (model.CascadeSet, error) {
	apt, scope, err := s.load(ctx, actor, id)
	if err != nil {
		return model.CascadeSet{}, err
	}
	if !scope.CanWrite() {
		return model.CascadeSet{}, apperrors.NewForbidden(msgNoWriteAccess)
	}

	var set model.CascadeSet
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		graph, err := s.SoftDelete.LoadPatientGraph(ctx, apt.PatientID)
		if err != nil {
			return err
		}
		set = cascade.Plan(graph.ForAppointment(apt.ID), false)
		if err := s.SoftDelete.SetActive(ctx, set, false); err != nil {
			return err
		}
		apt.IsActive = false
		return s.Events.Emit(ctx, model.EventAppointmentDeleted, apt.AppointmentID.String(), eventFor(apt))
	})
	if err != nil {
		return model.CascadeSet{}, err
	}

	for table, n := range set.Counts() {
		if n > 0 {
			s.Metrics.CascadeRows.WithLabelValues(table, "false").Add(float64(n))
		}
	}
	s.Auditor.Record(ctx, actor, audit.ActionDelete, "appointment", id.String(), &audit.LogOptions{Changes: set.Counts()})
	return set, nil
}

func eventFor(apt *model.Appointment) model.AppointmentEvent {
	return model.AppointmentEvent{
		AppointmentID:   apt.AppointmentID,
		PatientID:       apt.PatientID,
		PatientName:     apt.PatientName,
		PatientEmail:    apt.PatientEmail,
		DoctorID:        apt.DoctorID,
		DoctorName:      apt.DoctorName,
		AppointmentDate: apt.AppointmentDate,
		AppointmentTime: apt.AppointmentTime,
		Duration:        apt.Duration,
		Status:          apt.Status,
	}
}
