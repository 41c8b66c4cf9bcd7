package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const appointmentSelect = `
	SELECT a.id, a.appointment_id, a.patient_id, a.doctor_id,
		   a.appointment_date, a.appointment_time, a.duration, a.status,
		   a.notes, a.is_active, a.created_by, a.created_at, a.updated_at,
		   p.patient_id AS patient_uuid,
		   TRIM(p.first_name || ' ' || p.last_name) AS patient_name,
		   p.email AS patient_email,
		   TRIM(u.first_name || ' ' || u.last_name) AS doctor_name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN users u ON u.id = d.user_id
`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			appointment_id, patient_id, doctor_id, appointment_date,
			appointment_time, duration, status, notes, is_active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	if appointment.AppointmentID == uuid.Nil {
		appointment.AppointmentID = uuid.New()
	}

	err := r.conn(ctx).QueryRowxContext(ctx, query,
		appointment.AppointmentID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.AppointmentDate,
		appointment.AppointmentTime,
		appointment.Duration,
		appointment.Status,
		appointment.Notes,
		appointment.IsActive,
		appointment.CreatedBy,
	).Scan(&appointment.ID, &appointment.CreatedAt, &appointment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := appointmentSelect + ` WHERE a.appointment_id = $1 AND a.is_active = TRUE`

	var appointment model.Appointment
	if err := r.get(ctx, &appointment, query, id); err != nil {
		return nil, notFound(err, "appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET patient_id = $1, doctor_id = $2, appointment_date = $3,
			appointment_time = $4, duration = $5, notes = $6, updated_at = NOW()
		WHERE id = $7 AND is_active = TRUE
	`
	return r.execOne(ctx, "appointment", query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.AppointmentDate,
		appointment.AppointmentTime,
		appointment.Duration,
		appointment.Notes,
		appointment.ID,
	)
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND is_active = TRUE
	`
	result, err := r.exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewConflict(model.MsgAppointmentStatusChanged, nil)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, int, error) {
	w := &whereBuilder{}
	w.raw("a.is_active = TRUE")
	if filter.DoctorID != nil {
		w.add("a.doctor_id = $%d", *filter.DoctorID)
	}
	if filter.PatientID != nil {
		w.add("p.patient_id = $%d", *filter.PatientID)
	}
	if filter.Status != nil {
		w.add("a.status = $%d", *filter.Status)
	}
	if filter.Date != nil {
		w.add("a.appointment_date = $%d", *filter.Date)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM appointments a JOIN patients p ON p.id = a.patient_id` + w.String()
	if err := r.get(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	where := w.String()
	query := appointmentSelect + where +
		" ORDER BY a.appointment_date DESC, a.appointment_time DESC" +
		w.page(filter.Page.Limit(), filter.Page.Offset())

	appointments := []*model.Appointment{}
	if err := r.selectAll(ctx, &appointments, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

func (r *appointmentRepository) ListForSlot(ctx context.Context, q model.SlotQuery) ([]*model.Appointment, error) {
	column := "doctor_id"
	if q.Party == model.SlotPartyPatient {
		column = "patient_id"
	}

	w := &whereBuilder{}
	w.add(column+" = $%d", q.PartyID)
	w.add("appointment_date = $%d", q.Date)
	w.raw("is_active = TRUE")
	if q.ExcludeID != nil {
		w.add("id <> $%d", *q.ExcludeID)
	}
	if q.SkipCanceled {
		w.add("status <> $%d", model.AppointmentStatusCanceled)
	}

	query := `
		SELECT id, appointment_id, patient_id, doctor_id, appointment_date,
			   appointment_time, duration, status, is_active
		FROM appointments` + w.String() + ` ORDER BY appointment_time`

	appointments := []*model.Appointment{}
	if err := r.selectAll(ctx, &appointments, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list %s appointments: %w", q.Party, err)
	}
	return appointments, nil
}

// LockSlots takes transaction-scoped advisory locks. Keys are sorted so two
// bookings touching the same pair of calendars cannot deadlock.
func (r *appointmentRepository) LockSlots(ctx context.Context, keys ...string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, key := range sorted {
		if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("failed to lock slot %s: %w", key, err)
		}
	}
	return nil
}
