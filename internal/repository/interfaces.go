package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	// Transactor runs fn inside one database transaction. Repositories called
	// with the ctx handed to fn take part in that transaction.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		GetByUUID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		// UpdateStatus moves an appointment from one status to another and
		// fails with a conflict when the row no longer holds from.
		UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus) error
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, int, error)
		// ListForSlot returns the active appointments a new booking could
		// collide with. Overlap itself is decided by the caller.
		ListForSlot(ctx context.Context, q model.SlotQuery) ([]*model.Appointment, error)
		// LockSlots serialises bookings on the given calendar keys until the
		// surrounding transaction ends.
		LockSlots(ctx context.Context, keys ...string) error
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.Payment) error
		GetByAppointment(ctx context.Context, appointmentID int64) (*model.Payment, error)
		UpdateStatus(ctx context.Context, id int64, status model.PaymentStatus) error
		List(ctx context.Context, filter model.PaymentFilter) ([]*model.Payment, int, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		GetByUUID(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByID(ctx context.Context, id int64) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, int, error)
	}

	// SoftDeleteRepository loads and rewrites the active flags of everything
	// a patient owns.
	SoftDeleteRepository interface {
		LoadPatientGraph(ctx context.Context, patientID int64) (*model.PatientGraph, error)
		SetActive(ctx context.Context, set model.CascadeSet, active bool) error
	}

	DoctorRepository interface {
		GetByID(ctx context.Context, id int64) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error)
		List(ctx context.Context, page model.Page) ([]*model.Doctor, int, error)
	}

	MedicationRepository interface {
		GetByID(ctx context.Context, id int64) (*model.Medication, error)
		List(ctx context.Context, page model.Page) ([]*model.Medication, int, error)
	}

	MedicalRecordRepository interface {
		Create(ctx context.Context, record *model.MedicalRecord) error
		GetByID(ctx context.Context, id int64) (*model.MedicalRecord, error)
		ExistsForAppointment(ctx context.Context, appointmentID int64) (bool, error)
		List(ctx context.Context, filter model.MedicalRecordFilter) ([]*model.MedicalRecord, int, error)
	}

	UserRepository interface {
		GetByID(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)
