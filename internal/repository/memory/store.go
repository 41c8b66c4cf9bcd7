// Package memory holds map-backed repositories with the same contracts as
// the postgres ones. Transactions snapshot the whole store and restore it
// on error, so rollback behaviour can be exercised without a database.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type txKey struct{}

type state struct {
	users         map[int64]model.User
	doctors       map[int64]model.Doctor
	patients      map[int64]model.Patient
	contacts      map[int64]model.EmergencyContact
	appointments  map[int64]model.Appointment
	payments      map[int64]model.Payment
	records       map[int64]model.MedicalRecord
	labs          map[int64]model.LabResult
	prescriptions map[int64]model.Prescription
	rxMeds        map[int64]model.PrescriptionMedication
	medications   map[int64]model.Medication
	outbox        []model.OutboxEvent
	audit         []model.AuditLog
	nextID        int64
}

func newState() state {
	return state{
		users:         map[int64]model.User{},
		doctors:       map[int64]model.Doctor{},
		patients:      map[int64]model.Patient{},
		contacts:      map[int64]model.EmergencyContact{},
		appointments:  map[int64]model.Appointment{},
		payments:      map[int64]model.Payment{},
		records:       map[int64]model.MedicalRecord{},
		labs:          map[int64]model.LabResult{},
		prescriptions: map[int64]model.Prescription{},
		rxMeds:        map[int64]model.PrescriptionMedication{},
		medications:   map[int64]model.Medication{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s state) clone() state {
	return state{
		users:         cloneMap(s.users),
		doctors:       cloneMap(s.doctors),
		patients:      cloneMap(s.patients),
		contacts:      cloneMap(s.contacts),
		appointments:  cloneMap(s.appointments),
		payments:      cloneMap(s.payments),
		records:       cloneMap(s.records),
		labs:          cloneMap(s.labs),
		prescriptions: cloneMap(s.prescriptions),
		rxMeds:        cloneMap(s.rxMeds),
		medications:   cloneMap(s.medications),
		outbox:        append([]model.OutboxEvent(nil), s.outbox...),
		audit:         append([]model.AuditLog(nil), s.audit...),
		nextID:        s.nextID,
	}
}

// Store is the shared backing state of every repository in this package.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state

	// Failure injection, keyed by operation name such as "payments.create".
	failures map[string]error

	// Now stamps created_at/updated_at.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		st:       newState(),
		failures: map[string]error{},
		Now:      time.Now,
	}
}

// FailOn makes the named operation return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

func (s *Store) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

func (s *Store) stamp() time.Time {
	return s.Now().UTC()
}

// WithinTx serialises transactions and restores the pre-transaction state
// when fn fails. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Transactor() repository.Transactor { return s }

func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) Payments() repository.PaymentRepository { return paymentRepo{s} }
func (s *Store) Patients() repository.PatientRepository { return patientRepo{s} }
func (s *Store) SoftDelete() repository.SoftDeleteRepository { return softDeleteRepo{s} }
func (s *Store) Doctors() repository.DoctorRepository { return doctorRepo{s} }
func (s *Store) Medications() repository.MedicationRepository { return medicationRepo{s} }
func (s *Store) MedicalRecords() repository.MedicalRecordRepository {
	return medicalRecordRepo{s}
}
func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }
func (s *Store) Audit() repository.AuditRepository { return auditRepo{s} }

// Seeding helpers used by tests and local runs.

func (s *Store) AddUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.st.users[u.ID] = u
	return u
}

func (s *Store) AddDoctor(d model.Doctor) model.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id()
	}
	s.st.doctors[d.ID] = d
	return d
}

func (s *Store) AddMedication(m model.Medication) model.Medication {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.id()
	}
	s.st.medications[m.ID] = m
	return m
}

func (s *Store) AddEmergencyContact(c model.EmergencyContact) model.EmergencyContact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.st.contacts[c.ID] = c
	return c
}

// Inspection helpers return copies, including soft-deleted rows.

func (s *Store) Appointment(id int64) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.appointments[id]
	return a, ok
}

func (s *Store) Payment(id int64) (model.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[id]
	return p, ok
}

func (s *Store) Patient(id int64) (model.Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.patients[id]
	return p, ok
}

func (s *Store) MedicalRecord(id int64) (model.MedicalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.records[id]
	return r, ok
}

func (s *Store) LabResult(id int64) (model.LabResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.st.labs[id]
	return l, ok
}

func (s *Store) Prescription(id int64) (model.Prescription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.prescriptions[id]
	return p, ok
}

func (s *Store) EmergencyContact(id int64) (model.EmergencyContact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.contacts[id]
	return c, ok
}

func (s *Store) AppointmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.appointments)
}

func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.st.outbox...)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.st.audit...)
}

func page[T any](rows []T, p model.Page) []T {
	offset := p.Offset()
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + p.Limit()
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

var errNoTx = errors.New("memory: operation requires a transaction")

func notFound(resource string) error {
	return apperrors.NotFound(resource, nil)
}
