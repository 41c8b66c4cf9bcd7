package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("appointments.create"); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	if a.AppointmentID == uuid.Nil {
		a.AppointmentID = uuid.New()
	}
	a.ID = r.s.id()
	a.CreatedAt = r.s.stamp()
	a.UpdatedAt = a.CreatedAt
	r.s.st.appointments[a.ID] = *a
	return nil
}

// enrich fills the columns the postgres queries join in.
func (r appointmentRepo) enrich(a model.Appointment) *model.Appointment {
	if p, ok := r.s.st.patients[a.PatientID]; ok {
		a.PatientUUID = p.PatientID
		a.PatientName = fullName(p.FirstName, p.LastName)
		a.PatientEmail = p.Email
	}
	if d, ok := r.s.st.doctors[a.DoctorID]; ok {
		a.DoctorName = doctorRepo{r.s}.enrich(d).FullName()
	}
	return &a
}

func (r appointmentRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.st.appointments {
		if a.AppointmentID == id && a.IsActive {
			return r.enrich(a), nil
		}
	}
	return nil, notFound("appointment")
}

func (r appointmentRepo) Update(ctx context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.appointments[a.ID]
	if !ok || !cur.IsActive {
		return notFound("appointment")
	}
	cur.PatientID = a.PatientID
	cur.DoctorID = a.DoctorID
	cur.AppointmentDate = a.AppointmentDate
	cur.AppointmentTime = a.AppointmentTime
	cur.Duration = a.Duration
	cur.Notes = a.Notes
	cur.UpdatedAt = r.s.stamp()
	r.s.st.appointments[a.ID] = cur
	a.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r appointmentRepo) UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.appointments[id]
	if !ok || !cur.IsActive || cur.Status != from {
		return apperrors.NewConflict(model.MsgAppointmentStatusChanged, nil)
	}
	cur.Status = to
	cur.UpdatedAt = r.s.stamp()
	r.s.st.appointments[id] = cur
	return nil
}

func (r appointmentRepo) List(ctx context.Context, f model.AppointmentFilter) ([]*model.Appointment, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []*model.Appointment
	for _, a := range r.s.st.appointments {
		if !a.IsActive {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && !a.AppointmentDate.Equal(*f.Date) {
			continue
		}
		e := r.enrich(a)
		if f.PatientID != nil && e.PatientUUID != *f.PatientID {
			continue
		}
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.AppointmentDate.Equal(b.AppointmentDate) {
			return b.AppointmentDate.Before(a.AppointmentDate)
		}
		if a.AppointmentTime != b.AppointmentTime {
			return a.AppointmentTime > b.AppointmentTime
		}
		return a.ID > b.ID
	})
	return page(rows, f.Page), len(rows), nil
}

func (r appointmentRepo) ListForSlot(ctx context.Context, q model.SlotQuery) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []*model.Appointment
	for _, a := range r.s.st.appointments {
		party := a.DoctorID
		if q.Party == model.SlotPartyPatient {
			party = a.PatientID
		}
		if party != q.PartyID || !a.AppointmentDate.Equal(q.Date) || !a.IsActive {
			continue
		}
		if q.ExcludeID != nil && a.ID == *q.ExcludeID {
			continue
		}
		if q.SkipCanceled && a.Status == model.AppointmentStatusCanceled {
			continue
		}
		a := a
		rows = append(rows, &a)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AppointmentTime < rows[j].AppointmentTime })
	return rows, nil
}

// LockSlots only checks that it runs inside a transaction; the store already
// serialises transactions.
func (r appointmentRepo) LockSlots(ctx context.Context, keys ...string) error {
	if ctx.Value(txKey{}) == nil {
		return errNoTx
	}
	return nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) enrich(p model.Payment) *model.Payment {
	if pt, ok := r.s.st.patients[p.PatientID]; ok {
		p.PatientName = fullName(pt.FirstName, pt.LastName)
	}
	if p.AppointmentID != nil {
		if a, ok := r.s.st.appointments[*p.AppointmentID]; ok {
			doctorID := a.DoctorID
			p.DoctorID = &doctorID
		}
	}
	return &p
}

func (r paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.create"); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	if p.AppointmentID != nil {
		for _, existing := range r.s.st.payments {
			if existing.AppointmentID != nil && *existing.AppointmentID == *p.AppointmentID {
				return fmt.Errorf("payment already exists for appointment %d", *p.AppointmentID)
			}
		}
	}
	p.ID = r.s.id()
	p.CreatedAt = r.s.stamp()
	p.UpdatedAt = p.CreatedAt
	r.s.st.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) GetByAppointment(ctx context.Context, appointmentID int64) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.st.payments {
		if p.IsActive && p.AppointmentID != nil && *p.AppointmentID == appointmentID {
			return r.enrich(p), nil
		}
	}
	return nil, notFound("payment")
}

func (r paymentRepo) UpdateStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.update_status"); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	p, ok := r.s.st.payments[id]
	if !ok {
		return notFound("payment")
	}
	p.Status = status
	p.UpdatedAt = r.s.stamp()
	r.s.st.payments[id] = p
	return nil
}

func (r paymentRepo) List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []*model.Payment
	for _, p := range r.s.st.payments {
		if !p.IsActive {
			continue
		}
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		rows = append(rows, r.enrich(p))
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].PaymentDate.Equal(rows[j].PaymentDate) {
			return rows[i].PaymentDate.After(rows[j].PaymentDate)
		}
		return rows[i].ID > rows[j].ID
	})
	return page(rows, f.Page), len(rows), nil
}

type patientRepo struct{ s *Store }

func (r patientRepo) enrich(p model.Patient) *model.Patient {
	seen := map[int64]bool{}
	ids := []int64{}
	for _, a := range r.s.st.appointments {
		if a.PatientID == p.ID && a.IsActive && !seen[a.DoctorID] {
			seen[a.DoctorID] = true
			ids = append(ids, a.DoctorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	p.DoctorIDs = ids
	return &p
}

func (r patientRepo) emailTaken(email string, except int64) bool {
	for _, p := range r.s.st.patients {
		if p.ID != except && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

func (r patientRepo) Create(ctx context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.emailTaken(p.Email, 0) {
		return apperrors.NewValidation("email", "A patient with this email already exists.")
	}
	if p.PatientID == uuid.Nil {
		p.PatientID = uuid.New()
	}
	p.ID = r.s.id()
	p.CreatedAt = r.s.stamp()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.DoctorIDs = nil
	r.s.st.patients[p.ID] = stored
	return nil
}

func (r patientRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.st.patients {
		if p.PatientID == id {
			return r.enrich(p), nil
		}
	}
	return nil, notFound("patient")
}

func (r patientRepo) GetByID(ctx context.Context, id int64) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.patients[id]
	if !ok {
		return nil, notFound("patient")
	}
	return r.enrich(p), nil
}

func (r patientRepo) Update(ctx context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.patients[p.ID]
	if !ok {
		return notFound("patient")
	}
	if r.emailTaken(p.Email, p.ID) {
		return apperrors.NewValidation("email", "A patient with this email already exists.")
	}
	next := *p
	next.DoctorIDs = nil
	next.IsActive = cur.IsActive
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.s.stamp()
	r.s.st.patients[p.ID] = next
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r patientRepo) List(ctx context.Context, f model.PatientFilter) ([]*model.Patient, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var rows []*model.Patient
	for _, p := range r.s.st.patients {
		if f.IsActive != nil && p.IsActive != *f.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.FirstName), search) &&
			!strings.Contains(strings.ToLower(p.LastName), search) &&
			!strings.Contains(strings.ToLower(p.Email), search) {
			continue
		}
		e := r.enrich(p)
		if f.DoctorID != nil && !e.OwnedBy(*f.DoctorID) {
			continue
		}
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return page(rows, f.Page), len(rows), nil
}

type softDeleteRepo struct{ s *Store }

func (r softDeleteRepo) LoadPatientGraph(ctx context.Context, patientID int64) (*model.PatientGraph, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.patients[patientID]
	if !ok {
		return nil, notFound("patient")
	}
	g := &model.PatientGraph{
		Patient:           &p,
		Appointments:      []*model.Appointment{},
		MedicalRecords:    []*model.MedicalRecord{},
		LabResults:        []*model.LabResult{},
		Prescriptions:     []*model.Prescription{},
		Payments:          []*model.Payment{},
		EmergencyContacts: []*model.EmergencyContact{},
	}
	for _, a := range sortedValues(r.s.st.appointments) {
		if a.PatientID == patientID {
			a := a
			g.Appointments = append(g.Appointments, &a)
		}
	}
	records := map[int64]bool{}
	for _, m := range sortedValues(r.s.st.records) {
		if m.PatientID == patientID {
			m := m
			records[m.ID] = true
			g.MedicalRecords = append(g.MedicalRecords, &m)
		}
	}
	for _, l := range sortedValues(r.s.st.labs) {
		if records[l.MedicalRecordID] {
			l := l
			g.LabResults = append(g.LabResults, &l)
		}
	}
	for _, rx := range sortedValues(r.s.st.prescriptions) {
		if records[rx.MedicalRecordID] {
			rx := rx
			g.Prescriptions = append(g.Prescriptions, &rx)
		}
	}
	for _, pm := range sortedValues(r.s.st.payments) {
		if pm.PatientID == patientID {
			pm := pm
			g.Payments = append(g.Payments, &pm)
		}
	}
	for _, c := range sortedValues(r.s.st.contacts) {
		if c.PatientID == patientID {
			c := c
			g.EmergencyContacts = append(g.EmergencyContacts, &c)
		}
	}
	return g, nil
}

func (r softDeleteRepo) SetActive(ctx context.Context, set model.CascadeSet, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("softdelete.set_active"); err != nil {
		return err
	}
	now := r.s.stamp()
	st := &r.s.st
	setFlag(st.patients, set.Patients, func(v *model.Patient) { v.IsActive = active; v.UpdatedAt = now })
	setFlag(st.appointments, set.Appointments, func(v *model.Appointment) { v.IsActive = active; v.UpdatedAt = now })
	setFlag(st.records, set.MedicalRecords, func(v *model.MedicalRecord) { v.IsActive = active; v.UpdatedAt = now })
	setFlag(st.labs, set.LabResults, func(v *model.LabResult) { v.IsActive = active; v.UpdatedAt = now })
	setFlag(st.prescriptions, set.Prescriptions, func(v *model.Prescription) { v.IsActive = active; v.UpdatedAt = now })
	setFlag(st.payments, set.Payments, func(v *model.Payment) { v.IsActive = active; v.UpdatedAt = now })
	setFlag(st.contacts, set.EmergencyContacts, func(v *model.EmergencyContact) { v.IsActive = active; v.UpdatedAt = now })
	return nil
}

func setFlag[V any](rows map[int64]V, ids []int64, apply func(*V)) {
	for _, id := range ids {
		v, ok := rows[id]
		if !ok {
			continue
		}
		apply(&v)
		rows[id] = v
	}
}

func sortedValues[V any](m map[int64]V) []V {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

type doctorRepo struct{ s *Store }

// enrich copies the linked user's name, email and active flag, as the
// postgres join does.
func (r doctorRepo) enrich(d model.Doctor) *model.Doctor {
	if u, ok := r.s.st.users[d.UserID]; ok {
		d.FirstName = u.FirstName
		d.LastName = u.LastName
		d.Email = u.Email
		d.IsActive = u.IsActive
	}
	return &d
}

func (r doctorRepo) GetByID(ctx context.Context, id int64) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.st.doctors[id]
	if !ok {
		return nil, notFound("doctor")
	}
	return r.enrich(d), nil
}

func (r doctorRepo) GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.st.doctors {
		if d.UserID == userID {
			return r.enrich(d), nil
		}
	}
	return nil, notFound("doctor profile")
}

func (r doctorRepo) List(ctx context.Context, p model.Page) ([]*model.Doctor, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := []*model.Doctor{}
	for _, d := range sortedValues(r.s.st.doctors) {
		rows = append(rows, r.enrich(d))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].LastName != rows[j].LastName {
			return rows[i].LastName < rows[j].LastName
		}
		return rows[i].FirstName < rows[j].FirstName
	})
	return page(rows, p), len(rows), nil
}

type medicationRepo struct{ s *Store }

func (r medicationRepo) GetByID(ctx context.Context, id int64) (*model.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.medications[id]
	if !ok {
		return nil, notFound("medication")
	}
	return &m, nil
}

func (r medicationRepo) List(ctx context.Context, p model.Page) ([]*model.Medication, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := []*model.Medication{}
	for _, m := range sortedValues(r.s.st.medications) {
		if m.IsActive {
			m := m
			rows = append(rows, &m)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return page(rows, p), len(rows), nil
}

type medicalRecordRepo struct{ s *Store }

func (r medicalRecordRepo) Create(ctx context.Context, m *model.MedicalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("medical_records.create"); err != nil {
		return fmt.Errorf("failed to create medical record: %w", err)
	}
	for _, existing := range r.s.st.records {
		if existing.AppointmentID == m.AppointmentID {
			return fmt.Errorf("medical record already exists for appointment %d", m.AppointmentID)
		}
	}
	now := r.s.stamp()
	m.ID = r.s.id()
	m.CreatedAt, m.UpdatedAt = now, now
	stored := *m
	stored.LabResults, stored.Prescription = nil, nil
	r.s.st.records[m.ID] = stored

	for _, l := range m.LabResults {
		l.ID = r.s.id()
		l.MedicalRecordID = m.ID
		l.CreatedAt, l.UpdatedAt = now, now
		r.s.st.labs[l.ID] = *l
	}
	if rx := m.Prescription; rx != nil {
		rx.ID = r.s.id()
		rx.MedicalRecordID = m.ID
		rx.CreatedAt, rx.UpdatedAt = now, now
		storedRx := *rx
		storedRx.Medications = nil
		r.s.st.prescriptions[rx.ID] = storedRx
		for _, med := range rx.Medications {
			med.ID = r.s.id()
			med.PrescriptionID = rx.ID
			r.s.st.rxMeds[med.ID] = *med
		}
	}
	return nil
}

func (r medicalRecordRepo) enrich(m model.MedicalRecord) *model.MedicalRecord {
	if p, ok := r.s.st.patients[m.PatientID]; ok {
		m.PatientName = fullName(p.FirstName, p.LastName)
	}
	return &m
}

func (r medicalRecordRepo) GetByID(ctx context.Context, id int64) (*model.MedicalRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.records[id]
	if !ok || !m.IsActive {
		return nil, notFound("medical record")
	}
	record := r.enrich(m)
	record.LabResults = []*model.LabResult{}
	for _, l := range sortedValues(r.s.st.labs) {
		if l.MedicalRecordID == id && l.IsActive {
			l := l
			record.LabResults = append(record.LabResults, &l)
		}
	}
	for _, rx := range sortedValues(r.s.st.prescriptions) {
		if rx.MedicalRecordID == id && rx.IsActive {
			rx := rx
			rx.Medications = []*model.PrescriptionMedication{}
			for _, med := range sortedValues(r.s.st.rxMeds) {
				if med.PrescriptionID == rx.ID {
					med := med
					rx.Medications = append(rx.Medications, &med)
				}
			}
			record.Prescription = &rx
			break
		}
	}
	return record, nil
}

func (r medicalRecordRepo) ExistsForAppointment(ctx context.Context, appointmentID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.st.records {
		if m.AppointmentID == appointmentID {
			return true, nil
		}
	}
	return false, nil
}

func (r medicalRecordRepo) List(ctx context.Context, f model.MedicalRecordFilter) ([]*model.MedicalRecord, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []*model.MedicalRecord
	for _, m := range sortedValues(r.s.st.records) {
		if !m.IsActive {
			continue
		}
		if f.DoctorID != nil && m.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && m.PatientID != *f.PatientID {
			continue
		}
		rows = append(rows, r.enrich(m))
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return page(rows, f.Page), len(rows), nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.st.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, notFound("user")
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("outbox.create"); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	e.ID = uuid.New()
	e.CreatedAt = r.s.stamp()
	e.Status = model.OutboxStatusPending
	r.s.st.outbox = append(r.s.st.outbox, *e)
	return nil
}

func (r outboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.stamp()
	events := []*model.OutboxEvent{}
	for _, e := range r.s.st.outbox {
		if len(events) >= limit {
			break
		}
		if e.Status == model.OutboxStatusProcessed {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		e := e
		events = append(events, &e)
	}
	return events, nil
}

func (r outboxRepo) update(id uuid.UUID, apply func(*model.OutboxEvent)) error {
	for i := range r.s.st.outbox {
		if r.s.st.outbox[i].ID == id {
			apply(&r.s.st.outbox[i])
			return nil
		}
	}
	return notFound("outbox event")
}

func (r outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.stamp()
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.ErrorMessage = nil
	})
}

func (r outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryAt = retryAt
		e.RetryCount++
	})
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.audit = append(r.s.st.audit, *log)
	return nil
}

func (r auditRepo) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.st.audit[:0]
	var removed int64
	for _, l := range r.s.st.audit {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.s.st.audit = kept
	return removed, nil
}
