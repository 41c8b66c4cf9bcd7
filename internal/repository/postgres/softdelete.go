package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type softDeleteRepository struct {
	BaseRepository
}

func NewSoftDeleteRepository(db *sqlx.DB) repository.SoftDeleteRepository {
	return &softDeleteRepository{NewBaseRepository(db)}
}

// LoadPatientGraph reads the patient row with FOR UPDATE and then every row
// it owns, active or not.
func (r *softDeleteRepository) LoadPatientGraph(ctx context.Context, patientID int64) (*model.PatientGraph, error) {
	var patient model.Patient
	query := `
		SELECT id, patient_id, first_name, last_name, email, is_active, created_at, updated_at
		FROM patients WHERE id = $1 FOR UPDATE
	`
	if err := r.get(ctx, &patient, query, patientID); err != nil {
		return nil, notFound(err, "patient")
	}

	g := &model.PatientGraph{
		Patient:           &patient,
		Appointments:      []*model.Appointment{},
		MedicalRecords:    []*model.MedicalRecord{},
		LabResults:        []*model.LabResult{},
		Prescriptions:     []*model.Prescription{},
		Payments:          []*model.Payment{},
		EmergencyContacts: []*model.EmergencyContact{},
	}

	steps := []struct {
		name  string
		dest  interface{}
		query string
	}{
		{"appointments", &g.Appointments, `
			SELECT id, appointment_id, patient_id, doctor_id, appointment_date,
				   appointment_time, duration, status, is_active
			FROM appointments WHERE patient_id = $1`},
		{"medical records", &g.MedicalRecords, `
			SELECT id, patient_id, doctor_id, appointment_id, diagnosis, is_active
			FROM medical_records WHERE patient_id = $1`},
		{"lab results", &g.LabResults, `
			SELECT l.id, l.medical_record_id, l.test_name, l.test_date, l.is_active
			FROM lab_results l
			JOIN medical_records m ON m.id = l.medical_record_id
			WHERE m.patient_id = $1`},
		{"prescriptions", &g.Prescriptions, `
			SELECT pr.id, pr.medical_record_id, pr.is_active
			FROM prescriptions pr
			JOIN medical_records m ON m.id = pr.medical_record_id
			WHERE m.patient_id = $1`},
		{"payments", &g.Payments, `
			SELECT id, patient_id, appointment_id, amount, payment_date,
				   payment_method, status, is_active
			FROM payments WHERE patient_id = $1`},
		{"emergency contacts", &g.EmergencyContacts, `
			SELECT id, patient_id, first_name, last_name, relationship, is_active
			FROM emergency_contacts WHERE patient_id = $1`},
	}
	for _, step := range steps {
		if err := r.selectAll(ctx, step.dest, step.query, patientID); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", step.name, err)
		}
	}
	return g, nil
}

var cascadeTables = []struct {
	table string
	ids   func(model.CascadeSet) []int64
}{
	{"patients", func(s model.CascadeSet) []int64 { return s.Patients }},
	{"appointments", func(s model.CascadeSet) []int64 { return s.Appointments }},
	{"medical_records", func(s model.CascadeSet) []int64 { return s.MedicalRecords }},
	{"lab_results", func(s model.CascadeSet) []int64 { return s.LabResults }},
	{"prescriptions", func(s model.CascadeSet) []int64 { return s.Prescriptions }},
	{"payments", func(s model.CascadeSet) []int64 { return s.Payments }},
	{"emergency_contacts", func(s model.CascadeSet) []int64 { return s.EmergencyContacts }},
}

func (r *softDeleteRepository) SetActive(ctx context.Context, set model.CascadeSet, active bool) error {
	for _, t := range cascadeTables {
		ids := t.ids(set)
		if len(ids) == 0 {
			continue
		}
		query := fmt.Sprintf(`UPDATE %s SET is_active = $1, updated_at = NOW() WHERE id = ANY($2)`, t.table)
		if _, err := r.exec(ctx, query, active, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to set is_active on %s: %w", t.table, err)
		}
	}
	return nil
}
