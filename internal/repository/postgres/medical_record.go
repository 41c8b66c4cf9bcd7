package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const medicalRecordSelect = `
	SELECT m.id, m.patient_id, m.doctor_id, m.appointment_id, m.diagnosis,
		   m.description, m.notes, m.is_active, m.created_at, m.updated_at,
		   TRIM(p.first_name || ' ' || p.last_name) AS patient_name
	FROM medical_records m
	JOIN patients p ON p.id = m.patient_id
`

type medicalRecordRepository struct {
	BaseRepository
}

func NewMedicalRecordRepository(db *sqlx.DB) repository.MedicalRecordRepository {
	return &medicalRecordRepository{NewBaseRepository(db)}
}

// Create inserts the record with its lab results and prescription. Callers
// run it inside a transaction.
func (r *medicalRecordRepository) Create(ctx context.Context, record *model.MedicalRecord) error {
	query := `
		INSERT INTO medical_records (
			patient_id, doctor_id, appointment_id, diagnosis, description, notes, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.conn(ctx).QueryRowxContext(ctx, query,
		record.PatientID,
		record.DoctorID,
		record.AppointmentID,
		record.Diagnosis,
		record.Description,
		record.Notes,
		record.IsActive,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create medical record: %w", err)
	}

	for _, lab := range record.LabResults {
		lab.MedicalRecordID = record.ID
		err := r.conn(ctx).QueryRowxContext(ctx, `
			INSERT INTO lab_results (medical_record_id, test_name, test_date, results, notes, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`,
			lab.MedicalRecordID, lab.TestName, lab.TestDate, lab.Results, lab.Notes, lab.IsActive,
		).Scan(&lab.ID, &lab.CreatedAt, &lab.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create lab result: %w", err)
		}
	}

	if rx := record.Prescription; rx != nil {
		rx.MedicalRecordID = record.ID
		err := r.conn(ctx).QueryRowxContext(ctx, `
			INSERT INTO prescriptions (medical_record_id, notes, is_active)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`,
			rx.MedicalRecordID, rx.Notes, rx.IsActive,
		).Scan(&rx.ID, &rx.CreatedAt, &rx.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create prescription: %w", err)
		}

		for _, med := range rx.Medications {
			med.PrescriptionID = rx.ID
			err := r.conn(ctx).QueryRowxContext(ctx, `
				INSERT INTO prescription_medications (
					prescription_id, medication_id, dosage, frequency, duration, instructions
				) VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				med.PrescriptionID, med.MedicationID, med.Dosage, med.Frequency, med.Duration, med.Instructions,
			).Scan(&med.ID)
			if err != nil {
				return fmt.Errorf("failed to add medication to prescription: %w", err)
			}
		}
	}
	return nil
}

func (r *medicalRecordRepository) GetByID(ctx context.Context, id int64) (*model.MedicalRecord, error) {
	var record model.MedicalRecord
	if err := r.get(ctx, &record, medicalRecordSelect+` WHERE m.id = $1 AND m.is_active = TRUE`, id); err != nil {
		return nil, notFound(err, "medical record")
	}

	record.LabResults = []*model.LabResult{}
	if err := r.selectAll(ctx, &record.LabResults, `
		SELECT id, medical_record_id, test_name, test_date, results, notes, is_active, created_at, updated_at
		FROM lab_results
		WHERE medical_record_id = $1 AND is_active = TRUE
		ORDER BY test_date DESC`, id); err != nil {
		return nil, fmt.Errorf("failed to get lab results: %w", err)
	}

	prescriptions := []*model.Prescription{}
	if err := r.selectAll(ctx, &prescriptions, `
		SELECT id, medical_record_id, notes, is_active, created_at, updated_at
		FROM prescriptions
		WHERE medical_record_id = $1 AND is_active = TRUE`, id); err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	if len(prescriptions) > 0 {
		rx := prescriptions[0]
		rx.Medications = []*model.PrescriptionMedication{}
		if err := r.selectAll(ctx, &rx.Medications, `
			SELECT id, prescription_id, medication_id, dosage, frequency, duration, instructions
			FROM prescription_medications
			WHERE prescription_id = $1`, rx.ID); err != nil {
			return nil, fmt.Errorf("failed to get prescription medications: %w", err)
		}
		record.Prescription = rx
	}
	return &record, nil
}

func (r *medicalRecordRepository) ExistsForAppointment(ctx context.Context, appointmentID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM medical_records WHERE appointment_id = $1)`
	if err := r.get(ctx, &exists, query, appointmentID); err != nil {
		return false, fmt.Errorf("failed to check medical record: %w", err)
	}
	return exists, nil
}

func (r *medicalRecordRepository) List(ctx context.Context, filter model.MedicalRecordFilter) ([]*model.MedicalRecord, int, error) {
	w := &whereBuilder{}
	w.raw("m.is_active = TRUE")
	if filter.DoctorID != nil {
		w.add("m.doctor_id = $%d", *filter.DoctorID)
	}
	if filter.PatientID != nil {
		w.add("m.patient_id = $%d", *filter.PatientID)
	}

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM medical_records m`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count medical records: %w", err)
	}

	query := medicalRecordSelect + w.String() + " ORDER BY m.created_at DESC" +
		w.page(filter.Page.Limit(), filter.Page.Offset())

	records := []*model.MedicalRecord{}
	if err := r.selectAll(ctx, &records, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list medical records: %w", err)
	}
	return records, total, nil
}
