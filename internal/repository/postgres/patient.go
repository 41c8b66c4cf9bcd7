package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const patientSelect = `
	SELECT p.id, p.patient_id, p.first_name, p.last_name, p.birth_date, p.gender,
		   p.email, p.phone, p.address, p.city, p.blood_type, p.height, p.weight,
		   p.insurance_provider, p.insurance_number, p.insurance_expiration_date,
		   p.is_active, p.created_by, p.created_at, p.updated_at,
		   ARRAY(
			   SELECT DISTINCT a.doctor_id FROM appointments a
			   WHERE a.patient_id = p.id AND a.is_active = TRUE
		   ) AS doctor_ids
	FROM patients p
`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			patient_id, first_name, last_name, birth_date, gender, email,
			phone, address, city, blood_type, height, weight,
			insurance_provider, insurance_number, insurance_expiration_date,
			is_active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`
	if patient.PatientID == uuid.Nil {
		patient.PatientID = uuid.New()
	}

	err := r.conn(ctx).QueryRowxContext(ctx, query,
		patient.PatientID,
		patient.FirstName,
		patient.LastName,
		patient.BirthDate,
		patient.Gender,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.City,
		patient.BloodType,
		patient.Height,
		patient.Weight,
		patient.InsuranceProvider,
		patient.InsuranceNumber,
		patient.InsuranceExpirationDate,
		patient.IsActive,
		patient.CreatedBy,
	).Scan(&patient.ID, &patient.CreatedAt, &patient.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return apperrors.NewValidation("email", "A patient with this email already exists.")
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := r.get(ctx, &patient, patientSelect+` WHERE p.patient_id = $1`, id); err != nil {
		return nil, notFound(err, "patient")
	}
	return &patient, nil
}

func (r *patientRepository) GetByID(ctx context.Context, id int64) (*model.Patient, error) {
	var patient model.Patient
	if err := r.get(ctx, &patient, patientSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, notFound(err, "patient")
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $1, last_name = $2, birth_date = $3, gender = $4,
			email = $5, phone = $6, address = $7, city = $8, blood_type = $9,
			height = $10, weight = $11, insurance_provider = $12,
			insurance_number = $13, insurance_expiration_date = $14,
			updated_at = NOW()
		WHERE id = $15
	`
	err := r.execOne(ctx, "patient", query,
		patient.FirstName,
		patient.LastName,
		patient.BirthDate,
		patient.Gender,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.City,
		patient.BloodType,
		patient.Height,
		patient.Weight,
		patient.InsuranceProvider,
		patient.InsuranceNumber,
		patient.InsuranceExpirationDate,
		patient.ID,
	)
	if err != nil && uniqueViolation(err) {
		return apperrors.NewValidation("email", "A patient with this email already exists.")
	}
	return err
}

func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, int, error) {
	w := &whereBuilder{}
	if filter.IsActive != nil {
		w.add("p.is_active = $%d", *filter.IsActive)
	}
	if filter.DoctorID != nil {
		w.add("EXISTS (SELECT 1 FROM appointments a WHERE a.patient_id = p.id AND a.is_active = TRUE AND a.doctor_id = $%d)", *filter.DoctorID)
	}
	if filter.Search != "" {
		w.add("(p.first_name ILIKE $%[1]d OR p.last_name ILIKE $%[1]d OR p.email ILIKE $%[1]d)", "%"+filter.Search+"%")
	}

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM patients p`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query := patientSelect + w.String() + " ORDER BY p.last_name, p.first_name, p.id" +
		w.page(filter.Page.Limit(), filter.Page.Offset())

	patients := []*model.Patient{}
	if err := r.selectAll(ctx, &patients, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}
