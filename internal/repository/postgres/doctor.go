package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const doctorSelect = `
	SELECT d.id, d.user_id, d.specialization_id, d.license_number,
		   d.years_of_experience, d.qualifications, d.bio, d.created_at, d.updated_at,
		   u.first_name, u.last_name, u.email, u.is_active,
		   COALESCE(s.name, '') AS specialization_name
	FROM doctors d
	JOIN users u ON u.id = d.user_id
	LEFT JOIN specializations s ON s.id = d.specialization_id
`

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(db)}
}

func (r *doctorRepository) GetByID(ctx context.Context, id int64) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := r.get(ctx, &doctor, doctorSelect+` WHERE d.id = $1`, id); err != nil {
		return nil, notFound(err, "doctor")
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := r.get(ctx, &doctor, doctorSelect+` WHERE d.user_id = $1`, userID); err != nil {
		return nil, notFound(err, "doctor profile")
	}
	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context, page model.Page) ([]*model.Doctor, int, error) {
	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM doctors`); err != nil {
		return nil, 0, fmt.Errorf("failed to count doctors: %w", err)
	}

	doctors := []*model.Doctor{}
	query := doctorSelect + ` ORDER BY u.last_name, u.first_name LIMIT $1 OFFSET $2`
	if err := r.selectAll(ctx, &doctors, query, page.Limit(), page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, total, nil
}
