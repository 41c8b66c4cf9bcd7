package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type medicationRepository struct {
	BaseRepository
}

func NewMedicationRepository(db *sqlx.DB) repository.MedicationRepository {
	return &medicationRepository{NewBaseRepository(db)}
}

func (r *medicationRepository) GetByID(ctx context.Context, id int64) (*model.Medication, error) {
	query := `
		SELECT id, name, default_dosage, description, is_active, created_at, updated_at
		FROM medications
		WHERE id = $1
	`
	var medication model.Medication
	if err := r.get(ctx, &medication, query, id); err != nil {
		return nil, notFound(err, "medication")
	}
	return &medication, nil
}

func (r *medicationRepository) List(ctx context.Context, page model.Page) ([]*model.Medication, int, error) {
	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM medications WHERE is_active = TRUE`); err != nil {
		return nil, 0, fmt.Errorf("failed to count medications: %w", err)
	}

	query := `
		SELECT id, name, default_dosage, description, is_active, created_at, updated_at
		FROM medications
		WHERE is_active = TRUE
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	medications := []*model.Medication{}
	if err := r.selectAll(ctx, &medications, query, page.Limit(), page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list medications: %w", err)
	}
	return medications, total, nil
}
