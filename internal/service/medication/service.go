package medication

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const msgNoAccess = "You do not have permission to view medications."

type Service interface {
	GetMedication(ctx context.Context, actor model.Actor, id int64) (*model.Medication, error)
	// ListMedications gives secretaries an empty page rather than an error.
	ListMedications(ctx context.Context, actor model.Actor, page model.Page) ([]*model.Medication, int, error)
}

type service struct {
	repo repository.MedicationRepository
}

func NewService(repo repository.MedicationRepository) Service {
	return &service{repo: repo}
}

func (s *service) GetMedication(ctx context.Context, actor model.Actor, id int64) (*model.Medication, error) {
	scope := access.ScopeFor(actor, access.Medications)
	if scope.Empty() {
		return nil, apperrors.NewForbidden(msgNoAccess)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListMedications(ctx context.Context, actor model.Actor, page model.Page) ([]*model.Medication, int, error) {
	scope := access.ScopeFor(actor, access.Medications)
	if scope.Empty() {
		return []*model.Medication{}, 0, nil
	}
	rows, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	return access.Filter(scope, rows), total, nil
}
