package doctor

import (
	"context"
	"strconv"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service interface {
	GetDoctor(ctx context.Context, actor model.Actor, id int64) (*model.Doctor, access.Scope, error)
	ListDoctors(ctx context.Context, actor model.Actor, page model.Page) ([]*model.Doctor, int, access.Scope, error)
}

type service struct {
	repo repository.DoctorRepository
}

func NewService(repo repository.DoctorRepository) Service {
	return &service{repo: repo}
}

func (s *service) GetDoctor(ctx context.Context, actor model.Actor, id int64) (*model.Doctor, access.Scope, error) {
	scope := access.ScopeFor(actor, access.Doctors)
	if scope.Level == access.LevelNone {
		return nil, scope, apperrors.NewForbidden("You do not have permission to view doctors.")
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, scope, err
	}
	if !access.CanView(scope, d) {
		return nil, scope, apperrors.NotFound("doctor "+strconv.FormatInt(id, 10), nil)
	}
	return d, scope, nil
}

func (s *service) ListDoctors(ctx context.Context, actor model.Actor, page model.Page) ([]*model.Doctor, int, access.Scope, error) {
	scope := access.ScopeFor(actor, access.Doctors)
	if scope.Level == access.LevelNone {
		return nil, 0, scope, apperrors.NewForbidden("You do not have permission to view doctors.")
	}
	rows, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, scope, err
	}
	return access.Filter(scope, rows), total, scope, nil
}
