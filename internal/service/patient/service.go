package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/cascade"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const (
	msgNotVisible    = "Patient not found or you don't have permission to view it."
	msgNoWriteAccess = "You do not have permission to modify patients."
	msgNoReadAccess  = "You do not have permission to view patients."
	msgInactive      = "Cannot update inactive patient"
)

type Service struct {
	tx         repository.Transactor
	repo       repository.PatientRepository
	softDelete repository.SoftDeleteRepository
	events     event.Emitter
	auditor    *audit.Service
	metrics    *metrics.Metrics
}

func NewService(
	tx repository.Transactor,
	repo repository.PatientRepository,
	softDelete repository.SoftDeleteRepository,
	events event.Emitter,
	auditor *audit.Service,
	m *metrics.Metrics,
) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		tx:         tx,
		repo:       repo,
		softDelete: softDelete,
		events:     events,
		auditor:    auditor,
		metrics:    m,
	}
}

func (s *Service) CreatePatient(ctx context.Context, actor model.Actor, req model.CreatePatientRequest) (*model.Patient, error) {
	if !access.CanWrite(actor.Role, access.Patients) {
		return nil, apperrors.NewForbidden(msgNoWriteAccess)
	}

	creator := actor.UserID
	p := &model.Patient{
		FirstName:               strings.TrimSpace(req.FirstName),
		LastName:                strings.TrimSpace(req.LastName),
		BirthDate:               req.BirthDate,
		Gender:                  req.Gender,
		Email:                   strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:                   req.Phone,
		Address:                 req.Address,
		City:                    req.City,
		BloodType:               bloodType(req.BloodType),
		Height:                  req.Height,
		Weight:                  req.Weight,
		InsuranceProvider:       req.InsuranceProvider,
		InsuranceNumber:         req.InsuranceNumber,
		InsuranceExpirationDate: req.InsuranceExpirationDate,
		IsActive:                true,
		CreatedBy:               &creator,
	}
	if p.FirstName == "" {
		return nil, apperrors.NewValidation("first_name", "First name is required.")
	}
	if p.Email == "" {
		return nil, apperrors.NewValidation("email", "Email is required.")
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actor, audit.ActionCreate, "patient", p.PatientID.String(), &audit.LogOptions{Changes: p})
	return p, nil
}

func bloodType(s string) model.BloodType {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.BloodTypeUnknown
	}
	return model.BloodType(strings.ToUpper(s))
}

// load applies the patient visibility rule. Doctors only see patients they
// hold an active appointment with.
func (s *Service) load(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, access.Scope, error) {
	scope := access.ScopeFor(actor, access.Patients)
	if scope.ProfileMissing {
		return nil, scope, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
	}
	if scope.Level == access.LevelNone {
		return nil, scope, apperrors.NewForbidden(msgNoReadAccess)
	}

	p, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, scope, apperrors.NotFoundWithMessage(msgNotVisible)
		}
		return nil, scope, err
	}
	if !access.CanView(scope, p) {
		return nil, scope, apperrors.NotFoundWithMessage(msgNotVisible)
	}
	return p, scope, nil
}

// GetPatient returns the patient together with the scope it was read under,
// so the caller can project it for basic access.
func (s *Service) GetPatient(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, access.Scope, error) {
	p, scope, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, scope, err
	}
	s.auditor.Record(ctx, actor, audit.ActionRead, "patient", id.String(), nil)
	return p, scope, nil
}

func (s *Service) ListPatients(ctx context.Context, actor model.Actor, filter model.PatientFilter) ([]*model.Patient, int, access.Scope, error) {
	scope := access.ScopeFor(actor, access.Patients)
	if scope.ProfileMissing {
		return nil, 0, scope, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
	}
	if scope.Empty() {
		return []*model.Patient{}, 0, scope, nil
	}
	if owner := scope.OwnerFilter(); owner != nil {
		filter.DoctorID = owner
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, scope, err
	}
	s.auditor.Record(ctx, actor, audit.ActionList, "patient", "", nil)
	return access.Filter(scope, rows), total, scope, nil
}

func (s *Service) UpdatePatient(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdatePatientRequest) (*model.Patient, error) {
	p, scope, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanWrite() {
		return nil, apperrors.NewForbidden(msgNoWriteAccess)
	}
	if !p.IsActive {
		return nil, apperrors.NewValidation("is_active", msgInactive)
	}

	before := *p
	if req.FirstName != nil {
		p.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		p.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.BirthDate != nil {
		p.BirthDate = req.BirthDate
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.Email != nil {
		p.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.City != nil {
		p.City = *req.City
	}
	if req.BloodType != nil {
		p.BloodType = bloodType(*req.BloodType)
	}
	if req.Height != nil {
		p.Height = req.Height
	}
	if req.Weight != nil {
		p.Weight = req.Weight
	}
	if req.InsuranceProvider != nil {
		p.InsuranceProvider = *req.InsuranceProvider
	}
	if req.InsuranceNumber != nil {
		p.InsuranceNumber = *req.InsuranceNumber
	}
	if req.InsuranceExpirationDate != nil {
		p.InsuranceExpirationDate = req.InsuranceExpirationDate
	}
	if p.FirstName == "" {
		return nil, apperrors.NewValidation("first_name", "First name is required.")
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actor, audit.ActionUpdate, "patient", id.String(), &audit.LogOptions{
		Changes: map[string]interface{}{"before": before, "after": p},
	})
	return p, nil
}

// DeactivatePatient soft-deletes the patient and everything it owns.
// Deactivating an inactive patient changes nothing and returns an empty set.
func (s *Service) DeactivatePatient(ctx context.Context, actor model.Actor, id uuid.UUID) (model.CascadeSet, error) {
	return s.setActive(ctx, actor, id, false)
}

// ReactivatePatient reverses DeactivatePatient over the same owned set.
func (s *Service) ReactivatePatient(ctx context.Context, actor model.Actor, id uuid.UUID) (model.CascadeSet, error) {
	return s.setActive(ctx, actor, id, true)
}

func (s *Service) setActive(ctx context.Context, actor model.Actor, id uuid.UUID, active bool) (model.CascadeSet, error) {
	if !access.CanWrite(actor.Role, access.Patients) {
		return model.CascadeSet{}, apperrors.NewForbidden(msgNoWriteAccess)
	}
	p, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return model.CascadeSet{}, err
	}

	var set model.CascadeSet
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		graph, err := s.softDelete.LoadPatientGraph(ctx, p.ID)
		if err != nil {
			return err
		}
		set = cascade.Plan(graph, active)
		if set.Empty() {
			return nil
		}
		if err := s.softDelete.SetActive(ctx, set, active); err != nil {
			return err
		}

		eventType := model.EventPatientDeactivated
		if active {
			eventType = model.EventPatientReactivated
		}
		return s.events.Emit(ctx, eventType, p.PatientID.String(), model.PatientEvent{
			PatientID: p.PatientID,
			Active:    active,
			Affected:  set.Counts(),
		})
	})
	if err != nil {
		return model.CascadeSet{}, err
	}

	if set.Empty() {
		log.Debug().Str("patient_id", id.String()).Bool("active", active).Msg("patient already in target state")
		return set, nil
	}

	flag := "false"
	action := audit.ActionDeactivate
	if active {
		flag = "true"
		action = audit.ActionReactivate
	}
	for table, n := range set.Counts() {
		if n > 0 {
			s.metrics.CascadeRows.WithLabelValues(table, flag).Add(float64(n))
		}
	}
	s.auditor.Record(ctx, actor, action, "patient", id.String(), &audit.LogOptions{Changes: set.Counts()})
	log.Info().
		Str("patient_id", id.String()).
		Bool("active", active).
		Int("rows", set.Total()).
		Msg("patient cascade applied")
	return set, nil
}
