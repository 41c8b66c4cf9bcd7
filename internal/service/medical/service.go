package medical

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const (
	msgNotVisible     = "Medical record not found or you don't have permission to view it."
	msgNoAccess       = "You do not have permission to access medical records."
	msgAlreadyRecords = "This appointment already has a medical record."
)

type Service struct {
	tx           repository.Transactor
	repo         repository.MedicalRecordRepository
	appointments repository.AppointmentRepository
	medications  repository.MedicationRepository
	auditor      *audit.Service
}

func NewService(tx repository.Transactor, repo repository.MedicalRecordRepository,
	appointments repository.AppointmentRepository, medications repository.MedicationRepository,
	auditor *audit.Service) *Service {
	return &Service{
		tx:           tx,
		repo:         repo,
		appointments: appointments,
		medications:  medications,
		auditor:      auditor,
	}
}

// CreateMedicalRecord writes a record for one appointment together with its
// lab results and prescription. Doctors may only document their own
// appointments.
func (s *Service) CreateMedicalRecord(ctx context.Context, actor model.Actor, req model.CreateMedicalRecordRequest) (*model.MedicalRecord, error) {
	scope := access.ScopeFor(actor, access.MedicalRecords)
	if scope.ProfileMissing {
		return nil, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
	}
	if !scope.CanWrite() {
		return nil, apperrors.NewForbidden(msgNoAccess)
	}

	appointmentID, err := uuid.Parse(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		return nil, apperrors.NewValidation("appointment_id", "Invalid appointment UUID.")
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		return nil, apperrors.NewValidation("diagnosis", "Diagnosis is required.")
	}

	apt, err := s.appointments.GetByUUID(ctx, appointmentID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidation("appointment_id", "Appointment not found.")
		}
		return nil, err
	}
	if scope.Level == access.LevelOwn && !apt.OwnedBy(scope.DoctorID) {
		return nil, apperrors.NewValidation("appointment_id", "Appointment not found.")
	}

	record := &model.MedicalRecord{
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		AppointmentID: apt.ID,
		Diagnosis:     strings.TrimSpace(req.Diagnosis),
		Description:   req.Description,
		Notes:         req.Notes,
		IsActive:      true,
		PatientName:   apt.PatientName,
	}
	for _, in := range req.LabResults {
		testDate := in.TestDate
		if testDate.IsZero() {
			testDate = apt.AppointmentDate
		}
		record.LabResults = append(record.LabResults, &model.LabResult{
			TestName: in.TestName,
			TestDate: testDate,
			Results:  in.Results,
			Notes:    in.Notes,
			IsActive: true,
		})
	}
	if req.Prescription != nil {
		rx := &model.Prescription{Notes: req.Prescription.Notes, IsActive: true}
		for i, med := range req.Prescription.Medications {
			if _, err := s.medications.GetByID(ctx, med.MedicationID); err != nil {
				if apperrors.Is(err, apperrors.ErrNotFound) {
					return nil, apperrors.NewValidation("prescription.medications."+strconv.Itoa(i)+".medication_id", "Medication not found.")
				}
				return nil, err
			}
			rx.Medications = append(rx.Medications, &model.PrescriptionMedication{
				MedicationID: med.MedicationID,
				Dosage:       med.Dosage,
				Frequency:    med.Frequency,
				Duration:     med.Duration,
				Instructions: med.Instructions,
			})
		}
		record.Prescription = rx
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsForAppointment(ctx, apt.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NewConflict(msgAlreadyRecords, nil)
		}
		return s.repo.Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actor, audit.ActionCreate, "medical_record", strconv.FormatInt(record.ID, 10), &audit.LogOptions{
		Changes: map[string]interface{}{"appointment_id": apt.AppointmentID, "diagnosis": record.Diagnosis},
	})
	return record, nil
}

func (s *Service) GetMedicalRecord(ctx context.Context, actor model.Actor, id int64) (*model.MedicalRecord, error) {
	scope := access.ScopeFor(actor, access.MedicalRecords)
	if scope.ProfileMissing {
		return nil, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
	}
	if scope.Level == access.LevelNone {
		return nil, apperrors.NewForbidden(msgNoAccess)
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithMessage(msgNotVisible)
		}
		return nil, err
	}
	if !access.CanView(scope, record) {
		return nil, apperrors.NotFoundWithMessage(msgNotVisible)
	}

	s.auditor.Record(ctx, actor, audit.ActionRead, "medical_record", strconv.FormatInt(id, 10), nil)
	return record, nil
}

func (s *Service) ListMedicalRecords(ctx context.Context, actor model.Actor, filter model.MedicalRecordFilter) ([]*model.MedicalRecord, int, error) {
	scope := access.ScopeFor(actor, access.MedicalRecords)
	if scope.ProfileMissing {
		return nil, 0, apperrors.NewNotConfigured("doctor", access.ProfileNotConfiguredMessage)
	}
	if scope.Level == access.LevelNone {
		return nil, 0, apperrors.NewForbidden(msgNoAccess)
	}
	if owner := scope.OwnerFilter(); owner != nil {
		filter.DoctorID = owner
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	s.auditor.Record(ctx, actor, audit.ActionList, "medical_record", "", nil)
	return access.Filter(scope, rows), total, nil
}
