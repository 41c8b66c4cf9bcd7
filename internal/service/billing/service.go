package billing

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/access"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const (
	msgAlreadyPaid   = "This appointment has already been paid for."
	msgAlreadyBilled = "A billing record already exists for this appointment."
	msgNoAccess      = "You do not have permission to access billing."
)

type Service struct {
	tx           repository.Transactor
	payments     repository.PaymentRepository
	appointments repository.AppointmentRepository
	auditor      *audit.Service
}

func NewService(tx repository.Transactor, payments repository.PaymentRepository,
	appointments repository.AppointmentRepository, auditor *audit.Service) *Service {
	return &Service{tx: tx, payments: payments, appointments: appointments, auditor: auditor}
}

// ListPayments returns one page of payments and the scope they were read
// under. Secretaries get the basic projection from the caller.
func (s *Service) ListPayments(ctx context.Context, actor model.Actor, filter model.PaymentFilter) ([]*model.Payment, int, access.Scope, error) {
	scope := access.ScopeFor(actor, access.Billing)
	if scope.Level == access.LevelNone {
		return nil, 0, scope, apperrors.NewForbidden(msgNoAccess)
	}

	rows, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, 0, scope, err
	}
	s.auditor.Record(ctx, actor, audit.ActionList, "payment", "", nil)
	return access.Filter(scope, rows), total, scope, nil
}

// CreatePayment records a payment for an appointment that has none yet.
func (s *Service) CreatePayment(ctx context.Context, actor model.Actor, req model.CreatePaymentRequest) (*model.Payment, error) {
	if !access.CanWrite(actor.Role, access.Billing) {
		return nil, apperrors.NewForbidden(msgNoAccess)
	}

	appointmentID, err := uuid.Parse(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		return nil, apperrors.NewValidation("appointment_id", "Invalid appointment UUID.")
	}
	amount, err := model.ParseBillingAmount(req.Amount)
	if err != nil {
		return nil, amountError(err)
	}
	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, apperrors.NewValidation("payment_method",
			"Invalid billing method. Must be one of: "+model.PaymentMethodList())
	}
	status, err := model.ParsePaymentStatus(req.Status)
	if err != nil {
		return nil, apperrors.NewValidation("status", "Status must be one of: Pending, Paid, Failed")
	}

	apt, err := s.appointments.GetByUUID(ctx, appointmentID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidation("appointment_id", "Appointment not found.")
		}
		return nil, err
	}

	aptID := apt.ID
	payment := &model.Payment{
		PatientID:     apt.PatientID,
		AppointmentID: &aptID,
		Amount:        amount,
		Method:        method,
		Status:        status,
		IsActive:      true,
		PatientName:   apt.PatientName,
		DoctorID:      &apt.DoctorID,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.payments.GetByAppointment(ctx, apt.ID)
		switch {
		case err == nil && existing.Status == model.PaymentStatusPaid:
			return apperrors.NewValidation("appointment_id", msgAlreadyPaid)
		case err == nil:
			return apperrors.NewConflict(msgAlreadyBilled, nil)
		case !apperrors.Is(err, apperrors.ErrNotFound):
			return err
		}
		payment.PaymentDate = time.Now().UTC()
		return s.payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actor, audit.ActionCreate, "payment", strconv.FormatInt(payment.ID, 10), &audit.LogOptions{Changes: payment})
	return payment, nil
}

func amountError(err error) error {
	switch {
	case errors.Is(err, model.ErrBillingAmountMissing):
		return apperrors.NewValidation("amount", "Amount is required.")
	case errors.Is(err, model.ErrBillingAmountPositive):
		return apperrors.NewValidation("amount", "Amount must be greater than zero.")
	default:
		return apperrors.NewValidation("amount", "Invalid amount format.")
	}
}
