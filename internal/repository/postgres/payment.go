package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const paymentSelect = `
	SELECT pm.id, pm.patient_id, pm.appointment_id, pm.amount, pm.payment_date,
		   pm.payment_method, pm.status, pm.is_active, pm.created_at, pm.updated_at,
		   TRIM(p.first_name || ' ' || p.last_name) AS patient_name,
		   a.doctor_id
	FROM payments pm
	JOIN patients p ON p.id = pm.patient_id
	LEFT JOIN appointments a ON a.id = pm.appointment_id
`

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(db *sqlx.DB) repository.PaymentRepository {
	return &paymentRepository{NewBaseRepository(db)}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	query := `
		INSERT INTO payments (
			patient_id, appointment_id, amount, payment_date,
			payment_method, status, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.conn(ctx).QueryRowxContext(ctx, query,
		payment.PatientID,
		payment.AppointmentID,
		payment.Amount,
		payment.PaymentDate,
		payment.Method,
		payment.Status,
		payment.IsActive,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return fmt.Errorf("payment already exists for appointment: %w", err)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByAppointment returns the active payment linked to an appointment.
func (r *paymentRepository) GetByAppointment(ctx context.Context, appointmentID int64) (*model.Payment, error) {
	query := paymentSelect + ` WHERE pm.appointment_id = $1 AND pm.is_active = TRUE`

	var payment model.Payment
	if err := r.get(ctx, &payment, query, appointmentID); err != nil {
		return nil, notFound(err, "payment")
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	return r.execOne(ctx, "payment", query, status, id)
}

func (r *paymentRepository) List(ctx context.Context, filter model.PaymentFilter) ([]*model.Payment, int, error) {
	w := &whereBuilder{}
	w.raw("pm.is_active = TRUE")
	if filter.PatientID != nil {
		w.add("pm.patient_id = $%d", *filter.PatientID)
	}
	if filter.Status != nil {
		w.add("pm.status = $%d", *filter.Status)
	}

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM payments pm`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	query := paymentSelect + w.String() + " ORDER BY pm.payment_date DESC" +
		w.page(filter.Page.Limit(), filter.Page.Offset())

	payments := []*model.Payment{}
	if err := r.selectAll(ctx, &payments, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, total, nil
}
