package model

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

type PaymentMethod string

const (
	PaymentMethodCash      PaymentMethod = "Cash"
	PaymentMethodCredit    PaymentMethod = "Credit Card"
	PaymentMethodDebit     PaymentMethod = "Debit Card"
	PaymentMethodInsurance PaymentMethod = "Insurance"
)

var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCredit,
	PaymentMethodDebit,
	PaymentMethodInsurance,
}

var paymentMethodAliases = map[string]PaymentMethod{
	"cash":        PaymentMethodCash,
	"credit":      PaymentMethodCredit,
	"credit card": PaymentMethodCredit,
	"credit_card": PaymentMethodCredit,
	"debit":       PaymentMethodDebit,
	"debit card":  PaymentMethodDebit,
	"debit_card":  PaymentMethodDebit,
	"insurance":   PaymentMethodInsurance,
}

var (
	ErrBillingAmountMissing  = errors.New("billing amount missing")
	ErrBillingAmountFormat   = errors.New("billing amount malformed")
	ErrBillingAmountPositive = errors.New("billing amount not positive")
	ErrPaymentMethod         = errors.New("unknown billing method")
)

// ParsePaymentMethod canonicalises a billing method. An empty value means cash.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PaymentMethodCash, nil
	}
	m, ok := paymentMethodAliases[s]
	if !ok {
		return "", ErrPaymentMethod
	}
	return m, nil
}

// PaymentMethodList renders the accepted methods for error messages.
func PaymentMethodList() string {
	names := make([]string, len(PaymentMethods))
	for i, m := range PaymentMethods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// ParseBillingAmount accepts a JSON number or a quoted decimal string.
func ParseBillingAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == `""` {
		return decimal.Zero, ErrBillingAmountMissing
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return decimal.Zero, ErrBillingAmountMissing
		}
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrBillingAmountFormat
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrBillingAmountPositive
	}
	return amount.Round(2), nil
}

type Payment struct {
	ID            int64           `db:"id" json:"id"`
	PatientID     int64           `db:"patient_id" json:"patient_id"`
	AppointmentID *int64          `db:"appointment_id" json:"appointment_id,omitempty"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentDate   time.Time       `db:"payment_date" json:"payment_date"`
	Method        PaymentMethod   `db:"payment_method" json:"payment_method"`
	Status        PaymentStatus   `db:"status" json:"status"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	Timestamps

	PatientName string `db:"patient_name" json:"patient_name,omitempty"`
	DoctorID    *int64 `db:"doctor_id" json:"doctor_id,omitempty"`
}

func (p *Payment) OwnedBy(doctorID int64) bool {
	return p.DoctorID != nil && *p.DoctorID == doctorID
}

func (p *Payment) Basic() BasicView {
	return BasicView{ID: strconv.FormatInt(p.ID, 10), Name: p.PatientName, IsActive: p.IsActive}
}

type PaymentFilter struct {
	PatientID *int64
	Status    *PaymentStatus
	Page      Page
}

type CreatePaymentRequest struct {
	AppointmentID string          `json:"appointment_id" binding:"required,uuid"`
	Amount        json.RawMessage `json:"amount"`
	Method        string          `json:"payment_method"`
	Status        string          `json:"status"`
}

// ParsePaymentStatus accepts the canonical names in any case. An empty
// value means pending.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return PaymentStatusPending, nil
	case "paid":
		return PaymentStatusPaid, nil
	case "failed":
		return PaymentStatusFailed, nil
	}
	return "", errors.New("unknown payment status")
}
