package model

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusInQueue   AppointmentStatus = "in_queue"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
)

const DefaultAppointmentDuration = 30

// MsgAppointmentStatusChanged is returned when a lifecycle update loses a
// race with another one.
const MsgAppointmentStatusChanged = "Appointment status was changed by another request. Reload and try again."

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusInQueue, AppointmentStatusCompleted, AppointmentStatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further lifecycle action applies.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCanceled
}

type Appointment struct {
	ID              int64             `db:"id" json:"id"`
	AppointmentID   uuid.UUID         `db:"appointment_id" json:"appointment_id"`
	PatientID       int64             `db:"patient_id" json:"patient_id"`
	DoctorID        int64             `db:"doctor_id" json:"doctor_id"`
	AppointmentDate Date              `db:"appointment_date" json:"appointment_date"`
	AppointmentTime TimeOfDay         `db:"appointment_time" json:"appointment_time"`
	Duration        int               `db:"duration" json:"duration"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes"`
	IsActive        bool              `db:"is_active" json:"is_active"`
	CreatedBy       *int64            `db:"created_by" json:"created_by,omitempty"`
	Timestamps

	// Read-only columns joined in by list and get queries.
	PatientUUID  uuid.UUID `db:"patient_uuid" json:"patient_uuid"`
	PatientName  string    `db:"patient_name" json:"patient_name,omitempty"`
	PatientEmail string    `db:"patient_email" json:"-"`
	DoctorName   string    `db:"doctor_name" json:"doctor_name,omitempty"`
}

// End is the exclusive end of the slot.
func (a *Appointment) End() TimeOfDay {
	return a.AppointmentTime.Add(a.Duration)
}

func (a *Appointment) OwnedBy(doctorID int64) bool {
	return a.DoctorID == doctorID
}

func (a *Appointment) Basic() BasicView {
	name := a.PatientName
	if name == "" {
		name = "Appointment " + strconv.FormatInt(a.ID, 10)
	}
	return BasicView{ID: a.AppointmentID.String(), Name: name, IsActive: a.IsActive}
}

type AppointmentFilter struct {
	DoctorID  *int64
	PatientID *uuid.UUID
	Status    *AppointmentStatus
	Date      *Date
	Page      Page
}

// CreateAppointmentRequest is the inbound payload for booking. The billing
// amount is kept raw so a missing value and a malformed value can be told apart.
type CreateAppointmentRequest struct {
	PatientID       string          `json:"patient_id"`
	DoctorID        *int64          `json:"doctor_id"`
	AppointmentDate string          `json:"appointment_date"`
	AppointmentTime string          `json:"appointment_time"`
	Duration        *int            `json:"duration"`
	Notes           string          `json:"notes"`
	BillingAmount   json.RawMessage `json:"billing_amount"`
	BillingMethod   string          `json:"billing_method"`
}

// UpdateAppointmentRequest has no status field: status only moves through
// the lifecycle actions.
type UpdateAppointmentRequest struct {
	PatientID       *string `json:"patient_id"`
	DoctorID        *int64  `json:"doctor_id"`
	AppointmentDate *string `json:"appointment_date"`
	AppointmentTime *string `json:"appointment_time"`
	Duration        *int    `json:"duration"`
	Notes           *string `json:"notes"`
}

// TransitionResult is returned by the lifecycle actions.
type TransitionResult struct {
	AppointmentID uuid.UUID         `json:"appointment_id"`
	Status        AppointmentStatus `json:"status"`
	PaymentStatus *PaymentStatus    `json:"payment_status,omitempty"`
}

// SlotParty names whose calendar a conflict check runs against.
type SlotParty string

const (
	SlotPartyDoctor  SlotParty = "doctor"
	SlotPartyPatient SlotParty = "patient"
)

// SlotQuery selects the active appointments of one party on one day.
type SlotQuery struct {
	Party        SlotParty
	PartyID      int64
	Date         Date
	ExcludeID    *int64
	SkipCanceled bool
}
