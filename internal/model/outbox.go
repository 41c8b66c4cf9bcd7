package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Event types written to the outbox.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentUpdated   = "appointment.updated"
	EventAppointmentCanceled  = "appointment.canceled"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentQueued    = "appointment.queued"
	EventAppointmentDeleted   = "appointment.deleted"
	EventPatientDeactivated   = "patient.deactivated"
	EventPatientReactivated   = "patient.reactivated"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	AggregateID  string          `db:"aggregate_id" json:"aggregate_id"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// AppointmentEvent is the payload of every appointment.* event.
type AppointmentEvent struct {
	AppointmentID   uuid.UUID         `json:"appointment_id"`
	PatientID       int64             `json:"patient_id"`
	PatientName     string            `json:"patient_name,omitempty"`
	PatientEmail    string            `json:"patient_email,omitempty"`
	DoctorID        int64             `json:"doctor_id"`
	DoctorName      string            `json:"doctor_name,omitempty"`
	AppointmentDate Date              `json:"appointment_date"`
	AppointmentTime TimeOfDay         `json:"appointment_time"`
	Duration        int               `json:"duration"`
	Status          AppointmentStatus `json:"status"`
}

// PatientEvent is the payload of patient.* events.
type PatientEvent struct {
	PatientID uuid.UUID      `json:"patient_id"`
	Active    bool           `json:"active"`
	Affected  map[string]int `json:"affected"`
}

// Envelope is what the relay publishes on the broker.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
