package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type BloodType string

const (
	BloodTypeAPositive  BloodType = "A+"
	BloodTypeANegative  BloodType = "A-"
	BloodTypeBPositive  BloodType = "B+"
	BloodTypeBNegative  BloodType = "B-"
	BloodTypeABPositive BloodType = "AB+"
	BloodTypeABNegative BloodType = "AB-"
	BloodTypeOPositive  BloodType = "O+"
	BloodTypeONegative  BloodType = "O-"
	BloodTypeUnknown    BloodType = "unknown"
)

type Patient struct {
	ID                      int64     `db:"id" json:"id"`
	PatientID               uuid.UUID `db:"patient_id" json:"patient_id"`
	FirstName               string    `db:"first_name" json:"first_name"`
	LastName                string    `db:"last_name" json:"last_name"`
	BirthDate               *Date     `db:"birth_date" json:"birth_date,omitempty"`
	Gender                  Gender    `db:"gender" json:"gender"`
	Email                   string    `db:"email" json:"email"`
	Phone                   string    `db:"phone" json:"phone"`
	Address                 string    `db:"address" json:"address"`
	City                    string    `db:"city" json:"city"`
	BloodType               BloodType `db:"blood_type" json:"blood_type"`
	Height                  *float64  `db:"height" json:"height,omitempty"`
	Weight                  *float64  `db:"weight" json:"weight,omitempty"`
	InsuranceProvider       string    `db:"insurance_provider" json:"insurance_provider"`
	InsuranceNumber         string    `db:"insurance_number" json:"insurance_number"`
	InsuranceExpirationDate *Date     `db:"insurance_expiration_date" json:"insurance_expiration_date,omitempty"`
	IsActive                bool      `db:"is_active" json:"is_active"`
	CreatedBy               *int64    `db:"created_by" json:"created_by,omitempty"`
	Timestamps

	// Doctors holding at least one active appointment with the patient.
	DoctorIDs pq.Int64Array `db:"doctor_ids" json:"-"`
}

func (p *Patient) FullName() string {
	return fullName(p.FirstName, p.LastName)
}

func (p *Patient) OwnedBy(doctorID int64) bool {
	for _, id := range p.DoctorIDs {
		if id == doctorID {
			return true
		}
	}
	return false
}

func (p *Patient) Basic() BasicView {
	return BasicView{ID: p.PatientID.String(), Name: p.FullName(), IsActive: p.IsActive}
}

type EmergencyContact struct {
	ID           int64  `db:"id" json:"id"`
	PatientID    int64  `db:"patient_id" json:"patient_id"`
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	Relationship string `db:"relationship" json:"relationship"`
	Phone        string `db:"phone_number" json:"phone_number"`
	IsActive     bool   `db:"is_active" json:"is_active"`
	Timestamps
}

type PatientFilter struct {
	IsActive *bool
	DoctorID *int64
	Search   string
	Page     Page
}

type CreatePatientRequest struct {
	FirstName               string   `json:"first_name" binding:"required,max=100"`
	LastName                string   `json:"last_name" binding:"required,max=100"`
	BirthDate               *Date    `json:"birth_date"`
	Gender                  Gender   `json:"gender" binding:"required,gender"`
	Email                   string   `json:"email" binding:"required,email"`
	Phone                   string   `json:"phone" binding:"omitempty,max=32"`
	Address                 string   `json:"address"`
	City                    string   `json:"city" binding:"omitempty,max=100"`
	BloodType               string   `json:"blood_type" binding:"omitempty,blood_type"`
	Height                  *float64 `json:"height" binding:"omitempty,gt=0"`
	Weight                  *float64 `json:"weight" binding:"omitempty,gt=0"`
	InsuranceProvider       string   `json:"insurance_provider"`
	InsuranceNumber         string   `json:"insurance_number"`
	InsuranceExpirationDate *Date    `json:"insurance_expiration_date"`
}

type UpdatePatientRequest struct {
	FirstName               *string  `json:"first_name" binding:"omitempty,max=100"`
	LastName                *string  `json:"last_name" binding:"omitempty,max=100"`
	BirthDate               *Date    `json:"birth_date"`
	Gender                  *Gender  `json:"gender" binding:"omitempty,gender"`
	Email                   *string  `json:"email" binding:"omitempty,email"`
	Phone                   *string  `json:"phone" binding:"omitempty,max=32"`
	Address                 *string  `json:"address"`
	City                    *string  `json:"city" binding:"omitempty,max=100"`
	BloodType               *string  `json:"blood_type" binding:"omitempty,blood_type"`
	Height                  *float64 `json:"height" binding:"omitempty,gt=0"`
	Weight                  *float64 `json:"weight" binding:"omitempty,gt=0"`
	InsuranceProvider       *string  `json:"insurance_provider"`
	InsuranceNumber         *string  `json:"insurance_number"`
	InsuranceExpirationDate *Date    `json:"insurance_expiration_date"`
}

// PatientGraph is every row a patient owns, directly or through an
// appointment or medical record. The soft-delete cascade works on it.
type PatientGraph struct {
	Patient           *Patient
	Appointments      []*Appointment
	MedicalRecords    []*MedicalRecord
	LabResults        []*LabResult
	Prescriptions     []*Prescription
	Payments          []*Payment
	EmergencyContacts []*EmergencyContact
}

// ForAppointment narrows the graph to the subtree hanging off one
// appointment. The patient and emergency contacts are left out.
func (g *PatientGraph) ForAppointment(appointmentID int64) *PatientGraph {
	sub := &PatientGraph{}
	for _, a := range g.Appointments {
		if a.ID == appointmentID {
			sub.Appointments = append(sub.Appointments, a)
		}
	}
	records := make(map[int64]bool)
	for _, r := range g.MedicalRecords {
		if r.AppointmentID == appointmentID {
			sub.MedicalRecords = append(sub.MedicalRecords, r)
			records[r.ID] = true
		}
	}
	for _, l := range g.LabResults {
		if records[l.MedicalRecordID] {
			sub.LabResults = append(sub.LabResults, l)
		}
	}
	for _, p := range g.Prescriptions {
		if records[p.MedicalRecordID] {
			sub.Prescriptions = append(sub.Prescriptions, p)
		}
	}
	for _, p := range g.Payments {
		if p.AppointmentID != nil && *p.AppointmentID == appointmentID {
			sub.Payments = append(sub.Payments, p)
		}
	}
	return sub
}

// CascadeSet lists the rows whose active flag a cascade flips, by table.
type CascadeSet struct {
	Patients          []int64
	Appointments      []int64
	MedicalRecords    []int64
	LabResults        []int64
	Prescriptions     []int64
	Payments          []int64
	EmergencyContacts []int64
}

func (s CascadeSet) Empty() bool {
	return s.Total() == 0
}

func (s CascadeSet) Total() int {
	return len(s.Patients) + len(s.Appointments) + len(s.MedicalRecords) +
		len(s.LabResults) + len(s.Prescriptions) + len(s.Payments) + len(s.EmergencyContacts)
}

// Counts reports the size of each part, keyed by table name.
func (s CascadeSet) Counts() map[string]int {
	return map[string]int{
		"patients":           len(s.Patients),
		"appointments":       len(s.Appointments),
		"medical_records":    len(s.MedicalRecords),
		"lab_results":        len(s.LabResults),
		"prescriptions":      len(s.Prescriptions),
		"payments":           len(s.Payments),
		"emergency_contacts": len(s.EmergencyContacts),
	}
}
