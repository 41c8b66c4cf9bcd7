package model

import "strconv"

type MedicalRecord struct {
	ID            int64  `db:"id" json:"id"`
	PatientID     int64  `db:"patient_id" json:"patient_id"`
	DoctorID      int64  `db:"doctor_id" json:"doctor_id"`
	AppointmentID int64  `db:"appointment_id" json:"appointment_id"`
	Diagnosis     string `db:"diagnosis" json:"diagnosis"`
	Description   string `db:"description" json:"description"`
	Notes         string `db:"notes" json:"notes"`
	IsActive      bool   `db:"is_active" json:"is_active"`
	Timestamps

	PatientName  string        `db:"patient_name" json:"patient_name,omitempty"`
	LabResults   []*LabResult  `db:"-" json:"lab_results,omitempty"`
	Prescription *Prescription `db:"-" json:"prescription,omitempty"`
}

func (r *MedicalRecord) OwnedBy(doctorID int64) bool {
	return r.DoctorID == doctorID
}

func (r *MedicalRecord) Basic() BasicView {
	return BasicView{ID: strconv.FormatInt(r.ID, 10), Name: r.Diagnosis, IsActive: r.IsActive}
}

type LabResult struct {
	ID              int64  `db:"id" json:"id"`
	MedicalRecordID int64  `db:"medical_record_id" json:"medical_record_id"`
	TestName        string `db:"test_name" json:"test_name"`
	TestDate        Date   `db:"test_date" json:"test_date"`
	Results         string `db:"results" json:"results"`
	Notes           string `db:"notes" json:"notes"`
	IsActive        bool   `db:"is_active" json:"is_active"`
	Timestamps
}

type Prescription struct {
	ID              int64  `db:"id" json:"id"`
	MedicalRecordID int64  `db:"medical_record_id" json:"medical_record_id"`
	Notes           string `db:"notes" json:"notes"`
	IsActive        bool   `db:"is_active" json:"is_active"`
	Timestamps

	Medications []*PrescriptionMedication `db:"-" json:"medications,omitempty"`
}

type PrescriptionMedication struct {
	ID             int64  `db:"id" json:"id"`
	PrescriptionID int64  `db:"prescription_id" json:"prescription_id"`
	MedicationID   int64  `db:"medication_id" json:"medication_id"`
	Dosage         string `db:"dosage" json:"dosage"`
	Frequency      string `db:"frequency" json:"frequency"`
	Duration       string `db:"duration" json:"duration"`
	Instructions   string `db:"instructions" json:"instructions"`
}

type MedicalRecordFilter struct {
	DoctorID  *int64
	PatientID *int64
	Page      Page
}

type LabResultInput struct {
	TestName string `json:"test_name" binding:"required,max=200"`
	TestDate Date   `json:"test_date"`
	Results  string `json:"results"`
	Notes    string `json:"notes"`
}

type PrescriptionMedicationInput struct {
	MedicationID int64  `json:"medication_id" binding:"required,gt=0"`
	Dosage       string `json:"dosage" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type PrescriptionInput struct {
	Notes       string                        `json:"notes"`
	Medications []PrescriptionMedicationInput `json:"medications" binding:"dive"`
}

type CreateMedicalRecordRequest struct {
	AppointmentID string             `json:"appointment_id" binding:"required,uuid"`
	Diagnosis     string             `json:"diagnosis" binding:"required"`
	Description   string             `json:"description"`
	Notes         string             `json:"notes"`
	LabResults    []LabResultInput   `json:"lab_results" binding:"dive"`
	Prescription  *PrescriptionInput `json:"prescription"`
}
