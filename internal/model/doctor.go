package model

import "strconv"

type Specialization struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

type Doctor struct {
	ID                int64  `db:"id" json:"id"`
	UserID            int64  `db:"user_id" json:"user_id"`
	SpecializationID  *int64 `db:"specialization_id" json:"specialization_id,omitempty"`
	LicenseNumber     string `db:"license_number" json:"license_number"`
	YearsOfExperience int    `db:"years_of_experience" json:"years_of_experience"`
	Qualifications    string `db:"qualifications" json:"qualifications"`
	Bio               string `db:"bio" json:"bio"`
	Timestamps

	FirstName      string `db:"first_name" json:"first_name"`
	LastName       string `db:"last_name" json:"last_name"`
	Email          string `db:"email" json:"email"`
	IsActive       bool   `db:"is_active" json:"is_active"`
	Specialization string `db:"specialization_name" json:"specialization,omitempty"`
}

func (d *Doctor) FullName() string {
	return fullName(d.FirstName, d.LastName)
}

func (d *Doctor) OwnedBy(doctorID int64) bool {
	return d.ID == doctorID
}

func (d *Doctor) Basic() BasicView {
	return BasicView{ID: strconv.FormatInt(d.ID, 10), Name: d.FullName(), IsActive: d.IsActive}
}

type Medication struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	DefaultDosage string `db:"default_dosage" json:"default_dosage"`
	Description   string `db:"description" json:"description"`
	IsActive      bool   `db:"is_active" json:"is_active"`
	Timestamps
}

// Medications belong to nobody; own-scope never matches them.
func (m *Medication) OwnedBy(int64) bool {
	return false
}

func (m *Medication) Basic() BasicView {
	return BasicView{ID: strconv.FormatInt(m.ID, 10), Name: m.Name, IsActive: m.IsActive}
}
