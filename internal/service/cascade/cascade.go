// Package cascade computes which rows a soft delete or reactivation touches.
//
// It works on a fully loaded model.PatientGraph and never talks to storage,
// so the completeness of a cascade can be checked on plain values.
package cascade

import "github.com/jwalitptl/clinic-api/internal/model"

// Plan returns every row of g whose active flag differs from active. Rows
// already in the target state are left out, which makes applying a plan
// twice a no-op.
func Plan(g *model.PatientGraph, active bool) model.CascadeSet {
	var set model.CascadeSet
	if g == nil {
		return set
	}
	if g.Patient != nil && g.Patient.IsActive != active {
		set.Patients = append(set.Patients, g.Patient.ID)
	}
	for _, a := range g.Appointments {
		if a.IsActive != active {
			set.Appointments = append(set.Appointments, a.ID)
		}
	}
	for _, r := range g.MedicalRecords {
		if r.IsActive != active {
			set.MedicalRecords = append(set.MedicalRecords, r.ID)
		}
	}
	for _, l := range g.LabResults {
		if l.IsActive != active {
			set.LabResults = append(set.LabResults, l.ID)
		}
	}
	for _, p := range g.Prescriptions {
		if p.IsActive != active {
			set.Prescriptions = append(set.Prescriptions, p.ID)
		}
	}
	for _, p := range g.Payments {
		if p.IsActive != active {
			set.Payments = append(set.Payments, p.ID)
		}
	}
	for _, c := range g.EmergencyContacts {
		if c.IsActive != active {
			set.EmergencyContacts = append(set.EmergencyContacts, c.ID)
		}
	}
	return set
}

// Apply flips the flags in g in place, mirroring what storage does with the
// same set.
func Apply(g *model.PatientGraph, set model.CascadeSet, active bool) {
	in := func(ids []int64) map[int64]bool {
		m := make(map[int64]bool, len(ids))
		for _, id := range ids {
			m[id] = true
		}
		return m
	}
	if g.Patient != nil && in(set.Patients)[g.Patient.ID] {
		g.Patient.IsActive = active
	}
	appointments := in(set.Appointments)
	for _, a := range g.Appointments {
		if appointments[a.ID] {
			a.IsActive = active
		}
	}
	records := in(set.MedicalRecords)
	for _, r := range g.MedicalRecords {
		if records[r.ID] {
			r.IsActive = active
		}
	}
	labs := in(set.LabResults)
	for _, l := range g.LabResults {
		if labs[l.ID] {
			l.IsActive = active
		}
	}
	prescriptions := in(set.Prescriptions)
	for _, p := range g.Prescriptions {
		if prescriptions[p.ID] {
			p.IsActive = active
		}
	}
	payments := in(set.Payments)
	for _, p := range g.Payments {
		if payments[p.ID] {
			p.IsActive = active
		}
	}
	contacts := in(set.EmergencyContacts)
	for _, c := range g.EmergencyContacts {
		if contacts[c.ID] {
			c.IsActive = active
		}
	}
}
