package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// graph builds a patient with two appointments, one medical record carrying
// a lab result and a prescription, and one payment.
func graph() *model.PatientGraph {
	appointmentID := int64(10)
	return &model.PatientGraph{
		Patient: &model.Patient{ID: 1, IsActive: true},
		Appointments: []*model.Appointment{
			{ID: 10, PatientID: 1, IsActive: true},
			{ID: 11, PatientID: 1, IsActive: true},
		},
		MedicalRecords: []*model.MedicalRecord{{ID: 20, PatientID: 1, AppointmentID: 10, IsActive: true}},
		LabResults:     []*model.LabResult{{ID: 30, MedicalRecordID: 20, IsActive: true}},
		Prescriptions:  []*model.Prescription{{ID: 40, MedicalRecordID: 20, IsActive: true}},
		Payments:       []*model.Payment{{ID: 50, PatientID: 1, AppointmentID: &appointmentID, IsActive: true}},
		EmergencyContacts: []*model.EmergencyContact{
			{ID: 60, PatientID: 1, IsActive: true},
		},
	}
}

func allActive(g *model.PatientGraph) []bool {
	flags := []bool{g.Patient.IsActive}
	for _, a := range g.Appointments {
		flags = append(flags, a.IsActive)
	}
	for _, r := range g.MedicalRecords {
		flags = append(flags, r.IsActive)
	}
	for _, l := range g.LabResults {
		flags = append(flags, l.IsActive)
	}
	for _, p := range g.Prescriptions {
		flags = append(flags, p.IsActive)
	}
	return flags
}

func TestPlan_DeactivateCoversWholeGraph(t *testing.T) {
	g := graph()
	set := Plan(g, false)

	assert.Equal(t, []int64{1}, set.Patients)
	assert.Equal(t, []int64{10, 11}, set.Appointments)
	assert.Equal(t, []int64{20}, set.MedicalRecords)
	assert.Equal(t, []int64{30}, set.LabResults)
	assert.Equal(t, []int64{40}, set.Prescriptions)
	assert.Equal(t, []int64{50}, set.Payments)
	assert.Equal(t, []int64{60}, set.EmergencyContacts)
	assert.Equal(t, 8, set.Total())
}

func TestPlan_RoundTrip(t *testing.T) {
	g := graph()

	Apply(g, Plan(g, false), false)
	assert.Equal(t, []bool{false, false, false, false, false, false}, allActive(g))

	// second deactivation has nothing left to do
	assert.True(t, Plan(g, false).Empty())

	Apply(g, Plan(g, true), true)
	assert.Equal(t, []bool{true, true, true, true, true, true}, allActive(g))
	assert.True(t, Plan(g, true).Empty())
}

func TestPlan_AppointmentSubtree(t *testing.T) {
	g := graph()
	set := Plan(g.ForAppointment(10), false)

	assert.Empty(t, set.Patients)
	assert.Equal(t, []int64{10}, set.Appointments)
	assert.Equal(t, []int64{20}, set.MedicalRecords)
	assert.Equal(t, []int64{30}, set.LabResults)
	assert.Equal(t, []int64{40}, set.Prescriptions)
	assert.Equal(t, []int64{50}, set.Payments)
	assert.Empty(t, set.EmergencyContacts)

	other := Plan(g.ForAppointment(11), false)
	assert.Equal(t, []int64{11}, other.Appointments)
	assert.Empty(t, other.MedicalRecords)
	assert.Empty(t, other.Payments)
}

func TestPlan_Nil(t *testing.T) {
	assert.True(t, Plan(nil, false).Empty())
}
