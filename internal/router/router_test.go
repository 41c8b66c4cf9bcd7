package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/service/medical"
	"github.com/jwalitptl/clinic-api/internal/service/medication"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	jwtauth "github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const password = "s3cret-pass"

var clock = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type testServer struct {
	t        *testing.T
	store    *memory.Store
	engine   *gin.Engine
	doctor   model.Doctor
	patient1 *model.Patient
	patient2 *model.Patient
	tokens   map[model.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	store.Now = func() time.Time { return clock }

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	store.AddUser(model.User{Email: "boss@clinic.test", PasswordHash: hash, Role: model.RoleManager, IsActive: true})
	store.AddUser(model.User{Email: "desk@clinic.test", PasswordHash: hash, Role: model.RoleSecretary, IsActive: true})
	doc := store.AddUser(model.User{Email: "house@clinic.test", FirstName: "Greg", LastName: "House", PasswordHash: hash, Role: model.RoleDoctor, IsActive: true})

	s := &testServer{
		t:        t,
		store:    store,
		doctor:   store.AddDoctor(model.Doctor{UserID: doc.ID, LicenseNumber: "L-1"}),
		patient1: &model.Patient{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", IsActive: true},
		patient2: &model.Patient{FirstName: "Bo", LastName: "Kim", Email: "bo@example.com", IsActive: true},
		tokens:   map[model.Role]string{},
	}
	require.NoError(t, store.Patients().Create(ctx, s.patient1))
	require.NoError(t, store.Patients().Create(ctx, s.patient2))

	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	auditor := audit.NewService(store.Audit(), nil)
	events := event.NewService(store.Outbox())

	cfg := &config.Config{
		Server:     config.ServerConfig{Mode: gin.TestMode},
		Pagination: config.PaginationConfig{DefaultPageSize: 10, MaxPageSize: 50},
		Metrics:    config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	r := NewRouter(cfg, Services{
		Auth: auth.NewService(store.Users(), store.Doctors(),
			jwtauth.NewJWTService("test-secret", "clinic-api", time.Hour), hasher, auditor),
		Appointments: appointment.NewService(appointment.Deps{
			Tx:           store.Transactor(),
			Appointments: store.Appointments(),
			Payments:     store.Payments(),
			Patients:     store.Patients(),
			Doctors:      store.Doctors(),
			SoftDelete:   store.SoftDelete(),
			Events:       events,
			Auditor:      auditor,
			Metrics:      m,
		}, appointment.Options{
			Checker:  appointment.Checker{Mode: appointment.ModeOverlap},
			Location: time.UTC,
			Now:      func() time.Time { return clock },
		}),
		Patients:    patient.NewService(store.Transactor(), store.Patients(), store.SoftDelete(), events, auditor, m),
		Medical:     medical.NewService(store.Transactor(), store.MedicalRecords(), store.Appointments(), store.Medications(), auditor),
		Billing:     billing.NewService(store.Transactor(), store.Payments(), store.Appointments(), auditor),
		Doctors:     doctor.NewService(store.Doctors()),
		Medications: medication.NewService(store.Medications()),
		PatientRepo: store.Patients(),
		DB:          okPinger{},
		Gatherer:    reg,
		Metrics:     m,
	})
	r.Setup()
	s.engine = r.Engine()

	s.tokens[model.RoleManager] = s.login("boss@clinic.test")
	s.tokens[model.RoleSecretary] = s.login("desk@clinic.test")
	s.tokens[model.RoleDoctor] = s.login("house@clinic.test")
	return s
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var resp model.LoginResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &resp))
	require.NotEmpty(s.t, resp.AccessToken)
	return resp.AccessToken
}

func (s *testServer) book(role model.Role, p *model.Patient, hhmm string, amount interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/v1/appointments", s.tokens[role], gin.H{
		"patient_id":       p.PatientID.String(),
		"doctor_id":        s.doctor.ID,
		"appointment_date": "2030-01-02",
		"appointment_time": hhmm,
		"duration":         30,
		"billing_amount":   amount,
		"billing_method":   "Credit Card",
	})
}

func (s *testServer) bookOK(p *model.Patient, hhmm string) appointment.CreateResult {
	s.t.Helper()
	w, env := s.book(model.RoleSecretary, p, hhmm, "150.00")
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var res appointment.CreateResult
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	require.NotNil(s.t, res.Appointment)
	require.NotNil(s.t, res.Payment)
	return res
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodGet, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", env.Status)

	w, env = s.do(http.MethodGet, "/api/v1/auth/me", s.tokens[model.RoleDoctor], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "doctor", me["role"])
	assert.EqualValues(t, s.doctor.ID, me["doctor_profile_id"])
}

func TestCreateAppointment_DoctorConflict(t *testing.T) {
	s := newTestServer(t)
	s.bookOK(s.patient1, "10:00")

	w, env := s.book(model.RoleSecretary, s.patient2, "10:15", "90")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Doctor already has an appointment at this time", env.Errors["appointment_time"])
	assert.Equal(t, "doctor", env.Errors["conflict"])
	assert.Equal(t, 1, s.store.AppointmentCount())

	w, _ = s.book(model.RoleSecretary, s.patient2, "10:30", "90")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateAppointment_BillingValidation(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]struct {
		amount interface{}
		want   string
	}{
		"missing":  {nil, "Billing amount is required."},
		"garbage":  {"twelve", "Invalid billing amount format."},
		"negative": {"-5", "Billing amount must be greater than zero."},
		"zero":     {0, "Billing amount must be greater than zero."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w, env := s.book(model.RoleSecretary, s.patient1, "10:00", tc.amount)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.want, env.Errors["billing_amount"])
		})
	}
	assert.Zero(t, s.store.AppointmentCount())
}

func TestCancelAppointment_FailsPayment(t *testing.T) {
	s := newTestServer(t)
	res := s.bookOK(s.patient1, "10:00")
	path := "/api/v1/appointments/" + res.Appointment.AppointmentID.String()

	w, env := s.do(http.MethodPost, path+"/cancel", s.tokens[model.RoleSecretary], nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out model.TransitionResult
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, model.AppointmentStatusCanceled, out.Status)
	require.NotNil(t, out.PaymentStatus)
	assert.Equal(t, model.PaymentStatusFailed, *out.PaymentStatus)

	stored, ok := s.store.Payment(res.Payment.ID)
	require.True(t, ok)
	assert.Equal(t, model.PaymentStatusFailed, stored.Status)

	w, _ = s.do(http.MethodPost, path+"/complete", s.tokens[model.RoleSecretary], nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAppointment_IgnoresStatus(t *testing.T) {
	s := newTestServer(t)
	res := s.bookOK(s.patient1, "10:00")
	path := "/api/v1/appointments/" + res.Appointment.AppointmentID.String()

	w, env := s.do(http.MethodPatch, path, s.tokens[model.RoleSecretary], gin.H{
		"status": "completed",
		"notes":  "bring x-rays",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var apt model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, "bring x-rays", apt.Notes)

	stored, ok := s.store.Payment(res.Payment.ID)
	require.True(t, ok)
	assert.Equal(t, model.PaymentStatusPending, stored.Status)
}

func TestListPatients_ProjectionByRole(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodGet, "/api/v1/patients", s.tokens[model.RoleSecretary], nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var basic []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &basic))
	require.Len(t, basic, 2)
	assert.Len(t, basic[0], 3)
	assert.Contains(t, basic[0], "name")
	assert.NotContains(t, basic[0], "email")

	w, env = s.do(http.MethodGet, "/api/v1/patients", s.tokens[model.RoleManager], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var full []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &full))
	require.Len(t, full, 2)
	assert.Contains(t, full[0], "email")

	// The doctor has no appointments yet, so no patients are theirs.
	w, env = s.do(http.MethodGet, "/api/v1/patients", s.tokens[model.RoleDoctor], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var own []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &own))
	assert.Empty(t, own)
}

func TestDeactivatePatient_Cascades(t *testing.T) {
	s := newTestServer(t)
	res := s.bookOK(s.patient1, "10:00")

	w, env := s.do(http.MethodDelete, "/api/v1/patients/"+s.patient1.PatientID.String(), s.tokens[model.RoleManager], nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		IsActive bool           `json:"is_active"`
		Affected map[string]int `json:"affected"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.False(t, out.IsActive)
	assert.Equal(t, 1, out.Affected["patients"])
	assert.Equal(t, 1, out.Affected["appointments"])
	assert.Equal(t, 1, out.Affected["payments"])

	p, _ := s.store.Patient(s.patient1.ID)
	assert.False(t, p.IsActive)
	apt, _ := s.store.Appointment(res.Appointment.ID)
	assert.False(t, apt.IsActive)
	pay, _ := s.store.Payment(res.Payment.ID)
	assert.False(t, pay.IsActive)

	w, env = s.do(http.MethodPut, "/api/v1/patients/"+s.patient1.PatientID.String(), s.tokens[model.RoleManager], gin.H{"city": "Haifa"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot update inactive patient", env.Message)

	w, _ = s.do(http.MethodPost, "/api/v1/patients/"+s.patient1.PatientID.String()+"/reactivate", s.tokens[model.RoleManager], nil)
	require.Equal(t, http.StatusOK, w.Code)
	apt, _ = s.store.Appointment(res.Appointment.ID)
	assert.True(t, apt.IsActive)
}
