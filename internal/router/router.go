package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler"
	appointmenthandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authhandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	billinghandler "github.com/jwalitptl/clinic-api/internal/handler/billing"
	doctorhandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	medicalhandler "github.com/jwalitptl/clinic-api/internal/handler/medical"
	medicationhandler "github.com/jwalitptl/clinic-api/internal/handler/medication"
	patienthandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/medical"
	"github.com/jwalitptl/clinic-api/internal/service/medication"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

const requestTimeout = 30 * time.Second

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Services is everything the route table hands requests to.
type Services struct {
	Auth         *auth.Service
	Appointments *appointment.Service
	Patients     *patient.Service
	Medical      *medical.Service
	Billing      *billing.Service
	Doctors      doctor.Service
	Medications  medication.Service
	PatientRepo  repository.PatientRepository

	DB       health.Pinger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	authH   *authhandler.Handler
	health  *health.Handler
	metrics *promhandler.Handler
	domain  []Handler
	cfg     *config.Config
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	validator.RegisterGin()

	pager := handler.Pager{
		DefaultSize: cfg.Pagination.DefaultPageSize,
		MaxSize:     cfg.Pagination.MaxPageSize,
	}
	if svc.Metrics == nil {
		svc.Metrics = metrics.NewNop()
	}

	engine := gin.New()
	r := &Router{
		engine: engine,
		auth:   middleware.NewAuthMiddleware(svc.Auth),
		authH:  authhandler.NewHandler(svc.Auth),
		health: health.NewHandler(svc.DB),
		domain: []Handler{
			appointmenthandler.NewHandler(svc.Appointments, pager),
			patienthandler.NewHandler(svc.Patients, pager),
			medicalhandler.NewHandler(svc.Medical, svc.PatientRepo, pager),
			billinghandler.NewHandler(svc.Billing, pager),
			doctorhandler.NewHandler(svc.Doctors, pager),
			medicationhandler.NewHandler(svc.Medications, pager),
		},
		cfg: cfg,
	}
	if cfg.Metrics.Enabled && svc.Gatherer != nil {
		r.metrics = promhandler.New(svc.Gatherer)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(svc.Metrics),
		middleware.CORS(cfg.CORS),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.DefaultMaxBodySize),
		middleware.Timeout(requestTimeout),
	)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	if r.metrics != nil {
		r.metrics.RegisterRoutes(r.engine, r.cfg.Metrics.Path)
	}

	api := r.engine.Group("/api/v1")
	r.authH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.authH.RegisterProtectedRoutes(protected)
	for _, h := range r.domain {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
