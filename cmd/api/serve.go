package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
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

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer db.Close()

	if migrate {
		applied, err := postgres.NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		log.Info().Int("applied", applied).Msg("migrations complete")
	}

	sink, err := audit.NewSink()
	if err != nil {
		return fmt.Errorf("failed to build audit sink: %w", err)
	}
	defer func() { _ = sink.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, reg)

	services, err := buildServices(cfg, db, sink, m)
	if err != nil {
		return err
	}
	services.Gatherer = reg

	r := router.NewRouter(cfg, services)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server exited properly")
	return nil
}

func buildServices(cfg *config.Config, db *sqlx.DB, sink *zap.Logger, m *metrics.Metrics) (router.Services, error) {
	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return router.Services{}, fmt.Errorf("invalid scheduling timezone %q: %w", cfg.Scheduling.Timezone, err)
	}

	tx := postgres.NewTxManager(db)
	appointments := postgres.NewAppointmentRepository(db)
	payments := postgres.NewPaymentRepository(db)
	patients := postgres.NewPatientRepository(db)
	doctors := postgres.NewDoctorRepository(db)
	medications := postgres.NewMedicationRepository(db)
	softDelete := postgres.NewSoftDeleteRepository(db)

	auditor := audit.NewService(postgres.NewAuditRepository(db), sink)
	events := event.NewService(postgres.NewOutboxRepository(db))
	jwtSvc := jwtauth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	return router.Services{
		Auth: auth.NewService(postgres.NewUserRepository(db), doctors, jwtSvc,
			security.NewBcryptHasher(bcrypt.DefaultCost), auditor),
		Appointments: appointment.NewService(appointment.Deps{
			Tx:           tx,
			Appointments: appointments,
			Payments:     payments,
			Patients:     patients,
			Doctors:      doctors,
			SoftDelete:   softDelete,
			Events:       events,
			Auditor:      auditor,
			Metrics:      m,
		}, appointment.Options{
			Checker:         appointment.NewChecker(cfg.Scheduling),
			DefaultDuration: cfg.Scheduling.DefaultDuration,
			Location:        loc,
		}),
		Patients:    patient.NewService(tx, patients, softDelete, events, auditor, m),
		Medical:     medical.NewService(tx, postgres.NewMedicalRecordRepository(db), appointments, medications, auditor),
		Billing:     billing.NewService(tx, payments, appointments, auditor),
		Doctors:     doctor.NewService(doctors),
		Medications: medication.NewService(medications),
		PatientRepo: patients,
		DB:          db,
		Metrics:     m,
	}, nil
}
