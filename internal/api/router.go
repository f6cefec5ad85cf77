package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/clinic-scheduling/internal/auth"
	"github.com/clinicore/clinic-scheduling/internal/observability/metrics"
)

type RouterConfig struct {
	Service SchedulingService
	Gate    *auth.Gate
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Metrics *metrics.SchedulingMetrics
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}

	// Health and metrics stay outside the role gate.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	gate := cfg.Gate
	svc := cfg.Service

	r.Get("/available-slots", gate.Require(auth.OpViewAvailability, getAvailableSlotsHandler(svc)))
	r.Get("/doctors", gate.Require(auth.OpViewDoctors, listDoctorsHandler(svc)))

	r.Post("/appointments", gate.Require(auth.OpBookAppointment, createAppointmentHandler(svc)))
	r.Get("/appointments", gate.Require(auth.OpViewAppointments, listAppointmentsHandler(svc)))
	r.Get("/appointments/{id}", gate.Require(auth.OpViewAppointments, getAppointmentHandler(svc)))
	r.Patch("/appointments/{id}", gate.Require(auth.OpEditAppointment, updateAppointmentHandler(svc)))
	r.Patch("/appointments/{id}/status", gate.Require(auth.OpEditAppointment, updateAppointmentStatusHandler(svc)))
	r.Delete("/appointments/{id}", gate.Require(auth.OpDeleteAppointment, deleteAppointmentHandler(svc)))

	r.Get("/patients/{patientId}/appointments", gate.Require(auth.OpViewAppointments, listAppointmentsByPatientHandler(svc)))
	r.Get("/doctors/{doctorId}/appointments", gate.Require(auth.OpViewAppointments, listAppointmentsByDoctorHandler(svc)))

	return r
}
