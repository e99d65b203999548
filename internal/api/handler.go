package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"dentalclinic/m/internal/clinical"
	"dentalclinic/m/internal/config"
	"dentalclinic/m/internal/ledger"
	"dentalclinic/m/internal/metrics"
	"dentalclinic/m/internal/odontogram"
)

type ctxKey string

const (
	ctxUserID  ctxKey = "userID"
	ctxPatient ctxKey = "patient"
	ctxBudget  ctxKey = "budget"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db          *sqlx.DB
	secret      string
	origins     []string
	log         *zap.Logger
	metrics     *metrics.Metrics
	ledger      *ledger.Service
	odontograms *odontogram.Store
	clinical    *clinical.Service
	now         func() time.Time
}

// New constructs a Handler and the services behind it.
func New(db *sqlx.DB, cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		db:          db,
		secret:      cfg.Secret,
		origins:     cfg.CORSOrigins,
		log:         log,
		metrics:     m,
		ledger:      ledger.New(db, log, m),
		odontograms: odontogram.New(db, log, m),
		clinical:    clinical.New(db, log, m),
		now:         time.Now,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Get("/profile", h.getProfile)
			protected.Put("/profile", h.updateProfile)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/patients", func(r chi.Router) {
			r.Get("/", h.listPatients)
			r.Post("/", h.savePatient)
			r.Post("/complete", h.saveCompletePatient)

			r.Route("/{patientID}", func(r chi.Router) {
				r.Use(h.requirePatient)
				r.Get("/", h.getPatient)
				r.Put("/", h.updatePatient)
				r.Get("/anamnesis", h.getAnamnesis)
				r.Put("/anamnesis", h.saveAnamnesis)
				r.Get("/consent", h.getConsent)
				r.Put("/consent", h.updateConsent)
				r.Get("/treatments", h.listTreatments)
				r.Put("/treatments", h.replaceTreatments)

				r.Route("/odontograma", func(r chi.Router) {
					r.Get("/", h.latestOdontogram)
					r.Post("/", h.createOdontogramVersion)
					r.Put("/", h.createOdontogramVersion)
					r.Get("/versions", h.listOdontogramVersions)
					r.Get("/{version}", h.getOdontogramVersion)
				})

				r.Route("/budgets", func(r chi.Router) {
					r.Get("/", h.listBudgets)
					r.Post("/", h.createBudget)

					r.Route("/{budgetID}", func(r chi.Router) {
						r.Use(h.requireBudget)
						r.Get("/", h.getBudget)
						r.Put("/", h.updateBudget)
						r.Delete("/", h.deleteBudget)
						r.Get("/payments", h.listPayments)
						r.Post("/payments", h.createPayment)
						r.Get("/payments/{paymentID}", h.getPayment)
						r.Put("/payments/{paymentID}", h.updatePayment)
						r.Delete("/payments/{paymentID}", h.deletePayment)
					})
				})
			})
		})

		pr.Route("/appointments", func(r chi.Router) {
			r.Get("/today", h.todayAppointments)
			r.Get("/overdue", h.overdueAppointments)
			r.Get("/pending", h.pendingAppointments)
			r.Get("/pending/total", h.pendingAppointmentsTotal)
			r.Post("/", h.createAppointment)
			r.Get("/{id}", h.getAppointment)
			r.Put("/{id}", h.updateAppointment)
			r.Put("/{id}/complete", h.completeAppointment)
			r.Delete("/{id}", h.deleteAppointment)
		})

		pr.Route("/treatment-names", func(r chi.Router) {
			r.Get("/", h.listTreatmentNames)
			r.Post("/", h.addTreatmentName)
			r.Delete("/", h.removeTreatmentName)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func userIDFrom(r *http.Request) int64 {
	return r.Context().Value(ctxUserID).(int64)
}

// decodeJSON accepts unknown fields; the web client posts whole form state.
func decodeJSON(r *http.Request, dest interface{}) error {
	return json.NewDecoder(r.Body).Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}
