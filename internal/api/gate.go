package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"dentalclinic/m/domain"
)

const patientColumns = `id, user_id, name, lastname, dni, birthdate, tel, email, address, occupation, affiliate_number, holder, created_at`

// requirePatient resolves {patientID} to a patient owned by the caller. Any
// other patient, existing or not, is reported as not found.
func (h *Handler) requirePatient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "patientID")
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid patient id")
			return
		}
		var patient domain.Patient
		err := h.db.GetContext(r.Context(), &patient, h.db.Rebind(`SELECT `+patientColumns+` FROM patients WHERE id = ? AND user_id = ?`), id, userIDFrom(r))
		if errors.Is(err, sql.ErrNoRows) {
			h.respondErr(w, r, domain.NotFound("patient"))
			return
		}
		if err != nil {
			h.respondErr(w, r, domain.Storage("load patient", err))
			return
		}
		ctx := context.WithValue(r.Context(), ctxPatient, &patient)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireBudget resolves {budgetID} to a budget of the patient resolved by
// requirePatient.
func (h *Handler) requireBudget(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "budgetID")
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid budget id")
			return
		}
		var found int64
		err := h.db.GetContext(r.Context(), &found, h.db.Rebind(`SELECT id FROM treatment_budgets WHERE id = ? AND patient_id = ?`), id, patientFrom(r).ID)
		if errors.Is(err, sql.ErrNoRows) {
			h.respondErr(w, r, domain.NotFound("budget"))
			return
		}
		if err != nil {
			h.respondErr(w, r, domain.Storage("load budget", err))
			return
		}
		ctx := context.WithValue(r.Context(), ctxBudget, found)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func patientFrom(r *http.Request) *domain.Patient {
	return r.Context().Value(ctxPatient).(*domain.Patient)
}

func budgetIDFrom(r *http.Request) int64 {
	return r.Context().Value(ctxBudget).(int64)
}
