package api

import (
	"net/http"
	"strings"

	"dentalclinic/m/domain"
)

type catalogResponse struct {
	Treatments []string `json:"treatments"`
}

type catalogRequest struct {
	Name string `json:"name"`
}

func (h *Handler) respondCatalog(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if err := h.db.SelectContext(r.Context(), &names, `SELECT name FROM treatment_catalog ORDER BY id`); err != nil {
		h.respondErr(w, r, domain.Storage("list treatment names", err))
		return
	}
	respondJSON(w, http.StatusOK, catalogResponse{Treatments: names})
}

func (h *Handler) listTreatmentNames(w http.ResponseWriter, r *http.Request) {
	h.respondCatalog(w, r)
}

// addTreatmentName appends a name; adding one already listed is a no-op.
func (h *Handler) addTreatmentName(w http.ResponseWriter, r *http.Request) {
	name, ok := catalogName(w, r)
	if !ok {
		return
	}
	if _, err := h.db.ExecContext(r.Context(), h.db.Rebind(`INSERT INTO treatment_catalog (name) VALUES (?) ON CONFLICT (name) DO NOTHING`), name); err != nil {
		h.respondErr(w, r, domain.Storage("add treatment name", err))
		return
	}
	h.respondCatalog(w, r)
}

func (h *Handler) removeTreatmentName(w http.ResponseWriter, r *http.Request) {
	name, ok := catalogName(w, r)
	if !ok {
		return
	}
	if _, err := h.db.ExecContext(r.Context(), h.db.Rebind(`DELETE FROM treatment_catalog WHERE name = ?`), name); err != nil {
		h.respondErr(w, r, domain.Storage("remove treatment name", err))
		return
	}
	h.respondCatalog(w, r)
}

func catalogName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req catalogRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid treatment name")
		return "", false
	}
	return name, true
}
