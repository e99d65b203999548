package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dentalclinic/m/internal/odontogram"
)

// latestOdontogram answers with the newest version, or null when the patient
// has none yet.
func (h *Handler) latestOdontogram(w http.ResponseWriter, r *http.Request) {
	latest, err := h.odontograms.Latest(r.Context(), patientFrom(r).ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, latest)
}

// createOdontogramVersion serves both POST and PUT. Neither edits in place.
func (h *Handler) createOdontogramVersion(w http.ResponseWriter, r *http.Request) {
	var in odontogram.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	patientID := patientFrom(r).ID
	version, err := h.odontograms.CreateVersion(r.Context(), patientID, in)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	saved, err := h.odontograms.Version(r.Context(), patientID, version)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (h *Handler) listOdontogramVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.odontograms.ListVersions(r.Context(), patientFrom(r).ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]int{"versions": versions})
}

func (h *Handler) getOdontogramVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		respondError(w, http.StatusBadRequest, "invalid version")
		return
	}
	doc, err := h.odontograms.Version(r.Context(), patientFrom(r).ID, version)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}
