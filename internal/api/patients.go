package api

import (
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/clinical"
	"dentalclinic/m/internal/validate"
)

type pagination struct {
	CurrentPage   int `json:"currentPage"`
	PageSize      int `json:"pageSize"`
	TotalPatients int `json:"totalPatients"`
	TotalPages    int `json:"totalPages"`
}

type patientPage struct {
	Data       []domain.Patient `json:"data"`
	Pagination pagination       `json:"pagination"`
}

func (h *Handler) listPatients(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	where := ` WHERE user_id = ?`
	args := []any{userIDFrom(r)}
	if search != "" {
		like := "%" + search + "%"
		where += ` AND (name LIKE ? OR lastname LIKE ? OR dni LIKE ?)`
		args = append(args, like, like, like)
	}

	var total int
	if err := h.db.GetContext(r.Context(), &total, h.db.Rebind(`SELECT COUNT(*) FROM patients`+where), args...); err != nil {
		h.respondErr(w, r, domain.Storage("count patients", err))
		return
	}

	patients := []domain.Patient{}
	query := `SELECT ` + patientColumns + ` FROM patients` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	if err := h.db.SelectContext(r.Context(), &patients, h.db.Rebind(query), append(args, pageSize, (page-1)*pageSize)...); err != nil {
		h.respondErr(w, r, domain.Storage("list patients", err))
		return
	}

	respondJSON(w, http.StatusOK, patientPage{
		Data: patients,
		Pagination: pagination{
			CurrentPage:   page,
			PageSize:      pageSize,
			TotalPatients: total,
			TotalPages:    int(math.Ceil(float64(total) / float64(pageSize))),
		},
	})
}

func (h *Handler) getPatient(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, patientFrom(r))
}

type patientUpdateRequest struct {
	Tel             *string `json:"tel"`
	Email           *string `json:"email"`
	Address         *string `json:"address"`
	Occupation      *string `json:"occupation"`
	AffiliateNumber *string `json:"affiliate_number"`
	Holder          *bool   `json:"holder"`
}

// updatePatient changes contact details only; identity fields stay as
// registered.
func (h *Handler) updatePatient(w http.ResponseWriter, r *http.Request) {
	var req patientUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if req.Tel != nil {
		add("tel", *req.Tel)
	}
	if req.Email != nil {
		add("email", *req.Email)
	}
	if req.Address != nil {
		add("address", *req.Address)
	}
	if req.Occupation != nil {
		add("occupation", *req.Occupation)
	}
	if req.AffiliateNumber != nil {
		add("affiliate_number", *req.AffiliateNumber)
	}
	if req.Holder != nil {
		add("holder", *req.Holder)
	}
	if len(sets) == 0 {
		respondError(w, http.StatusBadRequest, "no valid fields to update")
		return
	}

	args = append(args, patientFrom(r).ID)
	if _, err := h.db.ExecContext(r.Context(), h.db.Rebind(`UPDATE patients SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...); err != nil {
		h.respondErr(w, r, domain.Storage("update patient", err))
		return
	}
	respondMessage(w, http.StatusOK, "patient updated")
}

type savePatientRequest struct {
	clinical.PatientData
	PatientID int64 `json:"patientId"`
}

type savePatientResponse struct {
	Data  domain.Patient `json:"data"`
	IsNew bool           `json:"isNew"`
}

// savePatient creates a patient, or rewrites one the caller owns when
// patientId is set.
func (h *Handler) savePatient(w http.ResponseWriter, r *http.Request) {
	var req savePatientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Normalize()
	if err := validate.Struct(req.PatientData); err != nil {
		h.respondErr(w, r, err)
		return
	}

	uid := userIDFrom(r)
	p := req.Patient(uid)
	if req.PatientID == 0 {
		err := h.db.QueryRowxContext(r.Context(), h.db.Rebind(`INSERT INTO patients (user_id, name, lastname, dni, birthdate, tel, email, address, occupation, affiliate_number, holder) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			uid, p.Name, p.Lastname, p.DNI, p.Birthdate, p.Tel, p.Email, p.Address, p.Occupation, p.AffiliateNumber, p.Holder).Scan(&p.ID)
		if err != nil {
			h.respondErr(w, r, domain.Storage("insert patient", err))
			return
		}
		h.log.Info("patient created", zap.Int64("user_id", uid), zap.Int64("patient_id", p.ID))
		respondJSON(w, http.StatusCreated, savePatientResponse{Data: p, IsNew: true})
		return
	}

	res, err := h.db.ExecContext(r.Context(), h.db.Rebind(`UPDATE patients SET name = ?, lastname = ?, dni = ?, birthdate = ?, tel = ?, email = ?, address = ?, occupation = ?, affiliate_number = ?, holder = ? WHERE id = ? AND user_id = ?`),
		p.Name, p.Lastname, p.DNI, p.Birthdate, p.Tel, p.Email, p.Address, p.Occupation, p.AffiliateNumber, p.Holder, req.PatientID, uid)
	if err != nil {
		h.respondErr(w, r, domain.Storage("update patient", err))
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		h.respondErr(w, r, domain.NotFound("patient"))
		return
	}
	p.ID = req.PatientID
	respondJSON(w, http.StatusOK, savePatientResponse{Data: p, IsNew: false})
}

type completePatientResponse struct {
	Patient *domain.Patient `json:"patient"`
	Message string          `json:"message"`
}

func (h *Handler) saveCompletePatient(w http.ResponseWriter, r *http.Request) {
	var req clinical.CompletePatientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	patient, err := h.clinical.SaveCompletePatient(r.Context(), userIDFrom(r), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, completePatientResponse{
		Patient: patient,
		Message: "patient " + patient.Name + " " + patient.Lastname + " saved with clinical record",
	})
}

type anamnesisResponse struct {
	Patient   *domain.Patient   `json:"patient"`
	Anamnesis *domain.Anamnesis `json:"anamnesis"`
}

func (h *Handler) getAnamnesis(w http.ResponseWriter, r *http.Request) {
	patient := patientFrom(r)
	var anamnesis domain.Anamnesis
	err := h.db.GetContext(r.Context(), &anamnesis, h.db.Rebind(`SELECT * FROM anamnesis_answers WHERE patient_id = ?`), patient.ID)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSON(w, http.StatusOK, anamnesisResponse{Patient: patient})
		return
	}
	if err != nil {
		h.respondErr(w, r, domain.Storage("load anamnesis", err))
		return
	}
	respondJSON(w, http.StatusOK, anamnesisResponse{Patient: patient, Anamnesis: &anamnesis})
}

func (h *Handler) saveAnamnesis(w http.ResponseWriter, r *http.Request) {
	var req clinical.AnamnesisData
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	anamnesis, err := h.clinical.SaveAnamnesis(r.Context(), patientFrom(r).ID, req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, anamnesis)
}

func (h *Handler) getConsent(w http.ResponseWriter, r *http.Request) {
	var consent domain.Consent
	err := h.db.GetContext(r.Context(), &consent, h.db.Rebind(`SELECT id, patient_id, text, datetime, accepted FROM consents WHERE patient_id = ?`), patientFrom(r).ID)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		h.respondErr(w, r, domain.Storage("load consent", err))
		return
	}
	respondJSON(w, http.StatusOK, consent)
}

type consentRequest struct {
	Text     string `json:"text" validate:"required"`
	Datetime string `json:"datetime" validate:"required"`
	Accepted bool   `json:"accepted"`
}

// updateConsent stores the consent as given; the datetime is kept verbatim.
func (h *Handler) updateConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	res, err := h.db.ExecContext(r.Context(), h.db.Rebind(`UPDATE consents SET text = ?, datetime = ?, accepted = ? WHERE patient_id = ?`),
		req.Text, req.Datetime, req.Accepted, patientFrom(r).ID)
	if err != nil {
		h.respondErr(w, r, domain.Storage("update consent", err))
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		h.respondErr(w, r, domain.NotFound("consent"))
		return
	}
	respondMessage(w, http.StatusOK, "consent updated")
}

func (h *Handler) listTreatments(w http.ResponseWriter, r *http.Request) {
	treatments := []domain.Treatment{}
	err := h.db.SelectContext(r.Context(), &treatments, h.db.Rebind(`SELECT id, patient_id, date, code, tooth_elements, faces, observations FROM treatments WHERE patient_id = ? ORDER BY date DESC, id DESC`), patientFrom(r).ID)
	if err != nil {
		h.respondErr(w, r, domain.Storage("list treatments", err))
		return
	}
	respondJSON(w, http.StatusOK, treatments)
}

func (h *Handler) replaceTreatments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Treatments []clinical.TreatmentInput `json:"treatments"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.clinical.ReplaceTreatments(r.Context(), patientFrom(r).ID, req.Treatments); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "treatments updated")
}
