package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"dentalclinic/m/domain"
)

const shiftColumns = `id, user_id, name, datetime, dni, type, status`

// Appointment datetimes are stored as "YYYY-MM-DD HH:MM:SS" text in the
// practitioner's wall clock and compared as text.
const dayLayout = "2006-01-02"

type appointmentRequest struct {
	Name *string `json:"name"`
	Date string  `json:"date"`
	Time string  `json:"time"`
	DNI  *string `json:"dni"`
	Type *string `json:"type"`
}

func storedDatetime(date, clock string) string {
	return strings.TrimSpace(date) + " " + strings.TrimSpace(clock) + ":00"
}

func isoDatetime(s domain.Shift) domain.Shift {
	s.Datetime = strings.Replace(s.Datetime, " ", "T", 1)
	return s
}

func (h *Handler) listShifts(w http.ResponseWriter, r *http.Request, where, order string, args ...any) {
	shifts := []domain.Shift{}
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE user_id = ? AND status = ?` + where + ` ORDER BY datetime ` + order
	args = append([]any{userIDFrom(r), false}, args...)
	if err := h.db.SelectContext(r.Context(), &shifts, h.db.Rebind(query), args...); err != nil {
		h.respondErr(w, r, domain.Storage("list appointments", err))
		return
	}
	for i := range shifts {
		shifts[i] = isoDatetime(shifts[i])
	}
	respondJSON(w, http.StatusOK, shifts)
}

func (h *Handler) todayAppointments(w http.ResponseWriter, r *http.Request) {
	today := h.now()
	start := today.Format(dayLayout) + " 00:00:00"
	end := today.AddDate(0, 0, 1).Format(dayLayout) + " 00:00:00"
	h.listShifts(w, r, ` AND datetime >= ? AND datetime < ?`, "ASC", start, end)
}

func (h *Handler) overdueAppointments(w http.ResponseWriter, r *http.Request) {
	start := h.now().Format(dayLayout) + " 00:00:00"
	h.listShifts(w, r, ` AND datetime < ?`, "DESC", start)
}

func (h *Handler) pendingAppointments(w http.ResponseWriter, r *http.Request) {
	h.listShifts(w, r, "", "ASC")
}

func (h *Handler) pendingAppointmentsTotal(w http.ResponseWriter, r *http.Request) {
	var total int
	err := h.db.GetContext(r.Context(), &total, h.db.Rebind(`SELECT COUNT(*) FROM shifts WHERE user_id = ? AND status = ?`), userIDFrom(r), false)
	if err != nil {
		h.respondErr(w, r, domain.Storage("count appointments", err))
		return
	}
	respondJSON(w, http.StatusOK, total)
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" || req.Date == "" || req.Time == "" {
		respondError(w, http.StatusBadRequest, "name, date and time are required")
		return
	}

	shift := domain.Shift{
		UserID:   userIDFrom(r),
		Name:     strings.TrimSpace(*req.Name),
		Datetime: storedDatetime(req.Date, req.Time),
	}
	if req.DNI != nil {
		shift.DNI = nullIfEmpty(*req.DNI)
	}
	if req.Type != nil {
		shift.Type = *req.Type
	}

	err := h.db.QueryRowxContext(r.Context(), h.db.Rebind(`INSERT INTO shifts (user_id, name, datetime, dni, type, status) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		shift.UserID, shift.Name, shift.Datetime, shift.DNI, shift.Type, false).Scan(&shift.ID)
	if err != nil {
		h.respondErr(w, r, domain.Storage("insert appointment", err))
		return
	}
	respondJSON(w, http.StatusCreated, isoDatetime(shift))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	var shift domain.Shift
	err := h.db.GetContext(r.Context(), &shift, h.db.Rebind(`SELECT `+shiftColumns+` FROM shifts WHERE id = ? AND user_id = ?`), id, userIDFrom(r))
	if errors.Is(err, sql.ErrNoRows) {
		h.respondErr(w, r, domain.NotFound("appointment"))
		return
	}
	if err != nil {
		h.respondErr(w, r, domain.Storage("load appointment", err))
		return
	}
	respondJSON(w, http.StatusOK, isoDatetime(shift))
}

// updateAppointment applies the fields present. The datetime changes only
// when both date and time are sent.
func (h *Handler) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	var req appointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		sets []string
		args []any
	)
	if req.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Date != "" && req.Time != "" {
		sets = append(sets, "datetime = ?")
		args = append(args, storedDatetime(req.Date, req.Time))
	}
	if req.DNI != nil {
		sets = append(sets, "dni = ?")
		args = append(args, nullIfEmpty(*req.DNI))
	}
	if req.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *req.Type)
	}
	if len(sets) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	args = append(args, id, userIDFrom(r))
	h.execShift(w, r, `UPDATE shifts SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, "appointment updated", args...)
}

func (h *Handler) completeAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	h.execShift(w, r, `UPDATE shifts SET status = ? WHERE id = ? AND user_id = ?`, "appointment completed", true, id, userIDFrom(r))
}

func (h *Handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	h.execShift(w, r, `DELETE FROM shifts WHERE id = ? AND user_id = ?`, "appointment deleted", id, userIDFrom(r))
}

func (h *Handler) execShift(w http.ResponseWriter, r *http.Request, query, message string, args ...any) {
	res, err := h.db.ExecContext(r.Context(), h.db.Rebind(query), args...)
	if err != nil {
		h.respondErr(w, r, domain.Storage("write appointment", err))
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		h.respondErr(w, r, domain.NotFound("appointment"))
		return
	}
	respondMessage(w, http.StatusOK, message)
}
