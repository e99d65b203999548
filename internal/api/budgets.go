package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/ledger"
)

type budgetRequest struct {
	Treatment string          `json:"treatment"`
	Total     decimal.Decimal `json:"total"`
}

type budgetUpdateRequest struct {
	Treatment *string          `json:"treatment"`
	Total     *decimal.Decimal `json:"total"`
}

type paymentRequest struct {
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   string          `json:"payment_date"`
}

type paymentUpdateRequest struct {
	AmountPaid    *decimal.Decimal `json:"amount_paid"`
	PaymentMethod *string          `json:"payment_method"`
	PaymentDate   *string          `json:"payment_date"`
}

// paymentResponse is a payment together with its budget's state after the
// change.
type paymentResponse struct {
	domain.Payment
	Pending      decimal.Decimal `json:"pending"`
	BudgetActive bool            `json:"budget_is_active"`
}

func newPaymentResponse(res *ledger.PaymentResult) paymentResponse {
	return paymentResponse{Payment: res.Payment, Pending: res.Pending, BudgetActive: res.BudgetActive}
}

func (h *Handler) listBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.ledger.ListBudgets(r.Context(), patientFrom(r).ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, budgets)
}

func (h *Handler) createBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	budget, err := h.ledger.CreateBudget(r.Context(), patientFrom(r).ID, req.Treatment, req.Total)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, budget)
}

func (h *Handler) getBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := h.ledger.GetBudget(r.Context(), budgetIDFrom(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, budget)
}

func (h *Handler) updateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Treatment == nil && req.Total == nil {
		respondError(w, http.StatusBadRequest, "no valid fields to update")
		return
	}
	budget, err := h.ledger.UpdateBudget(r.Context(), budgetIDFrom(r), ledger.BudgetUpdate{Treatment: req.Treatment, Total: req.Total})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, budget)
}

func (h *Handler) deleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteBudget(r.Context(), budgetIDFrom(r)); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "budget deleted")
}

// listPayments returns the active payments; include_inactive=true adds the
// soft-deleted ones.
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	list := h.ledger.ListActivePayments
	if strings.EqualFold(r.URL.Query().Get("include_inactive"), "true") {
		list = h.ledger.ListAllPayments
	}
	payments, err := list(r.Context(), budgetIDFrom(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.ledger.RecordPayment(r.Context(), budgetIDFrom(r), ledger.PaymentInput{
		Amount: req.AmountPaid,
		Method: req.PaymentMethod,
		Date:   req.PaymentDate,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newPaymentResponse(res))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := idParam(r, "paymentID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	payment, err := h.ledger.GetPayment(r.Context(), budgetIDFrom(r), paymentID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := idParam(r, "paymentID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	var req paymentUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.ledger.UpdatePayment(r.Context(), budgetIDFrom(r), paymentID, ledger.PaymentUpdate{
		Amount: req.AmountPaid,
		Method: req.PaymentMethod,
		Date:   req.PaymentDate,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPaymentResponse(res))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := idParam(r, "paymentID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	res, err := h.ledger.SoftDeletePayment(r.Context(), budgetIDFrom(r), paymentID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":          "payment deleted",
		"pending":          res.Pending,
		"budget_is_active": res.BudgetActive,
	})
}
