package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dentalclinic/m/domain"
)

type budgetExceededResponse struct {
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	Total     decimal.Decimal `json:"total"`
	Attempted decimal.Decimal `json:"attempted"`
}

// respondErr maps service errors onto HTTP responses. Anything without a
// domain meaning is logged and reported as a generic 500.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var exceeded *domain.BudgetExceededError
	if errors.As(err, &exceeded) {
		respondJSON(w, http.StatusBadRequest, budgetExceededResponse{
			Error:     exceeded.Error(),
			Code:      domain.CodeBudgetExceeded,
			Total:     exceeded.Total,
			Attempted: exceeded.Attempted,
		})
		return
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		respondError(w, statusFor(de.Code), de.Message)
		return
	}

	h.log.Error("request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func statusFor(code string) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeValidation, domain.CodeInvalidAmount, domain.CodeBudgetExceeded:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
