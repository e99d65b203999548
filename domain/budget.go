package domain

import "github.com/shopspring/decimal"

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// TreatmentBudget is a quoted total for a course of treatment. Pending and
// IsActive are derived from the active payments and are never edited directly.
type TreatmentBudget struct {
	ID        int64           `db:"id" json:"id"`
	PatientID int64           `db:"patient_id" json:"patient_id"`
	Treatment string          `db:"treatment" json:"treatment"`
	Total     decimal.Decimal `db:"total" json:"total"`
	Pending   decimal.Decimal `db:"pending" json:"pending"`
	IsActive  bool            `db:"is_active" json:"is_active"`
}

type Payment struct {
	ID                int64           `db:"id" json:"id"`
	TreatmentBudgetID int64           `db:"treatment_budget_id" json:"treatment_budget_id"`
	PaymentDate       string          `db:"payment_date" json:"payment_date"`
	AmountPaid        decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	PaymentMethod     string          `db:"payment_method" json:"payment_method"`
	IsActive          bool            `db:"is_active" json:"is_active"`
}

// BudgetSummary is a budget with its paid and remaining amounts computed from
// the active payments at read time.
type BudgetSummary struct {
	TreatmentBudget
	TotalPaid decimal.Decimal `json:"total_paid"`
	Remaining decimal.Decimal `json:"remaining"`
	Payments  []Payment       `json:"payments,omitempty"`
}
