package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/database"
)

// CreateBudget opens a budget for a patient with nothing paid yet.
func (s *Service) CreateBudget(ctx context.Context, patientID int64, treatment string, total decimal.Decimal) (*domain.TreatmentBudget, error) {
	treatment = strings.TrimSpace(treatment)
	if treatment == "" {
		return nil, domain.Validation("treatment and total are required")
	}
	total = total.Round(2)
	if !total.IsPositive() {
		return nil, domain.Validation("total must be a number greater than 0")
	}

	budget := domain.TreatmentBudget{
		PatientID: patientID,
		Treatment: treatment,
		Total:     total,
		Pending:   total,
		IsActive:  true,
	}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO treatment_budgets (patient_id, treatment, total, pending, is_active) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		patientID, treatment, total, total, true).Scan(&budget.ID)
	if err != nil {
		return nil, domain.Storage("insert budget", err)
	}

	s.log.Info("budget created",
		zap.Int64("patient_id", patientID),
		zap.Int64("budget_id", budget.ID),
		zap.String("total", total.StringFixed(2)))
	return &budget, nil
}

// ListBudgets returns the patient's budgets with paid and remaining amounts
// computed from their active payments.
func (s *Service) ListBudgets(ctx context.Context, patientID int64) ([]domain.BudgetSummary, error) {
	var budgets []domain.TreatmentBudget
	err := s.db.SelectContext(ctx, &budgets, s.db.Rebind(`SELECT `+budgetColumns+` FROM treatment_budgets WHERE patient_id = ? ORDER BY id DESC`), patientID)
	if err != nil {
		return nil, domain.Storage("list budgets", err)
	}
	summaries := make([]domain.BudgetSummary, 0, len(budgets))
	if len(budgets) == 0 {
		return summaries, nil
	}

	ids := make([]int64, len(budgets))
	for i, b := range budgets {
		ids[i] = b.ID
	}
	query, args, err := sqlx.In(`SELECT treatment_budget_id, amount_paid FROM payments WHERE is_active = ? AND treatment_budget_id IN (?)`, true, ids)
	if err != nil {
		return nil, domain.Storage("list budgets", err)
	}
	var rows []struct {
		BudgetID int64           `db:"treatment_budget_id"`
		Amount   decimal.Decimal `db:"amount_paid"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, domain.Storage("list budgets", err)
	}
	paid := make(map[int64]decimal.Decimal, len(budgets))
	for _, r := range rows {
		paid[r.BudgetID] = paid[r.BudgetID].Add(r.Amount)
	}

	for _, b := range budgets {
		summaries = append(summaries, summarize(b, paid[b.ID], nil))
	}
	return summaries, nil
}

// GetBudget returns one budget with its active payments embedded.
func (s *Service) GetBudget(ctx context.Context, budgetID int64) (*domain.BudgetSummary, error) {
	var budget domain.TreatmentBudget
	err := s.db.GetContext(ctx, &budget, s.db.Rebind(`SELECT `+budgetColumns+` FROM treatment_budgets WHERE id = ?`), budgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("budget")
	}
	if err != nil {
		return nil, domain.Storage("load budget", err)
	}

	payments, err := s.ListActivePayments(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.AmountPaid)
	}
	summary := summarize(budget, total, payments)
	return &summary, nil
}

// UpdateBudget changes a budget's treatment or total. A new total must still
// cover the active payments; pending and the active flag are recomputed.
func (s *Service) UpdateBudget(ctx context.Context, budgetID int64, upd BudgetUpdate) (*domain.TreatmentBudget, error) {
	if upd.Total != nil {
		total := upd.Total.Round(2)
		if !total.IsPositive() {
			return nil, domain.Validation("total must be a number greater than 0")
		}
		upd.Total = &total
	}

	var updated *domain.TreatmentBudget
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		budget, err := lockBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		if upd.Treatment != nil && strings.TrimSpace(*upd.Treatment) != "" {
			budget.Treatment = strings.TrimSpace(*upd.Treatment)
		}
		if upd.Total != nil {
			budget.Total = *upd.Total
		}

		paid, err := activeSum(ctx, tx, budgetID, 0)
		if err != nil {
			return err
		}
		if Exceeds(budget.Total, paid) {
			return &domain.BudgetExceededError{Total: budget.Total, Attempted: paid}
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE treatment_budgets SET treatment = ?, total = ? WHERE id = ?`), budget.Treatment, budget.Total, budgetID)
		if err != nil {
			return domain.Storage("update budget", err)
		}
		if _, _, err := persistDerived(ctx, tx, budget, paid); err != nil {
			return err
		}
		updated = budget
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	s.log.Info("budget updated",
		zap.Int64("budget_id", budgetID),
		zap.String("total", updated.Total.StringFixed(2)),
		zap.String("pending", updated.Pending.StringFixed(2)))
	return updated, nil
}

// DeleteBudget removes a budget. Its payments go with it.
func (s *Service) DeleteBudget(ctx context.Context, budgetID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM treatment_budgets WHERE id = ?`), budgetID)
	if err != nil {
		return domain.Storage("delete budget", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("budget")
	}
	s.log.Info("budget deleted", zap.Int64("budget_id", budgetID))
	return nil
}

func summarize(b domain.TreatmentBudget, paid decimal.Decimal, payments []domain.Payment) domain.BudgetSummary {
	return domain.BudgetSummary{
		TreatmentBudget: b,
		TotalPaid:       paid,
		Remaining:       b.Total.Sub(paid),
		Payments:        payments,
	}
}
