// Package ledger keeps treatment budgets consistent with the payments made
// against them. The sum of a budget's active payments never exceeds its
// total, and the budget's pending amount and active flag are always recomputed
// from that sum.
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

// Recorder receives ledger activity for metrics.
type Recorder interface {
	PaymentApplied(op string)
	PaymentRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) PaymentApplied(string)  {}
func (nopRecorder) PaymentRejected(string) {}

// Service is the Money Ledger.
type Service struct {
	db      *sqlx.DB
	log     *zap.Logger
	metrics Recorder
}

// New constructs a Service. rec may be nil.
func New(db *sqlx.DB, log *zap.Logger, rec Recorder) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log.Named("ledger"), metrics: rec}
}

// PaymentInput is a new payment against a budget.
type PaymentInput struct {
	Amount decimal.Decimal
	Method string
	Date   string
}

// PaymentUpdate carries the fields to change on a payment; nil leaves a field
// as it is.
type PaymentUpdate struct {
	Amount *decimal.Decimal
	Method *string
	Date   *string
}

// PaymentResult is a payment after a mutation together with the budget's
// recomputed derived state.
type PaymentResult struct {
	Payment      domain.Payment
	Pending      decimal.Decimal
	BudgetActive bool
}

// BudgetUpdate carries the editable fields of a budget.
type BudgetUpdate struct {
	Treatment *string
	Total     *decimal.Decimal
}

const budgetColumns = `id, patient_id, treatment, total, pending, is_active`
const paymentColumns = `id, treatment_budget_id, payment_date, amount_paid, payment_method, is_active`

// RecordPayment adds an active payment to a budget, rejecting it when the
// budget's active payments would exceed its total.
func (s *Service) RecordPayment(ctx context.Context, budgetID int64, in PaymentInput) (*PaymentResult, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		s.metrics.PaymentRejected("invalid_amount")
		return nil, err
	}
	method := strings.TrimSpace(in.Method)
	date := strings.TrimSpace(in.Date)
	if method == "" || date == "" {
		return nil, domain.Validation("amount_paid, payment_method and payment_date are required")
	}

	var result PaymentResult
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		budget, err := lockBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		paid, err := activeSum(ctx, tx, budgetID, 0)
		if err != nil {
			return err
		}
		wouldBe := paid.Add(amount)
		if Exceeds(budget.Total, wouldBe) {
			return &domain.BudgetExceededError{Total: budget.Total, Attempted: wouldBe}
		}

		payment := domain.Payment{
			TreatmentBudgetID: budgetID,
			PaymentDate:       date,
			AmountPaid:        amount,
			PaymentMethod:     method,
			IsActive:          true,
		}
		err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO payments (treatment_budget_id, payment_date, amount_paid, payment_method, is_active) VALUES (?, ?, ?, ?, ?) RETURNING id`),
			budgetID, payment.PaymentDate, amount, method, true).Scan(&payment.ID)
		if err != nil {
			return domain.Storage("insert payment", err)
		}

		pending, active, err := persistDerived(ctx, tx, budget, wouldBe)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: payment, Pending: pending, BudgetActive: active}
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	s.metrics.PaymentApplied("create")
	s.log.Info("payment recorded",
		zap.Int64("budget_id", budgetID),
		zap.Int64("payment_id", result.Payment.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("pending", result.Pending.StringFixed(2)))
	return &result, nil
}

// UpdatePayment changes an active payment and re-validates the budget with the
// payment's new amount in place of the old one.
func (s *Service) UpdatePayment(ctx context.Context, budgetID, paymentID int64, upd PaymentUpdate) (*PaymentResult, error) {
	var newAmount *decimal.Decimal
	if upd.Amount != nil {
		amount, err := normalizeAmount(*upd.Amount)
		if err != nil {
			s.metrics.PaymentRejected("invalid_amount")
			return nil, err
		}
		newAmount = &amount
	}

	var result PaymentResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		budget, err := lockBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		payment, err := getPayment(ctx, tx, budgetID, paymentID)
		if err != nil {
			return err
		}
		if !payment.IsActive {
			return domain.NotFound("payment")
		}

		if newAmount != nil {
			payment.AmountPaid = *newAmount
		}
		if upd.Method != nil && strings.TrimSpace(*upd.Method) != "" {
			payment.PaymentMethod = strings.TrimSpace(*upd.Method)
		}
		if upd.Date != nil && strings.TrimSpace(*upd.Date) != "" {
			payment.PaymentDate = *upd.Date
		}

		others, err := activeSum(ctx, tx, budgetID, paymentID)
		if err != nil {
			return err
		}
		wouldBe := others.Add(payment.AmountPaid)
		if Exceeds(budget.Total, wouldBe) {
			return &domain.BudgetExceededError{Total: budget.Total, Attempted: wouldBe}
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE payments SET amount_paid = ?, payment_method = ?, payment_date = ? WHERE id = ?`),
			payment.AmountPaid, payment.PaymentMethod, payment.PaymentDate, paymentID)
		if err != nil {
			return domain.Storage("update payment", err)
		}

		paid, err := activeSum(ctx, tx, budgetID, 0)
		if err != nil {
			return err
		}
		pending, active, err := persistDerived(ctx, tx, budget, paid)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: *payment, Pending: pending, BudgetActive: active}
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	s.metrics.PaymentApplied("update")
	s.log.Info("payment updated",
		zap.Int64("budget_id", budgetID),
		zap.Int64("payment_id", paymentID),
		zap.String("pending", result.Pending.StringFixed(2)))
	return &result, nil
}

// SoftDeletePayment marks a payment inactive and recomputes its budget. The
// payment row is kept. Removing money cannot break the total, so nothing is
// re-validated.
func (s *Service) SoftDeletePayment(ctx context.Context, budgetID, paymentID int64) (*PaymentResult, error) {
	var result PaymentResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		budget, err := lockBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		payment, err := getPayment(ctx, tx, budgetID, paymentID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE payments SET is_active = ? WHERE id = ?`), false, paymentID); err != nil {
			return domain.Storage("deactivate payment", err)
		}
		payment.IsActive = false

		paid, err := activeSum(ctx, tx, budgetID, 0)
		if err != nil {
			return err
		}
		pending, active, err := persistDerived(ctx, tx, budget, paid)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: *payment, Pending: pending, BudgetActive: active}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentApplied("delete")
	s.log.Info("payment deactivated",
		zap.Int64("budget_id", budgetID),
		zap.Int64("payment_id", paymentID),
		zap.String("pending", result.Pending.StringFixed(2)))
	return &result, nil
}

// ListActivePayments returns the budget's active payments, newest first.
func (s *Service) ListActivePayments(ctx context.Context, budgetID int64) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	err := s.db.SelectContext(ctx, &payments, s.db.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE treatment_budget_id = ? AND is_active = ? ORDER BY payment_date DESC, id DESC`), budgetID, true)
	if err != nil {
		return nil, domain.Storage("list payments", err)
	}
	return payments, nil
}

// ListAllPayments returns every payment of the budget, soft-deleted ones
// included, newest first.
func (s *Service) ListAllPayments(ctx context.Context, budgetID int64) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	err := s.db.SelectContext(ctx, &payments, s.db.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE treatment_budget_id = ? ORDER BY payment_date DESC, id DESC`), budgetID)
	if err != nil {
		return nil, domain.Storage("list payments", err)
	}
	return payments, nil
}

// GetPayment returns one payment of the budget regardless of its state.
func (s *Service) GetPayment(ctx context.Context, budgetID, paymentID int64) (*domain.Payment, error) {
	return getPayment(ctx, s.db, budgetID, paymentID)
}

func (s *Service) reject(err error) {
	var exceeded *domain.BudgetExceededError
	if errors.As(err, &exceeded) {
		s.metrics.PaymentRejected("budget_exceeded")
		s.log.Info("payment rejected",
			zap.String("total", exceeded.Total.StringFixed(2)),
			zap.String("attempted", exceeded.Attempted.StringFixed(2)))
		return
	}
	var storage *domain.StorageError
	if errors.As(err, &storage) {
		s.log.Error("ledger storage failure", zap.Error(err))
	}
}

// Exceeds reports whether attempted is above total once both are rounded to
// cents.
func Exceeds(total, attempted decimal.Decimal) bool {
	return attempted.Round(2).GreaterThan(total.Round(2))
}

// Derive computes a budget's pending amount and active flag from the sum of
// its active payments.
func Derive(total, activeSum decimal.Decimal) (pending decimal.Decimal, active bool) {
	pending = total.Sub(activeSum)
	return pending, pending.Round(2).IsPositive()
}

func normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(2)
	if !rounded.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return rounded, nil
}

func lockBudget(ctx context.Context, tx *sqlx.Tx, budgetID int64) (*domain.TreatmentBudget, error) {
	query := `SELECT ` + budgetColumns + ` FROM treatment_budgets WHERE id = ?`
	if database.IsPostgres(tx) {
		query += ` FOR UPDATE`
	}
	var budget domain.TreatmentBudget
	err := tx.GetContext(ctx, &budget, tx.Rebind(query), budgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("budget")
	}
	if err != nil {
		return nil, domain.Storage("load budget", err)
	}
	return &budget, nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func getPayment(ctx context.Context, q queryer, budgetID, paymentID int64) (*domain.Payment, error) {
	var payment domain.Payment
	err := sqlx.GetContext(ctx, q, &payment, q.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE id = ? AND treatment_budget_id = ?`), paymentID, budgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("payment")
	}
	if err != nil {
		return nil, domain.Storage("load payment", err)
	}
	return &payment, nil
}

// activeSum adds up the budget's active payments from scratch. A non-zero
// excludeID leaves that payment out.
func activeSum(ctx context.Context, tx *sqlx.Tx, budgetID, excludeID int64) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := tx.SelectContext(ctx, &amounts, tx.Rebind(`SELECT amount_paid FROM payments WHERE treatment_budget_id = ? AND is_active = ? AND id <> ?`), budgetID, true, excludeID)
	if err != nil {
		return decimal.Zero, domain.Storage("sum payments", err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

func persistDerived(ctx context.Context, tx *sqlx.Tx, budget *domain.TreatmentBudget, paid decimal.Decimal) (decimal.Decimal, bool, error) {
	pending, active := Derive(budget.Total, paid)
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE treatment_budgets SET pending = ?, is_active = ? WHERE id = ?`), pending, active, budget.ID)
	if err != nil {
		return decimal.Zero, false, domain.Storage("update budget balance", err)
	}
	budget.Pending = pending
	budget.IsActive = active
	return pending, active, nil
}
