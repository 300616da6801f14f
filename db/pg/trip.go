package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbt "tripvault/db/db"
)

// GORMTripDBWrapper is a GORM-based PostgreSQL implementation of dbt.TripDBWrapper.
type GORMTripDBWrapper struct {
	db *gorm.DB
}

// NewGORMTripDBWrapper creates and returns a new instance of GORMTripDBWrapper.
func NewGORMTripDBWrapper(db *gorm.DB) dbt.TripDBWrapper {
	return &GORMTripDBWrapper{
		db: db,
	}
}

func isDuplicateKey(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "violates foreign key constraint")
}

// CreateTrip inserts the trip and its members in one transaction.
func (pgdb *GORMTripDBWrapper) CreateTrip(ctx context.Context, trip *dbt.Trip) error {
	model := tripToModel(trip)
	result := pgdb.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return fmt.Errorf("trip with ID %s: %w", trip.ID, dbt.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create trip: %w", result.Error)
	}
	return nil
}

func (pgdb *GORMTripDBWrapper) CreateExpense(ctx context.Context, expense *dbt.Expense) error {
	model := expenseToModel(expense)
	result := pgdb.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if isForeignKeyViolation(result.Error) {
			return fmt.Errorf("trip with ID %s: %w", expense.TripID, dbt.ErrNotFound)
		}
		if isDuplicateKey(result.Error) {
			return fmt.Errorf("expense with ID %s: %w", expense.ID, dbt.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create expense for trip %s: %w", expense.TripID, result.Error)
	}
	return nil
}

func (pgdb *GORMTripDBWrapper) GetTrip(ctx context.Context, id uuid.UUID) (*dbt.Trip, error) {
	var model TripModel
	result := pgdb.db.WithContext(ctx).Preload("Members", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("joined_at, user_id")
	}).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trip with ID %s: %w", id, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get trip %s: %w", id, result.Error)
	}
	trip := modelToTrip(&model)
	return &trip, nil
}

func preloadSplits(tx *gorm.DB) *gorm.DB {
	return tx.Order("position")
}

func (pgdb *GORMTripDBWrapper) GetExpense(ctx context.Context, id uuid.UUID) (*dbt.Expense, error) {
	return getExpense(pgdb.db.WithContext(ctx), id)
}

func getExpense(tx *gorm.DB, id uuid.UUID) (*dbt.Expense, error) {
	var model ExpenseModel
	result := tx.Preload("Splits", preloadSplits).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("expense with ID %s: %w", id, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get expense %s: %w", id, result.Error)
	}
	expense := modelToExpense(&model)
	return &expense, nil
}

// GetTripExpenses returns the trip's expenses, newest expense date first.
func (pgdb *GORMTripDBWrapper) GetTripExpenses(ctx context.Context, tripID uuid.UUID) ([]dbt.Expense, error) {
	db := pgdb.db.WithContext(ctx)

	var count int64
	if err := db.Model(&TripModel{}).Where("id = ?", tripID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check trip %s: %w", tripID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("trip with ID %s: %w", tripID, dbt.ErrNotFound)
	}

	var models []ExpenseModel
	result := db.Preload("Splits", preloadSplits).
		Where("trip_id = ?", tripID).
		Order("expense_date DESC, created_at DESC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get expenses for trip %s: %w", tripID, result.Error)
	}

	expenses := make([]dbt.Expense, 0, len(models))
	for i := range models {
		expenses = append(expenses, modelToExpense(&models[i]))
	}
	return expenses, nil
}

func (pgdb *GORMTripDBWrapper) UpdateTripBudget(ctx context.Context, id uuid.UUID, budget dbt.Budget) error {
	result := pgdb.db.WithContext(ctx).Model(&TripModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"budget_total":    budget.Total,
		"budget_currency": budget.Currency,
		"updated_at":      time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update budget of trip %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trip with ID %s: %w", id, dbt.ErrNotFound)
	}
	return nil
}

// ReplaceExpense rewrites the expense row and its split rows in one transaction.
func (pgdb *GORMTripDBWrapper) ReplaceExpense(ctx context.Context, expense *dbt.Expense) error {
	model := expenseToModel(expense)
	return pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ExpenseModel{}).
			Where("id = ?", expense.ID).
			Updates(map[string]interface{}{
				"title":          model.Title,
				"description":    model.Description,
				"notes":          model.Notes,
				"amount":         model.Amount,
				"currency":       model.Currency,
				"category":       model.Category,
				"paid_by":        model.PaidBy,
				"expense_date":   model.ExpenseDate,
				"bill_image_ref": model.BillImageRef,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update expense %s: %w", expense.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("expense with ID %s: %w", expense.ID, dbt.ErrNotFound)
		}

		if err := tx.Where("expense_id = ?", expense.ID).Delete(&ExpenseSplitModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear splits of expense %s: %w", expense.ID, err)
		}
		if len(model.Splits) == 0 {
			return nil
		}
		if err := tx.Create(&model.Splits).Error; err != nil {
			return fmt.Errorf("failed to write splits of expense %s: %w", expense.ID, err)
		}
		return nil
	})
}

// MarkSplitPaid uses a conditional update so concurrent calls flip the flag once.
func (pgdb *GORMTripDBWrapper) MarkSplitPaid(ctx context.Context, expenseID uuid.UUID, userID string, at time.Time) (*dbt.Expense, bool, error) {
	var (
		expense *dbt.Expense
		changed bool
	)
	err := pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ExpenseSplitModel{}).
			Where("expense_id = ? AND user_id = ? AND paid = ?", expenseID, userID, false).
			Updates(map[string]interface{}{"paid": true, "paid_at": at})
		if result.Error != nil {
			return fmt.Errorf("failed to mark split paid: %w", result.Error)
		}
		changed = result.RowsAffected > 0
		if changed {
			if err := tx.Model(&ExpenseModel{}).Where("id = ?", expenseID).Update("updated_at", at).Error; err != nil {
				return fmt.Errorf("failed to touch expense %s: %w", expenseID, err)
			}
		}

		var err error
		expense, err = getExpense(tx, expenseID)
		if err != nil {
			return err
		}
		if expense.Split(userID) < 0 {
			return fmt.Errorf("split for user %s in expense %s: %w", userID, expenseID, dbt.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return expense, changed, nil
}

// DeleteExpense relies on ON DELETE CASCADE for the split rows.
func (pgdb *GORMTripDBWrapper) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	result := pgdb.db.WithContext(ctx).Delete(&ExpenseModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete expense %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("expense with ID %s: %w", id, dbt.ErrNotFound)
	}
	return nil
}

func tripToModel(trip *dbt.Trip) TripModel {
	members := make([]TripMemberModel, 0, len(trip.Members))
	for _, m := range trip.Members {
		members = append(members, TripMemberModel{
			TripID:   trip.ID,
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	return TripModel{
		ID:             trip.ID,
		Name:           trip.Name,
		CreatedBy:      trip.CreatedBy,
		BudgetTotal:    trip.Budget.Total,
		BudgetCurrency: trip.Budget.Currency,
		Members:        members,
		CreatedAt:      trip.CreatedAt,
		UpdatedAt:      trip.UpdatedAt,
	}
}

func modelToTrip(model *TripModel) dbt.Trip {
	members := make([]dbt.Member, 0, len(model.Members))
	for _, m := range model.Members {
		members = append(members, dbt.Member{
			UserID:   m.UserID,
			Role:     dbt.Role(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	return dbt.Trip{
		ID:        model.ID,
		Name:      model.Name,
		CreatedBy: model.CreatedBy,
		Members:   members,
		Budget:    dbt.Budget{Total: model.BudgetTotal, Currency: model.BudgetCurrency},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func expenseToModel(expense *dbt.Expense) ExpenseModel {
	splits := make([]ExpenseSplitModel, 0, len(expense.Splits))
	for i, s := range expense.Splits {
		splits = append(splits, ExpenseSplitModel{
			ExpenseID:  expense.ID,
			UserID:     s.UserID,
			Position:   i,
			Percentage: s.Percentage,
			Amount:     s.Amount,
			Paid:       s.Paid,
			PaidAt:     s.PaidAt,
		})
	}
	return ExpenseModel{
		ID:           expense.ID,
		TripID:       expense.TripID,
		Title:        expense.Title,
		Description:  expense.Description,
		Notes:        expense.Notes,
		Amount:       expense.Amount,
		Currency:     expense.Currency,
		Category:     string(expense.Category),
		PaidBy:       expense.PaidBy,
		CreatedBy:    expense.CreatedBy,
		ExpenseDate:  expense.ExpenseDate,
		BillImageRef: expense.BillImageRef,
		Splits:       splits,
		CreatedAt:    expense.CreatedAt,
		UpdatedAt:    expense.UpdatedAt,
	}
}

func modelToExpense(model *ExpenseModel) dbt.Expense {
	splits := make([]dbt.Split, 0, len(model.Splits))
	for _, s := range model.Splits {
		splits = append(splits, dbt.Split{
			UserID:     s.UserID,
			Percentage: s.Percentage,
			Amount:     s.Amount,
			Paid:       s.Paid,
			PaidAt:     s.PaidAt,
		})
	}
	return dbt.Expense{
		ID:           model.ID,
		TripID:       model.TripID,
		Title:        model.Title,
		Description:  model.Description,
		Notes:        model.Notes,
		Amount:       model.Amount,
		Currency:     model.Currency,
		Category:     dbt.Category(model.Category),
		PaidBy:       model.PaidBy,
		CreatedBy:    model.CreatedBy,
		ExpenseDate:  model.ExpenseDate,
		BillImageRef: model.BillImageRef,
		Splits:       splits,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}
