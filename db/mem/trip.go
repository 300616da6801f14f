package mem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	dbt "tripvault/db/db"
)

// inMemoryTripDBWrapper is an in-memory implementation of dbt.TripDBWrapper.
// Stored values are never handed out; every read returns a copy.
type inMemoryTripDBWrapper struct {
	trips    map[uuid.UUID]*dbt.Trip
	expenses map[uuid.UUID]*dbt.Expense
	// expense ids per trip, in insertion order
	tripExpenses map[uuid.UUID][]uuid.UUID

	mu sync.RWMutex
}

// NewInMemoryTripDBWrapper creates and returns a new instance of inMemoryTripDBWrapper.
func NewInMemoryTripDBWrapper() dbt.TripDBWrapper {
	return &inMemoryTripDBWrapper{
		trips:        make(map[uuid.UUID]*dbt.Trip),
		expenses:     make(map[uuid.UUID]*dbt.Expense),
		tripExpenses: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (db *inMemoryTripDBWrapper) CreateTrip(_ context.Context, trip *dbt.Trip) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.trips[trip.ID]; exists {
		return fmt.Errorf("trip with ID %s: %w", trip.ID, dbt.ErrAlreadyExists)
	}

	tripCopy := trip.Clone()
	db.trips[trip.ID] = &tripCopy
	db.tripExpenses[trip.ID] = []uuid.UUID{}
	return nil
}

func (db *inMemoryTripDBWrapper) CreateExpense(_ context.Context, expense *dbt.Expense) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.trips[expense.TripID]; !exists {
		return fmt.Errorf("trip with ID %s: %w", expense.TripID, dbt.ErrNotFound)
	}
	if _, exists := db.expenses[expense.ID]; exists {
		return fmt.Errorf("expense with ID %s: %w", expense.ID, dbt.ErrAlreadyExists)
	}

	expenseCopy := expense.Clone()
	db.expenses[expense.ID] = &expenseCopy
	db.tripExpenses[expense.TripID] = append(db.tripExpenses[expense.TripID], expense.ID)
	return nil
}

func (db *inMemoryTripDBWrapper) GetTrip(_ context.Context, id uuid.UUID) (*dbt.Trip, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	trip, exists := db.trips[id]
	if !exists {
		return nil, fmt.Errorf("trip with ID %s: %w", id, dbt.ErrNotFound)
	}
	tripCopy := trip.Clone()
	return &tripCopy, nil
}

func (db *inMemoryTripDBWrapper) GetExpense(_ context.Context, id uuid.UUID) (*dbt.Expense, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	expense, exists := db.expenses[id]
	if !exists {
		return nil, fmt.Errorf("expense with ID %s: %w", id, dbt.ErrNotFound)
	}
	expenseCopy := expense.Clone()
	return &expenseCopy, nil
}

// GetTripExpenses returns the trip's expenses, newest expense date first.
func (db *inMemoryTripDBWrapper) GetTripExpenses(_ context.Context, tripID uuid.UUID) ([]dbt.Expense, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	ids, exists := db.tripExpenses[tripID]
	if !exists {
		return nil, fmt.Errorf("trip with ID %s: %w", tripID, dbt.ErrNotFound)
	}

	expenses := make([]dbt.Expense, 0, len(ids))
	for _, id := range ids {
		expenses = append(expenses, db.expenses[id].Clone())
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].ExpenseDate.After(expenses[j].ExpenseDate)
	})
	return expenses, nil
}

func (db *inMemoryTripDBWrapper) UpdateTripBudget(_ context.Context, id uuid.UUID, budget dbt.Budget) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trip, exists := db.trips[id]
	if !exists {
		return fmt.Errorf("trip with ID %s: %w", id, dbt.ErrNotFound)
	}
	trip.Budget = budget
	trip.UpdatedAt = time.Now()
	return nil
}

// ReplaceExpense overwrites the whole stored document. Trip and creation
// metadata of the stored document are kept.
func (db *inMemoryTripDBWrapper) ReplaceExpense(_ context.Context, expense *dbt.Expense) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, exists := db.expenses[expense.ID]
	if !exists {
		return fmt.Errorf("expense with ID %s: %w", expense.ID, dbt.ErrNotFound)
	}

	expenseCopy := expense.Clone()
	expenseCopy.TripID = stored.TripID
	expenseCopy.CreatedBy = stored.CreatedBy
	expenseCopy.CreatedAt = stored.CreatedAt
	db.expenses[expense.ID] = &expenseCopy
	return nil
}

func (db *inMemoryTripDBWrapper) MarkSplitPaid(_ context.Context, expenseID uuid.UUID, userID string, at time.Time) (*dbt.Expense, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	expense, exists := db.expenses[expenseID]
	if !exists {
		return nil, false, fmt.Errorf("expense with ID %s: %w", expenseID, dbt.ErrNotFound)
	}
	idx := expense.Split(userID)
	if idx < 0 {
		return nil, false, fmt.Errorf("split for user %s in expense %s: %w", userID, expenseID, dbt.ErrNotFound)
	}

	changed := false
	if !expense.Splits[idx].Paid {
		paidAt := at
		expense.Splits[idx].Paid = true
		expense.Splits[idx].PaidAt = &paidAt
		expense.UpdatedAt = at
		changed = true
	}
	expenseCopy := expense.Clone()
	return &expenseCopy, changed, nil
}

// DeleteExpense removes the expense together with its splits.
func (db *inMemoryTripDBWrapper) DeleteExpense(_ context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	expense, exists := db.expenses[id]
	if !exists {
		return fmt.Errorf("expense with ID %s: %w", id, dbt.ErrNotFound)
	}

	ids := db.tripExpenses[expense.TripID]
	for i, eid := range ids {
		if eid == id {
			db.tripExpenses[expense.TripID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	delete(db.expenses, id)
	return nil
}
