package mem_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "tripvault/db/db"
	"tripvault/db/mem"
)

// setupTest creates a new store with one trip for each test.
func setupTest(t *testing.T) (dbt.TripDBWrapper, *dbt.Trip) {
	t.Helper()
	db := mem.NewInMemoryTripDBWrapper()
	trip := &dbt.Trip{
		ID:        uuid.New(),
		Name:      "Goa",
		CreatedBy: "alice",
		Members: []dbt.Member{
			{UserID: "alice", Role: dbt.RoleAdmin},
			{UserID: "bob", Role: dbt.RoleEditor},
		},
		Budget: dbt.Budget{Total: 1000, Currency: dbt.DefaultCurrency},
	}
	require.NoError(t, db.CreateTrip(context.Background(), trip))
	return db, trip
}

func newExpense(tripID uuid.UUID, date time.Time) *dbt.Expense {
	return &dbt.Expense{
		ID:          uuid.New(),
		TripID:      tripID,
		Title:       "Dinner",
		Amount:      100,
		Currency:    dbt.DefaultCurrency,
		Category:    dbt.CategoryFood,
		PaidBy:      "alice",
		CreatedBy:   "alice",
		ExpenseDate: date,
		Splits: []dbt.Split{
			{UserID: "alice", Percentage: 50, Amount: 50},
			{UserID: "bob", Percentage: 50, Amount: 50},
		},
	}
}

func TestCreateTrip(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()

	got, err := db.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, trip.Name, got.Name)
	assert.Len(t, got.Members, 2)

	err = db.CreateTrip(ctx, trip)
	assert.ErrorIs(t, err, dbt.ErrAlreadyExists)

	_, err = db.GetTrip(ctx, uuid.New())
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestGetTrip_ReturnsCopy(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()

	got, err := db.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	got.Members[0].Role = dbt.RoleViewer

	again, err := db.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, dbt.RoleAdmin, again.Members[0].Role)
}

func TestUpdateTripBudget(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()

	require.NoError(t, db.UpdateTripBudget(ctx, trip.ID, dbt.Budget{Total: 2500, Currency: "USD"}))
	got, err := db.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, got.Budget.Total)
	assert.Equal(t, "USD", got.Budget.Currency)

	assert.ErrorIs(t, db.UpdateTripBudget(ctx, uuid.New(), dbt.Budget{}), dbt.ErrNotFound)
}

func TestCreateAndGetExpenses(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()
	now := time.Now()

	older := newExpense(trip.ID, now.Add(-time.Hour))
	newer := newExpense(trip.ID, now)
	require.NoError(t, db.CreateExpense(ctx, older))
	require.NoError(t, db.CreateExpense(ctx, newer))

	assert.ErrorIs(t, db.CreateExpense(ctx, older), dbt.ErrAlreadyExists)
	assert.ErrorIs(t, db.CreateExpense(ctx, newExpense(uuid.New(), now)), dbt.ErrNotFound)

	list, err := db.GetTripExpenses(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	got, err := db.GetExpense(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.Splits, got.Splits)

	_, err = db.GetTripExpenses(ctx, uuid.New())
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestReplaceExpense(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()

	expense := newExpense(trip.ID, time.Now())
	expense.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateExpense(ctx, expense))

	replacement := *expense
	replacement.Amount = 300
	replacement.CreatedBy = "mallory"
	replacement.CreatedAt = time.Time{}
	replacement.Splits = []dbt.Split{{UserID: "bob", Percentage: 100, Amount: 300}}
	require.NoError(t, db.ReplaceExpense(ctx, &replacement))

	got, err := db.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.Amount)
	assert.Len(t, got.Splits, 1)
	assert.Equal(t, "alice", got.CreatedBy, "creator is immutable")
	assert.Equal(t, expense.CreatedAt, got.CreatedAt)

	missing := newExpense(trip.ID, time.Now())
	assert.ErrorIs(t, db.ReplaceExpense(ctx, missing), dbt.ErrNotFound)
}

func TestMarkSplitPaid(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()
	expense := newExpense(trip.ID, time.Now())
	require.NoError(t, db.CreateExpense(ctx, expense))

	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	got, changed, err := db.MarkSplitPaid(ctx, expense.ID, "bob", first)
	require.NoError(t, err)
	assert.True(t, changed)
	idx := got.Split("bob")
	require.GreaterOrEqual(t, idx, 0)
	assert.True(t, got.Splits[idx].Paid)
	require.NotNil(t, got.Splits[idx].PaidAt)
	assert.Equal(t, first, *got.Splits[idx].PaidAt)

	// second call keeps the original timestamp
	got, changed, err = db.MarkSplitPaid(ctx, expense.ID, "bob", first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, *got.Splits[got.Split("bob")].PaidAt)

	_, _, err = db.MarkSplitPaid(ctx, expense.ID, "carol", first)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
	_, _, err = db.MarkSplitPaid(ctx, uuid.New(), "bob", first)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestMarkSplitPaid_Concurrent(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()
	expense := newExpense(trip.ID, time.Now())
	require.NoError(t, db.CreateExpense(ctx, expense))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		flipped int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := db.MarkSplitPaid(ctx, expense.ID, "bob", time.Now())
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				flipped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, flipped)
}

func TestDeleteExpense(t *testing.T) {
	db, trip := setupTest(t)
	ctx := context.Background()
	expense := newExpense(trip.ID, time.Now())
	require.NoError(t, db.CreateExpense(ctx, expense))

	require.NoError(t, db.DeleteExpense(ctx, expense.ID))
	_, err := db.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, dbt.ErrNotFound)

	list, err := db.GetTripExpenses(ctx, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, db.DeleteExpense(ctx, expense.ID), dbt.ErrNotFound)
}
