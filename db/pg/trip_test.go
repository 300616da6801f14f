package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tripvault/config"
	dbt "tripvault/db/db"
)

// These tests need a migrated database, see `tripvault migrate`.
func initTest(t *testing.T) (*gorm.DB, dbt.TripDBWrapper, dbt.UserDBWrapper) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping test: DATABASE_URL not set")
	}
	cfg := &config.Config{DatabaseURL: os.Getenv("DATABASE_URL")}
	testDB, err := InitPostgresGORM(cfg.DSN())
	require.NoError(t, err, "failed to initialize test database")

	t.Cleanup(func() {
		testDB.Exec("DELETE FROM expense_splits;")
		testDB.Exec("DELETE FROM expenses;")
		testDB.Exec("DELETE FROM trip_members;")
		testDB.Exec("DELETE FROM trips;")
		testDB.Exec("DELETE FROM payment_settings;")
		testDB.Exec("DELETE FROM user_profiles;")
		CloseGORM(testDB)
	})
	return testDB, NewGORMTripDBWrapper(testDB), NewGORMUserDBWrapper(testDB)
}

func seedTrip(t *testing.T, tripDB dbt.TripDBWrapper) *dbt.Trip {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	trip := &dbt.Trip{
		ID:        uuid.New(),
		Name:      "Ladakh",
		CreatedBy: "alice",
		Members: []dbt.Member{
			{UserID: "alice", Role: dbt.RoleAdmin, JoinedAt: now},
			{UserID: "bob", Role: dbt.RoleEditor, JoinedAt: now.Add(time.Second)},
		},
		Budget: dbt.Budget{Total: 5000, Currency: dbt.DefaultCurrency},
	}
	require.NoError(t, tripDB.CreateTrip(context.Background(), trip))
	return trip
}

func seedExpense(t *testing.T, tripDB dbt.TripDBWrapper, tripID uuid.UUID) *dbt.Expense {
	t.Helper()
	expense := &dbt.Expense{
		ID:          uuid.New(),
		TripID:      tripID,
		Title:       "Fuel",
		Amount:      1200.5,
		Currency:    dbt.DefaultCurrency,
		Category:    dbt.CategoryTravel,
		PaidBy:      "alice",
		CreatedBy:   "alice",
		ExpenseDate: time.Now().UTC(),
		Splits: []dbt.Split{
			{UserID: "bob", Percentage: 60, Amount: 720.3},
			{UserID: "alice", Percentage: 40, Amount: 480.2},
		},
	}
	require.NoError(t, tripDB.CreateExpense(context.Background(), expense))
	return expense
}

func TestCreateTrip(t *testing.T) {
	_, tripDB, _ := initTest(t)
	ctx := context.Background()
	trip := seedTrip(t, tripDB)

	got, err := tripDB.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, trip.Name, got.Name)
	assert.Equal(t, 5000.0, got.Budget.Total)
	require.Len(t, got.Members, 2)
	assert.Equal(t, "alice", got.Members[0].UserID)

	assert.ErrorIs(t, tripDB.CreateTrip(ctx, trip), dbt.ErrAlreadyExists)

	_, err = tripDB.GetTrip(ctx, uuid.New())
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestExpenseLifecycle(t *testing.T) {
	_, tripDB, _ := initTest(t)
	ctx := context.Background()
	trip := seedTrip(t, tripDB)
	expense := seedExpense(t, tripDB, trip.ID)

	got, err := tripDB.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	require.Len(t, got.Splits, 2)
	assert.Equal(t, "bob", got.Splits[0].UserID, "split order is preserved")
	assert.Equal(t, 720.3, got.Splits[0].Amount)

	list, err := tripDB.GetTripExpenses(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got.Amount = 100
	got.Splits = []dbt.Split{{UserID: "bob", Percentage: 100, Amount: 100}}
	require.NoError(t, tripDB.ReplaceExpense(ctx, got))

	replaced, err := tripDB.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, replaced.Amount)
	assert.Len(t, replaced.Splits, 1)

	require.NoError(t, tripDB.DeleteExpense(ctx, expense.ID))
	_, err = tripDB.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
	assert.ErrorIs(t, tripDB.DeleteExpense(ctx, expense.ID), dbt.ErrNotFound)
}

func TestCreateExpense_UnknownTrip(t *testing.T) {
	_, tripDB, _ := initTest(t)
	expense := &dbt.Expense{ID: uuid.New(), TripID: uuid.New(), Title: "x", Amount: 1, Currency: "INR",
		Category: dbt.CategoryOthers, PaidBy: "a", CreatedBy: "a", ExpenseDate: time.Now()}
	assert.ErrorIs(t, tripDB.CreateExpense(context.Background(), expense), dbt.ErrNotFound)
}

func TestMarkSplitPaid(t *testing.T) {
	_, tripDB, _ := initTest(t)
	ctx := context.Background()
	trip := seedTrip(t, tripDB)
	expense := seedExpense(t, tripDB, trip.ID)

	at := time.Now().UTC().Truncate(time.Second)
	got, changed, err := tripDB.MarkSplitPaid(ctx, expense.ID, "bob", at)
	require.NoError(t, err)
	assert.True(t, changed)
	split := got.Splits[got.Split("bob")]
	assert.True(t, split.Paid)
	require.NotNil(t, split.PaidAt)
	assert.True(t, at.Equal(*split.PaidAt))

	got, changed, err = tripDB.MarkSplitPaid(ctx, expense.ID, "bob", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, at.Equal(*got.Splits[got.Split("bob")].PaidAt))

	_, _, err = tripDB.MarkSplitPaid(ctx, expense.ID, "carol", at)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestPaymentSettingsUpsert(t *testing.T) {
	_, _, userDB := initTest(t)
	ctx := context.Background()

	require.NoError(t, userDB.UpsertPaymentSettings(ctx, &dbt.PaymentSettings{UserID: "bob", UPIID: "bob@upi", IsActive: true}))
	require.NoError(t, userDB.UpsertPaymentSettings(ctx, &dbt.PaymentSettings{UserID: "bob", UPIID: "bob@okbank", IsActive: false}))

	got, err := userDB.GetPaymentSettings(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@okbank", got.UPIID)
	assert.False(t, got.IsActive)

	batch, err := userDB.DataLoaderGetPaymentSettings(ctx, []string{"bob", "ghost"})
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}
