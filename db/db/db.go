package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// TripDBWrapper stores trips and their expenses. Every method is atomic for
// the single document it touches.
type TripDBWrapper interface {
	// Create
	CreateTrip(ctx context.Context, trip *Trip) error
	CreateExpense(ctx context.Context, expense *Expense) error
	// Read
	GetTrip(ctx context.Context, id uuid.UUID) (*Trip, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error)
	GetTripExpenses(ctx context.Context, tripID uuid.UUID) ([]Expense, error)
	// Update
	UpdateTripBudget(ctx context.Context, id uuid.UUID, budget Budget) error
	ReplaceExpense(ctx context.Context, expense *Expense) error
	// MarkSplitPaid flips the paid flag of one split. An already-paid split is
	// left untouched and changed reports false.
	MarkSplitPaid(ctx context.Context, expenseID uuid.UUID, userID string, at time.Time) (expense *Expense, changed bool, err error)
	// Delete
	DeleteExpense(ctx context.Context, id uuid.UUID) error
}

type UserDBWrapper interface {
	UpsertProfile(ctx context.Context, profile *UserProfile) error
	GetProfile(ctx context.Context, id string) (*UserProfile, error)
	GetPaymentSettings(ctx context.Context, userID string) (*PaymentSettings, error)
	UpsertPaymentSettings(ctx context.Context, settings *PaymentSettings) error
	// Data Loader
	DataLoaderGetProfiles(ctx context.Context, ids []string) (map[string]*UserProfile, error)
	DataLoaderGetPaymentSettings(ctx context.Context, userIDs []string) (map[string]*PaymentSettings, error)
}
