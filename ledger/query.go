package ledger

import (
	"cmp"
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tripvault/db/db"
)

const (
	SortByExpenseDate = "expenseDate"
	SortByAmount      = "amount"
	SortByCreatedAt   = "createdAt"
	SortByTitle       = "title"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

type ListOptions struct {
	Category string
	SortBy   string
	Order    string
}

// Snapshot is everything the aggregator needs for one trip.
type Snapshot struct {
	Trip     *db.Trip
	Expenses []db.Expense
}

func (l *Ledger) GetExpense(ctx context.Context, caller string, expenseID uuid.UUID) (*db.Expense, error) {
	expense, _, err := l.loadExpense(ctx, caller, expenseID)
	return expense, err
}

// ListExpenses returns the trip's expenses filtered and ordered by opts.
// Ties are broken by creation time and then id so the order is stable.
func (l *Ledger) ListExpenses(ctx context.Context, caller string, tripID uuid.UUID, opts ListOptions) ([]db.Expense, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = SortByExpenseDate
	}
	switch sortBy {
	case SortByExpenseDate, SortByAmount, SortByCreatedAt, SortByTitle:
	default:
		return nil, invalid("sortBy", "must be one of expenseDate, amount, createdAt, title")
	}
	order := strings.ToLower(opts.Order)
	if order == "" {
		order = OrderDesc
	}
	if order != OrderAsc && order != OrderDesc {
		return nil, invalid("order", "must be asc or desc")
	}
	var category db.Category
	if opts.Category != "" {
		c, err := verifyCategory(opts.Category)
		if err != nil {
			return nil, err
		}
		category = c
	}

	snap, err := l.Snapshot(ctx, caller, tripID)
	if err != nil {
		return nil, err
	}

	out := make([]db.Expense, 0, len(snap.Expenses))
	for _, e := range snap.Expenses {
		if category == "" || e.Category == category {
			out = append(out, e)
		}
	}

	compare := func(a, b *db.Expense) int {
		switch sortBy {
		case SortByAmount:
			return cmp.Compare(a.Amount, b.Amount)
		case SortByCreatedAt:
			return a.CreatedAt.Compare(b.CreatedAt)
		case SortByTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
		return a.ExpenseDate.Compare(b.ExpenseDate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(&out[i], &out[j])
		if c == 0 {
			c = out[i].CreatedAt.Compare(out[j].CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(out[i].ID.String(), out[j].ID.String())
		}
		if order == OrderDesc {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

// Snapshot loads a trip and its expenses concurrently.
func (l *Ledger) Snapshot(ctx context.Context, caller string, tripID uuid.UUID) (*Snapshot, error) {
	var (
		trip     *db.Trip
		expenses []db.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trip, err = l.trips.GetTrip(gctx, tripID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = l.trips.GetTripExpenses(gctx, tripID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, resourceTrip, tripID.String())
	}
	if _, ok := trip.Member(caller); !ok {
		return nil, denied(caller, "access trip "+tripID.String())
	}
	return &Snapshot{Trip: trip, Expenses: expenses}, nil
}
