package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tripvault/db/db"
	"tripvault/libs/diff"
	"tripvault/libs/money"
	"tripvault/mq/mq"
)

type SplitInput struct {
	UserID     string
	Percentage float64
}

type NewExpense struct {
	Title       string
	Description string
	Notes       string
	Amount      float64
	Currency    string
	Category    string
	// PaidBy defaults to the caller.
	PaidBy string
	// ExpenseDate defaults to now.
	ExpenseDate *time.Time
	Splits      []SplitInput
	BillImage   *Upload
}

// ExpensePatch carries the fields of an update. Nil fields are left as they
// are; a non-nil Splits replaces the whole split list.
type ExpensePatch struct {
	Title          *string
	Description    *string
	Notes          *string
	Amount         *float64
	Currency       *string
	Category       *string
	PaidBy         *string
	ExpenseDate    *time.Time
	Splits         []SplitInput
	BillImage      *Upload
	ClearBillImage bool
}

// CreateExpense validates and stores a new expense in tripID.
func (l *Ledger) CreateExpense(ctx context.Context, caller string, tripID uuid.UUID, in NewExpense) (*db.Expense, error) {
	trip, err := l.loadTrip(ctx, caller, tripID)
	if err != nil {
		return nil, err
	}

	title, err := verifyText("title", in.Title, true, maxTitleLength)
	if err != nil {
		return nil, err
	}
	description, err := verifyText("description", in.Description, false, maxTextLength)
	if err != nil {
		return nil, err
	}
	notes, err := verifyText("notes", in.Notes, false, maxTextLength)
	if err != nil {
		return nil, err
	}
	amount, err := verifyAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	category, err := verifyCategory(in.Category)
	if err != nil {
		return nil, err
	}
	currency, err := verifyCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if err := verifySplits(in.Splits); err != nil {
		return nil, err
	}
	paidBy := in.PaidBy
	if paidBy == "" {
		paidBy = caller
	}
	if err := checkMembers(trip, paidBy, in.Splits); err != nil {
		return nil, err
	}
	splits, err := allocateSplits(amount, in.Splits)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	expenseDate := now
	if in.ExpenseDate != nil {
		expenseDate = in.ExpenseDate.UTC()
	}
	expense := &db.Expense{
		ID:          uuid.New(),
		TripID:      trip.ID,
		Title:       title,
		Description: description,
		Notes:       notes,
		Amount:      amount,
		Currency:    currency,
		Category:    category,
		PaidBy:      paidBy,
		CreatedBy:   caller,
		ExpenseDate: expenseDate,
		Splits:      splits,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.BillImage != nil {
		ref, err := l.saveUpload(ctx, "billImage", billImageFolder, in.BillImage)
		if err != nil {
			return nil, fmt.Errorf("save bill image: %w", err)
		}
		expense.BillImageRef = ref
	}

	if err := l.trips.CreateExpense(ctx, expense); err != nil {
		l.removeFile(ctx, expense.BillImageRef)
		return nil, storeErr(err, resourceTrip, trip.ID.String())
	}
	l.publish(ctx, mq.ActionCreate, caller, expense, nil)
	return expense, nil
}

// UpdateExpense applies patch to an expense. Only the uploader or a trip
// Admin may update. A split stays paid only if its user is still present and
// its amount did not move.
func (l *Ledger) UpdateExpense(ctx context.Context, caller string, expenseID uuid.UUID, patch ExpensePatch) (*db.Expense, error) {
	stored, trip, err := l.loadExpense(ctx, caller, expenseID)
	if err != nil {
		return nil, err
	}
	if stored.CreatedBy != caller && !trip.IsAdmin(caller) {
		return nil, denied(caller, "update expense "+expenseID.String())
	}

	updated := stored.Clone()
	if patch.Title != nil {
		if updated.Title, err = verifyText("title", *patch.Title, true, maxTitleLength); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		if updated.Description, err = verifyText("description", *patch.Description, false, maxTextLength); err != nil {
			return nil, err
		}
	}
	if patch.Notes != nil {
		if updated.Notes, err = verifyText("notes", *patch.Notes, false, maxTextLength); err != nil {
			return nil, err
		}
	}
	if patch.Amount != nil {
		if updated.Amount, err = verifyAmount(*patch.Amount); err != nil {
			return nil, err
		}
	}
	if patch.Currency != nil {
		if updated.Currency, err = verifyCurrency(*patch.Currency); err != nil {
			return nil, err
		}
	}
	if patch.Category != nil {
		if updated.Category, err = verifyCategory(*patch.Category); err != nil {
			return nil, err
		}
	}
	if patch.PaidBy != nil {
		updated.PaidBy = *patch.PaidBy
	}
	if patch.ExpenseDate != nil {
		updated.ExpenseDate = patch.ExpenseDate.UTC()
	}

	inputs := make([]SplitInput, len(stored.Splits))
	for i, s := range stored.Splits {
		inputs[i] = SplitInput{UserID: s.UserID, Percentage: s.Percentage}
	}
	if patch.Splits != nil {
		if err := verifySplits(patch.Splits); err != nil {
			return nil, err
		}
		inputs = patch.Splits
	}
	if err := checkMembers(trip, updated.PaidBy, inputs); err != nil {
		return nil, err
	}
	if patch.Splits != nil || updated.Amount != stored.Amount || updated.PaidBy != stored.PaidBy {
		splits, err := allocateSplits(updated.Amount, inputs)
		if err != nil {
			return nil, err
		}
		updated.Splits = carryPaid(stored, updated.PaidBy, splits)
	}

	if patch.BillImage != nil {
		ref, err := l.saveUpload(ctx, "billImage", billImageFolder, patch.BillImage)
		if err != nil {
			return nil, fmt.Errorf("save bill image: %w", err)
		}
		updated.BillImageRef = ref
	} else if patch.ClearBillImage {
		updated.BillImageRef = ""
	}
	updated.UpdatedAt = l.now().UTC()

	if err := l.trips.ReplaceExpense(ctx, &updated); err != nil {
		if updated.BillImageRef != stored.BillImageRef {
			l.removeFile(ctx, updated.BillImageRef)
		}
		return nil, storeErr(err, resourceExpense, expenseID.String())
	}
	if updated.BillImageRef != stored.BillImageRef {
		l.removeFile(ctx, stored.BillImageRef)
	}

	changes, err := diff.ExpenseChanges(*stored, updated)
	if err != nil {
		l.logger.WarnContext(ctx, "failed to diff expense", "expense", expenseID, "error", err)
	}
	l.publish(ctx, mq.ActionUpdate, caller, &updated, changes)
	return &updated, nil
}

// DeleteExpense removes an expense with all its splits. The bill image is
// removed afterwards on a best-effort basis.
func (l *Ledger) DeleteExpense(ctx context.Context, caller string, expenseID uuid.UUID) error {
	stored, trip, err := l.loadExpense(ctx, caller, expenseID)
	if err != nil {
		return err
	}
	if stored.CreatedBy != caller && !trip.IsAdmin(caller) {
		return denied(caller, "delete expense "+expenseID.String())
	}
	if err := l.trips.DeleteExpense(ctx, expenseID); err != nil {
		return storeErr(err, resourceExpense, expenseID.String())
	}
	l.removeFile(ctx, stored.BillImageRef)
	l.publish(ctx, mq.ActionDelete, caller, stored, nil)
	return nil
}

// MarkSplitPaid records that userID paid their share of an expense. The
// split's user, the payer and trip Admins may do this. Marking an already
// paid split is a no-op.
func (l *Ledger) MarkSplitPaid(ctx context.Context, caller string, expenseID uuid.UUID, userID string) (*db.Expense, error) {
	stored, trip, err := l.loadExpense(ctx, caller, expenseID)
	if err != nil {
		return nil, err
	}
	if caller != userID && caller != stored.PaidBy && !trip.IsAdmin(caller) {
		return nil, denied(caller, "mark the split of "+userID+" as paid")
	}
	if stored.Split(userID) < 0 {
		return nil, &NotFoundError{Resource: resourceSplit, ID: userID}
	}

	expense, changed, err := l.trips.MarkSplitPaid(ctx, expenseID, userID, l.now().UTC())
	if err != nil {
		return nil, storeErr(err, resourceExpense, expenseID.String())
	}
	if changed {
		l.publish(ctx, mq.ActionSplitPaid, caller, expense, []string{userID})
	}
	return expense, nil
}

// checkMembers requires the payer and every split user to belong to trip.
func checkMembers(trip *db.Trip, paidBy string, splits []SplitInput) error {
	if _, ok := trip.Member(paidBy); !ok {
		return &NotFoundError{Resource: resourceMember, ID: paidBy}
	}
	for _, s := range splits {
		if _, ok := trip.Member(s.UserID); !ok {
			return &NotFoundError{Resource: resourceMember, ID: s.UserID}
		}
	}
	return nil
}

// carryPaid copies the paid state of stored splits whose user and amount are
// unchanged onto next. A new payer starts with every split unpaid.
func carryPaid(stored *db.Expense, paidBy string, next []db.Split) []db.Split {
	if paidBy != stored.PaidBy {
		return next
	}
	byUser := make(map[string]db.Split, len(stored.Splits))
	for _, s := range stored.Splits {
		byUser[s.UserID] = s
	}
	for i := range next {
		prev, ok := byUser[next[i].UserID]
		if ok && prev.Paid && money.Round2(prev.Amount) == money.Round2(next[i].Amount) {
			next[i].Paid = true
			next[i].PaidAt = prev.PaidAt
		}
	}
	return next
}
