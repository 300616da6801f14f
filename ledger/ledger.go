// Package ledger owns trips, their expenses and users' payment settings. It
// validates every write, persists through the db wrappers and announces
// expense changes on the message queue.
package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tripvault/db/db"
	"tripvault/metrics"
	"tripvault/mq/mq"
	"tripvault/storage"
)

const (
	billImageFolder = "bills"
	qrCodeFolder    = "qr-codes"
)

type Ledger struct {
	trips  db.TripDBWrapper
	users  db.UserDBWrapper
	files  storage.FileStore
	events mq.ExpenseMessageQueueWrapper
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New builds a Ledger. files and events may be nil, in which case uploads are
// rejected and no events are published.
func New(trips db.TripDBWrapper, users db.UserDBWrapper, files storage.FileStore, events mq.ExpenseMessageQueueWrapper, opts ...Option) *Ledger {
	l := &Ledger{
		trips:  trips,
		users:  users,
		files:  files,
		events: events,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Upload is a file sent along with a write, e.g. a bill image.
type Upload struct {
	Filename string
	Body     io.Reader
}

// saveUpload stores an accepted image or pdf below folder. Rejected files
// are reported as a ValidationError on field.
func (l *Ledger) saveUpload(ctx context.Context, field, folder string, up *Upload) (string, error) {
	if l.files == nil {
		return "", invalid(field, "file uploads are not enabled")
	}
	body, err := storage.CheckUpload(up.Filename, up.Body)
	if err != nil {
		return "", uploadErr(field, err)
	}
	ref, err := l.files.Save(ctx, folder, up.Filename, body)
	if err != nil {
		return "", uploadErr(field, err)
	}
	return ref, nil
}

func uploadErr(field string, err error) error {
	for _, rejected := range []error{storage.ErrUnsupportedType, storage.ErrContentMismatch, storage.ErrEmptyFile, storage.ErrTooLarge} {
		if errors.Is(err, rejected) {
			return invalid(field, rejected.Error())
		}
	}
	return err
}

// removeFile deletes a stored file. Failures are logged and otherwise ignored.
func (l *Ledger) removeFile(ctx context.Context, ref string) {
	if ref == "" || l.files == nil {
		return
	}
	if err := l.files.Delete(ctx, ref); err != nil {
		l.logger.WarnContext(ctx, "failed to delete stored file", "ref", ref, "error", err)
	}
}

// publish announces an expense change. Failures are logged and counted but
// never fail the write that caused them.
func (l *Ledger) publish(ctx context.Context, action mq.Action, actor string, e *db.Expense, changes []string) {
	metrics.ExpenseMutation(action.String())
	if l.events == nil {
		return
	}
	queue := l.events.GetExpenseMessageQueue(action)
	if queue == nil {
		return
	}
	msg := mq.ExpenseMessage{
		TripID:    e.TripID,
		ExpenseID: e.ID,
		Action:    action,
		Actor:     actor,
		Title:     e.Title,
		Amount:    e.Amount,
		Changes:   changes,
		At:        l.now().UTC(),
	}
	if err := queue.Publish(msg); err != nil {
		metrics.PublishFailure(action.String())
		l.logger.WarnContext(ctx, "failed to publish expense event",
			"action", action.String(), "expense", e.ID, "trip", e.TripID, "error", err)
	}
}

// loadTrip fetches a trip and checks that caller belongs to it.
func (l *Ledger) loadTrip(ctx context.Context, caller string, tripID uuid.UUID) (*db.Trip, error) {
	trip, err := l.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, storeErr(err, resourceTrip, tripID.String())
	}
	if _, ok := trip.Member(caller); !ok {
		return nil, denied(caller, "access trip "+trip.ID.String())
	}
	return trip, nil
}

// loadExpense fetches an expense together with its trip and checks that
// caller belongs to the trip.
func (l *Ledger) loadExpense(ctx context.Context, caller string, expenseID uuid.UUID) (*db.Expense, *db.Trip, error) {
	expense, err := l.trips.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, storeErr(err, resourceExpense, expenseID.String())
	}
	trip, err := l.trips.GetTrip(ctx, expense.TripID)
	if err != nil {
		return nil, nil, storeErr(err, resourceTrip, expense.TripID.String())
	}
	if _, ok := trip.Member(caller); !ok {
		return nil, nil, denied(caller, "access expense "+expense.ID.String())
	}
	return expense, trip, nil
}
