package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tripvault/db/db"
	"tripvault/db/mem"
	"tripvault/ledger"
	"tripvault/mq/goch"
	"tripvault/mq/mq"
)

type fakeFiles struct {
	mu         sync.Mutex
	files      map[string][]byte
	deleted    []string
	failDelete bool
	n          int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: map[string][]byte{}}
}

func (f *fakeFiles) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	ref := fmt.Sprintf("%s/%d%s", folder, f.n, path.Ext(filename))
	f.files[ref] = b
	return ref, nil
}

func (f *fakeFiles) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[ref]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeFiles) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	if f.failDelete {
		return errors.New("disk unavailable")
	}
	delete(f.files, ref)
	return nil
}

// stepClock returns a clock that advances one minute per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

type fixture struct {
	ledger *ledger.Ledger
	trips  db.TripDBWrapper
	users  db.UserDBWrapper
	files  *fakeFiles
	events mq.ExpenseMessageQueueWrapper
	trip   *db.Trip
}

// newFixture builds a ledger with a trip where alice is Admin, bob and carol
// are Editors and victor is a Viewer.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		trips:  mem.NewInMemoryTripDBWrapper(),
		users:  mem.NewInMemoryUserDBWrapper(),
		files:  newFakeFiles(),
		events: goch.NewGoChanExpenseMessageQueueWrapper(goch.DefaultBufferSize),
	}
	t.Cleanup(f.events.Close)
	f.ledger = ledger.New(f.trips, f.users, f.files, f.events, ledger.WithClock(stepClock()))

	trip, err := f.ledger.CreateTrip(context.Background(), "alice", ledger.NewTrip{
		Name: "Goa",
		Members: []ledger.MemberInput{
			{UserID: "bob"},
			{UserID: "carol", Role: db.RoleEditor},
			{UserID: "victor", Role: db.RoleViewer},
		},
		Budget: db.Budget{Total: 5000},
	})
	require.NoError(t, err)
	f.trip = trip
	return f
}

func (f *fixture) subscribe(t *testing.T, action mq.Action) <-chan mq.ExpenseMessage {
	t.Helper()
	queue := f.events.GetExpenseMessageQueue(action)
	id, ch, err := queue.Subscribe(f.trip.ID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.DeSubscribe(id) })
	return ch
}

func (f *fixture) addExpense(t *testing.T, caller string, amount float64, splits ...ledger.SplitInput) *db.Expense {
	t.Helper()
	e, err := f.ledger.CreateExpense(context.Background(), caller, f.trip.ID, ledger.NewExpense{
		Title:    "Dinner",
		Amount:   amount,
		Category: "food",
		Splits:   splits,
	})
	require.NoError(t, err)
	return e
}

const (
	pngMagic  = "\x89PNG\r\n\x1a\n"
	jpegMagic = "\xff\xd8\xff\xe0"
	pdfMagic  = "%PDF-1.4\n"
)

func upload(filename, content string) *ledger.Upload {
	return &ledger.Upload{Filename: filename, Body: strings.NewReader(content)}
}

func half(a, b string) []ledger.SplitInput {
	return []ledger.SplitInput{{UserID: a, Percentage: 50}, {UserID: b, Percentage: 50}}
}

func receive(t *testing.T, ch <-chan mq.ExpenseMessage) mq.ExpenseMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return mq.ExpenseMessage{}
}

func assertNoEvent(t *testing.T, ch <-chan mq.ExpenseMessage) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected event %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

var unknownID = uuid.MustParse("00000000-0000-0000-0000-000000000042")
