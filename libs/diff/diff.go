package diff

import (
	"reflect"
	"slices"
	"strings"
	"time"

	odiff "github.com/r3labs/diff/v3"
	"github.com/shopspring/decimal"

	"tripvault/db/db"
)

func GetCustomDiffer() *odiff.Differ {
	ret, err := odiff.NewDiffer(odiff.CustomValueDiffers(&AmountComparer{}))
	if err != nil {
		panic(err)
	}
	return ret
}

// AmountComparer treats two float64 values as equal when they round to the
// same cent.
type AmountComparer struct{}

var (
	floatType = reflect.TypeOf(float64(0))
)

// Match check is field match this custom type
func (c AmountComparer) Match(a, b reflect.Value) bool {
	aok := a.Kind() == floatType.Kind()
	bok := b.Kind() == floatType.Kind()
	return (aok && bok) || (a.Kind() == reflect.Invalid && bok) || (b.Kind() == reflect.Invalid && aok)
}

// Diff records an update only when the cent value moved
func (c AmountComparer) Diff(_ odiff.DiffType, _ odiff.DiffFunc, cl *odiff.Changelog, path []string, a reflect.Value, b reflect.Value, _ interface{}) error {
	if !a.IsValid() || !b.IsValid() {
		if a.IsValid() != b.IsValid() {
			cl.Add(odiff.UPDATE, path, valueOrNil(a), valueOrNil(b))
		}
		return nil
	}

	f1 := decimal.NewFromFloat(a.Float()).Round(2)
	f2 := decimal.NewFromFloat(b.Float()).Round(2)
	if !f1.Equal(f2) {
		cl.Add(odiff.UPDATE, path, a.Float(), b.Float())
	}
	return nil
}

// InsertParentDiffer is a no-op, amounts are leaves.
func (c AmountComparer) InsertParentDiffer(_ func(path []string, a reflect.Value, b reflect.Value, p interface{}) error) {
}

func valueOrNil(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

type expenseView struct {
	Title        string      `diff:"title"`
	Description  string      `diff:"description"`
	Notes        string      `diff:"notes"`
	Amount       float64     `diff:"amount"`
	Currency     string      `diff:"currency"`
	Category     string      `diff:"category"`
	PaidBy       string      `diff:"paidBy"`
	ExpenseDate  time.Time   `diff:"expenseDate"`
	BillImageRef string      `diff:"billImage"`
	Splits       []splitView `diff:"splits"`
}

type splitView struct {
	UserID     string  `diff:"userId,identifier"`
	Percentage float64 `diff:"percentage"`
	Amount     float64 `diff:"amount"`
	Paid       bool    `diff:"paid"`
}

func viewOf(e db.Expense) expenseView {
	v := expenseView{
		Title:        e.Title,
		Description:  e.Description,
		Notes:        e.Notes,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Category:     string(e.Category),
		PaidBy:       e.PaidBy,
		ExpenseDate:  e.ExpenseDate.UTC(),
		BillImageRef: e.BillImageRef,
		Splits:       make([]splitView, 0, len(e.Splits)),
	}
	for _, s := range e.Splits {
		v.Splits = append(v.Splits, splitView{
			UserID:     s.UserID,
			Percentage: s.Percentage,
			Amount:     s.Amount,
			Paid:       s.Paid,
		})
	}
	return v
}

// ExpenseChanges lists the dotted paths of every user-visible field that
// differs between two versions of an expense, e.g. "title" or
// "splits.bob.amount". Bookkeeping fields such as timestamps are ignored.
func ExpenseChanges(before, after db.Expense) ([]string, error) {
	changelog, err := GetCustomDiffer().Diff(viewOf(before), viewOf(after))
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(changelog))
	for _, change := range changelog {
		paths = append(paths, strings.Join(change.Path, "."))
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}
