package balance

import (
	"container/list"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"tripvault/db/db"
)

// Position is the outstanding money movement of one user, in cents.
type Position struct {
	UserID     string
	Receivable int64 // others still owe this user
	Payable    int64 // this user still owes others
}

func (p Position) Net() int64 {
	return p.Receivable - p.Payable
}

// Transfer is one payment that settles outstanding debt.
type Transfer struct {
	From   string
	To     string
	Amount float64
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s -> %s: %.2f", t.From, t.To, t.Amount)
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func fromCents(c int64) float64 {
	return decimal.New(c, -2).InexactFloat64()
}

// Positions aggregates the unpaid splits of a trip per user, sorted by user id.
func Positions(expenses []db.Expense) []Position {
	byUser := make(map[string]*Position)
	get := func(id string) *Position {
		p, ok := byUser[id]
		if !ok {
			p = &Position{UserID: id}
			byUser[id] = p
		}
		return p
	}
	for key, f := range collectFlows(expenses) {
		cents := toCents(f.outstanding)
		if cents == 0 {
			continue
		}
		get(key.debtor).Payable += cents
		get(key.creditor).Receivable += cents
	}

	out := make([]Position, 0, len(byUser))
	for _, p := range byUser {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// NormalizePositions nets every position so that a user is either only owed
// money or only owes money. Settled users are dropped.
func NormalizePositions(positions []Position) []Position {
	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		net := p.Net()
		switch {
		case net > 0:
			out = append(out, Position{UserID: p.UserID, Receivable: net})
		case net < 0:
			out = append(out, Position{UserID: p.UserID, Payable: -net})
		}
	}
	return out
}

// generateQueues splits positions into creditors and debtors, each sorted by
// amount descending and by user id for equal amounts.
func generateQueues(positions []Position) (*list.List, *list.List) {
	var creditors, debtors []Position
	for _, p := range positions {
		if p.Receivable > p.Payable {
			creditors = append(creditors, Position{UserID: p.UserID, Receivable: p.Receivable - p.Payable})
		} else if p.Payable > p.Receivable {
			debtors = append(debtors, Position{UserID: p.UserID, Payable: p.Payable - p.Receivable})
		}
	}

	sort.SliceStable(creditors, func(i, j int) bool {
		if creditors[i].Receivable == creditors[j].Receivable {
			return creditors[i].UserID < creditors[j].UserID
		}
		return creditors[i].Receivable > creditors[j].Receivable
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		if debtors[i].Payable == debtors[j].Payable {
			return debtors[i].UserID < debtors[j].UserID
		}
		return debtors[i].Payable > debtors[j].Payable
	})

	creditorQueue := list.New()
	for _, p := range creditors {
		creditorQueue.PushBack(p)
	}
	debtorQueue := list.New()
	for _, p := range debtors {
		debtorQueue.PushBack(p)
	}
	return creditorQueue, debtorQueue
}

// PlanSettlements greedily pays the largest creditor from the largest debtors
// until every outstanding debt of the trip is covered. A debtor that pays more
// than the current creditor needs goes back to the queue with the remainder.
func PlanSettlements(expenses []db.Expense) []Transfer {
	creditors, debtors := generateQueues(NormalizePositions(Positions(expenses)))

	var transfers []Transfer
	for creditors.Len() > 0 && debtors.Len() > 0 {
		creditor := creditors.Remove(creditors.Front()).(Position)
		need := creditor.Receivable

		for need > 0 && debtors.Len() > 0 {
			debtor := debtors.Remove(debtors.Front()).(Position)
			pay := min(debtor.Payable, need)
			transfers = append(transfers, Transfer{
				From:   debtor.UserID,
				To:     creditor.UserID,
				Amount: fromCents(pay),
			})
			need -= pay
			if rest := debtor.Payable - pay; rest > 0 {
				debtors.PushBack(Position{UserID: debtor.UserID, Payable: rest})
			}
		}
	}
	return transfers
}
