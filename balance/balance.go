package balance

import (
	"sort"

	"github.com/shopspring/decimal"

	"tripvault/db/db"
	"tripvault/libs/money"
)

const UnknownUser = "Unknown User"

type Options struct {
	// IncludeSettled also lists counterparts whose splits are all paid, with
	// the settled gross amount and IsPaid set.
	IncludeSettled bool
	// Names maps user id to display name.
	Names map[string]string
	// Payments is attached to matching counterparts when present.
	Payments map[string]*db.PaymentSettings
}

type Counterpart struct {
	UserID          string
	UserName        string
	Amount          float64 // positive: the counterpart owes the viewer
	IsPaid          bool
	PaymentSettings *db.PaymentSettings
}

type Summary struct {
	UserPaid     float64
	UserOwes     float64
	Balance      float64
	BalancesWith []Counterpart
}

type pair struct {
	debtor   string
	creditor string
}

// flow is what one debtor owes one creditor over all expenses of a trip.
type flow struct {
	gross       decimal.Decimal
	outstanding decimal.Decimal
	splits      int
	paid        int
}

// collectFlows walks every split that moves money between two different
// users. Expenses without a payer and non-positive split amounts are skipped.
func collectFlows(expenses []db.Expense) map[pair]*flow {
	flows := make(map[pair]*flow)
	for _, e := range expenses {
		if e.PaidBy == "" {
			continue
		}
		for _, s := range e.Splits {
			if s.UserID == e.PaidBy || s.UserID == "" || s.Amount <= 0 {
				continue
			}
			key := pair{debtor: s.UserID, creditor: e.PaidBy}
			f, ok := flows[key]
			if !ok {
				f = &flow{}
				flows[key] = f
			}
			amount := decimal.NewFromFloat(s.Amount)
			f.gross = f.gross.Add(amount)
			f.splits++
			if s.Paid {
				f.paid++
			} else {
				f.outstanding = f.outstanding.Add(amount)
			}
		}
	}
	return flows
}

// ComputeBalance returns userID's position against every user they share an
// expense with. Only unpaid splits count towards the pairwise balance, so a
// counterpart whose splits are all paid is settled.
func ComputeBalance(trip *db.Trip, expenses []db.Expense, userID string, opts Options) Summary {
	paid := decimal.Zero
	owes := decimal.Zero
	for _, e := range expenses {
		if e.PaidBy == userID {
			paid = paid.Add(decimal.NewFromFloat(e.Amount))
		}
		for _, s := range e.Splits {
			if s.UserID == userID {
				owes = owes.Add(decimal.NewFromFloat(s.Amount))
			}
		}
	}

	nets := make(map[string]*flow)
	for key, f := range collectFlows(expenses) {
		var other string
		sign := decimal.NewFromInt(1)
		switch userID {
		case key.creditor:
			other = key.debtor
		case key.debtor:
			other = key.creditor
			sign = sign.Neg()
		default:
			continue
		}
		n, ok := nets[other]
		if !ok {
			n = &flow{}
			nets[other] = n
		}
		n.gross = n.gross.Add(f.gross.Mul(sign))
		n.outstanding = n.outstanding.Add(f.outstanding.Mul(sign))
		n.splits += f.splits
		n.paid += f.paid
	}

	others := make([]string, 0, len(nets))
	for other := range nets {
		others = append(others, other)
	}
	sort.Strings(others)

	total := decimal.Zero
	entries := make([]Counterpart, 0, len(others))
	for _, other := range others {
		n := nets[other]
		total = total.Add(n.outstanding)

		amount := n.outstanding.Round(2)
		isPaid := n.splits > 0 && n.paid == n.splits
		if amount.IsZero() {
			if !opts.IncludeSettled || !isPaid {
				continue
			}
			amount = n.gross.Round(2)
			if amount.IsZero() {
				continue
			}
		}
		entries = append(entries, Counterpart{
			UserID:          other,
			UserName:        displayName(trip, other, opts.Names),
			Amount:          amount.InexactFloat64(),
			IsPaid:          isPaid,
			PaymentSettings: activeSettings(opts.Payments, other),
		})
	}

	return Summary{
		UserPaid:     money.Round2(paid.InexactFloat64()),
		UserOwes:     money.Round2(owes.InexactFloat64()),
		Balance:      total.Round(2).InexactFloat64(),
		BalancesWith: entries,
	}
}

func displayName(trip *db.Trip, userID string, names map[string]string) string {
	if trip == nil {
		return UnknownUser
	}
	if _, ok := trip.Member(userID); !ok {
		return UnknownUser
	}
	if name := names[userID]; name != "" {
		return name
	}
	return UnknownUser
}

func activeSettings(payments map[string]*db.PaymentSettings, userID string) *db.PaymentSettings {
	settings, ok := payments[userID]
	if !ok || settings == nil || !settings.IsActive {
		return nil
	}
	return settings
}
