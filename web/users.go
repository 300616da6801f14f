package web

import (
	"context"
	"log/slog"
	"slices"

	"tripvault/db/db"
)

// lookupUsers resolves display names and payment settings for ids through
// the request's data loader. Users that cannot be resolved are left out.
func lookupUsers(ctx context.Context, ids []string, withPayments bool) (map[string]string, map[string]*db.PaymentSettings) {
	names := make(map[string]string, len(ids))
	payments := make(map[string]*db.PaymentSettings)

	loader, ok := db.UserDataLoaderFrom(ctx)
	if !ok || len(ids) == 0 {
		return names, payments
	}

	profiles, err := loader.GetProfile.LoadAll(ctx, ids)
	if err != nil {
		slog.DebugContext(ctx, "some profiles could not be loaded", "error", err)
	}
	for i, p := range profiles {
		if i < len(ids) && p != nil {
			names[ids[i]] = p.DisplayName()
		}
	}

	if withPayments {
		settings, err := loader.GetPaymentSettings.LoadAll(ctx, ids)
		if err != nil {
			slog.DebugContext(ctx, "some payment settings could not be loaded", "error", err)
		}
		for i, s := range settings {
			if i < len(ids) && s != nil {
				payments[ids[i]] = s
			}
		}
	}
	return names, payments
}

func tripUserIDs(trip *db.Trip, expenses ...db.Expense) []string {
	var ids []string
	for _, m := range trip.Members {
		ids = append(ids, m.UserID)
	}
	for _, e := range expenses {
		ids = append(ids, expenseUserIDs(&e)...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func expenseUserIDs(e *db.Expense) []string {
	ids := []string{e.PaidBy}
	for _, s := range e.Splits {
		ids = append(ids, s.UserID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
