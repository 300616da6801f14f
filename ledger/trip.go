package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"tripvault/db/db"
	"tripvault/libs/money"
)

type MemberInput struct {
	UserID string
	Role   db.Role
}

type NewTrip struct {
	Name    string
	Members []MemberInput
	Budget  db.Budget
}

// CreateTrip stores a new trip. The caller always becomes an Admin member;
// repeated user ids collapse into their first entry.
func (l *Ledger) CreateTrip(ctx context.Context, caller string, in NewTrip) (*db.Trip, error) {
	name, err := verifyText("name", in.Name, true, maxTripNameLength)
	if err != nil {
		return nil, err
	}
	budget, err := verifyBudget(in.Budget)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	trip := &db.Trip{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: caller,
		Members:   []db.Member{{UserID: caller, Role: db.RoleAdmin, JoinedAt: now}},
		Budget:    budget,
		CreatedAt: now,
		UpdatedAt: now,
	}
	seen := map[string]bool{caller: true}
	for _, m := range in.Members {
		if !isSafeIdentifier(m.UserID) {
			return nil, invalid("members", "member user id is invalid")
		}
		role := m.Role
		if role == "" {
			role = db.RoleEditor
		}
		if !role.Valid() {
			return nil, invalid("members", fmt.Sprintf("unknown role %q", m.Role))
		}
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		trip.Members = append(trip.Members, db.Member{UserID: m.UserID, Role: role, JoinedAt: now})
	}

	if err := l.trips.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	l.logger.InfoContext(ctx, "trip created", "trip", trip.ID, "members", len(trip.Members))
	return trip, nil
}

func (l *Ledger) GetTrip(ctx context.Context, caller string, tripID uuid.UUID) (*db.Trip, error) {
	return l.loadTrip(ctx, caller, tripID)
}

// UpdateBudget replaces the trip budget. Only Admins may do this.
func (l *Ledger) UpdateBudget(ctx context.Context, caller string, tripID uuid.UUID, in db.Budget) (*db.Trip, error) {
	trip, err := l.loadTrip(ctx, caller, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsAdmin(caller) {
		return nil, denied(caller, "update the budget")
	}
	budget, err := verifyBudget(in)
	if err != nil {
		return nil, err
	}
	if err := l.trips.UpdateTripBudget(ctx, tripID, budget); err != nil {
		return nil, storeErr(err, resourceTrip, tripID.String())
	}
	return l.loadTrip(ctx, caller, tripID)
}

func verifyBudget(in db.Budget) (db.Budget, error) {
	if math.IsNaN(in.Total) || math.IsInf(in.Total, 0) || in.Total < 0 {
		return db.Budget{}, invalid("budget.total", "must be a non-negative number")
	}
	currency, err := verifyCurrency(in.Currency)
	if err != nil {
		return db.Budget{}, err
	}
	return db.Budget{Total: money.Round2(in.Total), Currency: currency}, nil
}
