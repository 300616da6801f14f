package mem

import (
	"context"
	"fmt"
	"sync"

	dbt "tripvault/db/db"
)

type inMemoryUserDBWrapper struct {
	profiles map[string]dbt.UserProfile
	payments map[string]dbt.PaymentSettings

	mu sync.RWMutex
}

func NewInMemoryUserDBWrapper() dbt.UserDBWrapper {
	return &inMemoryUserDBWrapper{
		profiles: make(map[string]dbt.UserProfile),
		payments: make(map[string]dbt.PaymentSettings),
	}
}

func (db *inMemoryUserDBWrapper) UpsertProfile(_ context.Context, profile *dbt.UserProfile) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.profiles[profile.ID] = *profile
	return nil
}

func (db *inMemoryUserDBWrapper) GetProfile(_ context.Context, id string) (*dbt.UserProfile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	profile, ok := db.profiles[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, dbt.ErrNotFound)
	}
	return &profile, nil
}

func (db *inMemoryUserDBWrapper) GetPaymentSettings(_ context.Context, userID string) (*dbt.PaymentSettings, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	settings, ok := db.payments[userID]
	if !ok {
		return nil, fmt.Errorf("payment settings for user %s: %w", userID, dbt.ErrNotFound)
	}
	return &settings, nil
}

func (db *inMemoryUserDBWrapper) UpsertPaymentSettings(_ context.Context, settings *dbt.PaymentSettings) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.payments[settings.UserID] = *settings
	return nil
}

// DataLoaderGetProfiles leaves unknown ids out of the result.
func (db *inMemoryUserDBWrapper) DataLoaderGetProfiles(_ context.Context, ids []string) (map[string]*dbt.UserProfile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[string]*dbt.UserProfile, len(ids))
	for _, id := range ids {
		if profile, ok := db.profiles[id]; ok {
			out[id] = &profile
		}
	}
	return out, nil
}

func (db *inMemoryUserDBWrapper) DataLoaderGetPaymentSettings(_ context.Context, userIDs []string) (map[string]*dbt.PaymentSettings, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[string]*dbt.PaymentSettings, len(userIDs))
	for _, id := range userIDs {
		if settings, ok := db.payments[id]; ok {
			out[id] = &settings
		}
	}
	return out, nil
}
