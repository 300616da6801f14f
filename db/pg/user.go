package pg

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbt "tripvault/db/db"
)

type GORMUserDBWrapper struct {
	db *gorm.DB
}

func NewGORMUserDBWrapper(db *gorm.DB) dbt.UserDBWrapper {
	return &GORMUserDBWrapper{db: db}
}

func (pgdb *GORMUserDBWrapper) UpsertProfile(ctx context.Context, profile *dbt.UserProfile) error {
	model := UserProfileModel{
		ID:        profile.ID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Email:     profile.Email,
		ImageURL:  profile.ImageURL,
	}
	result := pgdb.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", profile.ID, result.Error)
	}
	return nil
}

func (pgdb *GORMUserDBWrapper) GetProfile(ctx context.Context, id string) (*dbt.UserProfile, error) {
	var model UserProfileModel
	result := pgdb.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", id, result.Error)
	}
	return modelToProfile(&model), nil
}

func (pgdb *GORMUserDBWrapper) GetPaymentSettings(ctx context.Context, userID string) (*dbt.PaymentSettings, error) {
	var model PaymentSettingsModel
	result := pgdb.db.WithContext(ctx).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment settings for user %s: %w", userID, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment settings of %s: %w", userID, result.Error)
	}
	return modelToPaymentSettings(&model), nil
}

func (pgdb *GORMUserDBWrapper) UpsertPaymentSettings(ctx context.Context, settings *dbt.PaymentSettings) error {
	model := PaymentSettingsModel{
		UserID:      settings.UserID,
		UPIID:       settings.UPIID,
		QRCodeRef:   settings.QRCodeRef,
		PhoneNumber: settings.PhoneNumber,
		BankName:    settings.BankName,
		IsActive:    settings.IsActive,
		UpdatedAt:   settings.UpdatedAt,
	}
	result := pgdb.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert payment settings of %s: %w", settings.UserID, result.Error)
	}
	return nil
}

// DataLoaderGetProfiles fetches all requested profiles with a single query.
func (pgdb *GORMUserDBWrapper) DataLoaderGetProfiles(ctx context.Context, ids []string) (map[string]*dbt.UserProfile, error) {
	var models []UserProfileModel
	if err := pgdb.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve profiles: %w", err)
	}
	out := make(map[string]*dbt.UserProfile, len(models))
	for i := range models {
		out[models[i].ID] = modelToProfile(&models[i])
	}
	return out, nil
}

func (pgdb *GORMUserDBWrapper) DataLoaderGetPaymentSettings(ctx context.Context, userIDs []string) (map[string]*dbt.PaymentSettings, error) {
	var models []PaymentSettingsModel
	if err := pgdb.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve payment settings: %w", err)
	}
	out := make(map[string]*dbt.PaymentSettings, len(models))
	for i := range models {
		out[models[i].UserID] = modelToPaymentSettings(&models[i])
	}
	return out, nil
}

func modelToProfile(model *UserProfileModel) *dbt.UserProfile {
	return &dbt.UserProfile{
		ID:        model.ID,
		FirstName: model.FirstName,
		LastName:  model.LastName,
		Email:     model.Email,
		ImageURL:  model.ImageURL,
		UpdatedAt: model.UpdatedAt,
	}
}

func modelToPaymentSettings(model *PaymentSettingsModel) *dbt.PaymentSettings {
	return &dbt.PaymentSettings{
		UserID:      model.UserID,
		UPIID:       model.UPIID,
		QRCodeRef:   model.QRCodeRef,
		PhoneNumber: model.PhoneNumber,
		BankName:    model.BankName,
		IsActive:    model.IsActive,
		UpdatedAt:   model.UpdatedAt,
	}
}
