package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddUserTables, downAddUserTables)
}

func upAddUserTables(ctx context.Context, tx *sql.Tx) error {
	// Profiles are mirrored from identity token claims.
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE user_profiles (
			id VARCHAR(255) PRIMARY KEY,
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			image_url VARCHAR(512) NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		CREATE TABLE payment_settings (
			user_id VARCHAR(255) PRIMARY KEY,
			upi_id VARCHAR(255) NOT NULL DEFAULT '',
			qr_code_ref VARCHAR(512) NOT NULL DEFAULT '',
			phone_number VARCHAR(32) NOT NULL DEFAULT '',
			bank_name VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	return nil
}

func downAddUserTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS payment_settings;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS user_profiles;`)
	if err != nil {
		return err
	}

	return nil
}
