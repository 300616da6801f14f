package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInitTables, downInitTables)
}

func upInitTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE trips (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			budget_total NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (budget_total >= 0),
			budget_currency VARCHAR(3) NOT NULL DEFAULT 'INR',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		CREATE TABLE trip_members (
			trip_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL CHECK (role IN ('Admin', 'Editor', 'Viewer')),
			joined_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (trip_id, user_id),
			CONSTRAINT fk_trip_members_trip
				FOREIGN KEY(trip_id)
				REFERENCES trips(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expenses (
			id UUID PRIMARY KEY,
			trip_id UUID NOT NULL,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
			currency VARCHAR(3) NOT NULL DEFAULT 'INR',
			category VARCHAR(32) NOT NULL CHECK (category IN ('travel', 'food', 'accommodation', 'others')),
			paid_by VARCHAR(255) NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			expense_date TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			bill_image_ref VARCHAR(512) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_expenses_trip
				FOREIGN KEY(trip_id)
				REFERENCES trips(id)
				ON UPDATE CASCADE
				ON DELETE RESTRICT
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_expenses_trip_id_expense_date ON expenses(trip_id, expense_date DESC);`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expense_splits (
			expense_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			position INTEGER NOT NULL,
			percentage NUMERIC(9,4) NOT NULL CHECK (percentage >= 0 AND percentage <= 100),
			amount NUMERIC(12,2) NOT NULL,
			paid BOOLEAN NOT NULL DEFAULT FALSE,
			paid_at TIMESTAMPTZ,
			PRIMARY KEY (expense_id, user_id),
			CONSTRAINT fk_expense_splits_expense
				FOREIGN KEY(expense_id)
				REFERENCES expenses(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_expense_splits_user_id ON expense_splits(user_id);`)
	if err != nil {
		return err
	}

	return nil
}

func downInitTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS expense_splits;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS expenses;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS trip_members;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS trips;`)
	if err != nil {
		return err
	}

	return nil
}
