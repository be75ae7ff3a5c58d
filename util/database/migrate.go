package database

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS books (
	id             BIGSERIAL PRIMARY KEY,
	title          TEXT NOT NULL UNIQUE,
	author         TEXT NOT NULL,
	genre          TEXT,
	pages          BIGINT NOT NULL DEFAULT 0,
	year_published BIGINT NOT NULL,
	isbn13         BIGINT NOT NULL UNIQUE,
	img_uri        TEXT UNIQUE,
	status         TEXT NOT NULL DEFAULT 'AVAILABLE'
		CHECK (status IN ('AVAILABLE', 'UNAVAILABLE'))
);

CREATE TABLE IF NOT EXISTS checkouts (
	id          BIGSERIAL PRIMARY KEY,
	user_id     BIGINT NOT NULL REFERENCES users (id),
	book_id     BIGINT NOT NULL REFERENCES books (id),
	borrowed_at TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS checkouts_book_borrowed_idx
	ON checkouts (book_id, borrowed_at DESC, id DESC);

-- One open checkout per book, enforced by the store as well as by the
-- claim gate in the service.
CREATE UNIQUE INDEX IF NOT EXISTS checkouts_one_open_per_book
	ON checkouts (book_id)
	WHERE returned_at IS NULL;
`

// Migrate applies the schema; every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
