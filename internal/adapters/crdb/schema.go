package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS seats (
	seat_number INT8 PRIMARY KEY CHECK (seat_number BETWEEN 1 AND 31),
	is_available BOOL NOT NULL DEFAULT true,
	booking_id UUID NULL,
	passenger_name STRING NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	full_name STRING NOT NULL,
	class STRING NOT NULL,
	email STRING NOT NULL,
	phone STRING NOT NULL,
	contact_person_name STRING NOT NULL,
	contact_person_phone STRING NOT NULL,
	pickup_point_id STRING NOT NULL,
	destination_id STRING NOT NULL,
	bus_type STRING NOT NULL,
	seat_number INT8 NOT NULL,
	amount INT8 NOT NULL CHECK (amount >= 0),
	referral STRING NOT NULL,
	departure_date STRING NOT NULL,
	status STRING NOT NULL CHECK (status IN ('pending', 'approved', 'cancelled')),
	payment_status STRING NOT NULL CHECK (payment_status IN ('pending', 'completed', 'failed')),
	payment_reference STRING NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	INDEX bookings_status_created_idx (status, created_at),
	INDEX bookings_payment_reference_idx (payment_reference)
);

CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_seat_uq
	ON bookings (seat_number) WHERE status IN ('pending', 'approved');

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type STRING NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type STRING NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ NULL,
	status STRING NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED')),
	dedupe_key STRING NOT NULL UNIQUE,
	INDEX outbox_status_created_idx (status, created_at)
);

CREATE TABLE IF NOT EXISTS reconciliations (
	id UUID PRIMARY KEY,
	payment_reference STRING NOT NULL,
	booking_ids STRING[] NOT NULL,
	reason STRING NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS reconciliations_open_reference
	ON reconciliations (payment_reference) WHERE resolved_at IS NULL;

CREATE TABLE IF NOT EXISTS admins (
	id UUID PRIMARY KEY,
	email STRING NOT NULL UNIQUE,
	password_hash STRING NOT NULL,
	full_name STRING NOT NULL DEFAULT '',
	role STRING NOT NULL DEFAULT 'admin',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}
