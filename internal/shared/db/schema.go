package db

var schema = []string{
	// carteiras e movimentos (ledger)
	`CREATE TABLE IF NOT EXISTS wallets (
		id               UUID PRIMARY KEY,
		user_id          TEXT NOT NULL UNIQUE,
		balance_cents    BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
		total_won_cents  BIGINT NOT NULL DEFAULT 0,
		total_lost_cents BIGINT NOT NULL DEFAULT 0,
		version          BIGINT NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_ledger (
		id             BIGSERIAL PRIMARY KEY,
		wallet_id      UUID NOT NULL REFERENCES wallets(id),
		operation_type TEXT NOT NULL,
		amount_cents   BIGINT NOT NULL,
		external_ref   TEXT NOT NULL UNIQUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// séries e lançamentos (table-service); o id da série é sequencial por mesa
	`CREATE TABLE IF NOT EXISTS craps_series (
		table_id   TEXT NOT NULL,
		id         BIGINT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at   TIMESTAMPTZ,
		voided     BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (table_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS craps_rolls (
		table_id    TEXT NOT NULL,
		series_id   BIGINT NOT NULL,
		seq         INT NOT NULL,
		die1        SMALLINT NOT NULL CHECK (die1 BETWEEN 1 AND 6),
		die2        SMALLINT NOT NULL CHECK (die2 BETWEEN 1 AND 6),
		total       SMALLINT NOT NULL,
		outcome     TEXT NOT NULL,
		source_ref  TEXT NOT NULL,
		substituted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (table_id, series_id, seq),
		FOREIGN KEY (table_id, series_id) REFERENCES craps_series (table_id, id)
	)`,

	// histórico de eventos (round-archiver)
	`CREATE TABLE IF NOT EXISTS table_event_history (
		id          BIGSERIAL PRIMARY KEY,
		table_id    TEXT NOT NULL,
		series_id   BIGINT NOT NULL,
		kind        TEXT NOT NULL,
		phase       TEXT NOT NULL,
		point       SMALLINT NOT NULL DEFAULT 0,
		roll_seq    INT,
		payload     JSONB NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS table_event_history_roll_uq
		ON table_event_history (table_id, series_id, roll_seq) WHERE roll_seq IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS table_state_current (
		table_id    TEXT PRIMARY KEY,
		series_id   BIGINT NOT NULL,
		phase       TEXT NOT NULL,
		point       SMALLINT NOT NULL DEFAULT 0,
		last_kind   TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
}
