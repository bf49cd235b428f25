package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// schema holds every CREATE TABLE IF NOT EXISTS statement. Re-running it
// against an existing database is always safe.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	endpoint           TEXT NOT NULL DEFAULT '',
	api_key            TEXT NOT NULL DEFAULT '',
	payout_address     TEXT NOT NULL DEFAULT '',
	enabled            BOOLEAN NOT NULL DEFAULT 1,
	metadata           TEXT NOT NULL DEFAULT '{}',
	last_health_status TEXT NOT NULL DEFAULT 'unknown',
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_enabled ON agents(enabled);

CREATE TABLE IF NOT EXISTS sessions (
	id                    TEXT PRIMARY KEY,
	topic                 TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL,
	proposer_agent_id     TEXT NOT NULL,
	counterparty_agent_id TEXT NOT NULL DEFAULT '',
	terms                 TEXT NOT NULL DEFAULT '{}',
	created_at            TIMESTAMP NOT NULL,
	updated_at            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_proposer ON sessions(proposer_agent_id);
CREATE INDEX IF NOT EXISTS idx_sessions_counterparty ON sessions(counterparty_agent_id);

CREATE TABLE IF NOT EXISTS session_turns (
	session_id TEXT NOT NULL,
	turn       INTEGER NOT NULL,
	status     TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, turn)
);
CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id);

CREATE TABLE IF NOT EXISTS attestations (
	session_id     TEXT PRIMARY KEY,
	signer_address TEXT NOT NULL,
	payload_hash   TEXT NOT NULL,
	signature      TEXT NOT NULL,
	payload        TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS escrow_records (
	session_id            TEXT PRIMARY KEY,
	contract_address      TEXT NOT NULL,
	token_address         TEXT NOT NULL DEFAULT '',
	stake_amount          TEXT NOT NULL,
	status                TEXT NOT NULL,
	tx_hash               TEXT NOT NULL DEFAULT '',
	player_a_agent_id     TEXT NOT NULL,
	player_b_agent_id     TEXT NOT NULL,
	player_a_deposited    BOOLEAN NOT NULL DEFAULT 0,
	player_b_deposited    BOOLEAN NOT NULL DEFAULT 0,
	settlement_attempts   INTEGER NOT NULL DEFAULT 0,
	last_settlement_error TEXT NOT NULL DEFAULT '',
	last_settlement_at    TIMESTAMP,
	created_at            TIMESTAMP NOT NULL,
	updated_at            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_escrow_status ON escrow_records(status);

CREATE TABLE IF NOT EXISTS sealed_inputs (
	session_id  TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	key_id      TEXT NOT NULL,
	iv          TEXT NOT NULL,
	auth_tag    TEXT NOT NULL,
	cipher_text TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, agent_id)
);
`

// migrations lists idempotent ALTER TABLE statements applied after schema,
// for columns added after the initial release. "duplicate column name" is
// swallowed so re-running against an already-migrated database is a
// no-op, matching the idempotent-migration discipline of the reference
// sqlite store this package is grounded on.
var migrations = []string{
	`ALTER TABLE agents ADD COLUMN last_seen_at TIMESTAMP`,
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("store: apply migration %q: %w", stmt, err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
