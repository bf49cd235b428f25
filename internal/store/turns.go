package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// UpsertTurn inserts or replaces the (sessionId, turn)-unique turn row.
func (s *Store) UpsertTurn(ctx context.Context, t *domain.SessionTurn) error {
	summary, err := json.Marshal(t.Summary)
	if err != nil {
		return fmt.Errorf("store: marshal turn summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_turns (session_id, turn, status, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, turn) DO UPDATE SET status = excluded.status, summary = excluded.summary`,
		t.SessionID, t.Turn, string(t.Status), string(summary), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: upsert turn: %w", err)
	}
	return nil
}

// DeleteTurns removes every turn recorded for sessionID. The negotiation
// engine's turn history is replaced wholesale on each run, never appended
// to across runs.
func (s *Store) DeleteTurns(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete turns: %w", err)
	}
	return nil
}

// ListTurns returns every turn for sessionID ordered by turn number.
func (s *Store) ListTurns(ctx context.Context, sessionID string) ([]domain.SessionTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, turn, status, summary, created_at
		FROM session_turns WHERE session_id = ? ORDER BY turn`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionTurn
	for rows.Next() {
		var t domain.SessionTurn
		var status, summary string
		if err := rows.Scan(&t.SessionID, &t.Turn, &status, &summary, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan turn: %w", err)
		}
		t.Status = domain.TurnStatus(status)
		if err := json.Unmarshal([]byte(summary), &t.Summary); err != nil {
			return nil, fmt.Errorf("store: decode turn summary: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateAttestation inserts the one-per-session attestation row, or
// replaces the existing row's signer, hash, signature and payload.
func (s *Store) CreateAttestation(ctx context.Context, a *domain.Attestation) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("store: marshal attestation payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO attestations (session_id, signer_address, payload_hash, signature, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			signer_address = excluded.signer_address, payload_hash = excluded.payload_hash,
			signature = excluded.signature, payload = excluded.payload`,
		a.SessionID, a.SignerAddress, a.PayloadHash, a.Signature, string(payload), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert attestation: %w", err)
	}
	return nil
}

// GetAttestation fetches the attestation for a session, if one exists.
func (s *Store) GetAttestation(ctx context.Context, sessionID string) (*domain.Attestation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, signer_address, payload_hash, signature, payload, created_at
		FROM attestations WHERE session_id = ?`, sessionID)

	var a domain.Attestation
	var payload string
	err := row.Scan(&a.SessionID, &a.SignerAddress, &a.PayloadHash, &a.Signature, &payload, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan attestation: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
		return nil, fmt.Errorf("store: decode attestation payload: %w", err)
	}
	return &a, nil
}
