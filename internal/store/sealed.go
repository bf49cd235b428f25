package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/sealed"
)

// PutSealedInput stores the (sessionId, agentId)-unique sealed envelope,
// replacing any prior upload for the same scope.
func (s *Store) PutSealedInput(ctx context.Context, sessionID, agentID string, env *sealed.Envelope, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sealed_inputs (session_id, agent_id, key_id, iv, auth_tag, cipher_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, agent_id) DO UPDATE SET
			key_id = excluded.key_id, iv = excluded.iv, auth_tag = excluded.auth_tag,
			cipher_text = excluded.cipher_text, created_at = excluded.created_at`,
		sessionID, agentID, env.KeyID, env.IV, env.AuthTag, env.CipherText, now,
	)
	if err != nil {
		return fmt.Errorf("store: put sealed input: %w", err)
	}
	return nil
}

// GetSealedInput fetches the sealed envelope for (sessionID, agentID).
func (s *Store) GetSealedInput(ctx context.Context, sessionID, agentID string) (*sealed.Envelope, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key_id, iv, auth_tag, cipher_text FROM sealed_inputs
		WHERE session_id = ? AND agent_id = ?`, sessionID, agentID)

	var env sealed.Envelope
	if err := row.Scan(&env.KeyID, &env.IV, &env.AuthTag, &env.CipherText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan sealed input: %w", err)
	}
	return &env, nil
}

// HasBothSealedInputs reports whether both participants of a session have
// uploaded sealed inputs.
func (s *Store) HasBothSealedInputs(ctx context.Context, sessionID, agentA, agentB string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sealed_inputs WHERE session_id = ? AND agent_id IN (?, ?)`,
		sessionID, agentA, agentB,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: count sealed inputs: %w", err)
	}
	return count >= 2, nil
}
