package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	terms, err := json.Marshal(sess.Terms)
	if err != nil {
		return fmt.Errorf("store: marshal session terms: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, topic, status, proposer_agent_id, counterparty_agent_id, terms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Topic, string(sess.Status), sess.ProposerAgentID, sess.CounterpartyAgentID,
		string(terms), sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}
	return nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, topic, status, proposer_agent_id, counterparty_agent_id, terms, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListSessions returns every session ordered by created_at descending.
func (s *Store) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, status, proposer_agent_id, counterparty_agent_id, terms, created_at, updated_at
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListSessionsByStatus returns every session whose status is in statuses,
// used by the session list's status filter and the trust leaderboard.
func (s *Store) ListSessionsByStatus(ctx context.Context, statuses []domain.SessionStatus) ([]*domain.Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]any, len(statuses))
	query := "SELECT id, topic, status, proposer_agent_id, counterparty_agent_id, terms, created_at, updated_at FROM sessions WHERE status IN ("
	for i, st := range statuses {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = string(st)
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions by status: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// UpdateSession persists the full mutable state of sess (status, terms,
// counterparty, updatedAt).
func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	terms, err := json.Marshal(sess.Terms)
	if err != nil {
		return fmt.Errorf("store: marshal session terms: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, counterparty_agent_id = ?, terms = ?, updated_at = ?
		WHERE id = ?`,
		string(sess.Status), sess.CounterpartyAgentID, string(terms), sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}
	return requireRowAffected(res)
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var status, terms string
	err := row.Scan(&sess.ID, &sess.Topic, &status, &sess.ProposerAgentID, &sess.CounterpartyAgentID,
		&terms, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan session: %w", err)
	}
	sess.Status = domain.SessionStatus(status)
	if err := json.Unmarshal([]byte(terms), &sess.Terms); err != nil {
		return nil, fmt.Errorf("store: decode session terms: %w", err)
	}
	return &sess, nil
}
