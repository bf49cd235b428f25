package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// CreateEscrow inserts the one-per-session escrow row produced by
// escrow.Prepare.
func (s *Store) CreateEscrow(ctx context.Context, e *domain.Escrow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escrow_records (
			session_id, contract_address, token_address, stake_amount, status, tx_hash,
			player_a_agent_id, player_b_agent_id, player_a_deposited, player_b_deposited,
			settlement_attempts, last_settlement_error, last_settlement_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.ContractAddress, e.TokenAddress, e.StakeAmount, string(e.Status), e.TxHash,
		e.PlayerAAgentID, e.PlayerBAgentID, e.PlayerADeposited, e.PlayerBDeposited,
		e.SettlementAttempts, e.LastSettlementError, nullTime(e.LastSettlementAt), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert escrow: %w", err)
	}
	return nil
}

// GetEscrow fetches the escrow row for a session, if one exists.
func (s *Store) GetEscrow(ctx context.Context, sessionID string) (*domain.Escrow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, contract_address, token_address, stake_amount, status, tx_hash,
			player_a_agent_id, player_b_agent_id, player_a_deposited, player_b_deposited,
			settlement_attempts, last_settlement_error, last_settlement_at, created_at, updated_at
		FROM escrow_records WHERE session_id = ?`, sessionID)
	return scanEscrow(row)
}

// ListEscrowsByStatus returns every escrow whose status is in statuses,
// used by the automation tick.
func (s *Store) ListEscrowsByStatus(ctx context.Context, statuses []domain.EscrowStatus) ([]*domain.Escrow, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]any, len(statuses))
	query := `SELECT session_id, contract_address, token_address, stake_amount, status, tx_hash,
		player_a_agent_id, player_b_agent_id, player_a_deposited, player_b_deposited,
		settlement_attempts, last_settlement_error, last_settlement_at, created_at, updated_at
		FROM escrow_records WHERE status IN (`
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
		return nil, fmt.Errorf("store: list escrows by status: %w", err)
	}
	defer rows.Close()

	var out []*domain.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEscrow persists the full mutable state of e.
func (s *Store) UpdateEscrow(ctx context.Context, e *domain.Escrow) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE escrow_records SET
			status = ?, tx_hash = ?, player_a_deposited = ?, player_b_deposited = ?,
			settlement_attempts = ?, last_settlement_error = ?, last_settlement_at = ?, updated_at = ?
		WHERE session_id = ?`,
		string(e.Status), e.TxHash, e.PlayerADeposited, e.PlayerBDeposited,
		e.SettlementAttempts, e.LastSettlementError, nullTime(e.LastSettlementAt), e.UpdatedAt, e.SessionID,
	)
	if err != nil {
		return fmt.Errorf("store: update escrow: %w", err)
	}
	return requireRowAffected(res)
}

func scanEscrow(row rowScanner) (*domain.Escrow, error) {
	var e domain.Escrow
	var status string
	var lastSettlementAt sql.NullTime
	err := row.Scan(&e.SessionID, &e.ContractAddress, &e.TokenAddress, &e.StakeAmount, &status, &e.TxHash,
		&e.PlayerAAgentID, &e.PlayerBAgentID, &e.PlayerADeposited, &e.PlayerBDeposited,
		&e.SettlementAttempts, &e.LastSettlementError, &lastSettlementAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan escrow: %w", err)
	}
	e.Status = domain.EscrowStatus(status)
	if lastSettlementAt.Valid {
		e.LastSettlementAt = lastSettlementAt.Time
	}
	return &e, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
