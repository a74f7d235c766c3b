package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codevoice/backend/internal/model"
)

// SessionRecord is one row of the operational session history.
type SessionRecord struct {
	SessionID   string     `json:"session_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	PeakMembers int        `json:"peak_members"`
}

// HistoryRepository provides data access for the session history. It
// implements collab.HistoryRecorder.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordCreated inserts a row when a session is created.
func (r *HistoryRepository) RecordCreated(ctx context.Context, sessionID string, createdAt time.Time) error {
	query := `
		INSERT INTO session_history (session_id, created_at, peak_members)
		VALUES (?, ?, 0)
	`

	_, err := r.db.ExecContext(ctx, query, sessionID, createdAt)
	if err != nil {
		return fmt.Errorf("failed to record session creation: %w", err)
	}

	return nil
}

// RecordClosed stamps the close time and peak membership of a session.
func (r *HistoryRepository) RecordClosed(ctx context.Context, sessionID string, closedAt time.Time, peakMembers int) error {
	query := `
		UPDATE session_history
		SET closed_at = ?, peak_members = ?
		WHERE session_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, closedAt, peakMembers, sessionID)
	if err != nil {
		return fmt.Errorf("failed to record session close: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// GetByID retrieves one history record.
func (r *HistoryRepository) GetByID(ctx context.Context, sessionID string) (*SessionRecord, error) {
	query := `
		SELECT session_id, created_at, closed_at, peak_members
		FROM session_history
		WHERE session_id = ?
	`

	rec := &SessionRecord{}
	var closedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.CreatedAt,
		&closedAt,
		&rec.PeakMembers,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}

	if closedAt.Valid {
		t := closedAt.Time
		rec.ClosedAt = &t
	}

	return rec, nil
}

// ListRecent retrieves the most recently created records, newest first.
func (r *HistoryRepository) ListRecent(ctx context.Context, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT session_id, created_at, closed_at, peak_members
		FROM session_history
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec := &SessionRecord{}
		var closedAt sql.NullTime

		err := rows.Scan(
			&rec.SessionID,
			&rec.CreatedAt,
			&closedAt,
			&rec.PeakMembers,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}

		if closedAt.Valid {
			t := closedAt.Time
			rec.ClosedAt = &t
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session records: %w", err)
	}

	return records, nil
}

// CountOpen returns how many recorded sessions have not been closed yet.
func (r *HistoryRepository) CountOpen(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM session_history
		WHERE closed_at IS NULL
	`

	var count int
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open sessions: %w", err)
	}

	return count, nil
}
