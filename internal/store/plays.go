package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spinwin/internal/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var ErrDisabled = errors.New("play log disabled")

const schemaPlays = `CREATE TABLE IF NOT EXISTS plays (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	session_id VARCHAR(64) NOT NULL,
	kiosk_id VARCHAR(64) NOT NULL,
	review_reference VARCHAR(128) NOT NULL DEFAULT '',
	reward_id VARCHAR(64) NOT NULL,
	reward_name VARCHAR(128) NOT NULL DEFAULT '',
	is_winner TINYINT(1) NOT NULL DEFAULT 0,
	redemption_code VARCHAR(64) NOT NULL DEFAULT '',
	unique_code VARCHAR(128) NOT NULL DEFAULT '',
	segment_index INT NOT NULL,
	matched TINYINT(1) NOT NULL DEFAULT 1,
	rotation_deg DOUBLE NOT NULL,
	created_at DATETIME(3) NOT NULL,
	KEY idx_plays_kiosk_created (kiosk_id, created_at),
	KEY idx_plays_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Plays is the MySQL play log. A nil DB disables it: writes are dropped and
// reads return ErrDisabled.
type Plays struct {
	DB *sql.DB
}

func NewPlays(db *sql.DB) *Plays {
	return &Plays{DB: db}
}

func (p *Plays) Enabled() bool {
	return p != nil && p.DB != nil
}

func (p *Plays) EnsureSchema(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, schemaPlays)
	return err
}

func (p *Plays) Record(ctx context.Context, play models.Play) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	if play.CreatedAt.IsZero() {
		play.CreatedAt = time.Now()
	}
	res, err := p.DB.ExecContext(ctx, `INSERT INTO plays
		(session_id, kiosk_id, review_reference, reward_id, reward_name, is_winner, redemption_code, unique_code, segment_index, matched, rotation_deg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		play.SessionID, play.KioskID, play.ReviewReference, play.RewardID, play.RewardName, play.IsWinner,
		play.RedemptionCode, play.UniqueCode, play.SegmentIndex, play.Matched, play.RotationDeg, play.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns the newest plays first, optionally for one kiosk.
func (p *Plays) List(ctx context.Context, kioskID string, limit int) ([]models.Play, error) {
	if !p.Enabled() {
		return nil, ErrDisabled
	}
	limit = clampLimit(limit)
	query := `SELECT id, session_id, kiosk_id, review_reference, reward_id, reward_name, is_winner, redemption_code,
		unique_code, segment_index, matched, rotation_deg, created_at FROM plays`
	args := []any{}
	if kioskID != "" {
		query += ` WHERE kiosk_id=?`
		args = append(args, kioskID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.Play, 0, limit)
	for rows.Next() {
		var pl models.Play
		if err := rows.Scan(&pl.ID, &pl.SessionID, &pl.KioskID, &pl.ReviewReference, &pl.RewardID, &pl.RewardName,
			&pl.IsWinner, &pl.RedemptionCode, &pl.UniqueCode, &pl.SegmentIndex, &pl.Matched, &pl.RotationDeg, &pl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

type Stats struct {
	Total    int64 `json:"total"`
	Winners  int64 `json:"winners"`
	TryAgain int64 `json:"try_again"`
	Mismatch int64 `json:"mismatch"`
}

func (p *Plays) Stats(ctx context.Context, since time.Time) (Stats, error) {
	if !p.Enabled() {
		return Stats{}, ErrDisabled
	}
	var st Stats
	row := p.DB.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(is_winner), 0),
		COALESCE(SUM(1 - is_winner), 0),
		COALESCE(SUM(1 - matched), 0)
		FROM plays WHERE created_at >= ?`, since.UTC())
	if err := row.Scan(&st.Total, &st.Winners, &st.TryAgain, &st.Mismatch); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Purge deletes plays older than before and returns how many went.
func (p *Plays) Purge(ctx context.Context, before time.Time) (int64, error) {
	if !p.Enabled() {
		return 0, ErrDisabled
	}
	res, err := p.DB.ExecContext(ctx, `DELETE FROM plays WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
