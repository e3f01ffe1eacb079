package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Storage struct {
	db *pgxpool.Pool
}

// New opens a connection pool to Postgres.
func New(dsn string) (*Storage, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return &Storage{db: pool}, nil
}

// Ping checks the database connection.
func (s *Storage) Ping() error {
	return s.db.Ping(context.Background())
}

// UpsertUser records a user the bot has talked to. Existing rows keep their
// first_seen but get the username refreshed.
func (s *Storage) UpsertUser(ctx context.Context, tgID int64, username string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (tg_id, username, first_seen) VALUES ($1, $2, NOW())
		 ON CONFLICT (tg_id) DO UPDATE SET username = EXCLUDED.username`,
		tgID, username)
	return err
}

// GetAllUserIDs returns every known user id, for broadcast and admin upload.
func (s *Storage) GetAllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT tg_id FROM users ORDER BY tg_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetUsername returns the stored username for a user id, or "" if unknown.
func (s *Storage) GetUsername(ctx context.Context, tgID int64) (string, error) {
	var username string
	err := s.db.QueryRow(ctx, `SELECT username FROM users WHERE tg_id = $1`, tgID).Scan(&username)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return username, err
}

// RecordSeparation logs one separation run for rate limiting.
func (s *Storage) RecordSeparation(ctx context.Context, tgID int64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO separations (tg_id, ran_at) VALUES ($1, NOW())`, tgID)
	return err
}

// CountSeparationsSince counts the user's separation runs after the cutoff.
func (s *Storage) CountSeparationsSince(ctx context.Context, tgID int64, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM separations WHERE tg_id = $1 AND ran_at > $2`,
		tgID, since).Scan(&count)
	return count, err
}

// SetGroupTarget binds a chat as the delivery target for one label type.
func (s *Storage) SetGroupTarget(ctx context.Context, label string, chatID int64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO group_targets (label, chat_id) VALUES ($1, $2)
		 ON CONFLICT (label) DO UPDATE SET chat_id = EXCLUDED.chat_id`,
		label, chatID)
	return err
}

// GetGroupTarget returns the chat bound to a label type, or 0 when none is.
func (s *Storage) GetGroupTarget(ctx context.Context, label string) (int64, error) {
	var chatID int64
	err := s.db.QueryRow(ctx,
		`SELECT chat_id FROM group_targets WHERE label = $1`, label).Scan(&chatID)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return chatID, err
}
