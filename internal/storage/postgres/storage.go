// Package postgres provides PostgreSQL persistence using pgx v5.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

//go:embed schema.sql
var schema string

// Config holds PostgreSQL connection settings
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// DefaultConfig returns default pool settings (without a DSN)
func DefaultConfig() Config {
	return Config{
		MaxConns: 10,
		MinConns: 1,
	}
}

// Storage is a PostgreSQL-backed implementation of the storage interface
type Storage struct {
	db *pgxpool.Pool
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// New connects a pool, verifies it and applies the schema
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Storage{db: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close releases all pool resources
func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

// Result operations

const upsertStats = `
INSERT INTO player_stats (username, wins, losses, draws, time_played_seconds)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (username) DO UPDATE SET
    wins = player_stats.wins + EXCLUDED.wins,
    losses = player_stats.losses + EXCLUDED.losses,
    draws = player_stats.draws + EXCLUDED.draws,
    time_played_seconds = player_stats.time_played_seconds + EXCLUDED.time_played_seconds`

func (s *Storage) RecordResult(ctx context.Context, winner, loser model.Username, draw bool) error {
	batch := &pgx.Batch{}
	if draw {
		batch.Queue(upsertStats, winner, 0, 0, 1, 0)
		batch.Queue(upsertStats, loser, 0, 0, 1, 0)
	} else {
		batch.Queue(upsertStats, winner, 1, 0, 0, 0)
		batch.Queue(upsertStats, loser, 0, 1, 0, 0)
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Storage) AppendMatchHistory(ctx context.Context, record *model.MatchRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO match_history (id, player_a, player_b, winner, loser, draw, finished_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		record.ID, record.Players[0], record.Players[1],
		string(record.Winner), string(record.Loser), record.Draw, record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting match %s: %w", record.ID, err)
	}
	return nil
}

func (s *Storage) AddTimePlayed(ctx context.Context, username model.Username, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, upsertStats, username, 0, 0, 0, seconds)
	return err
}

func (s *Storage) GetStats(ctx context.Context, username model.Username) (*model.PlayerStats, error) {
	stats := &model.PlayerStats{Username: username}
	err := s.db.QueryRow(ctx,
		`SELECT wins, losses, draws, time_played_seconds FROM player_stats WHERE username = $1`,
		username,
	).Scan(&stats.Wins, &stats.Losses, &stats.Draws, &stats.TimePlayedSeconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats, nil
		}
		return nil, fmt.Errorf("querying stats for %s: %w", username, err)
	}
	return stats, nil
}

func (s *Storage) ListMatchHistory(ctx context.Context, username model.Username, limit int) ([]*model.MatchRecord, error) {
	query := `SELECT id, player_a, player_b, COALESCE(winner, ''), COALESCE(loser, ''), draw, finished_at
		FROM match_history
		WHERE player_a = $1 OR player_b = $1
		ORDER BY seq DESC`
	args := []any{username}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", username, err)
	}
	defer rows.Close()

	records := []*model.MatchRecord{}
	for rows.Next() {
		var (
			r             model.MatchRecord
			winner, loser string
		)
		if err := rows.Scan(&r.ID, &r.Players[0], &r.Players[1], &winner, &loser, &r.Draw, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		r.Winner = model.Username(winner)
		r.Loser = model.Username(loser)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// Friendship operations

func orderedPair(a, b model.Username) (model.Username, model.Username) {
	if a > b {
		return b, a
	}
	return a, b
}

func (s *Storage) FriendshipExists(ctx context.Context, a, b model.Username) (bool, error) {
	low, high := orderedPair(a, b)
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM friendships WHERE user_low = $1 AND user_high = $2)`,
		low, high,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return exists, nil
}

func (s *Storage) CreatePendingFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error {
	if requester == addressee {
		return model.ErrSelfFriendship
	}
	low, high := orderedPair(requester, addressee)
	_, err := s.db.Exec(ctx,
		`INSERT INTO friendships (user_low, user_high, requester, addressee, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (user_low, user_high) DO NOTHING`,
		low, high, requester, addressee, string(model.FriendshipPending), at,
	)
	if err != nil {
		return fmt.Errorf("creating friendship: %w", err)
	}
	return nil
}

func (s *Storage) AcceptFriendship(ctx context.Context, requester, addressee model.Username, at time.Time) error {
	low, high := orderedPair(requester, addressee)
	tag, err := s.db.Exec(ctx,
		`UPDATE friendships
		 SET status = $4,
		     updated_at = CASE WHEN status = $4 THEN updated_at ELSE $5 END
		 WHERE user_low = $1 AND user_high = $2 AND requester = $3`,
		low, high, requester, string(model.FriendshipAccepted), at,
	)
	if err != nil {
		return fmt.Errorf("accepting friendship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrFriendshipNotFound
	}
	return nil
}

func (s *Storage) ListFriends(ctx context.Context, username model.Username) ([]*model.Friendship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT requester, addressee, status, created_at, updated_at
		 FROM friendships
		 WHERE user_low = $1 OR user_high = $1
		 ORDER BY created_at`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("querying friends for %s: %w", username, err)
	}
	defer rows.Close()

	friends := []*model.Friendship{}
	for rows.Next() {
		var (
			f                    model.Friendship
			requester, addressee string
			status               string
		)
		if err := rows.Scan(&requester, &addressee, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning friendship: %w", err)
		}
		f.Requester = model.Username(requester)
		f.Addressee = model.Username(addressee)
		f.Status = model.FriendshipStatus(status)
		friends = append(friends, &f)
	}
	return friends, rows.Err()
}
