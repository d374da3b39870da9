package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/futures_signal_bot/internal/domain"
)

// SQLiteStore is the durable journal: every lifecycle transition of the
// tracked position and every placed order gets a row. The journal is
// append-only evidence; the bot never reads it back to rebuild state.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			side TEXT NOT NULL,
			size REAL NOT NULL,
			entry_price REAL NOT NULL,
			mark_price REAL NOT NULL,
			note TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_created_at ON transitions(created_at);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			size REAL NOT NULL,
			price REAL NOT NULL,
			reduce_only BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteStore) SaveTransition(ctx context.Context, t *domain.PositionTransition) error {
	query := `INSERT INTO transitions (event, from_state, to_state, side, size, entry_price, mark_price, note, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		t.Event, t.FromState, t.ToState, t.Side, t.Size, t.EntryPrice, t.MarkPrice, t.Note, t.CreatedAt)
	return err
}

func (s *SQLiteStore) ListTransitions(ctx context.Context, limit int) ([]*domain.PositionTransition, error) {
	query := `SELECT id, event, from_state, to_state, side, size, entry_price, mark_price, note, created_at
			  FROM transitions ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transitions []*domain.PositionTransition
	for rows.Next() {
		var t domain.PositionTransition
		if err := rows.Scan(&t.ID, &t.Event, &t.FromState, &t.ToState, &t.Side, &t.Size, &t.EntryPrice, &t.MarkPrice, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		transitions = append(transitions, &t)
	}
	return transitions, rows.Err()
}

func (s *SQLiteStore) SaveOrder(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (symbol, side, size, price, reduce_only, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		o.Symbol, o.Side, o.Size, o.Price, o.ReduceOnly, o.CreatedAt)
	return err
}

func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `SELECT id, symbol, side, size, price, reduce_only, created_at
			  FROM orders ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Side, &o.Size, &o.Price, &o.ReduceOnly, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
