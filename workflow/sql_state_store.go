package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStateStore SQL 工作流状态存储
//
// 面向 SQLite 方言（ON CONFLICT upsert）。调用方负责用空导入注册
// 驱动，例如 `_ "modernc.org/sqlite"`。
type SQLStateStore struct {
	db        *sql.DB
	tableName string
}

func NewSQLStateStore(db *sql.DB, tableName string) *SQLStateStore {
	if tableName == "" {
		tableName = "seat_reservations"
	}
	return &SQLStateStore{db: db, tableName: tableName}
}

// EnsureTable 建表（幂等）
func (s *SQLStateStore) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	reservation_id TEXT PRIMARY KEY,
	show_id TEXT NOT NULL,
	seat_number INTEGER NOT NULL,
	wallet_id TEXT NOT NULL,
	price INTEGER NOT NULL,
	status TEXT NOT NULL,
	updated_at DATETIME NOT NULL
)`, s.tableName)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLStateStore) Create(ctx context.Context, state *SeatReservation) error {
	state.UpdatedAt = time.Now()
	q := fmt.Sprintf(`
INSERT INTO %s (reservation_id, show_id, seat_number, wallet_id, price, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`, s.tableName)
	_, err := s.db.ExecContext(ctx, q,
		state.ReservationID, state.ShowID, state.SeatNumber,
		state.WalletID, state.Price, string(state.Status), state.UpdatedAt)
	if err != nil {
		// 主键冲突说明工作流已存在；SQLite 驱动的错误文本不稳定，
		// 以一次回读确认
		if _, loadErr := s.Load(ctx, state.ReservationID); loadErr == nil {
			return &AlreadyStartedError{ReservationID: state.ReservationID}
		}
		return fmt.Errorf("create reservation state: %w", err)
	}
	return nil
}

func (s *SQLStateStore) Update(ctx context.Context, state *SeatReservation) error {
	state.UpdatedAt = time.Now()
	q := fmt.Sprintf(`
INSERT INTO %s (reservation_id, show_id, seat_number, wallet_id, price, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(reservation_id) DO UPDATE SET
	show_id=excluded.show_id,
	seat_number=excluded.seat_number,
	wallet_id=excluded.wallet_id,
	price=excluded.price,
	status=excluded.status,
	updated_at=excluded.updated_at`, s.tableName)
	_, err := s.db.ExecContext(ctx, q,
		state.ReservationID, state.ShowID, state.SeatNumber,
		state.WalletID, state.Price, string(state.Status), state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update reservation state: %w", err)
	}
	return nil
}

func (s *SQLStateStore) Load(ctx context.Context, reservationID string) (*SeatReservation, error) {
	q := fmt.Sprintf(`
SELECT reservation_id, show_id, seat_number, wallet_id, price, status, updated_at
FROM %s WHERE reservation_id = ?`, s.tableName)
	row := s.db.QueryRowContext(ctx, q, reservationID)

	state, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{ReservationID: reservationID}
		}
		return nil, fmt.Errorf("load reservation state: %w", err)
	}
	return state, nil
}

func (s *SQLStateStore) List(ctx context.Context) ([]*SeatReservation, error) {
	q := fmt.Sprintf(`
SELECT reservation_id, show_id, seat_number, wallet_id, price, status, updated_at
FROM %s ORDER BY updated_at`, s.tableName)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list reservation states: %w", err)
	}
	defer rows.Close()

	var out []*SeatReservation
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation state: %w", err)
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

func (s *SQLStateStore) Delete(ctx context.Context, reservationID string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE reservation_id = ?`, s.tableName)
	if _, err := s.db.ExecContext(ctx, q, reservationID); err != nil {
		return fmt.Errorf("delete reservation state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*SeatReservation, error) {
	var state SeatReservation
	var status string
	if err := row.Scan(&state.ReservationID, &state.ShowID, &state.SeatNumber,
		&state.WalletID, &state.Price, &status, &state.UpdatedAt); err != nil {
		return nil, err
	}
	state.Status = Status(status)
	return &state, nil
}
