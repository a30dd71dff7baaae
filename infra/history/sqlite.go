// Package history persists completed charging sessions in a SQLite
// database so session records survive restarts.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	corehistory "github.com/jmercadier/chargeshare/core/history"
	"github.com/jmercadier/chargeshare/core/model"
)

// SQLiteWriter persists history records in a SQLite database.
type SQLiteWriter struct {
	db *sql.DB
}

var _ corehistory.Writer = (*SQLiteWriter)(nil)

// NewSQLiteWriter opens or creates the database and ensures schema.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := []string{
		`CREATE TABLE IF NOT EXISTS session_history (
        session_id TEXT PRIMARY KEY,
        reservation_id TEXT,
        charger_id TEXT,
        vehicle_id TEXT,
        user_id TEXT,
        started_at INTEGER,
        ended_at INTEGER,
        energy_kwh REAL,
        energy_cost REAL,
        parking_cost REAL,
        total_cost REAL,
        samples TEXT
    )`,
		`CREATE INDEX IF NOT EXISTS idx_session_history_user
        ON session_history(user_id, ended_at)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &SQLiteWriter{db: db}, nil
}

// Append inserts the record. A repeated session identifier overwrites the
// previous row so retried settlements stay idempotent.
func (w *SQLiteWriter) Append(ctx context.Context, rec model.HistoryRecord) error {
	samples, err := json.Marshal(rec.Samples)
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx, `INSERT INTO session_history
        (session_id, reservation_id, charger_id, vehicle_id, user_id,
         started_at, ended_at, energy_kwh, energy_cost, parking_cost, total_cost, samples)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(session_id) DO UPDATE SET
            ended_at = excluded.ended_at,
            energy_kwh = excluded.energy_kwh,
            energy_cost = excluded.energy_cost,
            parking_cost = excluded.parking_cost,
            total_cost = excluded.total_cost,
            samples = excluded.samples`,
		rec.SessionID, rec.ReservationID, rec.ChargerID, rec.VehicleID, rec.UserID,
		rec.StartedAt.Unix(), rec.EndedAt.Unix(), rec.EnergyKWh,
		rec.Cost.EnergyCost, rec.Cost.ParkingCost, rec.Cost.TotalCost, string(samples))
	return err
}

// ListByUser returns the user's records, most recent first.
func (w *SQLiteWriter) ListByUser(ctx context.Context, userID string) ([]model.HistoryRecord, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT session_id, reservation_id, charger_id,
        vehicle_id, user_id, started_at, ended_at, energy_kwh,
        energy_cost, parking_cost, total_cost, samples
        FROM session_history WHERE user_id = ? ORDER BY ended_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		var started, ended int64
		var samples string
		if err := rows.Scan(&rec.SessionID, &rec.ReservationID, &rec.ChargerID,
			&rec.VehicleID, &rec.UserID, &started, &ended, &rec.EnergyKWh,
			&rec.Cost.EnergyCost, &rec.Cost.ParkingCost, &rec.Cost.TotalCost, &samples); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(started, 0).UTC()
		rec.EndedAt = time.Unix(ended, 0).UTC()
		if samples != "" && samples != "null" {
			if err := json.Unmarshal([]byte(samples), &rec.Samples); err != nil {
				return nil, err
			}
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (w *SQLiteWriter) Close() error { return w.db.Close() }
