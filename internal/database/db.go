package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jgoulah/dukescraper/pkg/models"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meters (
		number TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		meter_id TEXT NOT NULL,
		start_date TEXT,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS billing_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		meter TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_billing_meter ON billing_snapshots(meter);
	CREATE TABLE IF NOT EXISTS usage_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		meter TEXT NOT NULL,
		date TEXT NOT NULL,
		kwh REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(meter, date)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_date ON usage_data(date);
	CREATE INDEX IF NOT EXISTS idx_usage_published ON usage_data(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// UpsertMeter inserts a meter or refreshes its start date
func (db *DB) UpsertMeter(m models.MeterRecord) error {
	query := `
	INSERT INTO meters (number, type, meter_id, start_date, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(number) DO UPDATE SET
		start_date = excluded.start_date,
		updated_at = excluded.updated_at
	`

	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := db.conn.Exec(query, m.Number, m.Type, m.MeterID, m.StartDate, updatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting meter: %w", err)
	}
	return nil
}

// ListMeters returns all known meters ordered by number
func (db *DB) ListMeters() ([]models.MeterRecord, error) {
	rows, err := db.conn.Query(`SELECT number, type, meter_id, start_date, updated_at FROM meters ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("querying meters: %w", err)
	}
	defer rows.Close()

	var results []models.MeterRecord
	for rows.Next() {
		var m models.MeterRecord
		var startDate sql.NullString
		var updatedAt string
		if err := rows.Scan(&m.Number, &m.Type, &m.MeterID, &startDate, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		m.StartDate = startDate.String
		m.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, m)
	}

	return results, rows.Err()
}

// InsertBilling stores a billing snapshot
func (db *DB) InsertBilling(meter string, fetchedAt time.Time, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding billing payload: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO billing_snapshots (meter, fetched_at, payload) VALUES (?, ?, ?)`,
		meter, fetchedAt.UTC().Format(time.RFC3339), string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting billing snapshot: %w", err)
	}
	return nil
}

// LatestBilling returns the most recent billing snapshot of a meter, or nil
func (db *DB) LatestBilling(meter string) (*models.BillingSnapshot, error) {
	query := `
	SELECT id, meter, fetched_at, payload
	FROM billing_snapshots
	WHERE meter = ?
	ORDER BY fetched_at DESC, id DESC
	LIMIT 1
	`

	var snap models.BillingSnapshot
	var fetchedAt, payload string
	err := db.conn.QueryRow(query, meter).Scan(&snap.ID, &snap.Meter, &fetchedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying billing snapshot: %w", err)
	}

	snap.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing fetched_at: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &snap.Payload); err != nil {
		return nil, fmt.Errorf("decoding billing payload: %w", err)
	}
	return &snap, nil
}

// InsertUsage inserts a usage record, ignoring duplicates. It reports whether
// a new row was written.
func (db *DB) InsertUsage(data *models.UsageData) (bool, error) {
	query := `
	INSERT OR IGNORE INTO usage_data (meter, date, kwh, created_at)
	VALUES (?, ?, ?, ?)
	`

	createdAt := time.Now().UTC().Format(time.RFC3339)
	res, err := db.conn.Exec(query, data.Meter, data.Date.Format(dateLayout), data.KWh, createdAt)
	if err != nil {
		return false, fmt.Errorf("inserting usage data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting usage data: %w", err)
	}
	return n > 0, nil
}

// ListUsage retrieves usage data, newest first. An empty meter lists every meter.
func (db *DB) ListUsage(meter string) ([]models.UsageData, error) {
	query := `
	SELECT id, meter, date, kwh
	FROM usage_data
	WHERE (? = '' OR meter = ?)
	ORDER BY date DESC, meter
	`

	rows, err := db.conn.Query(query, meter, meter)
	if err != nil {
		return nil, fmt.Errorf("querying usage data: %w", err)
	}
	return scanUsage(rows)
}

// ListUnpublishedUsage retrieves unpublished usage data, newest first. An
// empty meter lists every meter.
func (db *DB) ListUnpublishedUsage(meter string) ([]models.UsageData, error) {
	query := `
	SELECT id, meter, date, kwh
	FROM usage_data
	WHERE (? = '' OR meter = ?) AND published = 0
	ORDER BY date DESC, meter
	`

	rows, err := db.conn.Query(query, meter, meter)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished usage data: %w", err)
	}
	return scanUsage(rows)
}

// MarkPublished marks a usage record as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE usage_data SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}

func scanUsage(rows *sql.Rows) ([]models.UsageData, error) {
	defer rows.Close()

	var results []models.UsageData
	for rows.Next() {
		var data models.UsageData
		var dateStr string
		if err := rows.Scan(&data.ID, &data.Meter, &dateStr, &data.KWh); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var err error
		data.Date, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}
		results = append(results, data)
	}

	return results, rows.Err()
}
