// Package db provides the SQLite database wrapper and model types for cycletimed.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB and provides migration support.
type DB struct {
	*sql.DB
}

// New opens a SQLite connection with WAL mode and foreign keys enabled.
// Driver name is "sqlite" (modernc.org/sqlite, not mattn/go-sqlite3).
func New(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_journal=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db.New: open: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db.New: ping: %w", err)
	}
	// Limit to 1 writer at a time to avoid SQLITE_BUSY in WAL mode.
	sqlDB.SetMaxOpenConns(1)
	return &DB{sqlDB}, nil
}

// Migrate runs all CREATE TABLE IF NOT EXISTS migrations exactly once per schema version.
func (d *DB) Migrate() error {
	// Ensure the settings table exists first (holds schema_version).
	if _, err := d.Exec(ddlSettings); err != nil {
		return fmt.Errorf("db.Migrate: settings table: %w", err)
	}

	// Seed user-facing default settings on every startup.
	// INSERT OR IGNORE is idempotent — existing values are never overwritten.
	defaults := []struct{ k, v string }{
		{"api_key_hash", ""},
		{"telegram_token", ""},
		{"telegram_chat_id", ""},
		{"batch_workers", "2"},
		{"webhook_timeout_seconds", "10"},
	}
	for _, s := range defaults {
		if _, err := d.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, s.k, s.v); err != nil {
			return fmt.Errorf("db.Migrate: seed setting %q: %w", s.k, err)
		}
	}

	// Read current schema version.
	var version int
	row := d.QueryRow(`SELECT value FROM settings WHERE key='schema_version' LIMIT 1`)
	_ = row.Scan(&version) // Ignore scan error — row may not exist yet (version=0).

	if version >= schemaVersion {
		return nil
	}

	tables := []string{
		ddlBatches,
		ddlBatchRows,
		ddlSchedules,
		ddlLogs,
		ddlWebhooks,
		ddlRates,
		ddlPrepRates,
		ddlLiveTimes,
	}

	for _, ddl := range tables {
		if _, err := d.Exec(ddl); err != nil {
			return fmt.Errorf("db.Migrate: %w", err)
		}
	}

	// Upsert schema version.
	_, err := d.Exec(`INSERT INTO settings (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, schemaVersion)
	if err != nil {
		return fmt.Errorf("db.Migrate: schema_version upsert: %w", err)
	}
	return nil
}

const schemaVersion = 1

// ── Model Types ──────────────────────────────────────────────────────────────

// Batch is a stored set of estimation requests processed as one run.
type Batch struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	Status    string       `json:"status"`
	TotalRows int          `json:"total_rows"`
	DoneRows  int          `json:"done_rows"`
	Error     string       `json:"error,omitempty"`
	StartedAt sql.NullTime `json:"started_at,omitempty"`
	EndedAt   sql.NullTime `json:"ended_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Batch status values.
const (
	BatchPending   = "pending"
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchFailed    = "failed"
)

// BatchRow is a single estimation request inside a batch, with its result.
type BatchRow struct {
	ID         int       `json:"id"`
	BatchID    int       `json:"batch_id"`
	Position   int       `json:"position"`
	Request    string    `json:"request"`
	Status     string    `json:"status"`
	StatusCode int       `json:"status_code"`
	Result     string    `json:"result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Batch row status values.
const (
	RowPending = "pending"
	RowDone    = "done"
	RowFailed  = "failed"
)

// Schedule re-runs a named batch on a cron expression.
type Schedule struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	CronExpr  string       `json:"cron_expr"`
	BatchName string       `json:"batch_name"`
	Enabled   bool         `json:"enabled"`
	NextRun   sql.NullTime `json:"next_run,omitempty"`
	LastRun   sql.NullTime `json:"last_run,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Log is a structured log line.
type Log struct {
	ID        int           `json:"id"`
	BatchID   sql.NullInt64 `json:"batch_id,omitempty"`
	RowID     sql.NullInt64 `json:"row_id,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}

// Webhook defines an outbound webhook subscription.
type Webhook struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	URL        string       `json:"url"`
	Events     string       `json:"events"`
	Secret     string       `json:"-"`
	Enabled    bool         `json:"enabled"`
	LastStatus int          `json:"last_status"`
	LastFired  sql.NullTime `json:"last_fired,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Rate is one row of the fluting feedrate table for a reference family.
// Diameter bounds are inclusive; BurType is empty for plain diameter bands.
type Rate struct {
	ID          int     `json:"id"`
	Family      string  `json:"family"`
	BurType     string  `json:"bur_type,omitempty"`
	MinDiameter float64 `json:"min_diameter"`
	MaxDiameter float64 `json:"max_diameter"`
	SCFluting   float64 `json:"sc_fluting"`
	DCFluting   float64 `json:"dc_fluting"`
	FlutingFR   float64 `json:"fluting_fr"`
	ODFR        float64 `json:"od_fr"`
	EndCT       float64 `json:"end_ct"`
	EndGashCT   float64 `json:"end_gash_ct"`
	EndSplitCT  float64 `json:"end_split_ct"`
}

// Reference family names used in the rates table.
const (
	FamilySqEM = "SQ EM"
	FamilyBur  = "BUR"
)

// PrepRate is one row of a material-removal rate sheet. Which selector
// columns are populated depends on the sheet:
//
//	F_RED_PREP: length_ratio + reduction_vol
//	NECK_PREP:  neck_ratio + length_ratio + reduction_vol
//	POINT_PREP: major_diameter
//
// Rate is cubic inches of material removed per minute.
type PrepRate struct {
	ID            int             `json:"id"`
	Sheet         string          `json:"sheet"`
	LengthRatio   sql.NullFloat64 `json:"length_ratio,omitempty"`
	NeckRatio     sql.NullFloat64 `json:"neck_ratio,omitempty"`
	MajorDiameter sql.NullFloat64 `json:"major_diameter,omitempty"`
	ReductionVol  sql.NullFloat64 `json:"reduction_vol,omitempty"`
	Rate          sql.NullFloat64 `json:"rate"`
}

// Prep sheet names.
const (
	SheetFrontReduction = "F_RED_PREP"
	SheetNeck           = "NECK_PREP"
	SheetPoint          = "POINT_PREP"
)

// LiveTime is a recorded machine cycle time for one part number.
type LiveTime struct {
	ID           int    `json:"id"`
	PartNumber   string `json:"part_number"`
	CycleSeconds int    `json:"cycle_seconds"`
}

// ── DDL Statements ───────────────────────────────────────────────────────────

const ddlSettings = `CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);`

const ddlBatches = `CREATE TABLE IF NOT EXISTS batches (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL,
	status     TEXT    NOT NULL DEFAULT 'pending',
	total_rows INTEGER NOT NULL DEFAULT 0,
	done_rows  INTEGER NOT NULL DEFAULT 0,
	error      TEXT    NOT NULL DEFAULT '',
	started_at DATETIME,
	ended_at   DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlBatchRows = `CREATE TABLE IF NOT EXISTS batch_rows (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id    INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL DEFAULT 0,
	request     TEXT    NOT NULL,
	status      TEXT    NOT NULL DEFAULT 'pending',
	status_code INTEGER NOT NULL DEFAULT 0,
	result      TEXT    NOT NULL DEFAULT '',
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlSchedules = `CREATE TABLE IF NOT EXISTS schedules (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL,
	cron_expr  TEXT    NOT NULL,
	batch_name TEXT    NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 1,
	next_run   DATETIME,
	last_run   DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlLogs = `CREATE TABLE IF NOT EXISTS logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id   INTEGER REFERENCES batches(id) ON DELETE SET NULL,
	row_id     INTEGER REFERENCES batch_rows(id) ON DELETE SET NULL,
	level      TEXT    NOT NULL DEFAULT 'info',
	message    TEXT    NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlWebhooks = `CREATE TABLE IF NOT EXISTS webhooks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	events      TEXT    NOT NULL DEFAULT '',
	secret      TEXT    NOT NULL DEFAULT '',
	enabled     INTEGER NOT NULL DEFAULT 1,
	last_status INTEGER NOT NULL DEFAULT 0,
	last_fired  DATETIME,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlRates = `CREATE TABLE IF NOT EXISTS rates (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	family       TEXT NOT NULL,
	bur_type     TEXT NOT NULL DEFAULT '',
	min_diameter REAL NOT NULL,
	max_diameter REAL NOT NULL,
	sc_fluting   REAL NOT NULL DEFAULT 0,
	dc_fluting   REAL NOT NULL DEFAULT 0,
	fluting_fr   REAL NOT NULL DEFAULT 0,
	od_fr        REAL NOT NULL DEFAULT 0,
	end_ct       REAL NOT NULL DEFAULT 0,
	end_gash_ct  REAL NOT NULL DEFAULT 0,
	end_split_ct REAL NOT NULL DEFAULT 0
);`

const ddlPrepRates = `CREATE TABLE IF NOT EXISTS prep_rates (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	sheet          TEXT NOT NULL,
	length_ratio   REAL,
	neck_ratio     REAL,
	major_diameter REAL,
	reduction_vol  REAL,
	rate           REAL
);`

const ddlLiveTimes = `CREATE TABLE IF NOT EXISTS live_times (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	part_number   TEXT    NOT NULL UNIQUE,
	cycle_seconds INTEGER NOT NULL DEFAULT 0
);`

// ── Helpers ───────────────────────────────────────────────────────────────────

// WriteLog inserts a log line into the logs table.
func (d *DB) WriteLog(batchID, rowID *int, level, message string) {
	var bid, rid sql.NullInt64
	if batchID != nil {
		bid = sql.NullInt64{Int64: int64(*batchID), Valid: true}
	}
	if rowID != nil {
		rid = sql.NullInt64{Int64: int64(*rowID), Valid: true}
	}
	_, _ = d.Exec(
		`INSERT INTO logs (batch_id, row_id, level, message) VALUES (?,?,?,?)`,
		bid, rid, level, message,
	)
}

// GetSetting retrieves a settings value by key, returning fallback if not found.
func (d *DB) GetSetting(key, fallback string) string {
	var v string
	if err := d.QueryRow(`SELECT value FROM settings WHERE key=?`, key).Scan(&v); err != nil {
		return fallback
	}
	return v
}

// SetSetting upserts a settings key-value pair.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.Exec(
		`INSERT INTO settings (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("db.SetSetting: %w", err)
	}
	return nil
}
