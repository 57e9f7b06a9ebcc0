package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"admissionsbot/internal/domain"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// SchemaVersion is the newest schema this build knows how to run.
const SchemaVersion = 1

// ErrSchemaTooNew is returned when the file was written by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than supported")

type DB struct {
	*sql.DB
	logger       *zerolog.Logger
	reminderLead time.Duration
	followupLag  time.Duration
}

// NewDB opens (or creates) the store, verifies the file is intact and brings
// the schema up to date. Every commit is fsynced before returning.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	existed := false
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			existed = true
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps writes serialized and :memory: coherent
	sqlDB.SetMaxOpenConns(1)

	corrupted := func(err error) error {
		_ = sqlDB.Close()
		if existed {
			return fmt.Errorf("%w: %s: %v", domain.ErrStoreCorrupted, path, err)
		}
		return err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, corrupted(fmt.Errorf("failed to connect to database: %w", err))
	}

	if err := checkIntegrity(sqlDB); err != nil {
		return nil, corrupted(err)
	}

	db := &DB{
		DB:           sqlDB,
		logger:       logger,
		reminderLead: 24 * time.Hour,
		followupLag:  24 * time.Hour,
	}

	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Int("schema_version", SchemaVersion).Msg("Database initialized")
	return db, nil
}

// SetEventOffsets configures how far before a tour the reminder is due and
// how long after it the follow-up is due.
func (db *DB) SetEventOffsets(reminderLead, followupLag time.Duration) {
	db.reminderLead = reminderLead
	db.followupLag = followupLag
}

func checkIntegrity(db *sql.DB) error {
	rows, err := db.Query("PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("integrity check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrStoreCorrupted, strings.Join(problems, "; "))
	}
	return nil
}

// migrations[i] upgrades the schema from version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS leads (
            user_id INTEGER PRIMARY KEY,
            chat_id INTEGER NOT NULL,
            username TEXT NOT NULL DEFAULT '',
            state TEXT NOT NULL,
            locale TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            parent_name TEXT NOT NULL DEFAULT '',
            crm_contact_id INTEGER NOT NULL DEFAULT 0,
            crm_lead_id INTEGER NOT NULL DEFAULT 0,
            document TEXT NOT NULL DEFAULT '{}',
            schema_version INTEGER NOT NULL DEFAULT 1,
            qualified_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL REFERENCES leads(user_id),
            chat_id INTEGER NOT NULL,
            locale TEXT NOT NULL DEFAULT '',
            parent_name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            campus TEXT NOT NULL,
            scheduled_at DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'booked',
            reminder_sent_at DATETIME,
            followup_sent_at DATETIME,
            attendance_check_sent_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS crm_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            user_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_leads_crm_lead_id ON leads(crm_lead_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status_scheduled ON bookings(status, scheduled_at)`,
		// не больше одной активной записи на лида
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_one_active ON bookings(user_id)
            WHERE status IN ('booked', 'reminded', 'confirmed')`,
		`CREATE INDEX IF NOT EXISTS idx_crm_queue_status ON crm_queue(status, next_retry_at)`,
	},
}

func (db *DB) migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        version INTEGER NOT NULL
    )`); err != nil {
		return fmt.Errorf("failed to create schema_meta: %w", err)
	}

	current, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("%w: file has %d, binary supports %d", ErrSchemaTooNew, current, SchemaVersion)
	}

	for v := current; v < SchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", v+1, err)
		}
		for _, query := range migrations[v] {
			if _, err := tx.Exec(query); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: error executing query %s: %w", v+1, query, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_meta (id, version) VALUES (1, ?)
            ON CONFLICT(id) DO UPDATE SET version = excluded.version`, v+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: failed to record version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", v+1, err)
		}
		db.logger.Info().Int("version", v+1).Msg("Applied schema migration")
	}
	return nil
}

func (db *DB) schemaVersion() (int, error) {
	var v int
	err := db.QueryRow(`SELECT version FROM schema_meta WHERE id = 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// SchemaVersion reports the version recorded in the file.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `SELECT version FROM schema_meta WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// nullTime converts an optional time into a UTC value the driver can bind.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
