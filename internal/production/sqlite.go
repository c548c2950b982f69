package production

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/comalice/playerstate"
)

const schema = `
CREATE TABLE IF NOT EXISTS saved_states (
	entity   TEXT NOT NULL,
	mod      TEXT NOT NULL,
	name     TEXT NOT NULL,
	unloaded INTEGER NOT NULL,
	position INTEGER NOT NULL,
	tag      TEXT NOT NULL,
	PRIMARY KEY (entity, mod, name)
);`

// SQLiteStore keeps one row per (entity, mod, name). Tags are stored as JSON.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens or creates a store at path. ":memory:" gives a private in-memory
// database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save replaces every row of the entity in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, sd playerstate.SaveData) error {
	if err := checkKey(sd.Entity); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_states WHERE entity = ?`, sd.Entity); err != nil {
		return fmt.Errorf("clear %s: %w", sd.Entity, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO saved_states (entity, mod, name, unloaded, position, tag) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	pos := 0
	for i, list := range [][]playerstate.SavedState{sd.States, sd.Unloaded} {
		for _, st := range list {
			tag, err := json.Marshal(st.Tag)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", st.FullName(), err)
			}
			if _, err := stmt.ExecContext(ctx, sd.Entity, st.Mod, st.Name, i, pos, string(tag)); err != nil {
				return fmt.Errorf("insert %s: %w", st.FullName(), err)
			}
			pos++
		}
	}
	return tx.Commit()
}

// Load returns the entity's rows in the order they were saved.
func (s *SQLiteStore) Load(ctx context.Context, entity string) (playerstate.SaveData, error) {
	if err := checkKey(entity); err != nil {
		return playerstate.SaveData{}, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT mod, name, unloaded, tag FROM saved_states WHERE entity = ? ORDER BY position`, entity)
	if err != nil {
		return playerstate.SaveData{}, fmt.Errorf("query %s: %w", entity, err)
	}
	defer rows.Close()

	sd := playerstate.SaveData{Entity: entity}
	found := false
	for rows.Next() {
		found = true
		var (
			st       playerstate.SavedState
			unloaded bool
			raw      string
		)
		if err := rows.Scan(&st.Mod, &st.Name, &unloaded, &raw); err != nil {
			return playerstate.SaveData{}, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &st.Tag); err != nil {
			return playerstate.SaveData{}, fmt.Errorf("unmarshal %s: %w", st.FullName(), err)
		}
		if unloaded {
			sd.Unloaded = append(sd.Unloaded, st)
		} else {
			sd.States = append(sd.States, st)
		}
	}
	if err := rows.Err(); err != nil {
		return playerstate.SaveData{}, fmt.Errorf("rows: %w", err)
	}
	if !found {
		return playerstate.SaveData{}, fmt.Errorf("entity %q: %w", entity, ErrNotFound)
	}
	return sd, nil
}
