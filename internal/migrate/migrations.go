// Package migrate brings a payline database up to the current schema.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

type migration struct {
	version int
	name    string
	stmts   string
}

// readAll collects the embedded NNNN_name.sql files ordered by version.
func readAll() ([]migration, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	var ms []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: want NNNN_name.sql", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		data, err := schemaFS.ReadFile("sql/" + name)
		if err != nil {
			return nil, err
		}
		ms = append(ms, migration{version: version, name: name, stmts: string(data)})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].version < ms[j].version })
	return ms, nil
}

// Migrate applies every migration newer than the recorded schema version.
// The whole upgrade is one transaction, so a half-applied schema never
// survives a failure.
func Migrate(db *sql.DB) error {
	ms, err := readAll()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := schemaVersion(tx)
	if err != nil {
		return err
	}
	for _, m := range ms {
		if m.version <= current {
			continue
		}
		if _, err := tx.Exec(m.stmts); err != nil {
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, m.version); err != nil {
			return fmt.Errorf("record version %d: %w", m.version, err)
		}
		current = m.version
	}
	return tx.Commit()
}

// schemaVersion reads the single-row version table, seeding it at 0 for a
// fresh database.
func schemaVersion(tx *sql.Tx) (int, error) {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var v int
	switch err := tx.QueryRow(`SELECT version FROM schema_version`).Scan(&v); err {
	case nil:
		return v, nil
	case sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return 0, fmt.Errorf("seed schema_version: %w", err)
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
}
