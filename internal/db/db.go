// Package db opens the SQLite database a payline workspace keeps under
// its .payline directory.
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir = ".payline"
	dbName       = "payline.db"
)

type Config struct {
	Workspace string
}

// Path returns where the database lives for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, dbName)
}

// EnsureWorkspace creates the .payline directory under the workspace
// root if it does not exist yet.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open ensures the workspace exists and opens its database. Foreign keys
// are enforced, and writers wait out short lock contention rather than
// failing, which matters when the CLI and a running server share a
// workspace.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := "file:" + Path(cfg.Workspace) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return sql.Open("sqlite", dsn)
}
