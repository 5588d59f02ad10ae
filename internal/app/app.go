package app

import (
	"database/sql"

	"payline/internal/config"
	"payline/internal/db"
	"payline/internal/engine"
	"payline/internal/migrate"
)

// Open bootstraps a workspace: database, schema, config, engine. The
// caller owns the returned connection.
func Open(workspace string) (*sql.DB, engine.Engine, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, engine.Engine{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, engine.Engine{}, err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, engine.Engine{}, err
	}
	e, err := engine.New(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, engine.Engine{}, err
	}
	return conn, e, nil
}
