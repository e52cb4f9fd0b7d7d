// Package app assembles a workspace into the pieces the CLI commands
// share: the database, the config, the journal store, and the session.
package app

import (
	"database/sql"
	"net/http"
	"os"

	"bossline/internal/boss"
	"bossline/internal/config"
	"bossline/internal/db"
	"bossline/internal/history"
	"bossline/internal/migrate"
	"bossline/internal/session"
	"bossline/internal/transport"
)

// Options select the workspace and optional overrides.
type Options struct {
	Workspace string
	// APIBase overrides the configured base when non-empty (flag or env).
	APIBase string
}

// App is a resolved workspace.
type App struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Store     *history.Store
	Session   *session.Session
}

// Close releases the database.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// Resolve opens the workspace database, migrates it, loads or seeds the
// config, and wires a session around the boss client. Load-on-start and
// save-on-change of the config stay here: the contract layer only ever
// sees the API base as a plain string.
func Resolve(opts Options) (*App, error) {
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if cfg == nil {
		if err := os.WriteFile(config.Path(opts.Workspace), []byte(config.GenerateDefault()), 0o644); err != nil {
			conn.Close()
			return nil, err
		}
		cfg = config.Default()
	}

	apiBase := cfg.APIBase
	if opts.APIBase != "" {
		apiBase = opts.APIBase
	}

	store := &history.Store{DB: conn}
	client := &boss.Client{
		APIBase:   apiBase,
		Transport: transport.HTTP(&http.Client{Timeout: cfg.Timeout()}),
	}
	sess := session.New(client, store)
	sess.Keep = cfg.HistoryKeep

	return &App{
		Workspace: opts.Workspace,
		DB:        conn,
		Config:    cfg,
		Store:     store,
		Session:   sess,
	}, nil
}
