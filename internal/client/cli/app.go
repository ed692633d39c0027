// Package cli implements the interactive echofeed client: a REPL that
// dispatches user intents into the session and feed stores and renders
// their state back.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"os"

	"github.com/dvoronkov/echofeed/internal/client/config"
	"github.com/dvoronkov/echofeed/internal/client/feed"
	"github.com/dvoronkov/echofeed/internal/client/localstore"
	"github.com/dvoronkov/echofeed/internal/client/repositories/metadata"
	"github.com/dvoronkov/echofeed/internal/client/session"
	"github.com/dvoronkov/echofeed/internal/logging"
)

// App wires the stores together and hosts the REPL command handlers.
type App struct {
	config  *config.Config
	session *session.Store
	feed    *feed.Store
	db      *sql.DB
	log     logging.Logger
	reader  *bufio.Reader
}

// NewApp opens the local store, builds both stores, and restores any
// persisted session.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, err := localstore.Open(ctx, cfg.LocalStoreDSN)
	if err != nil {
		return nil, err
	}

	sessionStore := session.NewStore(cfg, metadata.NewSQLiteRepository(db), log)
	sessionStore.Restore(ctx)

	feedStore := feed.NewStore(sessionStore, cfg.PageSize, log)

	return &App{
		config:  cfg,
		session: sessionStore,
		feed:    feedStore,
		db:      db,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) isLoggedIn() bool {
	_, ok := a.session.Current()
	return ok
}

// Run starts the REPL and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer func() { _ = a.db.Close() }()
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) getStatus() string {
	if user, ok := a.session.Current(); ok {
		return "(" + user.Username + ")"
	}
	return ""
}
