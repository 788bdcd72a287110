package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/config"
	"github.com/dmitrijs2005/cardgpt/internal/client/coordinator"
	"github.com/dmitrijs2005/cardgpt/internal/client/services"
	"github.com/dmitrijs2005/cardgpt/internal/filex"
	"github.com/dmitrijs2005/cardgpt/internal/logging"
)

type App struct {
	config *config.Config
	coord  *coordinator.Coordinator
	gen    *services.Generator
	log    logging.Logger
	reader *bufio.Reader

	outMu sync.Mutex
	out   io.Writer

	// printing is set while a generate command waits, shown counts the
	// pairs of cycle already printed.
	revealMu sync.Mutex
	printing bool
	cycle    uint64
	shown    int

	closers []func() error
}

// NewApp wires the client stack described by c, talking to the terminal.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdin, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	a := &App{config: c, reader: bufio.NewReader(in), out: out}

	log, syncLog, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	a.log = log
	a.closers = append(a.closers, syncLog)

	if err := filex.EnsureParentDir(c.DBPath); err != nil {
		_ = a.Close()
		return nil, err
	}
	db, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init local database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	hc, err := client.NewHTTPClient(c.ServerURL, client.AuthMode(c.AuthMechanism), c.RequestTimeout)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, hc.Close)

	a.wire(hc, db)
	return a, nil
}

func (a *App) wire(hc client.Client, db *sql.DB) {
	session := services.NewSessionStore(hc, services.NewCredentialStore(db), a.log)
	a.gen = services.NewGenerator(hc, session, a.log, services.WithRevealInterval(a.config.RevealInterval))
	cards := services.NewCardService(hc, session, a.log)
	community := services.NewCommunityService(hc, a.log, a.config.PreviewLimit)

	a.coord = coordinator.New(session, a.gen, cards, community, a.log)
	a.gen.OnChange(a.onGeneration)

	a.closers = append(a.closers, func() error {
		a.gen.Stop()
		return nil
	})
}

// newLogger logs to the rotated file from config, or warnings and worse to
// stderr when none is set so the REPL stays readable.
func newLogger(c *config.Config) (logging.Logger, func() error, error) {
	if c.LogFile != "" {
		if err := filex.EnsureParentDir(c.LogFile); err != nil {
			return nil, nil, err
		}
		zl, err := logging.NewFileLogger(c.LogFile, false)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return zl, zl.Sync, nil
	}

	return logging.NewTextLogger(os.Stderr, slog.LevelWarn), func() error { return nil }, nil
}

// Run resolves the stored session and serves commands until the user quits
// or ctx ends.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	id := a.coord.Start(ctx)
	a.heading("Welcome to cardgpt (type 'help' for commands)")
	if id.Authenticated {
		a.say("Logged in as %s.", id.Username)
	}

	runREPL(ctx, a, a.status, a.reader)
}

// Close releases everything NewApp opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return a.coord.Identity().Authenticated
}

func (a *App) status() string {
	name := "guest"
	if id := a.coord.Identity(); id.Authenticated {
		name = id.Username
	}
	return fmt.Sprintf("(%s %s)", name, a.coord.Panel())
}
