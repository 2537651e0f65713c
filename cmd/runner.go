package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/muzik-tools/bandsync/internal/repositories"
	"github.com/muzik-tools/bandsync/internal/services"
	"github.com/muzik-tools/bandsync/internal/shared"
	"github.com/muzik-tools/bandsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	auth       services.Authenticator
	collection services.Collection
	manifest   *repositories.Manifest
	db         *sql.DB
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.SyncEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Auth       services.Authenticator
	Collection services.Collection
	Manifest   *repositories.Manifest
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		auth:       opts.Auth,
		collection: opts.Collection,
		manifest:   opts.Manifest,
		db:         opts.DB,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if r.manifest != nil {
		r.engine = tasks.NewSyncEngine(r.auth, r.collection, r.manifest, r.logger)
	}
	return r
}

// SetLogger replaces the runner's logger and rebuilds the engine with it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if r.manifest != nil {
		r.engine = tasks.NewSyncEngine(r.auth, r.collection, r.manifest, r.logger)
	}
}

// openManifest lazily opens the manifest database from config.
//
// Commands call this instead of main wiring the DB unconditionally, so
// read-only commands like `auth status` work without touching the database.
func (r *Runner) openManifest() (*repositories.Manifest, error) {
	if r.manifest != nil {
		return r.manifest, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.manifest = repositories.NewManifest(db)
	r.engine = tasks.NewSyncEngine(r.auth, r.collection, r.manifest, r.logger)
	return r.manifest, nil
}

// Close releases the manifest database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, cacheCommand, reportCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
