package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"tunegrab/internal/formatter"
	"tunegrab/internal/library"
	"tunegrab/internal/manifest"
	"tunegrab/internal/models"
	"tunegrab/internal/services"
	"tunegrab/internal/shared"
	"tunegrab/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	fetcher tasks.Fetcher
	session *services.Session
	catalog tasks.MetadataSource
	logger  *log.Logger
	output  io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Fetcher tasks.Fetcher
	Session *services.Session
	Catalog tasks.MetadataSource
	Logger  *log.Logger
	Output  io.Writer
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
	if opts.Fetcher == nil {
		opts.Fetcher = services.NewFetcher(opts.Config.Fetch)
	}
	if opts.Session == nil {
		ttl := time.Duration(opts.Config.Session.TokenTTLSeconds) * time.Second
		opts.Session = services.NewSession(services.NewHelperIssuer(opts.Config.Session), ttl)
	}

	return &Runner{
		config:  opts.Config,
		fetcher: opts.Fetcher,
		session: opts.Session,
		catalog: opts.Catalog,
		logger:  opts.Logger,
		output:  opts.Output,
	}
}

// SetLogger swaps the runner's logger (used when the TUI owns the terminal).
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, downloadCommand, queueCommand, sessionCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured sqlite database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// targetOS resolves the configured sanitization target, defaulting to the host.
func (r *Runner) targetOS() formatter.TargetOS {
	switch r.config.Downloads.TargetOS {
	case "windows":
		return formatter.OSWindows
	case "darwin":
		return formatter.OSDarwin
	case "linux":
		return formatter.OSLinux
	}
	return formatter.TargetOS(runtime.GOOS)
}

// batchOptions maps the download configuration onto engine options.
func (r *Runner) batchOptions(collection models.Collection) tasks.BatchOptions {
	return tasks.BatchOptions{
		Collection: collection,
		OutputDir:  r.config.DownloadDir(),
		Format:     r.config.Downloads.AudioFormat,
		Paths: formatter.Config{
			FolderTemplate:     r.config.Downloads.FolderTemplate,
			FilenamePreset:     r.config.Downloads.FilenamePreset,
			FilenameTemplate:   r.config.Downloads.FilenameTemplate,
			IncludeTrackNumber: r.config.Downloads.TrackNumber,
			OS:                 r.targetOS(),
		},
		WriteManifest: r.config.Downloads.WriteManifest,
	}
}

// buildEngine assembles a download engine around the given ledger.
func (r *Runner) buildEngine(ledger tasks.Ledger) *tasks.DownloadEngine {
	return tasks.NewDownloadEngine(tasks.EngineDeps{
		Fetcher: r.fetcher,
		Session: r.session,
		Ledger:  ledger,
		Probe:   library.NewProbe(r.config.DownloadDir(), r.targetOS()),
		Catalog: r.catalog,
		Manifests: &manifest.Writer{
			Extended: r.config.Downloads.ManifestExtended,
			OS:       r.targetOS(),
		},
		Logger: r.logger,
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
