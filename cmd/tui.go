package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"tunegrab/internal/repositories"
	"tunegrab/internal/shared"
	"tunegrab/internal/ui"
)

// TUI launches the interactive terminal UI for a batch download.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	collection, err := loadCollectionFile(cmd.String("file"))
	if err != nil {
		return err
	}
	if name := cmd.String("name"); name != "" {
		collection.Name = name
	}
	if len(collection.Tracks) == 0 {
		return fmt.Errorf("%w: collection has no tracks", shared.ErrInvalidInput)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/tunegrab-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine := r.buildEngine(repositories.NewQueueRepository(db))

	model := ui.NewModel(ctx, engine, collection.Tracks, r.batchOptions(*collection))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// tuiCommand launches the interactive batch download view.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Download a collection with an interactive progress view",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to a JSON collection or track array",
				Required: true,
			},
			&cli.StringFlag{Name: "name", Usage: "Override the collection name"},
		},
		Action: r.TUI,
	}
}
