package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/notewire/notewire"
	"github.com/notewire/notewire/pkg/core"
)

var (
	verbose bool
	adapter string
	uri     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notewire",
	Short: "Live web-notes coordinator: notes pinned to pages, synced in real time",
	Long: `Notewire keeps notes pinned to web pages in sync across browser frames.
It serves push-based live queries over a Markdown vault or a PostgreSQL
database and multiplexes them to connected frames over WebSocket.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "fs", "Storage adapter (fs or postgres)")
	rootCmd.PersistentFlags().StringVar(&uri, "uri", "", "Vault path (fs) or connection string (postgres); defaults to the enclosing vault")
}

// noteStore is the CRUD surface the vault commands drive. Both adapters
// provide it on top of core.Store.
type noteStore interface {
	core.Store
	SaveNote(ctx context.Context, n core.Note) (core.Note, error)
	ListNotes(ctx context.Context) ([]core.Note, error)
	DeleteNote(ctx context.Context, id string) error
	SaveComment(ctx context.Context, c core.Comment) (core.Comment, error)
	ListComments(ctx context.Context, noteID string) ([]core.Comment, error)
}

// resolveURI picks the store URI: the --uri flag if given, otherwise the
// enclosing vault root for the fs adapter.
func resolveURI() (string, error) {
	if uri != "" {
		return uri, nil
	}
	if adapter != "fs" {
		return "", fmt.Errorf("--uri is required for adapter %q", adapter)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := notewire.FindVaultRoot(wd)
	if err != nil {
		// Not inside a vault yet; operate on the working directory.
		return wd, nil
	}
	return root, nil
}

func openStore(opts ...notewire.Option) (noteStore, error) {
	target, err := resolveURI()
	if err != nil {
		return nil, err
	}
	opts = append([]notewire.Option{
		notewire.WithAdapter(adapter),
		notewire.WithLogger(slog.Default()),
	}, opts...)
	store, err := notewire.Init(target, opts...)
	if err != nil {
		return nil, err
	}
	crud, ok := store.(noteStore)
	if !ok {
		return nil, fmt.Errorf("adapter %q does not support vault commands", adapter)
	}
	return crud, nil
}
