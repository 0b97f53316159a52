package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"lamarck/internal/storage"
	"lamarck/pkg/lamarck"
)

const defaultDBPath = "lamarck.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	logLevel  string
	logFormat string
	storeKind string
	dbPath    string

	out    io.Writer
	logger *slog.Logger
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	g := &globals{out: stdout}
	root := &cobra.Command{
		Use:   "lamarckctl",
		Short: "Resumable evolution of modular robots with Lamarckian learning",
		Long: `lamarckctl evolves modular robot bodies and CPG brains, refines every brain
with an inner evolution strategy and checkpoints each generation so an
interrupted experiment resumes where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel, g.logFormat, os.Stderr)
			if err != nil {
				return err
			}
			g.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}
	root.SetOut(stdout)

	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "auto", "log format (auto, text, json)")
	pf.StringVar(&g.storeKind, "store", storage.DefaultStoreKind, "store backend: memory|sqlite")
	pf.StringVar(&g.dbPath, "db-path", defaultDBPath, "sqlite database path")

	root.AddCommand(
		newRunCmd(g),
		newStatusCmd(g),
		newLearningCmd(g),
		newExportCmd(g),
		newPlotCmd(g),
		newVersionCmd(g),
	)
	return root
}

func newLogger(level, format string, w *os.File) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "auto", "":
		if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
			return slog.New(slog.NewTextHandler(w, opts)), nil
		}
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

func (g *globals) openClient() (*lamarck.Client, error) {
	return lamarck.New(lamarck.Options{
		StoreKind: g.storeKind,
		DBPath:    g.dbPath,
		Logger:    g.logger,
	})
}
