// Package main is the docdb command line tool.
//
// docdb opens a JSON snapshot store and runs a single command against it, or
// watches the file and reloads it when it changes. Settings come from flags and
// an optional YAML configuration file; flags win when both are set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/docdb/internal/config"
	"github.com/maruel/docdb/internal/docdb"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "docdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	dbPath := flag.String("db", "", "Snapshot file, must end in .json (default \"docdb.json\")")
	noBackup := flag.Bool("no-backup", false, "Do not keep a .backup.json copy of the previous generation")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = *c
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if set["db"] {
		cfg.Path = *dbPath
	}
	if set["no-backup"] {
		cfg.DisableBackup = *noBackup
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ll := &slog.LevelVar{}
	ll.Set(cfg.SlogLevel())
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "err" && a.Value.Any() == nil {
				return slog.Attr{}
			}
			if d, ok := a.Value.Any().(time.Duration); ok && d == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if args[0] == "config-schema" {
		data, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	db, err := docdb.Open(docdb.Options{Path: cfg.Path, DisableBackup: cfg.DisableBackup, Logger: logger})
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Opened store", "path", db.Path(), "entries", db.Size())
	return run(ctx, db, os.Stdout, args)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: docdb [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-34s %s\n", c.name+" "+c.args, c.help)
	}
	fmt.Fprintf(out, "  %-34s %s\n", "config-schema", "print the JSON Schema of the configuration file")
	fmt.Fprintf(out, "\nValues are parsed as JSON, or taken as a plain string if not valid JSON.\n\nFlags:\n")
	flag.PrintDefaults()
}
