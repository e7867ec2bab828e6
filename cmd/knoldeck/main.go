package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knoldeck/internal/apkg"
	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/export"
)

const usage = `usage:
  knoldeck [flags] debug <file>      export one file under a placeholder deck
  knoldeck [flags] release <dir>     export every deck file of a directory
  knoldeck [flags] inspect <package> list the notes of a package

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "knoldeck: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := config.Flags("knoldeck")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("expected a command and a path")
	}
	command, path := strings.ToLower(fs.Arg(0)), fs.Arg(1)

	if command == "inspect" {
		return inspect(ctx, path)
	}

	mode := config.Mode(command)
	if mode != config.ModeDebug && mode != config.ModeRelease {
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.Load(mode, path, fs)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	tmpl := domain.BaseTemplate
	exporter := &export.Exporter{
		Template:    &tmpl,
		Packager:    &apkg.Packager{},
		Logger:      logger,
		GitProgress: os.Stderr,
	}
	res, err := exporter.Run(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d notes from %d files to %s.\n", res.Notes, len(res.Files), res.Output)
	return nil
}

func inspect(ctx context.Context, path string) error {
	pkg, err := apkg.Read(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("Deck %d %q: %d notes\n", pkg.Deck.ID, pkg.Deck.Name, len(pkg.Notes))
	for _, n := range pkg.Notes {
		fmt.Printf("- %s %s\n", n.GUID, strings.Join(n.Fields[1:], " | "))
	}
	return nil
}
