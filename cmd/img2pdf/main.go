package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/wudi/img2pdf/config"
	"github.com/wudi/img2pdf/convert"
	"github.com/wudi/img2pdf/observability"
)

type options struct {
	sources []string
	cfg     *config.Config
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "img2pdf: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, newLogger(os.Stderr, opts)); err != nil {
		fmt.Fprintf(os.Stderr, "img2pdf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("img2pdf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: img2pdf [flags] <image>...\n")
		fs.PrintDefaults()
	}
	output := fs.String("o", "", "Output PDF path (default "+config.DefaultOutput+")")
	configPath := fs.String("config", "", "YAML configuration file")
	dpi := fs.Float64("dpi", 0, "Rendering resolution in dots per inch (default 300)")
	title := fs.String("title", "", "Document title")
	author := fs.String("author", "", "Document author")
	compress := fs.Int("compress", 0, "Flate level for BMP/PNG samples, -2..9 (0 stores raw samples)")
	deterministic := fs.Bool("deterministic", false, "Derive the file ID from content and omit the creation date")
	verbose := fs.Bool("v", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.Output = *output
		case "dpi":
			cfg.DPI = *dpi
		case "title":
			cfg.Document.Title = *title
		case "author":
			cfg.Document.Author = *author
		case "compress":
			cfg.Compression = *compress
		case "deterministic":
			cfg.Deterministic = *deterministic
		case "v":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		return options{}, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return options{}, convert.ErrNoInputs
	}
	return options{sources: fs.Args(), cfg: cfg}, nil
}

// newLogger writes human-readable records to a terminal and JSON
// records otherwise.
func newLogger(w *os.File, opts options) observability.Logger {
	level, _ := config.ParseLevel(opts.cfg.LogLevel)
	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if term.IsTerminal(int(w.Fd())) {
		h = slog.NewTextHandler(w, handlerOpts)
	} else {
		h = slog.NewJSONHandler(w, handlerOpts)
	}
	return observability.NewSlogLogger(slog.New(h))
}

func run(ctx context.Context, opts options, logger observability.Logger) error {
	convOpts := convert.OptionsFromConfig(opts.cfg)
	convOpts.Logger = logger
	if err := convert.ConvertFile(ctx, opts.sources, opts.cfg.Output, convOpts); err != nil {
		return err
	}
	logger.Info("pdf written",
		observability.String("path", opts.cfg.Output),
		observability.Int("pages", len(opts.sources)),
		observability.String("inputs", strings.Join(opts.sources, ",")),
	)
	return nil
}
