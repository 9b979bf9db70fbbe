package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/wippyai/effectgen/compiler"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/manifest"
)

type options struct {
	manifest string
	workers  int
	list     bool
	strict   bool
}

func main() {
	var (
		manifestFile = flag.String("manifest", "", "Path to the declarations manifest (YAML)")
		list         = flag.Bool("list", false, "List every lowered variant and call binding")
		interactive  = flag.Bool("i", false, "Interactive mode with TUI")
		watch        = flag.Bool("watch", false, "Re-run lowering whenever the manifest changes")
		workers      = flag.Int("workers", 0, "Components lowered at once (default from manifest)")
		strict       = flag.Bool("strict", false, "Treat warnings as errors")
		verbose      = flag.Bool("v", false, "Debug logging to stderr")
	)
	flag.Parse()

	if *manifestFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: effectgen -manifest <file.yaml> [-list] [-strict] [-workers N]")
		fmt.Fprintln(os.Stderr, "       effectgen -manifest <file.yaml> -watch")
		fmt.Fprintln(os.Stderr, "       effectgen -manifest <file.yaml> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		compiler.SetLogger(log)
	}

	opts := options{manifest: *manifestFile, workers: *workers, list: *list, strict: *strict}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *interactive {
		if err := runInteractive(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	out := newPrinter(os.Stdout)
	if *watch {
		if err := watchManifest(ctx, opts.manifest, func() { run(ctx, out, opts) }); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !run(ctx, out, opts) {
		os.Exit(1)
	}
}

// unit is one lowering run: the parse diagnostics of the manifest, the
// compilation result and whether warnings block it.
type unit struct {
	res    *compiler.Result
	parse  errors.List
	strict bool
}

func (u *unit) diagnostics() errors.List {
	var all errors.List
	all.Append(u.parse)
	if u.res != nil {
		all.Append(u.res.Diagnostics)
	}
	return all.Sorted()
}

func (u *unit) failed() bool {
	return u.diagnostics().Err(u.strict) != nil
}

func compile(ctx context.Context, opts options) (*unit, error) {
	m, err := manifest.Load(opts.manifest)
	if err != nil {
		return nil, err
	}
	cfg, err := m.Config.Compiler()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	cfg.Strict = cfg.Strict || opts.strict

	sources, parse := m.Sources()
	res, err := compiler.New(cfg).Compile(ctx, sources)
	if err != nil {
		return nil, err
	}
	return &unit{res: res, parse: parse, strict: cfg.Strict}, nil
}

// run lowers the manifest once and prints the report. It returns false
// when the unit has blocking diagnostics or could not be compiled.
func run(ctx context.Context, out *printer, opts options) bool {
	u, err := compile(ctx, opts)
	if err != nil {
		out.failure(err)
		return false
	}
	out.report(u, opts)
	return !u.failed()
}
