// kenx runs a project described by its .config setup documents.
//
// Usage:
//
//	kenx [flags] run       provision resources and dispatch entrypoints
//	kenx [flags] check     load the setup and report plugins and issues
//	kenx plugins           list the built-in plugins
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ckenx/kenx"
	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugins/builtin"
	"github.com/ckenx/kenx/setup"
	"github.com/spf13/pflag"
)

var (
	errUsage  = errors.New("usage")
	errIssues = errors.New("setup has issues")
)

type flags struct {
	workdir      string
	entrypoint   string
	logLevel     string
	logFormat    string
	startTimeout time.Duration
	strict       bool
}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}

		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts flags

	flagSet := pflag.NewFlagSet("kenx", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.workdir, "workdir", "C", ".", "project root holding .config")
	flagSet.StringVar(&opts.entrypoint, "entrypoint", "index", "singleton entrypoint module")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default KENX_LOG_LEVEL, then info)")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "json or text")
	flagSet.DurationVar(&opts.startTimeout, "start-timeout", kenx.DefaultStartTimeout, "bound on autoload and dispatch")
	flagSet.BoolVar(&opts.strict, "strict", false, "fail when a named takeover resource is missing")
	flagSet.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: kenx [flags] run|check|plugins|version\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	err := flagSet.Parse(args)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if flagSet.NArg() != 1 {
		flagSet.Usage()

		return fmt.Errorf("%w: expected one command", errUsage)
	}

	switch command := flagSet.Arg(0); command {
	case "run":
		return runProject(opts)
	case "check":
		return check(opts, stdout, stderr)
	case "plugins":
		for _, key := range builtin.Catalog().Keys() {
			_, _ = fmt.Fprintln(stdout, key)
		}

		return nil
	case "version":
		_, _ = fmt.Fprintf(stdout, "kenx %s (framework %s, built %s)\n", kenx.Version, kenx.KenxVersion, kenx.CompiledAt)

		return nil
	default:
		flagSet.Usage()

		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func runProject(opts flags) error {
	appOpts := []kenx.Option{
		kenx.WithWorkdir(opts.workdir),
		kenx.WithEntrypoint(opts.entrypoint),
		kenx.WithLogLevel(opts.logLevel),
		kenx.WithLogFormat(opts.logFormat),
		kenx.WithStartTimeout(opts.startTimeout),
	}

	if opts.strict {
		appOpts = append(appOpts, kenx.WithStrictTakeover())
	}

	app := kenx.NewApp(appOpts...)

	err := app.Err()
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}

	app.Run()

	return nil
}

func check(opts flags, stdout, stderr io.Writer) error {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	manager := setup.NewManager(
		setup.WithWorkdir(opts.workdir),
		setup.WithLogger(logger),
		setup.WithBundled(builtin.Catalog()),
	)

	err := manager.LoadEnv()
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}

	err = manager.Initialize()
	if err != nil {
		return fmt.Errorf("loading setup: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "project: %s\n", manager.Workdir())
	_, _ = fmt.Fprintf(stdout, "pattern: %s\n", manager.Config().Directory.Pattern)
	_, _ = fmt.Fprintln(stdout, "plugins:")

	for _, reference := range manager.Plugins() {
		status := "ok"

		_, err := manager.ImportPlugin(reference)
		if err != nil {
			status = "missing"
		}

		_, _ = fmt.Fprintf(stdout, "  %s\t%s\n", reference, status)
	}

	issues := manager.Issues()
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "no issues")

		return nil
	}

	_, _ = fmt.Fprintln(stdout, config.FormatIssues(issues))

	return fmt.Errorf("%w: %d", errIssues, len(issues))
}
