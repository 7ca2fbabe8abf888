// Command intake runs the intake service and its operator commands.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/viant/intake"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing. Exit codes: 0 success, 1 command
// failure, 2 usage or configuration error.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}
	switch args[1] {
	case "serve":
		return runServeCmd(args[2:], stdout, stderr)
	case "inspect":
		return runInspectCmd(args[2:], stdout, stderr)
	case "list":
		return runListCmd(args[2:], stdout, stderr)
	case "cancel":
		return runCancelCmd(args[2:], stdout, stderr)
	case "expire":
		return runExpireCmd(args[2:], stdout, stderr)
	case "score":
		return runScoreCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: intake <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  serve     run the webhook and decision endpoints")
	_, _ = fmt.Fprintln(w, "  inspect   print an instance")
	_, _ = fmt.Fprintln(w, "  list      list instances, optionally by state")
	_, _ = fmt.Fprintln(w, "  cancel    fail a non-terminal instance")
	_, _ = fmt.Fprintln(w, "  expire    fail instances past their decision deadline")
	_, _ = fmt.Fprintln(w, "  score     score a payload without starting a workflow")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Every command accepts -config <url> (any afs location) and INTAKE_* overrides.")
}

// loadConfig reads and validates the configuration and installs the logger.
func loadConfig(ctx context.Context, URL string, stderr io.Writer) (*intake.Config, error) {
	cfg, err := intake.LoadConfig(ctx, URL)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log, stderr))
	return cfg, nil
}

// newService builds the service for an operator command.
func newService(ctx context.Context, URL string, stderr io.Writer) (*intake.Service, error) {
	cfg, err := loadConfig(ctx, URL, stderr)
	if err != nil {
		return nil, err
	}
	return newServiceFromConfig(ctx, cfg)
}

func newServiceFromConfig(ctx context.Context, cfg *intake.Config) (*intake.Service, error) {
	return intake.New(ctx, intake.WithConfig(cfg), intake.WithLogger(slog.Default()))
}

func newLogger(cfg intake.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}
