package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/viant/afs"
	"github.com/viant/intake"
	"github.com/viant/intake/service/normalizer"
	"github.com/viant/intake/service/report"
	"github.com/viant/intake/service/scoring"
)

// runScoreCmd implements `intake score -payload <url>`. It needs only the
// rubric and field map sections of the configuration.
func runScoreCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("score", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configURL := cmd.String("config", "", "configuration URL")
	payloadURL := cmd.String("payload", "", "webhook payload URL or - for stdin (REQUIRED)")
	plain := cmd.Bool("plain", false, "print without terminal styling")
	strict := cmd.Bool("strict", false, "fail on unscorable answers")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *payloadURL == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -payload is required")
		return 2
	}
	ctx := context.Background()
	cfg, err := intake.LoadConfig(ctx, *configURL)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	fs := afs.New()
	r, err := cfg.LoadRubric(ctx, fs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	fields, err := cfg.LoadFields(ctx, fs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var payload []byte
	if *payloadURL == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = fs.DownloadWithURL(ctx, *payloadURL)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: failed to read payload: %v\n", err)
		return 2
	}
	var options []normalizer.Option
	if len(cfg.Normalizer.Preference) > 0 {
		options = append(options, normalizer.WithPreference(cfg.Normalizer.Preference...))
	}
	sub, err := normalizer.New(fields, options...).NormalizeJSON(payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	result, err := scoring.New(r, scoring.WithStrictAnswers(*strict || cfg.Workflow.StrictScoring)).Score(sub)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *plain {
		_, _ = fmt.Fprint(stdout, report.Plain(sub, result))
		return 0
	}
	_, _ = fmt.Fprintln(stdout, report.Terminal(sub, result))
	return 0
}
