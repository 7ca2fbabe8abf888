package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
)

// runInspectCmd implements `intake inspect -id <instance>`.
func runInspectCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("inspect", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configURL := cmd.String("config", "", "configuration URL")
	id := cmd.String("id", "", "instance id (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *id == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -id is required")
		return 2
	}
	ctx := context.Background()
	srv, err := newService(ctx, *configURL, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = srv.Runtime().Shutdown(ctx) }()
	instance, err := srv.Runtime().Instance(ctx, *id)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return writeJSON(stdout, stderr, instance)
}

// runListCmd implements `intake list [-state <state>]`.
func runListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("list", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configURL := cmd.String("config", "", "configuration URL")
	state := cmd.String("state", "", "only instances in this state")
	asJSON := cmd.Bool("json", false, "print JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	var parameters []*dao.Parameter
	if *state != "" {
		if !model.State(*state).IsValid() {
			_, _ = fmt.Fprintf(stderr, "Error: unknown state %q\n", *state)
			return 2
		}
		parameters = append(parameters, dao.WithStates(model.State(*state)))
	}
	ctx := context.Background()
	srv, err := newService(ctx, *configURL, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = srv.Runtime().Shutdown(ctx) }()
	instances, err := srv.Runtime().Instances(ctx, parameters...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *asJSON {
		return writeJSON(stdout, stderr, instances)
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATE\tPROJECT\tCREATED\tREASON")
	for _, instance := range instances {
		project := ""
		if instance.Submission != nil {
			project = instance.Submission.ProjectName()
		}
		_, _ = fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", instance.ID, instance.State, project, instance.CreatedAt.Format("2006-01-02 15:04"), instance.Reason)
	}
	_ = w.Flush()
	return 0
}

// runCancelCmd implements `intake cancel -id <instance> [-reason <text>]`.
func runCancelCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("cancel", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configURL := cmd.String("config", "", "configuration URL")
	id := cmd.String("id", "", "instance id (REQUIRED)")
	reason := cmd.String("reason", "", "cancellation reason")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *id == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -id is required")
		return 2
	}
	ctx := context.Background()
	srv, err := newService(ctx, *configURL, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = srv.Runtime().Shutdown(ctx) }()
	instance, err := srv.Runtime().Cancel(ctx, *id, *reason)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "%v %v (%v)\n", instance.ID, instance.State, instance.Reason)
	return 0
}

// runExpireCmd implements `intake expire`, a one-off sweeper pass.
func runExpireCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("expire", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configURL := cmd.String("config", "", "configuration URL")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	ctx := context.Background()
	srv, err := newService(ctx, *configURL, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = srv.Runtime().Shutdown(ctx) }()
	count, err := srv.Runtime().ExpireOverdue(ctx)
	_, _ = fmt.Fprintf(stdout, "expired %d instance(s)\n", count)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func writeJSON(stdout, stderr io.Writer, v interface{}) int {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
