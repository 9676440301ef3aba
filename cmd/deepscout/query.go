package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepscout/deepscout/client"
)

func newQueryCommand() *cobra.Command {
	var serverURL string
	var timeout time.Duration
	var quiet bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Run one research query against a running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, serverURL, strings.Join(args, " "), timeout, quiet)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8001", "Research server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall client-side timeout")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	return cmd
}

func runQuery(cmd *cobra.Command, serverURL, question string, timeout time.Duration, quiet bool) error {
	out := cmd.OutOrStdout()

	c, err := client.New(serverURL, zap.NewNop())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	events, err := c.Stream(ctx, question)
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Type {
		case client.EventProgress:
			if quiet {
				continue
			}
			line := fmt.Sprintf("[%s] %s", ev.Progress.Stage, ev.Progress.Message)
			if ev.Progress.Details != "" {
				line += ": " + ev.Progress.Details
			}
			fmt.Fprintln(out, line)
		case client.EventComplete:
			result := ev.Result
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.Summary)
			if len(result.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for i, src := range result.Sources {
					fmt.Fprintf(out, "  %d. %s\n     %s\n", i+1, src.Title, src.URL)
				}
			}
			if result.Cached {
				fmt.Fprintln(out, "\n(cached result)")
			}
			return nil
		case client.EventError:
			return ev.Err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("stream ended without a result")
}
