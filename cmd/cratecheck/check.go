package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/cratecheck/internal/checker"
	"github.com/hazz-dev/cratecheck/internal/display"
)

type lookupChecker interface {
	CheckWithTimeout(ctx context.Context, name string, timeout time.Duration) (checker.Result, error)
}

type resultRecorder interface {
	InsertCheck(ctx context.Context, r checker.Result) error
}

func executeCheck(cmd *cobra.Command, c lookupChecker, names []string, timeout time.Duration, f display.Formatter, rec resultRecorder) error {
	return runChecks(cmd.Context(), cmd.OutOrStdout(), c, names, timeout, f, rec)
}

// runChecks looks up every name concurrently and prints one row per name in
// argument order. rec may be nil.
func runChecks(ctx context.Context, out io.Writer, c lookupChecker, names []string, timeout time.Duration, f display.Formatter, rec resultRecorder) error {
	type outcome struct {
		result checker.Result
		err    error
	}

	outcomes := make([]outcome, len(names))
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			r, err := c.CheckWithTimeout(ctx, name, timeout)
			outcomes[i] = outcome{result: r, err: err}
		}(i, name)
	}
	wg.Wait()

	// Colored labels go in the last cell so escape codes don't skew column widths.
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tRESPONSE\tAVAILABILITY")
	rejected := 0
	for i, o := range outcomes {
		if o.err != nil {
			rejected++
			fmt.Fprintf(w, "%q\t—\t—\trejected: %v\n", names[i], o.err)
			continue
		}

		if rec != nil {
			if err := rec.InsertCheck(ctx, o.result); err != nil {
				slog.Warn("recording check", "name", o.result.Name, "error", err)
			}
		}

		status := "—"
		if o.result.StatusCode != 0 {
			status = fmt.Sprint(o.result.StatusCode)
		}
		resp := "—"
		if o.result.ResponseTime > 0 {
			resp = o.result.ResponseTime.Round(time.Millisecond).String()
		}
		label := display.Render(o.result.Availability, f)
		if o.result.Error != "" {
			label += " (" + o.result.Error + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.result.Name, status, resp, label)
	}
	w.Flush()

	if rejected > 0 {
		return fmt.Errorf("%d of %d names rejected", rejected, len(names))
	}
	return nil
}
