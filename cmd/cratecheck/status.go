package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/cratecheck/internal/display"
	"github.com/hazz-dev/cratecheck/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.Check, error)
}

func executeStatus(cmd *cobra.Command, db statusStore, f display.Formatter) error {
	out := cmd.OutOrStdout()
	checks, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(checks) == 0 {
		fmt.Fprintln(out, "No check history. Run 'cratecheck serve' or 'cratecheck check --record' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tRESPONSE\tLAST CHECKED\tAVAILABILITY")
	for _, c := range checks {
		status := "—"
		if c.StatusCode != 0 {
			status = fmt.Sprint(c.StatusCode)
		}
		resp := "—"
		if c.ResponseMs > 0 {
			resp = time.Duration(c.ResponseMs * int64(time.Millisecond)).Round(time.Millisecond).String()
		}
		label := display.Render(c.Availability, f)
		if c.Error != "" {
			label += " (" + c.Error + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Name,
			status,
			resp,
			c.CheckedAt.Local().Format("2006-01-02 15:04:05"),
			label,
		)
	}
	w.Flush()
	return nil
}
