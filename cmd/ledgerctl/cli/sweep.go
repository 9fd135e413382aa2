package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
)

func newSweepCommand(rt *runtime) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the overdue sweep synchronously against the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseSweepTime(at, time.Now)
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), rt.cfg.PGDSN, 2)
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := invoices.NewRepository(pool).SweepOverdue(cmd.Context(), now)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked overdue as of %s\n", n, now.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate due dates as of YYYY-MM-DD (default: now)")
	return cmd
}

// parseSweepTime resolves the --at flag. A date means midnight UTC, so only
// invoices due before that day are swept.
func parseSweepTime(raw string, now func() time.Time) (time.Time, error) {
	if raw == "" {
		return now().UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q (expected YYYY-MM-DD)", raw)
	}
	return day, nil
}
