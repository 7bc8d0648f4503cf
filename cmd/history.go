package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent booking attempts and confirmed bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			hist, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			if hist == nil {
				fmt.Fprintln(os.Stdout, "history is disabled (no history.path configured)")
				return nil
			}
			defer hist.Close()

			attempts, err := hist.RecentAttempts(limit)
			if err != nil {
				return err
			}
			bookings, err := hist.RecentBookings(limit)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "attempts (%d):\n", len(attempts))
			for _, a := range attempts {
				fmt.Fprintf(os.Stdout, "  run=%s started=%s tries=%d outcome=%s err=%q\n",
					a.RunID, a.StartedAt.Format("2006-01-02 15:04:05"), a.Tries, a.Outcome, a.Error)
			}
			fmt.Fprintf(os.Stdout, "bookings (%d):\n", len(bookings))
			for _, b := range bookings {
				fmt.Fprintf(os.Stdout, "  run=%s court=%q date=%s start=%s time=%q\n",
					b.RunID, b.Court, b.Date, b.Start, b.TimeText)
			}
			return nil
		},
	}

	c.Flags().IntVar(&limit, "limit", 20, "rows to show per table")
	return c
}
