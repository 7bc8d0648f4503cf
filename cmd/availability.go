package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/booking"
)

func newAvailabilityCmd() *cobra.Command {
	var (
		headless bool
		days     int
		date     string
	)

	c := &cobra.Command{
		Use:   "availability",
		Short: "Report open slots without booking anything",
		Long: `Scan the courts and print every open slot, either for one date or
for every exposed date in the scan window. Read-only: nothing is
selected and nothing is booked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, _ := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			drv, err := launchBrowser(cfg, headless, log)
			if err != nil {
				return err
			}
			defer drv.Close()
			page := drv.Page()

			ok, err := auth.New(page, drv, cfg, log).Ensure(ctx, headless)
			if err != nil {
				return err
			}
			if !ok {
				return auth.ErrNotAuthenticated
			}

			eng := booking.New(page, cfg, nil, log)

			var openings []booking.Opening
			if date != "" {
				d, perr := time.ParseInLocation("2006-01-02", date, cfg.Location())
				if perr != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", perr)
				}
				openings, err = eng.Openings(ctx, d)
			} else {
				if days <= 0 {
					days = cfg.WindowDays
				}
				openings, err = eng.SurveyWindow(ctx, days)
			}
			if err != nil {
				return err
			}

			if len(openings) == 0 {
				fmt.Fprintln(os.Stdout, "no open slots found")
				return nil
			}
			for _, o := range openings {
				fmt.Fprintf(os.Stdout, "%s  %-22s %-28s %s\n",
					o.Date.Format("2006-01-02"), o.TimeText, o.Court, o.Spots)
			}
			fmt.Fprintf(os.Stdout, "%d open slot(s)\n", len(openings))
			return nil
		},
	}

	c.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	c.Flags().IntVar(&days, "days", 0, "days ahead to scan (default: the booking window)")
	c.Flags().StringVar(&date, "date", "", "scan only this date (YYYY-MM-DD)")
	return c
}
