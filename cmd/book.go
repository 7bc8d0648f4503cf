package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/notify"
)

func newBookCmd() *cobra.Command {
	var (
		headless  bool
		date      string
		court     string
		startTime string
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Run one booking attempt now",
		Long: `Run one complete booking attempt: open the court listing, walk the
courts in preference order, and check out the first open slot at a
configured time on the target date. Exits non-zero when nothing was
booked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if date != "" || court != "" || startTime != "" {
				cfg.TestMode = config.TestMode{
					Enabled:     true,
					TargetDate:  date,
					TargetCourt: court,
					TargetTime:  startTime,
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			log, capture := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			hist := openHistory(cfg, log)
			defer hist.Close()

			notifier := notify.New(cfg.Notify, log)
			res, err := runBookingOnce(ctx, cfg, headless, log, capture, hist, notifier)
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("no booking made")
			}
			fmt.Fprintf(os.Stdout, "booked %s on %s at %s\n", res.TimeText, res.Date.Format("2006-01-02"), res.Court)
			return nil
		},
	}

	c.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	c.Flags().StringVar(&date, "date", "", "target this date (YYYY-MM-DD) instead of today + booking window")
	c.Flags().StringVar(&court, "court", "", "target only this court")
	c.Flags().StringVar(&startTime, "time", "", "target this start time (HH:MM) instead of the configured times")
	return c
}
