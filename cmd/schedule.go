package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	var (
		headless bool
		runNow   bool
	)

	c := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily scheduler, booking the moment slots open",
		Long: `Run continuously, firing one booking attempt at each configured
booking time every day. Times are evaluated in the configured timezone;
each trigger gets a fresh browser. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, capture := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			hist := openHistory(cfg, log)
			defer hist.Close()
			notifier := notify.New(cfg.Notify, log)

			task := func(ctx context.Context) {
				if _, err := runBookingOnce(ctx, cfg, headless, log, capture, hist, notifier); err != nil {
					log.Error().Err(err).Msg("scheduled booking run ended without a booking")
				}
			}

			if runNow {
				log.Info().Msg("running one booking attempt before starting the schedule")
				task(ctx)
			}

			err = scheduler.New(cfg, task, log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("scheduler shut down")
				return nil
			}
			return err
		},
	}

	c.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	c.Flags().BoolVar(&runNow, "run-now", false, "run one booking attempt immediately, then keep the schedule")
	return c
}
