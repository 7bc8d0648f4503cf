package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/manual"
	"github.com/example/court-scheduler/internal/registrations"
)

func newManualCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "manual",
		Short: "Drive the booking flow interactively from a menu",
		Long: `Open a visible browser, sign in, and present a menu for checking
availability, booking a listed slot, reviewing registrations and
cancelling them. Useful for poking at the site when selectors drift.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, _ := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// Manual mode is for watching the site, so the browser is
			// always visible.
			drv, err := launchBrowser(cfg, false, log)
			if err != nil {
				return err
			}
			defer drv.Close()
			page := drv.Page()

			ok, err := auth.New(page, drv, cfg, log).Ensure(ctx, false)
			if err != nil {
				return err
			}
			if !ok {
				return auth.ErrNotAuthenticated
			}

			hist := openHistory(cfg, log)
			defer hist.Close()

			eng := booking.New(page, cfg, hist, log)
			regs := registrations.New(page, cfg, log)

			err = manual.New(page, eng, regs, cfg, log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	return c
}
