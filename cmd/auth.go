package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/notify"
)

func newAuthCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "auth",
		Short: "Sign in through a visible browser and save the session",
		Long: `Open a visible browser window on the booking site and wait for a
manual sign-in. Cookies and local storage are saved once the session is
authenticated, so later headless runs can reuse them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, _ := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			drv, err := launchBrowser(cfg, false, log)
			if err != nil {
				return err
			}
			defer drv.Close()

			ok, err := auth.New(drv.Page(), drv, cfg, log).Ensure(ctx, false)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("sign-in was not completed")
			}
			fmt.Fprintf(os.Stdout, "signed in, session state saved to %s\n", cfg.Session.StatePath)
			return nil
		},
	}

	c.AddCommand(newAuthStatusCmd())
	c.AddCommand(newAuthKeepaliveCmd())
	return c
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the saved session is still signed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, _ := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			drv, err := launchBrowser(cfg, true, log)
			if err != nil {
				return err
			}
			defer drv.Close()

			ok, err := auth.New(drv.Page(), drv, cfg, log).Ensure(ctx, true)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stdout, "session expired")
				return fmt.Errorf("saved session is no longer signed in, run `courtsched auth`")
			}
			fmt.Fprintln(os.Stdout, "session active")
			return nil
		},
	}
}

func newAuthKeepaliveCmd() *cobra.Command {
	var interval time.Duration

	c := &cobra.Command{
		Use:   "keepalive",
		Short: "Revisit the site periodically so the session does not expire",
		Long: `Run continuously, revisiting the booking site at the given interval
so the session cookies keep sliding forward. When the session state
flips between signed in and signed out, a notification goes out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, _ := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			drv, err := launchBrowser(cfg, true, log)
			if err != nil {
				return err
			}
			defer drv.Close()

			notifier := notify.New(cfg.Notify, log)
			onChange := func(authenticated bool) {
				notifier.AuthStatus(authenticated, "Reported by `courtsched auth keepalive`.")
			}

			err = auth.New(drv.Page(), drv, cfg, log).KeepAlive(ctx, interval, onChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	c.Flags().DurationVar(&interval, "interval", 10*time.Minute, "time between keep-alive visits")
	return c
}
