package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/registrations"
)

func newRegistrationsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "registrations",
		Aliases: []string{"regs"},
		Short:   "View and cancel existing court registrations",
	}
	c.AddCommand(newRegistrationsListCmd())
	c.AddCommand(newRegistrationsCancelCmd())
	return c
}

func newRegistrationsListCmd() *cobra.Command {
	var headless bool

	c := &cobra.Command{
		Use:   "list",
		Short: "List the registrations on the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, _ := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			mgr, closeBrowser, err := openRegistrations(ctx, cfg, headless, log)
			if err != nil {
				return err
			}
			defer closeBrowser()

			bookings, err := mgr.List(ctx)
			if err != nil {
				return err
			}
			if len(bookings) == 0 {
				fmt.Fprintln(os.Stdout, "no registrations found")
				return nil
			}
			for _, b := range bookings {
				fmt.Fprintf(os.Stdout, "reg_id=%s date=%q time=%q court=%q location=%q\n",
					orNA(b.RegID), b.Date, b.Time, b.Court, b.Location)
			}
			return nil
		},
	}

	c.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	return c
}

func newRegistrationsCancelCmd() *cobra.Command {
	var (
		headless bool
		id       string
		court    string
		date     string
		timeStr  string
	)

	c := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel one registration",
		Long: `Cancel a registration picked by its id, or by matching against the
court, date, and time shown by 'registrations list'. The match must be
unambiguous.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" && court == "" && date == "" && timeStr == "" {
				return fmt.Errorf("specify --id, or narrow with --court/--date/--time")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, _ := setupLogging(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			mgr, closeBrowser, err := openRegistrations(ctx, cfg, headless, log)
			if err != nil {
				return err
			}
			defer closeBrowser()

			bookings, err := mgr.List(ctx)
			if err != nil {
				return err
			}
			b, err := matchRegistration(bookings, id, court, date, timeStr)
			if err != nil {
				return err
			}

			switch err := mgr.Cancel(ctx, b); {
			case err == nil:
				fmt.Fprintf(os.Stdout, "cancelled reg_id=%s date=%q time=%q court=%q\n", b.RegID, b.Date, b.Time, b.Court)
				return nil
			case errors.Is(err, registrations.ErrCancelInconclusive):
				fmt.Fprintln(os.Stdout, "cancellation confirmed but could not be verified, check the registrations page")
				return nil
			default:
				return err
			}
		},
	}

	c.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	c.Flags().StringVar(&id, "id", "", "registration id from 'registrations list'")
	c.Flags().StringVar(&court, "court", "", "match the court name (substring)")
	c.Flags().StringVar(&date, "date", "", "match the date as shown, e.g. \"Mar 16\"")
	c.Flags().StringVar(&timeStr, "time", "", "match the time as shown (substring)")
	return c
}

// openRegistrations launches a browser, establishes the session, and
// returns a ready registrations manager plus the teardown func.
func openRegistrations(ctx context.Context, cfg config.Config, headless bool, log zerolog.Logger) (*registrations.Manager, func(), error) {
	drv, err := launchBrowser(cfg, headless, log)
	if err != nil {
		return nil, nil, err
	}
	ok, err := auth.New(drv.Page(), drv, cfg, log).Ensure(ctx, headless)
	if err != nil {
		drv.Close()
		return nil, nil, err
	}
	if !ok {
		drv.Close()
		return nil, nil, auth.ErrNotAuthenticated
	}
	return registrations.New(drv.Page(), cfg, log), drv.Close, nil
}

func matchRegistration(bookings []registrations.Booking, id, court, date, timeStr string) (registrations.Booking, error) {
	var matches []registrations.Booking
	for _, b := range bookings {
		if id != "" && b.RegID != id {
			continue
		}
		if court != "" && !strings.Contains(strings.ToLower(b.Court), strings.ToLower(court)) {
			continue
		}
		if date != "" && !strings.EqualFold(strings.TrimSpace(b.Date), strings.TrimSpace(date)) {
			continue
		}
		if timeStr != "" && !strings.Contains(b.Time, timeStr) {
			continue
		}
		matches = append(matches, b)
	}
	switch len(matches) {
	case 0:
		return registrations.Booking{}, fmt.Errorf("no registration matches the given selectors")
	case 1:
		return matches[0], nil
	default:
		return registrations.Booking{}, fmt.Errorf("%d registrations match, narrow the selectors or use --id", len(matches))
	}
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
