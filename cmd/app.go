package cmd

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/browser"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/history"
	"github.com/example/court-scheduler/internal/logging"
	"github.com/example/court-scheduler/internal/notify"
)

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

// setupLogging builds the root logger plus the capture buffer whose
// lines ride along on outbound notifications.
func setupLogging(cfg config.Config) (zerolog.Logger, *logging.Capture) {
	capture := logging.NewCapture(40)
	return logging.Setup(cfg.Log.Level, cfg.Log.File, capture), capture
}

// sealerFor picks the state-file sealer from config: explicit keys win,
// then the passphrase, then no sealing at all.
func sealerFor(cfg config.Config) (*browser.Sealer, error) {
	switch {
	case len(cfg.Session.SealHashKey) > 0 || len(cfg.Session.SealBlockKey) > 0:
		return browser.NewSealer(cfg.Session.SealHashKey, cfg.Session.SealBlockKey)
	case cfg.Session.Passphrase != "":
		return browser.SealerFromPassphrase(cfg.Session.Passphrase)
	default:
		return nil, nil
	}
}

func launchBrowser(cfg config.Config, headless bool, log zerolog.Logger) (*browser.Driver, error) {
	sealer, err := sealerFor(cfg)
	if err != nil {
		return nil, err
	}
	return browser.Launch(browser.Options{
		Headless:  headless,
		StatePath: cfg.Session.StatePath,
		Sealer:    sealer,
		Logger:    log,
	})
}

// openHistory opens the attempt/booking record store. History is best
// effort: an unopenable database logs a warning and recording is
// disabled for the run.
func openHistory(cfg config.Config, log zerolog.Logger) *history.Store {
	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.History.Path).Msg("history store unavailable, recording disabled")
		return nil
	}
	return hist
}

// runBookingOnce is one complete booking run: fresh browser, session
// check, the full court loop, teardown. Every scheduled trigger and
// every `book` invocation goes through here, and the outcome always
// goes out through the notifier.
func runBookingOnce(ctx context.Context, cfg config.Config, headless bool, log zerolog.Logger, capture *logging.Capture, hist *history.Store, notifier *notify.Notifier) (*booking.Result, error) {
	drv, err := launchBrowser(cfg, headless, log)
	if err != nil {
		notifier.BookingResult(false, nil, capture.Lines(), err.Error())
		return nil, err
	}
	defer drv.Close()
	page := drv.Page()

	am := auth.New(page, drv, cfg, log)
	ok, err := am.Ensure(ctx, headless)
	if err != nil {
		notifier.BookingResult(false, nil, capture.Lines(), err.Error())
		return nil, err
	}
	if !ok {
		notifier.BookingResult(false, nil, capture.Lines(), auth.ErrNotAuthenticated.Error())
		return nil, auth.ErrNotAuthenticated
	}

	res, err := booking.New(page, cfg, hist, log).Attempt(ctx)
	if res != nil {
		notifier.BookingResult(true, &notify.BookingDetails{
			Court: res.Court,
			Date:  res.Date.Format("2006-01-02"),
			Time:  res.TimeText,
		}, capture.Lines(), "")
		return res, nil
	}

	msg := "no matching slots were open"
	if err != nil {
		msg = err.Error()
	}
	notifier.BookingResult(false, nil, capture.Lines(), msg)
	return nil, err
}
