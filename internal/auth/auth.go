// Package auth decides whether the browser session is signed in and
// drives the recovery paths when it is not: silent cookie-based
// re-login where possible, a blocking manual sign-in window otherwise.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/court-scheduler/internal/browser"
	"github.com/example/court-scheduler/internal/config"
)

// ErrNotAuthenticated reports that a run cannot proceed because no
// signed-in session could be established.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session is the slice of the browser driver auth needs besides the
// page itself.
type Session interface {
	SaveState() error
	StateLoaded() bool
}

const probeTimeout = 500 * time.Millisecond

// Manager checks and maintains the signed-in state of one page.
type Manager struct {
	page    browser.Page
	session Session
	cfg     config.Config
	log     zerolog.Logger

	// interactive sign-in wait, shortened in tests
	pollEvery time.Duration
	pollMax   time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(page browser.Page, session Session, cfg config.Config, log zerolog.Logger) *Manager {
	return &Manager{
		page:      page,
		session:   session,
		cfg:       cfg,
		log:       log.With().Str("component", "auth").Logger(),
		pollEvery: 3 * time.Second,
		pollMax:   5 * time.Minute,
		sleep:     sleepCtx,
	}
}

type verdict int

const (
	verdictUnknown verdict = iota
	verdictSignedIn
	verdictSignedOut
)

type probe struct {
	name  string
	check func() verdict
}

// probes is the ordered strategy list behind IsAuthenticated. Each layer
// is an independent short-timeout check and the first definitive signal
// wins. Order matters: the positive marker is cheapest and most
// reliable, the account-name fallback comes last because it depends on
// optional configuration.
func (m *Manager) probes() []probe {
	return []probe{
		{"logged-in-marker", func() verdict {
			if _, err := m.page.FindVisible(m.cfg.Selectors.LoggedInMarker, probeTimeout); err == nil {
				return verdictSignedIn
			}
			return verdictUnknown
		}},
		{"sign-in-control", func() verdict {
			el, err := m.page.FindByText("a, button", m.cfg.Selectors.SignInText, probeTimeout)
			if err == nil && el.Visible() {
				return verdictSignedOut
			}
			return verdictUnknown
		}},
		{"login-url", func() verdict {
			u := strings.ToLower(m.page.URL())
			if strings.Contains(u, "login") || strings.Contains(u, "signin") {
				return verdictSignedOut
			}
			return verdictUnknown
		}},
		{"account-name", func() verdict {
			if m.cfg.Session.AccountName == "" {
				return verdictUnknown
			}
			if _, err := m.page.FindByText("*", m.cfg.Session.AccountName, probeTimeout); err == nil {
				return verdictSignedIn
			}
			return verdictUnknown
		}},
	}
}

// IsAuthenticated runs the probe chain against the current render. No
// signal at all counts as signed out so the caller re-authenticates
// rather than booking blind.
func (m *Manager) IsAuthenticated() bool {
	for _, p := range m.probes() {
		switch p.check() {
		case verdictSignedIn:
			m.log.Debug().Str("probe", p.name).Msg("session authenticated")
			return true
		case verdictSignedOut:
			m.log.Debug().Str("probe", p.name).Msg("session not authenticated")
			return false
		}
	}
	m.log.Debug().Msg("no auth signal on page, treating as signed out")
	return false
}

// Ensure navigates to the booking page and returns with an
// authenticated session or false. Headless runs only get the
// saved-state grace checks; non-headless runs block for a manual
// sign-in in the visible window. The session file is refreshed on
// every success.
func (m *Manager) Ensure(ctx context.Context, headless bool) (bool, error) {
	if err := m.page.Navigate(m.cfg.URLs.Program, 10*time.Second); err != nil {
		return false, fmt.Errorf("open booking page: %w", err)
	}
	m.dismissCookieBanner()

	if m.IsAuthenticated() {
		m.persist()
		return true, nil
	}
	if err := m.sleep(ctx, time.Second); err != nil {
		return false, err
	}
	if m.IsAuthenticated() {
		m.persist()
		return true, nil
	}
	// restored cookies sometimes take one more roundtrip to attach
	if headless && m.session != nil && m.session.StateLoaded() {
		if err := m.sleep(ctx, 3*time.Second); err != nil {
			return false, err
		}
		if m.IsAuthenticated() {
			m.persist()
			return true, nil
		}
	}

	if headless {
		m.log.Error().Msg("not signed in and running headless, nobody can complete the login")
		return false, nil
	}
	return m.waitForManualLogin(ctx)
}

func (m *Manager) waitForManualLogin(ctx context.Context) (bool, error) {
	m.log.Info().Dur("max_wait", m.pollMax).Msg("waiting for manual sign-in in the browser window")
	deadline := time.Now().Add(m.pollMax)
	for i := 1; time.Now().Before(deadline); i++ {
		if err := m.sleep(ctx, m.pollEvery); err != nil {
			return false, err
		}
		if m.IsAuthenticated() {
			m.log.Info().Msg("manual sign-in detected")
			m.persist()
			return true, nil
		}
		if i%5 == 0 {
			if err := m.page.Reload(10 * time.Second); err != nil {
				m.log.Debug().Err(err).Msg("reload while waiting for sign-in failed")
			}
		}
	}
	m.log.Error().Msg("gave up waiting for manual sign-in")
	return false, nil
}

// KeepAlive revisits the booking page every interval so the session
// cookies keep sliding forward. An expired session gets one shot at
// silent re-login through the sign-in control before it is reported.
// onChange fires when the authenticated state flips between visits.
func (m *Manager) KeepAlive(ctx context.Context, interval time.Duration, onChange func(authenticated bool)) error {
	prev := -1
	visit := func() {
		ok := m.visit(ctx)
		cur := 0
		if ok {
			cur = 1
		}
		if prev != -1 && cur != prev && onChange != nil {
			onChange(ok)
		}
		prev = cur
	}

	visit()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			visit()
		}
	}
}

func (m *Manager) visit(ctx context.Context) bool {
	if err := m.page.Navigate(m.cfg.URLs.Program, 10*time.Second); err != nil {
		m.log.Warn().Err(err).Msg("keep-alive visit failed")
		return false
	}
	m.dismissCookieBanner()

	if m.IsAuthenticated() {
		m.persist()
		return true
	}

	// the site logs a recent session back in when the sign-in control
	// is clicked while valid cookies are still present
	if el, err := m.page.FindByText("a, button", m.cfg.Selectors.SignInText, 2*time.Second); err == nil {
		m.log.Info().Msg("session expired, trying silent re-login")
		if err := el.Click(); err == nil {
			if err := m.sleep(ctx, 3*time.Second); err != nil {
				return false
			}
			if m.IsAuthenticated() {
				m.persist()
				return true
			}
		}
	}
	m.log.Warn().Msg("keep-alive found the session signed out")
	return false
}

func (m *Manager) dismissCookieBanner() {
	el, err := m.page.FindVisible(m.cfg.Selectors.CookieButton, 2*time.Second)
	if err != nil {
		return
	}
	if err := el.Click(); err == nil {
		m.log.Debug().Msg("cookie banner dismissed")
	}
}

func (m *Manager) persist() {
	if m.session == nil {
		return
	}
	if err := m.session.SaveState(); err != nil {
		m.log.Warn().Err(err).Msg("saving session state failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
