// Package registrations reads and cancels existing court reservations
// through the account's program-registrations page.
package registrations

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

// ErrCancelInconclusive means the cancellation was confirmed in the
// dialog but the follow-up verification could not complete. The
// cancellation most likely went through; the caller should surface a
// check-manually warning rather than a failure.
var ErrCancelInconclusive = errors.New("cancellation confirmed but not verified")

const pagePath = "/profile/programregistrations"

// Booking is one reservation as rendered on the registrations page.
// RegID is the stable server-side key; a booking without one cannot be
// cancelled.
type Booking struct {
	RegID    string
	Court    string
	Date     string // as shown, e.g. "Mar 16"
	Time     string // as shown, e.g. "6:00 - 7:00 PM"
	Location string
}

// Manager drives the registrations page on one browser tab.
type Manager struct {
	page browser.Page
	cfg  config.Config
	log  zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func New(page browser.Page, cfg config.Config, log zerolog.Logger) *Manager {
	return &Manager{
		page:  page,
		cfg:   cfg,
		log:   log.With().Str("component", "registrations").Logger(),
		sleep: sleepCtx,
	}
}

// List returns the reservations currently shown on the registrations
// page. Cards are located by the registration-id attribute first, with
// class and heading based fallbacks; individual missing fields are
// tolerated.
func (m *Manager) List(ctx context.Context) ([]Booking, error) {
	if err := m.ensureOnPage(ctx); err != nil {
		return nil, err
	}

	cards := m.cards()
	m.log.Info().Int("cards", len(cards)).Msg("registration cards found")

	var out []Booking
	for _, card := range cards {
		if b, ok := m.readCard(card); ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// Cancel removes one reservation: open the card's action menu, pick the
// cancel item, confirm the dialog, then reload and verify the
// registration id is gone. A missing registration id fails immediately
// without touching the page.
func (m *Manager) Cancel(ctx context.Context, b Booking) error {
	if b.RegID == "" {
		return fmt.Errorf("booking %q has no registration id, refusing to cancel", b.Court)
	}
	log := m.log.With().Str("reg_id", b.RegID).Str("court", b.Court).Logger()
	log.Info().Msg("cancelling registration")

	if err := m.ensureOnPage(ctx); err != nil {
		return err
	}

	card, err := m.page.Find(fmt.Sprintf(`.card[data-regid=%q]`, b.RegID), 5*time.Second)
	if err != nil {
		card, err = m.page.Find(fmt.Sprintf(`.upcoming-event-card[data-regid=%q]`, b.RegID), 2*time.Second)
		if err != nil {
			return fmt.Errorf("registration card %s not found on page", b.RegID)
		}
	}

	toggle, err := card.Query("button.dropdown-toggle")
	if err != nil {
		toggle, err = card.Query(`button[aria-label*="Action"]`)
		if err != nil {
			return fmt.Errorf("action menu control missing on card %s", b.RegID)
		}
	}
	if err := toggle.Click(); err != nil {
		return fmt.Errorf("open action menu: %w", err)
	}
	if err := m.sleep(ctx, time.Second); err != nil {
		return err
	}

	item, err := m.page.FindByText("div.dropdown-menu.show a.dropdown-item", "Cancel Registration", 2*time.Second)
	if err != nil {
		return fmt.Errorf("cancel action not present in menu: %w", err)
	}
	if !item.Visible() {
		return fmt.Errorf("cancel action not visible in menu for %s", b.RegID)
	}
	if cls, ok := item.Attribute("class"); ok && (strings.Contains(cls, "disabled") || strings.Contains(cls, "text-muted")) {
		return fmt.Errorf("cancel action is disabled for registration %s", b.RegID)
	}
	if err := item.Click(); err != nil {
		return fmt.Errorf("click cancel action: %w", err)
	}
	if err := m.sleep(ctx, time.Second); err != nil {
		return err
	}

	dialog, err := m.page.FindByText(`[role="dialog"]`, "Cancel Registration?", 3*time.Second)
	if err != nil {
		return fmt.Errorf("confirmation dialog did not appear: %w", err)
	}
	confirm := childByText(dialog, "button", "Confirm")
	if confirm == nil {
		return fmt.Errorf("confirm control missing in cancellation dialog")
	}
	if err := confirm.Click(); err != nil {
		return fmt.Errorf("confirm cancellation: %w", err)
	}

	m.awaitHidden(ctx, dialog, 5*time.Second)
	if err := m.sleep(ctx, 2*time.Second); err != nil {
		return err
	}
	if err := m.page.Reload(10 * time.Second); err != nil {
		log.Warn().Err(err).Msg("reload after cancellation failed")
	}
	if err := m.sleep(ctx, 2*time.Second); err != nil {
		return err
	}

	return m.verifyCancelled(ctx, log, b.RegID)
}

func (m *Manager) verifyCancelled(ctx context.Context, log zerolog.Logger, regID string) error {
	remaining, err := m.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not re-list registrations to verify cancellation")
		return ErrCancelInconclusive
	}
	for _, r := range remaining {
		if r.RegID != regID {
			continue
		}
		// the list can lag behind, the card's own visibility is the
		// secondary signal
		if el, err := m.page.Find(fmt.Sprintf(`.card[data-regid=%q]`, regID), time.Second); err != nil || !el.Visible() {
			log.Info().Msg("registration card no longer visible, treating as cancelled")
			return nil
		}
		return fmt.Errorf("registration %s still listed after cancellation", regID)
	}
	log.Info().Msg("registration cancelled")
	return nil
}

func (m *Manager) ensureOnPage(ctx context.Context) error {
	if strings.Contains(strings.ToLower(m.page.URL()), pagePath) {
		return m.sleep(ctx, time.Second)
	}
	if err := m.page.Navigate(m.cfg.URLs.Registrations, 15*time.Second); err != nil {
		return fmt.Errorf("open registrations page: %w", err)
	}
	return m.sleep(ctx, 2*time.Second)
}

// cards finds the booking cards. The outer wrapper class comes first
// because its inner card carries the registration id; plain id lookup
// and heading ancestors cover older renders of the page.
func (m *Manager) cards() []browser.Element {
	var cards []browser.Element

	outers, _ := m.page.All(".upcoming-event-card")
	for _, outer := range outers {
		if inner, err := outer.Query(`.card[data-regid]`); err == nil {
			cards = append(cards, inner)
		} else {
			cards = append(cards, outer)
		}
	}
	if len(cards) > 0 {
		return cards
	}

	byID, _ := m.page.All(`.card[data-regid]`)
	if len(byID) > 0 {
		return byID
	}

	headings, _ := m.page.All("h3.program-name")
	for _, h := range headings {
		if card, err := h.Closest(`.card[data-regid]`); err == nil {
			cards = append(cards, card)
		}
	}
	return cards
}

func (m *Manager) readCard(card browser.Element) (Booking, bool) {
	heading, err := card.Query("h3.program-name")
	if err != nil {
		return Booking{}, false
	}
	court, err := heading.Text()
	if err != nil || court == "" || !strings.Contains(court, "Court") {
		return Booking{}, false
	}

	b := Booking{Court: court}
	if regID, ok := card.Attribute("data-regid"); ok {
		b.RegID = regID
	}
	if b.RegID == "" {
		if inner, err := card.Query(`.card[data-regid]`); err == nil {
			if regID, ok := inner.Attribute("data-regid"); ok {
				b.RegID = regID
			}
		}
	}
	if b.RegID == "" {
		if anc, err := card.Closest(`[data-regid]`); err == nil {
			if regID, ok := anc.Attribute("data-regid"); ok {
				b.RegID = regID
			}
		}
	}
	if b.RegID == "" {
		m.log.Warn().Str("court", court).Msg("registration card has no id, cancellation unavailable for it")
	}

	b.Time = childText(card, ".event-time .opacity-text")
	b.Location = childText(card, ".event-location-or-btn .opacity-text")
	day := childText(card, ".event-day")
	month := childText(card, ".event-month")
	if day != "" && month != "" {
		b.Date = month + " " + day
	}
	return b, true
}

func (m *Manager) awaitHidden(ctx context.Context, el browser.Element, max time.Duration) {
	deadline := time.Now().Add(max)
	for time.Now().Before(deadline) {
		if !el.Visible() {
			return
		}
		if err := m.sleep(ctx, 250*time.Millisecond); err != nil {
			return
		}
	}
}

func childText(el browser.Element, selector string) string {
	child, err := el.Query(selector)
	if err != nil {
		return ""
	}
	t, err := child.Text()
	if err != nil {
		return ""
	}
	return t
}

func childByText(el browser.Element, selector, text string) browser.Element {
	children, err := el.QueryAll(selector)
	if err != nil {
		return nil
	}
	for _, c := range children {
		if t, err := c.Text(); err == nil && strings.Contains(strings.ToLower(t), strings.ToLower(text)) {
			return c
		}
	}
	return nil
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
