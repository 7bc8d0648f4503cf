// Package manual is the interactive console for poking at the booking
// site by hand: list openings, book one, inspect and cancel
// registrations, and probe the configured selectors against the live
// page.
package manual

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/browser"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/registrations"
)

// Booker is the slice of the booking engine manual mode drives.
type Booker interface {
	Openings(ctx context.Context, date time.Time) ([]booking.Opening, error)
	SurveyWindow(ctx context.Context, days int) ([]booking.Opening, error)
	BookOpening(ctx context.Context, o booking.Opening) error
}

// Registrar is the slice of the registrations manager manual mode
// drives.
type Registrar interface {
	List(ctx context.Context) ([]registrations.Booking, error)
	Cancel(ctx context.Context, b registrations.Booking) error
}

// Mode runs the interactive menu loop on one authenticated page.
type Mode struct {
	Page   browser.Page
	Engine Booker
	Regs   Registrar
	Cfg    config.Config
	In     io.Reader
	Out    io.Writer
	Log    zerolog.Logger

	now func() time.Time

	// openings and bookings are cached between menu actions so the
	// follow-up book/cancel choices can refer to them by number
	openings []booking.Opening
	bookings []registrations.Booking
}

func New(page browser.Page, eng Booker, regs Registrar, cfg config.Config, log zerolog.Logger) *Mode {
	return &Mode{
		Page:   page,
		Engine: eng,
		Regs:   regs,
		Cfg:    cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
		Log:    log.With().Str("component", "manual").Logger(),
		now:    time.Now,
	}
}

const rule = "================================================================"

// Run loops over the menu until the user exits, input ends, or the
// context is cancelled. Action errors are printed and the loop
// continues; only input exhaustion and cancellation end it.
func (m *Mode) Run(ctx context.Context) error {
	sc := bufio.NewScanner(m.In)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.printMenu()
		choice, ok := m.prompt(sc, "choice (1-8): ")
		if !ok {
			return nil
		}
		switch choice {
		case "1":
			m.checkTargetDate(ctx)
		case "2":
			m.bookOpening(ctx, sc)
		case "3":
			m.checkSpecificDate(ctx, sc)
		case "4":
			m.viewBookings(ctx)
		case "5":
			m.cancelBooking(ctx, sc)
		case "6":
			m.surveyWindow(ctx)
		case "7":
			m.probeSelectors()
		case "8", "q", "exit":
			fmt.Fprintln(m.Out, "leaving manual mode")
			return nil
		default:
			fmt.Fprintln(m.Out, "invalid choice, enter 1-8")
		}
	}
}

func (m *Mode) printMenu() {
	fmt.Fprintln(m.Out)
	fmt.Fprintln(m.Out, rule)
	fmt.Fprintln(m.Out, "MANUAL MODE")
	fmt.Fprintln(m.Out, rule)
	fmt.Fprintf(m.Out, "1. Check openings on the target date (today + %d days)\n", m.Cfg.WindowDays)
	fmt.Fprintln(m.Out, "2. Book one of the listed openings")
	fmt.Fprintln(m.Out, "3. Check openings on a specific date")
	fmt.Fprintln(m.Out, "4. View my registrations")
	fmt.Fprintln(m.Out, "5. Cancel a registration")
	fmt.Fprintln(m.Out, "6. Survey the whole booking window")
	fmt.Fprintln(m.Out, "7. Probe page selectors")
	fmt.Fprintln(m.Out, "8. Exit")
	fmt.Fprintln(m.Out, rule)
}

func (m *Mode) prompt(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Fprint(m.Out, label)
	if !sc.Scan() {
		fmt.Fprintln(m.Out)
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func (m *Mode) checkTargetDate(ctx context.Context) {
	target := m.Cfg.TargetDate(m.now())
	fmt.Fprintf(m.Out, "\nchecking all courts for %s\n", target.Format("Monday, January 2, 2006"))
	m.listOpenings(ctx, target)
}

func (m *Mode) checkSpecificDate(ctx context.Context, sc *bufio.Scanner) {
	in, ok := m.prompt(sc, fmt.Sprintf("days ahead (default %d): ", m.Cfg.WindowDays))
	if !ok {
		return
	}
	days := m.Cfg.WindowDays
	if in != "" {
		n, err := strconv.Atoi(in)
		if err != nil || n < 0 {
			fmt.Fprintln(m.Out, "enter a number of days")
			return
		}
		days = n
	}
	date := m.now().AddDate(0, 0, days)
	fmt.Fprintf(m.Out, "\nchecking all courts for %s\n", date.Format("Monday, January 2, 2006"))
	m.listOpenings(ctx, date)
}

// listOpenings fetches, prints, and caches the openings for one date.
func (m *Mode) listOpenings(ctx context.Context, date time.Time) {
	openings, err := m.Engine.Openings(ctx, date)
	if err != nil {
		m.Log.Error().Err(err).Msg("listing openings failed")
		fmt.Fprintf(m.Out, "error: %v\n", err)
		return
	}
	if len(openings) == 0 {
		fmt.Fprintln(m.Out, "no open slots found")
		m.openings = nil
		return
	}
	m.openings = openings
	m.printOpenings(openings)
	fmt.Fprintln(m.Out, "book one with option 2")
}

func (m *Mode) printOpenings(openings []booking.Opening) {
	court := ""
	for i, o := range openings {
		if o.Court != court {
			court = o.Court
			fmt.Fprintf(m.Out, "\n%s:\n", court)
		}
		fmt.Fprintf(m.Out, "  [%d] %s  %s  (%s)\n", i+1, o.Date.Format("Mon Jan 2"), o.TimeText, o.Spots)
	}
}

func (m *Mode) bookOpening(ctx context.Context, sc *bufio.Scanner) {
	if len(m.openings) == 0 {
		fmt.Fprintln(m.Out, "no openings listed yet, check availability first (option 1 or 3)")
		return
	}
	m.printOpenings(m.openings)
	in, ok := m.prompt(sc, "opening number to book (blank to go back): ")
	if !ok || in == "" {
		return
	}
	n, err := strconv.Atoi(in)
	if err != nil || n < 1 || n > len(m.openings) {
		fmt.Fprintln(m.Out, "invalid opening number")
		return
	}
	o := m.openings[n-1]

	fmt.Fprintf(m.Out, "booking %s on %s at %s\n", o.TimeText, o.Date.Format("2006-01-02"), o.Court)
	confirm, ok := m.prompt(sc, "type yes to confirm: ")
	if !ok || !strings.EqualFold(confirm, "yes") {
		fmt.Fprintln(m.Out, "not booked")
		return
	}

	if err := m.Engine.BookOpening(ctx, o); err != nil {
		m.Log.Error().Err(err).Str("court", o.Court).Msg("manual booking failed")
		fmt.Fprintf(m.Out, "booking failed: %v\n", err)
		return
	}
	fmt.Fprintf(m.Out, "booked %s on %s at %s\n", o.TimeText, o.Date.Format("2006-01-02"), o.Court)
	// the listing is stale now
	m.openings = nil
}

func (m *Mode) viewBookings(ctx context.Context) {
	bookings, err := m.Regs.List(ctx)
	if err != nil {
		m.Log.Error().Err(err).Msg("listing registrations failed")
		fmt.Fprintf(m.Out, "error: %v\n", err)
		return
	}
	if len(bookings) == 0 {
		fmt.Fprintln(m.Out, "no registrations found")
		m.bookings = nil
		return
	}
	m.bookings = bookings
	m.printBookings(bookings)
}

func (m *Mode) printBookings(bookings []registrations.Booking) {
	fmt.Fprintf(m.Out, "\n%d registration(s):\n", len(bookings))
	for i, b := range bookings {
		mark := ""
		if b.RegID == "" {
			mark = "  (no registration id, cannot cancel)"
		}
		fmt.Fprintf(m.Out, "  [%d] %s at %s, %s%s\n", i+1, b.Date, b.Time, b.Court, mark)
	}
}

func (m *Mode) cancelBooking(ctx context.Context, sc *bufio.Scanner) {
	bookings, err := m.Regs.List(ctx)
	if err != nil {
		m.Log.Error().Err(err).Msg("listing registrations failed")
		fmt.Fprintf(m.Out, "error: %v\n", err)
		return
	}
	if len(bookings) == 0 {
		fmt.Fprintln(m.Out, "no registrations to cancel")
		return
	}
	m.bookings = bookings
	m.printBookings(bookings)

	in, ok := m.prompt(sc, "registration number to cancel (blank to go back): ")
	if !ok || in == "" {
		return
	}
	n, err := strconv.Atoi(in)
	if err != nil || n < 1 || n > len(bookings) {
		fmt.Fprintln(m.Out, "invalid registration number")
		return
	}
	b := bookings[n-1]
	if b.RegID == "" {
		fmt.Fprintln(m.Out, "that registration has no id, refresh the list (option 4) and try again")
		return
	}

	fmt.Fprintf(m.Out, "cancelling %s at %s, %s\n", b.Date, b.Time, b.Court)
	confirm, ok := m.prompt(sc, "type yes to confirm: ")
	if !ok || !strings.EqualFold(confirm, "yes") {
		fmt.Fprintln(m.Out, "not cancelled")
		return
	}

	switch err := m.Regs.Cancel(ctx, b); {
	case err == nil:
		fmt.Fprintln(m.Out, "registration cancelled")
	case errors.Is(err, registrations.ErrCancelInconclusive):
		fmt.Fprintln(m.Out, "cancellation confirmed but could not be verified, check the registrations page")
	default:
		m.Log.Error().Err(err).Str("reg_id", b.RegID).Msg("cancellation failed")
		fmt.Fprintf(m.Out, "cancellation failed: %v\n", err)
	}
}

func (m *Mode) surveyWindow(ctx context.Context) {
	fmt.Fprintf(m.Out, "\nchecking every exposed date on every court for the next %d days, this takes a while\n", m.Cfg.WindowDays)
	openings, err := m.Engine.SurveyWindow(ctx, m.Cfg.WindowDays)
	if err != nil {
		m.Log.Error().Err(err).Msg("window survey failed")
		fmt.Fprintf(m.Out, "error: %v\n", err)
		return
	}
	if len(openings) == 0 {
		fmt.Fprintln(m.Out, "no open slots anywhere in the window")
		m.openings = nil
		return
	}
	m.openings = openings
	m.printOpenings(openings)

	courts := map[string]bool{}
	for _, o := range openings {
		courts[o.Court] = true
	}
	fmt.Fprintln(m.Out, rule)
	fmt.Fprintf(m.Out, "%d open slot(s) across %d court(s)\n", len(openings), len(courts))
	fmt.Fprintln(m.Out, "book one with option 2")
}

// probeSelectors checks the configured DOM anchors against the current
// listing page, for diagnosing selector drift after a site redesign.
func (m *Mode) probeSelectors() {
	fmt.Fprintln(m.Out, "\nprobing selectors on the program listing page")
	if err := m.Page.Navigate(m.Cfg.URLs.Program, 15*time.Second); err != nil {
		fmt.Fprintf(m.Out, "error: %v\n", err)
		return
	}

	sel := m.Cfg.Selectors
	probes := []struct {
		name     string
		selector string
	}{
		{"cookie_button", sel.CookieButton},
		{"court_link", sel.CourtLink},
		{"time_slot_card", sel.TimeSlotCard},
		{"select_button", sel.SelectButton},
		{"logged_in_marker", sel.LoggedInMarker},
	}
	for _, p := range probes {
		els, err := m.Page.All(p.selector)
		if err != nil {
			fmt.Fprintf(m.Out, "  %-18s %-32s error: %v\n", p.name, p.selector, err)
			continue
		}
		fmt.Fprintf(m.Out, "  %-18s %-32s %d element(s)\n", p.name, p.selector, len(els))
	}

	links, err := m.Page.All(sel.CourtLink)
	if err != nil || len(links) == 0 {
		return
	}
	fmt.Fprintln(m.Out, "courts on the page:")
	for i, link := range links {
		if i == 5 {
			fmt.Fprintf(m.Out, "  ... and %d more\n", len(links)-5)
			break
		}
		text, err := link.Text()
		if err != nil {
			continue
		}
		fmt.Fprintf(m.Out, "  %s\n", strings.TrimSpace(strings.SplitN(text, "\n", 2)[0]))
	}
}
