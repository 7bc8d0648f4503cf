package booking

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/example/court-scheduler/internal/browser"
)

// DateLocator builds the XPath for a date control in the calendar
// strip. The mobile-only duplicate is excluded so the click lands on
// the rendered desktop control instead of a hidden twin.
func DateLocator(d time.Time) string {
	return fmt.Sprintf(
		`//button[@data-year="%d" and @data-month="%d" and @data-day="%d" and not(contains(@class, "single-date-select-mobile"))]`,
		d.Year(), int(d.Month()), d.Day(),
	)
}

// Courts scrapes the bookable venues from the current listing page.
// The name is the first line of the link text; relative links are
// resolved against the configured base URL.
func (e *Engine) Courts() ([]Court, error) {
	els, err := e.page.All(e.cfg.Selectors.CourtLink)
	if err != nil {
		return nil, fmt.Errorf("list court links: %w", err)
	}

	var courts []Court
	seen := map[string]bool{}
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		name := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
		href, ok := el.Attribute("href")
		if name == "" || !ok || href == "" || seen[name] {
			continue
		}
		seen[name] = true
		courts = append(courts, Court{Name: name, URL: absoluteURL(e.cfg.URLs.Base, href)})
	}
	e.log.Info().Int("courts", len(courts)).Msg("courts discovered on listing page")
	return courts, nil
}

func absoluteURL(base, href string) string {
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return base + href
	default:
		return base + "/" + href
	}
}

// NavigateToDate clicks the control for the target date. The calendar
// strip renders only a rolling window, so a miss on the direct click
// nudges the strip forward (adjacent day, then the right-arrow pager)
// and retries once before giving up.
func (e *Engine) NavigateToDate(ctx context.Context, date time.Time) bool {
	if err := e.settle(ctx, 2*time.Second); err != nil {
		return false
	}
	if e.noInstancesShown() {
		e.log.Info().Str("date", date.Format("2006-01-02")).Msg("page reports no instances available, skipping date")
		return false
	}

	locator := DateLocator(date)
	if e.clickDate(ctx, locator, 5*time.Second, 2*time.Second) {
		return true
	}
	e.log.Debug().Str("date", date.Format("2006-01-02")).Msg("date control hidden, paging the calendar strip")

	// clicking the adjacent day sometimes expands the strip enough to
	// expose the target
	next := DateLocator(date.AddDate(0, 0, 1))
	e.clickDate(ctx, next, 3*time.Second, time.Second)
	if arrow, err := e.page.FindVisible(e.cfg.Selectors.RightArrow, time.Second); err == nil {
		if arrow.Click() == nil {
			if err := e.settle(ctx, time.Second); err != nil {
				return false
			}
		}
	}

	if e.clickDate(ctx, locator, 5*time.Second, 2*time.Second) {
		return true
	}
	e.log.Warn().Str("date", date.Format("2006-01-02")).Msg("date control never became visible, date presumed outside the rendered window")
	return false
}

func (e *Engine) clickDate(ctx context.Context, locator string, wait, settle time.Duration) bool {
	el, err := e.page.FindVisible(locator, wait)
	if err != nil {
		return false
	}
	if err := el.Click(); err != nil {
		e.log.Debug().Err(err).Msg("date control click failed")
		return false
	}
	if err := e.settle(ctx, settle); err != nil {
		return false
	}
	return true
}

func (e *Engine) noInstancesShown() bool {
	el, err := e.page.FindByText("*", e.cfg.Selectors.NoInstancesText, time.Second)
	return err == nil && el.Visible()
}

// Slots enumerates the time-slot cards in the current render, pairing
// each card with its select control by list position. A count mismatch
// drops the excess cards rather than guessing. Cards missing the spots
// or time field are skipped.
func (e *Engine) Slots(ctx context.Context) ([]Slot, error) {
	if _, err := e.page.Find(e.cfg.Selectors.TimeSlotCard, e.cfg.Timeout()); err != nil {
		e.log.Warn().Err(err).Str("selector", e.cfg.Selectors.TimeSlotCard).Msg("slot cards never appeared")
		return nil, nil
	}
	if err := e.settle(ctx, 2*time.Second); err != nil {
		return nil, err
	}

	cards, err := e.page.All(e.cfg.Selectors.TimeSlotCard)
	if err != nil {
		return nil, fmt.Errorf("list slot cards: %w", err)
	}
	buttons, err := e.page.All(e.cfg.Selectors.SelectButton)
	if err != nil {
		return nil, fmt.Errorf("list select controls: %w", err)
	}
	if len(cards) != len(buttons) {
		e.log.Warn().Int("cards", len(cards)).Int("controls", len(buttons)).Msg("card and select control counts differ, excess skipped")
	}
	n := len(cards)
	if len(buttons) < n {
		n = len(buttons)
	}

	slots := make([]Slot, 0, n)
	for i := 0; i < n; i++ {
		if slot, ok := e.readSlot(i, cards[i], buttons[i]); ok {
			slots = append(slots, slot)
		}
	}
	e.log.Info().Int("cards", len(cards)).Int("slots", len(slots)).Msg("slots enumerated")
	return slots, nil
}

func (e *Engine) readSlot(index int, card, btn browser.Element) (Slot, bool) {
	spotsEl, err := card.Query(e.cfg.Selectors.SpotsTag)
	if err != nil {
		return Slot{}, false
	}
	spotsText, err := spotsEl.Text()
	if err != nil {
		return Slot{}, false
	}
	timeEl, err := card.Query(e.cfg.Selectors.InstanceTime)
	if err != nil {
		return Slot{}, false
	}
	timeText, err := timeEl.Text()
	if err != nil {
		return Slot{}, false
	}

	court := "Unknown"
	if locEl, err := card.Query(e.cfg.Selectors.LocationDiv); err == nil {
		if p, err := locEl.Query("p"); err == nil {
			if t, err := p.Text(); err == nil {
				court = strings.TrimSpace(strings.ReplaceAll(t, "location_on", ""))
			}
		}
	}

	start, perr := ParseSlotTime(timeText)
	if perr != nil {
		e.log.Warn().Str("text", timeText).Msg("slot time did not parse, excluded from exact matching")
	}
	disabled := btn.Disabled()
	return Slot{
		Index:     index,
		Court:     court,
		TimeText:  timeText,
		Start:     start,
		SpotsText: spotsText,
		Disabled:  disabled,
		Available: !strings.Contains(spotsText, "No Spots Left") && !disabled,
	}, true
}

var slotTimeRe = regexp.MustCompile(`(?i)(\d{1,2}:\d{2})\s*(AM|PM)\s*-\s*\d{1,2}:\d{2}\s*(?:AM|PM)`)

// ParseSlotTime extracts the start of an "H:MM AM - H:MM PM" range from
// free-form header text and normalizes it to 24-hour "HH:MM".
func ParseSlotTime(text string) (string, error) {
	m := slotTimeRe.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("no time range in %q", text)
	}
	t, err := time.Parse("3:04 PM", m[1]+" "+strings.ToUpper(m[2]))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", m[1], err)
	}
	return t.Format("15:04"), nil
}

// FilterByTimes keeps slots whose parsed start matches a target exactly
// (24-hour HH:MM string equality, no interval logic). Slots with
// unparseable times never match.
func FilterByTimes(slots []Slot, targets []string) []Slot {
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	var out []Slot
	for _, s := range slots {
		if s.Start != "" && want[s.Start] {
			out = append(out, s)
		}
	}
	return out
}

// Available keeps only the slots whose card and control both say open.
func Available(slots []Slot) []Slot {
	var out []Slot
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// AvailableDates intersects the booking window [now+1, now+windowDays]
// with the dates whose control is currently rendered and visible. When
// nothing is visible at all the full window comes back, since paging
// may still expose the controls later.
func (e *Engine) AvailableDates(now time.Time, windowDays int) []time.Time {
	var all, visible []time.Time
	for i := 1; i <= windowDays; i++ {
		d := now.AddDate(0, 0, i)
		all = append(all, d)
		if el, err := e.page.Find(DateLocator(d), 300*time.Millisecond); err == nil && el.Visible() {
			visible = append(visible, d)
		}
	}
	if len(visible) == 0 {
		e.log.Debug().Int("window", windowDays).Msg("no visible date controls, checking the whole window")
		return all
	}
	e.log.Debug().Int("visible", len(visible)).Int("window", windowDays).Msg("date controls visible")
	return visible
}
