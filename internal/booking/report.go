package booking

import (
	"context"
	"fmt"
	"time"
)

// Opening is one open slot seen during a read-only availability scan.
type Opening struct {
	Court    string // name on the listing page
	URL      string // court page link, kept so the opening can be booked later
	Location string // location text on the slot card
	Date     time.Time
	TimeText string
	Start    string
	Spots    string
}

// Openings lists the open slots on a single date across every selected
// court. Nothing is booked.
func (e *Engine) Openings(ctx context.Context, date time.Time) ([]Opening, error) {
	return e.survey(ctx, func() []time.Time { return []time.Time{date} })
}

// SurveyWindow lists the open slots for every exposed date in the next
// days across every selected court. Dates the calendar strip has not
// exposed for a court are skipped there.
func (e *Engine) SurveyWindow(ctx context.Context, days int) ([]Opening, error) {
	return e.survey(ctx, func() []time.Time { return e.AvailableDates(e.now(), days) })
}

// survey walks the courts and, per court, the dates courtDates yields
// with that court's page open.
func (e *Engine) survey(ctx context.Context, courtDates func() []time.Time) ([]Opening, error) {
	if err := e.page.Navigate(e.cfg.URLs.Program, 15*time.Second); err != nil {
		return nil, fmt.Errorf("open program listing: %w", err)
	}
	if err := e.settle(ctx, 2*time.Second); err != nil {
		return nil, err
	}
	e.dismissCookieBanner(ctx)

	courts, err := e.Courts()
	if err != nil {
		return nil, err
	}
	courts = e.selectCourts(courts, e.log)

	var out []Opening
	for _, court := range courts {
		if err := e.page.Navigate(court.URL, 15*time.Second); err != nil {
			e.log.Warn().Err(err).Str("court", court.Name).Msg("court page failed to open, skipping")
			continue
		}
		if err := e.settle(ctx, 2*time.Second); err != nil {
			return out, err
		}
		if e.noInstancesShown() {
			e.log.Info().Str("court", court.Name).Msg("court reports no instances")
			continue
		}
		for _, d := range courtDates() {
			if !e.NavigateToDate(ctx, d) {
				continue
			}
			slots, err := e.Slots(ctx)
			if err != nil {
				return out, err
			}
			for _, s := range Available(slots) {
				out = append(out, Opening{
					Court:    court.Name,
					URL:      court.URL,
					Location: s.Court,
					Date:     d,
					TimeText: s.TimeText,
					Start:    s.Start,
					Spots:    s.SpotsText,
				})
			}
		}
	}
	return out, nil
}

// BookOpening reserves one opening surfaced by an earlier scan. The slot
// is re-discovered on the live page first; openings go stale the moment
// someone else takes the spot.
func (e *Engine) BookOpening(ctx context.Context, o Opening) error {
	if o.URL == "" {
		return fmt.Errorf("opening for %q carries no court link", o.Court)
	}
	if err := e.page.Navigate(o.URL, 15*time.Second); err != nil {
		return fmt.Errorf("open court page: %w", err)
	}
	if err := e.settle(ctx, 2*time.Second); err != nil {
		return err
	}
	if !e.NavigateToDate(ctx, o.Date) {
		return fmt.Errorf("%s: %w", o.Date.Format("2006-01-02"), ErrDateUnavailable)
	}
	slots, err := e.Slots(ctx)
	if err != nil {
		return err
	}
	for _, s := range Available(slots) {
		if s.TimeText == o.TimeText {
			return e.checkout(ctx, s)
		}
	}
	return fmt.Errorf("slot %q no longer open: %w", o.TimeText, ErrNoSlots)
}
