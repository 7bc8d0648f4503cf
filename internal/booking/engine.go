package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/court-scheduler/internal/browser"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/history"
)

// Engine is the booking orchestrator. One Engine drives one page,
// strictly sequentially; all waits block the single control flow.
type Engine struct {
	page browser.Page
	cfg  config.Config
	log  zerolog.Logger
	hist *history.Store

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(page browser.Page, cfg config.Config, hist *history.Store, log zerolog.Logger) *Engine {
	return &Engine{
		page:  page,
		cfg:   cfg,
		log:   log.With().Str("component", "booking").Logger(),
		hist:  hist,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Attempt runs the full booking loop: re-enumerate courts, walk them in
// preference order, and check out the first slot matching a target
// time. The loop retries only on transient failures, up to the
// configured maximum, and every run lands in the history store.
func (e *Engine) Attempt(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := e.log.With().Str("run", runID).Logger()
	started := e.now()

	if e.cfg.TestMode.Enabled {
		log.Info().
			Str("date", e.cfg.TestMode.TargetDate).
			Str("court", e.cfg.TestMode.TargetCourt).
			Str("time", e.cfg.TestMode.TargetTime).
			Msg("test mode overrides active")
	}

	var res *Result
	var err error
	tries := 0
	for try := 1; try <= e.cfg.Booking.MaxRetries; try++ {
		tries = try
		log.Info().Int("try", try).Int("max", e.cfg.Booking.MaxRetries).Msg("starting booking pass")

		res, err = e.attemptOnce(ctx, log)
		out := Classify(res, err)
		if out == OutcomeSuccess {
			log.Info().Str("court", res.Court).Str("time", res.TimeText).Str("date", res.Date.Format("2006-01-02")).Msg("booking confirmed")
			break
		}
		log.Warn().Err(err).Stringer("outcome", out).Msg("booking pass did not book")
		if !out.Retryable() || try == e.cfg.Booking.MaxRetries {
			break
		}
		log.Info().Dur("delay", e.cfg.RetryDelay()).Msg("retrying after delay")
		if serr := e.sleep(ctx, e.cfg.RetryDelay()); serr != nil {
			err = serr
			break
		}
	}

	e.record(runID, started, tries, res, err)
	if res != nil {
		return res, nil
	}
	return nil, err
}

// attemptOnce is one pass over the listing and every selected court.
// It returns a result on success, an error wrapping ErrNoSlots when
// nothing matched anywhere, and a bare error when a matching slot
// existed but checkout failed.
func (e *Engine) attemptOnce(ctx context.Context, log zerolog.Logger) (*Result, error) {
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
	if len(courts) == 0 {
		// an empty listing is a markup problem, not transient scarcity
		return nil, fmt.Errorf("no courts on listing page: %w", ErrNoSlots)
	}
	courts = e.selectCourts(courts, log)
	if len(courts) == 0 {
		return nil, fmt.Errorf("court selection matched nothing: %w", ErrNoSlots)
	}

	targets := e.cfg.TargetTimes()
	date := e.cfg.TargetDate(e.now())

	foundMatch := false
	for _, court := range courts {
		res, found, err := e.tryCourt(ctx, log, court, date, targets)
		if found {
			foundMatch = true
		}
		if err != nil {
			log.Warn().Err(err).Str("court", court.Name).Msg("court attempt failed")
			continue
		}
		if res != nil {
			return res, nil
		}
	}

	if !foundMatch {
		return nil, fmt.Errorf("no open slot at %v on %s: %w", targets, date.Format("2006-01-02"), ErrNoSlots)
	}
	return nil, fmt.Errorf("matching slot found but checkout did not complete on %s", date.Format("2006-01-02"))
}

// tryCourt processes a single court. found reports whether a matching
// open slot was seen, independent of whether checkout succeeded.
func (e *Engine) tryCourt(ctx context.Context, log zerolog.Logger, court Court, date time.Time, targets []string) (res *Result, found bool, err error) {
	log.Info().Str("court", court.Name).Msg("checking court")

	if err := e.page.Navigate(court.URL, 15*time.Second); err != nil {
		return nil, false, fmt.Errorf("open court page: %w", err)
	}
	if err := e.settle(ctx, 2*time.Second); err != nil {
		return nil, false, err
	}
	if e.noInstancesShown() {
		log.Info().Str("court", court.Name).Msg("court reports no instances, skipping")
		return nil, false, nil
	}
	if !e.NavigateToDate(ctx, date) {
		log.Warn().Str("court", court.Name).Str("date", date.Format("2006-01-02")).Msg("target date not reachable, skipping court")
		return nil, false, nil
	}

	slots, err := e.Slots(ctx)
	if err != nil {
		return nil, false, err
	}
	matching := FilterByTimes(Available(slots), targets)
	if len(matching) == 0 {
		log.Info().Str("court", court.Name).Int("open", len(Available(slots))).Msg("no open slot at a target time")
		return nil, false, nil
	}

	slot := matching[0]
	if err := e.checkout(ctx, slot); err != nil {
		return nil, true, fmt.Errorf("checkout %s at %s: %w", slot.TimeText, slot.Court, err)
	}
	return &Result{Court: slot.Court, Date: date, Start: slot.Start, TimeText: slot.TimeText}, true, nil
}

// selectCourts applies the test-mode court filter or the single-court
// preference, then orders any remainder by the preferred-courts list.
func (e *Engine) selectCourts(courts []Court, log zerolog.Logger) []Court {
	if e.cfg.TestMode.Enabled && e.cfg.TestMode.TargetCourt != "" {
		narrowed := narrowCourts(courts, e.cfg.TestMode.TargetCourt)
		if len(narrowed) == 0 {
			log.Warn().Str("court", e.cfg.TestMode.TargetCourt).Msg("test court not on listing page")
		}
		return narrowed
	}
	if pref := e.cfg.CourtPreference; pref != "" && !strings.EqualFold(pref, "any") {
		narrowed := narrowCourts(courts, pref)
		if len(narrowed) == 0 {
			log.Warn().Str("court", pref).Msg("preferred court not on listing page")
		}
		return narrowed
	}
	return orderCourts(courts, e.cfg.PreferredCourts)
}

func narrowCourts(courts []Court, name string) []Court {
	var out []Court
	for _, c := range courts {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out
}

func orderCourts(courts []Court, preferred []string) []Court {
	if len(preferred) == 0 {
		return courts
	}
	rank := make(map[string]int, len(preferred))
	for i, n := range preferred {
		rank[strings.ToLower(n)] = i
	}
	out := append([]Court(nil), courts...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[strings.ToLower(out[i].Name)]
		rj, jok := rank[strings.ToLower(out[j].Name)]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		default:
			return false
		}
	})
	return out
}

func (e *Engine) record(runID string, started time.Time, tries int, res *Result, err error) {
	rec := history.Attempt{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: e.now(),
		Tries:      tries,
		Outcome:    Classify(res, err).String(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if herr := e.hist.RecordAttempt(rec); herr != nil {
		e.log.Warn().Err(herr).Msg("recording attempt failed")
	}
	if res == nil {
		return
	}
	if herr := e.hist.RecordBooking(history.Booking{
		RunID:    runID,
		Court:    res.Court,
		Date:     res.Date.Format("2006-01-02"),
		Start:    res.Start,
		TimeText: res.TimeText,
	}); herr != nil {
		e.log.Warn().Err(herr).Msg("recording booking failed")
	}
}

func (e *Engine) dismissCookieBanner(ctx context.Context) {
	el, err := e.page.FindVisible(e.cfg.Selectors.CookieButton, time.Second)
	if err != nil {
		return
	}
	if el.Click() == nil {
		_ = e.settle(ctx, time.Second)
		e.log.Debug().Msg("cookie banner dismissed")
	}
}

func (e *Engine) settle(ctx context.Context, d time.Duration) error {
	return e.sleep(ctx, d)
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
