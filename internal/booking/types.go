// Package booking drives the slot search and checkout flow: court
// discovery from the program listing, date navigation inside the
// rolling calendar strip, slot enumeration, and the multi-step
// reservation sequence, tied together by an outcome-aware retry loop.
package booking

import (
	"errors"
	"time"
)

var (
	// ErrNoSlots means the run found nothing to book: no courts, no
	// exposed date, or no open slot at a target time. Retrying cannot
	// manufacture availability, so this never retries.
	ErrNoSlots = errors.New("no matching slots available")

	// ErrControlMissing means a control the checkout sequence depends
	// on never appeared within its timeout.
	ErrControlMissing = errors.New("expected control not found")

	// ErrDateUnavailable means the date's selector never became
	// clickable, even after paging the calendar strip.
	ErrDateUnavailable = errors.New("date not reachable on booking page")
)

// Court is one bookable venue scraped from the program listing. Courts
// are rediscovered every run and never persisted.
type Court struct {
	Name string
	URL  string
}

// Slot is one time-slot card in the current render of a court page.
// Index is the card's position in that render and is invalidated by
// any re-render; checkout re-verifies it against TimeText before
// clicking.
type Slot struct {
	Index     int
	Court     string // location text on the card, "Unknown" when absent
	TimeText  string // raw header text, e.g. "7:00 PM - 8:00 PM"
	Start     string // parsed 24h start, "HH:MM", empty when unparseable
	SpotsText string
	Disabled  bool
	Available bool
}

// Result is a confirmed reservation, produced only after the full
// checkout sequence completed without error.
type Result struct {
	Court    string
	Date     time.Time
	Start    string
	TimeText string
}
