package browser

import "time"

// Page is the single automation tab handed through every component. The
// production implementation drives a rod page; tests substitute a fake
// DOM. Lookup methods block up to their timeout; All returns an
// immediate snapshot of the current render.
type Page interface {
	Navigate(url string, timeout time.Duration) error
	Reload(timeout time.Duration) error
	URL() string

	// Find waits for the first element matching selector to be present.
	// Selectors starting with "//" are treated as XPath.
	Find(selector string, timeout time.Duration) (Element, error)
	// FindVisible additionally waits for the element to be visible.
	FindVisible(selector string, timeout time.Duration) (Element, error)
	// FindByText waits for an element matching selector whose text
	// contains the given text (case-insensitive).
	FindByText(selector, text string, timeout time.Duration) (Element, error)
	All(selector string) ([]Element, error)
}

// Element is a handle into the current render of the page. Any click on
// the page can invalidate it; callers re-resolve rather than caching
// handles across interactions.
type Element interface {
	Text() (string, error)
	// Attribute reports the attribute value and whether it is present.
	Attribute(name string) (string, bool)
	Visible() bool
	Disabled() bool
	// Click dispatches a DOM click directly, side-stepping overlay and
	// occlusion checks the platform's UI sometimes trips.
	Click() error
	Query(selector string) (Element, error)
	QueryAll(selector string) ([]Element, error)
	// Closest walks up the ancestor chain to the nearest match.
	Closest(selector string) (Element, error)
}
