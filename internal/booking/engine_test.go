package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-scheduler/internal/browser/browsertest"
	"github.com/example/court-scheduler/internal/config"
)

// checkoutControls registers the whole click chain so a checkout attempt
// on the current page can run to completion.
func checkoutControls(page *browsertest.FakePage) map[string]*browsertest.FakeElement {
	controls := map[string]*browsertest.FakeElement{
		"#registerBtn":              browsertest.NewFakeElement("Register"),
		".btn-NextRegistrationStep": browsertest.NewFakeElement("Next"),
		"#checkoutButton":           browsertest.NewFakeElement("Checkout"),
		"#btnCheckoutCart":          browsertest.NewFakeElement("Place Order"),
	}
	for sel, el := range controls {
		page.Add(sel, el)
	}
	return controls
}

func countNavigations(page *browsertest.FakePage, url string) int {
	n := 0
	for _, u := range page.Navigations {
		if u == url {
			n++
		}
	}
	return n
}

func TestAttemptBooksFirstMatchAcrossCourts(t *testing.T) {
	page := browsertest.NewFakePage()
	e := newTestEngine(page, func(c *config.Config) {
		c.BookingTimes = []string{"19:00"}
	})
	target := testNow.AddDate(0, 0, 7)

	btnA := browsertest.NewFakeElement("Select")
	btnB := browsertest.NewFakeElement("Select")

	page.OnNavigate = func(url string) {
		page.Reset()
		switch url {
		case e.cfg.URLs.Program:
			page.Add("a.img-link",
				browsertest.NewFakeElement("Court A").WithAttr("href", "/program/a"),
				browsertest.NewFakeElement("Court B").WithAttr("href", "/program/b"),
			)
		case e.cfg.URLs.Base + "/program/a":
			page.Add(DateLocator(target), browsertest.NewFakeElement("16"))
			page.Add("div.program-instance-card", slotCard("6:00 PM - 7:00 PM", "2 Spots Left", "Court A"))
			page.Add("button.program-select-btn", btnA)
		case e.cfg.URLs.Base + "/program/b":
			page.Add(DateLocator(target), browsertest.NewFakeElement("16"))
			page.Add("div.program-instance-card", slotCard("7:00 PM - 8:00 PM", "1 Spot Left", "Court B"))
			page.Add("button.program-select-btn", btnB)
			checkoutControls(page)
		}
	}

	res, err := e.Attempt(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "Court B", res.Court)
	assert.Equal(t, "19:00", res.Start)
	assert.Equal(t, target, res.Date)

	// court A is discovered but never reaches checkout
	assert.Zero(t, btnA.ClickCount())
	assert.Equal(t, 1, btnB.ClickCount())
	assert.Equal(t, 1, countNavigations(page, e.cfg.URLs.Program))
}

func TestAttemptNoMatchAnywhereReturnsWithoutRetry(t *testing.T) {
	page := browsertest.NewFakePage()
	e := newTestEngine(page, func(c *config.Config) {
		c.BookingTimes = []string{"19:00"}
		c.Booking.MaxRetries = 3
	})
	target := testNow.AddDate(0, 0, 7)

	page.OnNavigate = func(url string) {
		page.Reset()
		switch url {
		case e.cfg.URLs.Program:
			page.Add("a.img-link",
				browsertest.NewFakeElement("Court A").WithAttr("href", "/program/a"))
		case e.cfg.URLs.Base + "/program/a":
			page.Add(DateLocator(target), browsertest.NewFakeElement("16"))
			page.Add("div.program-instance-card", slotCard("6:00 PM - 7:00 PM", "2 Spots Left", "Court A"))
			page.Add("button.program-select-btn", browsertest.NewFakeElement("Select"))
		}
	}

	res, err := e.Attempt(context.Background())
	require.Nil(t, res)
	require.ErrorIs(t, err, ErrNoSlots)

	// absence of slots is never retried
	assert.Equal(t, 1, countNavigations(page, e.cfg.URLs.Program))
}

func TestAttemptRetriesCheckoutFailureUntilExhausted(t *testing.T) {
	page := browsertest.NewFakePage()
	e := newTestEngine(page, func(c *config.Config) {
		c.BookingTimes = []string{"19:00"}
		c.Booking.MaxRetries = 3
		c.Booking.TimeoutSeconds = 1
	})
	target := testNow.AddDate(0, 0, 7)

	page.OnNavigate = func(url string) {
		page.Reset()
		switch url {
		case e.cfg.URLs.Program:
			page.Add("a.img-link",
				browsertest.NewFakeElement("Court A").WithAttr("href", "/program/a"))
		case e.cfg.URLs.Base + "/program/a":
			page.Add(DateLocator(target), browsertest.NewFakeElement("16"))
			page.Add("div.program-instance-card", slotCard("7:00 PM - 8:00 PM", "1 Spot Left", "Court A"))
			page.Add("button.program-select-btn", browsertest.NewFakeElement("Select"))
			// no register control: the checkout sequence dies on step one
		}
	}

	res, err := e.Attempt(context.Background())
	require.Nil(t, res)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checkout did not complete")

	// a matched slot with a failing checkout burns every configured retry
	assert.Equal(t, 3, countNavigations(page, e.cfg.URLs.Program))
}

func TestAttemptEmptyListingIsNotRetried(t *testing.T) {
	page := browsertest.NewFakePage()
	e := newTestEngine(page, func(c *config.Config) {
		c.Booking.MaxRetries = 3
	})

	res, err := e.Attempt(context.Background())
	require.Nil(t, res)
	require.ErrorIs(t, err, ErrNoSlots)
	assert.Equal(t, 1, countNavigations(page, e.cfg.URLs.Program))
}

func TestAttemptListingNavigationFailureIsTransient(t *testing.T) {
	page := browsertest.NewFakePage()
	e := newTestEngine(page, func(c *config.Config) {
		c.Booking.MaxRetries = 2
	})
	page.NavigateErr = func(url string) error {
		return fmt.Errorf("net::ERR_CONNECTION_RESET")
	}

	res, err := e.Attempt(context.Background())
	require.Nil(t, res)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoSlots))

	// navigation failures are transient and retried
	assert.Len(t, page.Navigations, 0)
}

func TestAttemptTestModeOverrides(t *testing.T) {
	page := browsertest.NewFakePage()
	e := newTestEngine(page, func(c *config.Config) {
		c.BookingTimes = []string{"19:00"}
		c.TestMode = config.TestMode{
			Enabled:     true,
			TargetDate:  "2025-03-12",
			TargetCourt: "Court B",
			TargetTime:  "18:00",
		}
	})
	testDate := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	page.OnNavigate = func(url string) {
		page.Reset()
		switch url {
		case e.cfg.URLs.Program:
			page.Add("a.img-link",
				browsertest.NewFakeElement("Court A").WithAttr("href", "/program/a"),
				browsertest.NewFakeElement("Court B").WithAttr("href", "/program/b"),
			)
		case e.cfg.URLs.Base + "/program/b":
			page.Add(DateLocator(testDate), browsertest.NewFakeElement("12"))
			page.Add("div.program-instance-card", slotCard("6:00 PM - 7:00 PM", "3 Spots Left", "Court B"))
			page.Add("button.program-select-btn", browsertest.NewFakeElement("Select"))
			checkoutControls(page)
		}
	}

	res, err := e.Attempt(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "18:00", res.Start)
	assert.Equal(t, testDate, res.Date)
	assert.Zero(t, countNavigations(page, e.cfg.URLs.Base+"/program/a"),
		"test mode narrows discovery to the target court")
}

func TestAttemptSkipsCourtWithNoInstances(t *testing.T) {
	page := browsertest.NewFakePage()
	e := newTestEngine(page, func(c *config.Config) {
		c.BookingTimes = []string{"19:00"}
	})
	target := testNow.AddDate(0, 0, 7)
	dateBtnA := browsertest.NewFakeElement("16")

	page.OnNavigate = func(url string) {
		page.Reset()
		switch url {
		case e.cfg.URLs.Program:
			page.Add("a.img-link",
				browsertest.NewFakeElement("Court A").WithAttr("href", "/program/a"),
				browsertest.NewFakeElement("Court B").WithAttr("href", "/program/b"),
			)
		case e.cfg.URLs.Base + "/program/a":
			page.Add("div.alert", browsertest.NewFakeElement("There are no instances available for this program."))
			page.Add(DateLocator(target), dateBtnA)
		case e.cfg.URLs.Base + "/program/b":
			page.Add(DateLocator(target), browsertest.NewFakeElement("16"))
			page.Add("div.program-instance-card", slotCard("7:00 PM - 8:00 PM", "1 Spot Left", "Court B"))
			page.Add("button.program-select-btn", browsertest.NewFakeElement("Select"))
			checkoutControls(page)
		}
	}

	res, err := e.Attempt(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Court B", res.Court)
	assert.Zero(t, dateBtnA.ClickCount(), "a court reporting no instances is skipped before date navigation")
}

func TestSelectCourtsPreferenceOrdering(t *testing.T) {
	courts := []Court{
		{Name: "Court A", URL: "u/a"},
		{Name: "Court B", URL: "u/b"},
		{Name: "Court C", URL: "u/c"},
	}

	t.Run("preferred list reorders discovery", func(t *testing.T) {
		e := newTestEngine(browsertest.NewFakePage(), func(c *config.Config) {
			c.PreferredCourts = []string{"court c", "Court A"}
		})
		got := e.selectCourts(courts, e.log)
		require.Len(t, got, 3)
		assert.Equal(t, "Court C", got[0].Name)
		assert.Equal(t, "Court A", got[1].Name)
		assert.Equal(t, "Court B", got[2].Name)
	})

	t.Run("single preference narrows", func(t *testing.T) {
		e := newTestEngine(browsertest.NewFakePage(), func(c *config.Config) {
			c.CourtPreference = "Court B"
		})
		got := e.selectCourts(courts, e.log)
		require.Len(t, got, 1)
		assert.Equal(t, "Court B", got[0].Name)
	})

	t.Run("any keeps discovery order", func(t *testing.T) {
		e := newTestEngine(browsertest.NewFakePage(), nil)
		got := e.selectCourts(courts, e.log)
		assert.Equal(t, courts, got)
	})

	t.Run("missing preferred court matches nothing", func(t *testing.T) {
		e := newTestEngine(browsertest.NewFakePage(), func(c *config.Config) {
			c.CourtPreference = "Court Z"
		})
		assert.Empty(t, e.selectCourts(courts, e.log))
	})
}
