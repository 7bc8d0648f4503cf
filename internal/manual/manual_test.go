package manual

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/browser/browsertest"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/registrations"
)

var testNow = time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC)

type fakeBooker struct {
	openings  []booking.Opening
	surveyed  []booking.Opening
	openErr   error
	bookErr   error
	booked    []booking.Opening
	askedDate time.Time
	askedDays int
}

func (f *fakeBooker) Openings(_ context.Context, date time.Time) ([]booking.Opening, error) {
	f.askedDate = date
	return f.openings, f.openErr
}

func (f *fakeBooker) SurveyWindow(_ context.Context, days int) ([]booking.Opening, error) {
	f.askedDays = days
	return f.surveyed, f.openErr
}

func (f *fakeBooker) BookOpening(_ context.Context, o booking.Opening) error {
	if f.bookErr != nil {
		return f.bookErr
	}
	f.booked = append(f.booked, o)
	return nil
}

type fakeRegistrar struct {
	list      []registrations.Booking
	listErr   error
	cancelErr error
	cancelled []string
}

func (f *fakeRegistrar) List(context.Context) ([]registrations.Booking, error) {
	return f.list, f.listErr
}

func (f *fakeRegistrar) Cancel(_ context.Context, b registrations.Booking) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, b.RegID)
	return nil
}

func newTestMode(page *browsertest.FakePage, eng Booker, regs Registrar, input string) (*Mode, *bytes.Buffer) {
	m := New(page, eng, regs, config.Default(), zerolog.Nop())
	m.In = strings.NewReader(input)
	out := &bytes.Buffer{}
	m.Out = out
	m.now = func() time.Time { return testNow }
	return m, out
}

func runScript(t *testing.T, eng Booker, regs Registrar, input string) string {
	t.Helper()
	m, out := newTestMode(browsertest.NewFakePage(), eng, regs, input)
	require.NoError(t, m.Run(context.Background()))
	return out.String()
}

func anOpening() booking.Opening {
	return booking.Opening{
		Court:    "Murr Tennis Courts",
		URL:      "https://membership.gocrimson.com/program/murr",
		Location: "Court 2",
		Date:     testNow.AddDate(0, 0, 7),
		TimeText: "7:00 PM - 8:00 PM",
		Start:    "19:00",
		Spots:    "2 Spots Left",
	}
}

func TestRunExitsOnChoice(t *testing.T) {
	out := runScript(t, &fakeBooker{}, &fakeRegistrar{}, "8\n")
	assert.Contains(t, out, "leaving manual mode")
}

func TestRunExitsWhenInputEnds(t *testing.T) {
	m, _ := newTestMode(browsertest.NewFakePage(), &fakeBooker{}, &fakeRegistrar{}, "")
	require.NoError(t, m.Run(context.Background()))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, _ := newTestMode(browsertest.NewFakePage(), &fakeBooker{}, &fakeRegistrar{}, "1\n8\n")
	require.ErrorIs(t, m.Run(ctx), context.Canceled)
}

func TestRunRejectsUnknownChoice(t *testing.T) {
	out := runScript(t, &fakeBooker{}, &fakeRegistrar{}, "9\n8\n")
	assert.Contains(t, out, "invalid choice")
}

func TestCheckThenBookFlow(t *testing.T) {
	eng := &fakeBooker{openings: []booking.Opening{anOpening()}}
	out := runScript(t, eng, &fakeRegistrar{}, "1\n2\n1\nyes\n8\n")

	assert.Equal(t, testNow.AddDate(0, 0, 7), eng.askedDate, "option 1 targets today plus the booking window")
	require.Len(t, eng.booked, 1)
	assert.Equal(t, "7:00 PM - 8:00 PM", eng.booked[0].TimeText)
	assert.Contains(t, out, "booked 7:00 PM - 8:00 PM")
}

func TestBookNeedsAListingFirst(t *testing.T) {
	eng := &fakeBooker{}
	out := runScript(t, eng, &fakeRegistrar{}, "2\n8\n")

	assert.Contains(t, out, "check availability first")
	assert.Empty(t, eng.booked)
}

func TestBookStopsWithoutConfirmation(t *testing.T) {
	eng := &fakeBooker{openings: []booking.Opening{anOpening()}}
	out := runScript(t, eng, &fakeRegistrar{}, "1\n2\n1\nno\n8\n")

	assert.Contains(t, out, "not booked")
	assert.Empty(t, eng.booked)
}

func TestBookRejectsBadNumber(t *testing.T) {
	eng := &fakeBooker{openings: []booking.Opening{anOpening()}}
	out := runScript(t, eng, &fakeRegistrar{}, "1\n2\n7\n8\n")

	assert.Contains(t, out, "invalid opening number")
	assert.Empty(t, eng.booked)
}

func TestSuccessfulBookSpendsTheListing(t *testing.T) {
	eng := &fakeBooker{openings: []booking.Opening{anOpening()}}
	out := runScript(t, eng, &fakeRegistrar{}, "1\n2\n1\nyes\n2\n8\n")

	require.Len(t, eng.booked, 1)
	assert.Contains(t, out, "check availability first", "the stale listing is dropped after booking")
}

func TestSpecificDateUsesEnteredDays(t *testing.T) {
	eng := &fakeBooker{}
	runScript(t, eng, &fakeRegistrar{}, "3\n3\n8\n")
	assert.Equal(t, testNow.AddDate(0, 0, 3), eng.askedDate)
}

func TestSpecificDateDefaultsToWindow(t *testing.T) {
	eng := &fakeBooker{}
	runScript(t, eng, &fakeRegistrar{}, "3\n\n8\n")
	assert.Equal(t, testNow.AddDate(0, 0, 7), eng.askedDate)
}

func TestViewBookingsMarksUncancellable(t *testing.T) {
	regs := &fakeRegistrar{list: []registrations.Booking{
		{RegID: "12345", Court: "Murr Tennis Courts", Date: "Mar 16", Time: "6:00 - 7:00 PM"},
		{Court: "Beren Tennis Courts", Date: "Mar 17", Time: "7:00 - 8:00 PM"},
	}}
	out := runScript(t, &fakeBooker{}, regs, "4\n8\n")

	assert.Contains(t, out, "2 registration(s)")
	assert.Contains(t, out, "no registration id, cannot cancel")
}

func TestCancelFlow(t *testing.T) {
	regs := &fakeRegistrar{list: []registrations.Booking{
		{RegID: "12345", Court: "Murr Tennis Courts", Date: "Mar 16", Time: "6:00 - 7:00 PM"},
	}}
	out := runScript(t, &fakeBooker{}, regs, "5\n1\nyes\n8\n")

	assert.Equal(t, []string{"12345"}, regs.cancelled)
	assert.Contains(t, out, "registration cancelled")
}

func TestCancelRefusesMissingRegID(t *testing.T) {
	regs := &fakeRegistrar{list: []registrations.Booking{
		{Court: "Murr Tennis Courts", Date: "Mar 16", Time: "6:00 - 7:00 PM"},
	}}
	out := runScript(t, &fakeBooker{}, regs, "5\n1\n8\n")

	assert.Contains(t, out, "has no id")
	assert.Empty(t, regs.cancelled)
}

func TestCancelSurfacesInconclusiveVerification(t *testing.T) {
	regs := &fakeRegistrar{
		list:      []registrations.Booking{{RegID: "12345", Court: "Murr Tennis Courts"}},
		cancelErr: registrations.ErrCancelInconclusive,
	}
	out := runScript(t, &fakeBooker{}, regs, "5\n1\nyes\n8\n")

	assert.Contains(t, out, "could not be verified")
}

func TestSurveyWindowListsAndCaches(t *testing.T) {
	eng := &fakeBooker{surveyed: []booking.Opening{anOpening()}}
	out := runScript(t, eng, &fakeRegistrar{}, "6\n2\n1\nyes\n8\n")

	assert.Equal(t, 7, eng.askedDays)
	assert.Contains(t, out, "1 open slot(s) across 1 court(s)")
	require.Len(t, eng.booked, 1, "surveyed openings are bookable via option 2")
}

func TestProbeSelectorsReportsCounts(t *testing.T) {
	page := browsertest.NewFakePage()
	page.OnNavigate = func(url string) {
		page.Add("a.img-link",
			browsertest.NewFakeElement("Murr Tennis Courts\nIndoor").WithAttr("href", "/program/murr"),
			browsertest.NewFakeElement("Beren Tennis Center").WithAttr("href", "/program/beren"),
		)
	}
	m, out := newTestMode(page, &fakeBooker{}, &fakeRegistrar{}, "7\n8\n")
	require.NoError(t, m.Run(context.Background()))

	assert.Contains(t, page.Navigations[0], "/program")
	assert.Contains(t, out.String(), "court_link")
	assert.Contains(t, out.String(), "2 element(s)")
	assert.Contains(t, out.String(), "Murr Tennis Courts")
}
