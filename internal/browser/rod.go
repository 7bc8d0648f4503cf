package browser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Driver owns the Chromium process, the one automation tab, and the
// persisted session state. Exactly one Driver runs per process.
type Driver struct {
	browser *rod.Browser
	lc      *launcher.Launcher
	page    *rod.Page
	log     zerolog.Logger

	statePath   string
	sealer      *Sealer
	stateLoaded bool

	// localStorage entries loaded from the state file, applied lazily
	// once their origin is first navigated to
	pending map[string]map[string]string
}

type Options struct {
	Headless  bool
	StatePath string
	Sealer    *Sealer
	Logger    zerolog.Logger
}

// Launch starts the browser and opens a tab with any persisted session
// state applied. A missing or unreadable state file degrades to a fresh
// unauthenticated context rather than failing the run.
func Launch(opts Options) (*Driver, error) {
	log := opts.Logger.With().Str("component", "browser").Logger()

	lc := launcher.New().Headless(opts.Headless)
	u, err := lc.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		lc.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	d := &Driver{
		browser:   b,
		lc:        lc,
		log:       log,
		statePath: opts.StatePath,
		sealer:    opts.Sealer,
		pending:   map[string]map[string]string{},
	}

	if opts.StatePath != "" {
		if st, err := LoadState(opts.StatePath, opts.Sealer); err != nil {
			log.Warn().Err(err).Msg("could not load session state, starting fresh context")
		} else if st != nil {
			if err := b.SetCookies(st.cookieParams()); err != nil {
				log.Warn().Err(err).Msg("could not restore cookies, starting fresh context")
			} else {
				for _, o := range st.Origins {
					if len(o.LocalStorage) > 0 {
						d.pending[o.Origin] = o.LocalStorage
					}
				}
				d.stateLoaded = true
				log.Info().Int("cookies", len(st.Cookies)).Msg("session state loaded")
			}
		}
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1280, Height: 800, DeviceScaleFactor: 1,
	}); err != nil {
		log.Debug().Err(err).Msg("set viewport failed")
	}
	d.page = page
	return d, nil
}

// Page returns the automation tab handle components operate on.
func (d *Driver) Page() Page {
	return &rodPage{d: d, p: d.page}
}

// StateLoaded reports whether a persisted session was applied at launch.
func (d *Driver) StateLoaded() bool {
	return d.stateLoaded
}

// SaveState serializes the current cookies and the active origin's
// localStorage to the state file. Called after every authenticated visit
// so the persisted session keeps extending.
func (d *Driver) SaveState() error {
	if d.statePath == "" {
		return nil
	}
	cookies, err := d.browser.GetCookies()
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}

	st := &State{SavedAt: time.Now().UTC(), Cookies: cookiesFromProto(cookies)}

	if origin, storage, err := d.readLocalStorage(); err == nil && len(storage) > 0 {
		st.Origins = append(st.Origins, OriginStorage{Origin: origin, LocalStorage: storage})
	}

	if err := st.Write(d.statePath, d.sealer); err != nil {
		return err
	}
	d.log.Info().Str("path", d.statePath).Int("cookies", len(st.Cookies)).Msg("session state saved")
	return nil
}

func (d *Driver) readLocalStorage() (string, map[string]string, error) {
	info, err := d.page.Info()
	if err != nil || info.URL == "" || strings.HasPrefix(info.URL, "about:") {
		return "", nil, fmt.Errorf("no origin to read storage from")
	}
	origin, err := originOf(info.URL)
	if err != nil {
		return "", nil, err
	}
	obj, err := d.page.Eval(`() => {
		const o = {};
		for (let i = 0; i < localStorage.length; i++) {
			const k = localStorage.key(i);
			o[k] = localStorage.getItem(k);
		}
		return JSON.stringify(o);
	}`)
	if err != nil {
		return "", nil, err
	}
	storage := map[string]string{}
	if err := json.Unmarshal([]byte(obj.Value.Str()), &storage); err != nil {
		return "", nil, err
	}
	return origin, storage, nil
}

func (d *Driver) applyPendingStorage(pageURL string) {
	origin, err := originOf(pageURL)
	if err != nil {
		return
	}
	entries, ok := d.pending[origin]
	if !ok {
		return
	}
	delete(d.pending, origin)
	for k, v := range entries {
		if _, err := d.page.Eval(`(k, v) => localStorage.setItem(k, v)`, k, v); err != nil {
			d.log.Debug().Err(err).Str("key", k).Msg("restore localStorage entry failed")
		}
	}
	d.log.Debug().Str("origin", origin).Int("entries", len(entries)).Msg("localStorage restored")
}

func (d *Driver) Close() {
	if d.browser != nil {
		_ = d.browser.Close()
	}
	if d.lc != nil {
		d.lc.Cleanup()
	}
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("no origin in %q", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

// rodPage adapts a rod page to the Page interface.
type rodPage struct {
	d *Driver
	p *rod.Page
}

func (p *rodPage) Navigate(rawURL string, timeout time.Duration) error {
	pg := p.p.Timeout(timeout)
	if err := pg.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", rawURL, err)
	}
	p.d.applyPendingStorage(rawURL)
	return nil
}

func (p *rodPage) Reload(timeout time.Duration) error {
	pg := p.p.Timeout(timeout)
	if err := pg.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return pg.WaitLoad()
}

func (p *rodPage) URL() string {
	info, err := p.p.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Find(selector string, timeout time.Duration) (Element, error) {
	el, err := p.lookup(selector, timeout)
	if err != nil {
		return nil, err
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) FindVisible(selector string, timeout time.Duration) (Element, error) {
	el, err := p.lookup(selector, timeout)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) FindByText(selector, text string, timeout time.Duration) (Element, error) {
	// case-insensitive substring, the same contract text markers are
	// written against in the selector config
	el, err := p.p.Timeout(timeout).ElementR(selector, "(?i)"+regexp.QuoteMeta(text))
	if err != nil {
		return nil, fmt.Errorf("find %q in %s: %w", text, selector, err)
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) All(selector string) ([]Element, error) {
	var els rod.Elements
	var err error
	if isXPath(selector) {
		els, err = p.p.ElementsX(selector)
	} else {
		els, err = p.p.Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) lookup(selector string, timeout time.Duration) (*rod.Element, error) {
	pg := p.p.Timeout(timeout)
	var el *rod.Element
	var err error
	if isXPath(selector) {
		el, err = pg.ElementX(selector)
	} else {
		el, err = pg.Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	return el, nil
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(//")
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	t, err := e.el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(t), nil
}

func (e *rodElement) Attribute(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *rodElement) Visible() bool {
	v, err := e.el.Visible()
	return err == nil && v
}

func (e *rodElement) Disabled() bool {
	v, err := e.el.Property("disabled")
	if err != nil {
		// unreadable control is as good as unusable
		return true
	}
	return v.Bool()
}

func (e *rodElement) Click() error {
	_, err := e.el.Eval(`() => this.click()`)
	return err
}

func (e *rodElement) Query(selector string) (Element, error) {
	el, err := e.el.Element(selector)
	if err != nil {
		return nil, err
	}
	return &rodElement{el: el}, nil
}

func (e *rodElement) QueryAll(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (e *rodElement) Closest(selector string) (Element, error) {
	parents, err := e.el.Parents(selector)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return nil, fmt.Errorf("no ancestor matches %s", selector)
	}
	return &rodElement{el: parents.First()}, nil
}
