// Package browsertest provides an in-memory Page implementation for
// exercising flows against a scripted DOM. Elements are registered
// under the selector strings production code looks them up with, so a
// lookup only succeeds when the code under test builds the exact
// selector the fixture expects.
package browsertest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/court-scheduler/internal/browser"
)

// FakePage is a scripted stand-in for a browser tab. Register elements
// with Add, then mutate the DOM from OnClick hooks to model pages that
// change as the flow progresses.
type FakePage struct {
	mu          sync.Mutex
	url         string
	elements    map[string][]*FakeElement
	Navigations []string
	Reloads     int

	// OnNavigate runs after each Navigate, letting fixtures swap the
	// element set per URL.
	OnNavigate func(url string)
	// NavigateErr, when set, can fail navigation per URL.
	NavigateErr func(url string) error
}

func NewFakePage() *FakePage {
	return &FakePage{elements: map[string][]*FakeElement{}}
}

// Add registers elements under a selector, appending to any already
// registered.
func (p *FakePage) Add(selector string, els ...*FakeElement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append(p.elements[selector], els...)
}

// Set replaces whatever is registered under a selector.
func (p *FakePage) Set(selector string, els ...*FakeElement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = els
}

// Remove drops a selector entirely, as if the elements left the DOM.
func (p *FakePage) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// Reset drops every registered element, as after a navigation to a new
// document. Typically called from OnNavigate before installing the next
// page's elements.
func (p *FakePage) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = map[string][]*FakeElement{}
}

func (p *FakePage) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

func (p *FakePage) Navigate(url string, _ time.Duration) error {
	if p.NavigateErr != nil {
		if err := p.NavigateErr(url); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.url = url
	p.Navigations = append(p.Navigations, url)
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *FakePage) Reload(_ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Reloads++
	return nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *FakePage) Find(selector string, _ time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	els := p.elements[selector]
	if len(els) == 0 {
		return nil, fmt.Errorf("timeout waiting for %q", selector)
	}
	return els[0], nil
}

func (p *FakePage) FindVisible(selector string, _ time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.elements[selector] {
		if el.Visible() {
			return el, nil
		}
	}
	return nil, fmt.Errorf("timeout waiting for visible %q", selector)
}

func (p *FakePage) FindByText(selector, text string, _ time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	match := func(els []*FakeElement) *FakeElement {
		for _, el := range els {
			if containsText(el, text) {
				return el
			}
		}
		return nil
	}
	if selector == "*" {
		for _, els := range p.elements {
			if el := match(els); el != nil {
				return el, nil
			}
		}
	} else if el := match(p.elements[selector]); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("timeout waiting for %q with text %q", selector, text)
}

func (p *FakePage) All(selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	els := p.elements[selector]
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

// text matching is case-insensitive substring, like the production
// adapter
func containsText(el *FakeElement, text string) bool {
	got, err := el.Text()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(text))
}

// FakeElement is a scripted DOM node. Zero value is a visible, enabled
// element with no text.
type FakeElement struct {
	mu         sync.Mutex
	TextValue  string
	TextErr    error
	Attrs      map[string]string
	Hidden     bool
	IsDisabled bool
	ClickErr   error
	Clicks     int

	// OnClick runs on every successful click, after the counter bumps.
	OnClick func()

	children  map[string][]*FakeElement
	ancestors map[string]*FakeElement
}

// NewFakeElement returns a visible element with the given text.
func NewFakeElement(text string) *FakeElement {
	return &FakeElement{TextValue: text}
}

// WithAttr sets an attribute and returns the element for chaining.
func (e *FakeElement) WithAttr(name, value string) *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs[name] = value
	return e
}

// WithChild registers child elements reachable through Query and
// QueryAll under the given selector.
func (e *FakeElement) WithChild(selector string, children ...*FakeElement) *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.children == nil {
		e.children = map[string][]*FakeElement{}
	}
	e.children[selector] = append(e.children[selector], children...)
	return e
}

// WithAncestor registers the element Closest resolves for a selector.
func (e *FakeElement) WithAncestor(selector string, ancestor *FakeElement) *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ancestors == nil {
		e.ancestors = map[string]*FakeElement{}
	}
	e.ancestors[selector] = ancestor
	return e
}

// Hide marks the element invisible and returns it for chaining.
func (e *FakeElement) Hide() *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Hidden = true
	return e
}

// Disable marks the element disabled and returns it for chaining.
func (e *FakeElement) Disable() *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.IsDisabled = true
	return e
}

func (e *FakeElement) Text() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.TextErr != nil {
		return "", e.TextErr
	}
	return e.TextValue, nil
}

func (e *FakeElement) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TextValue = text
}

func (e *FakeElement) Attribute(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.Attrs[name]
	return v, ok
}

func (e *FakeElement) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Hidden
}

func (e *FakeElement) Disabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.IsDisabled
}

func (e *FakeElement) Click() error {
	e.mu.Lock()
	if e.ClickErr != nil {
		defer e.mu.Unlock()
		return e.ClickErr
	}
	e.Clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// ClickCount reports how many times the element was clicked.
func (e *FakeElement) ClickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Clicks
}

func (e *FakeElement) Query(selector string) (browser.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	els := e.children[selector]
	if len(els) == 0 {
		return nil, fmt.Errorf("no child matching %q", selector)
	}
	return els[0], nil
}

func (e *FakeElement) QueryAll(selector string) ([]browser.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	els := e.children[selector]
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (e *FakeElement) Closest(selector string) (browser.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if el, ok := e.ancestors[selector]; ok {
		return el, nil
	}
	return nil, fmt.Errorf("no ancestor matching %q", selector)
}
