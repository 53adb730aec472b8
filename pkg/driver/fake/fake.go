// Package fake provides an in-memory automation server for testing without a device.
//
// Elements are registered under one or more locators; FindElement answers with
// the first registered element for the exact (using, value) pair. Hooks let a
// test change the screen when an element is clicked or a coordinate is tapped.
package fake

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/driver/appium"
)

// Element is a fake UI element.
type Element struct {
	Type        string // XCUIElementType
	Name        string
	Label       string
	Value       string
	Text        string
	Placeholder string
	Hidden      bool
	Disabled    bool
	Bounds      core.Bounds

	// OnClick runs after the element is clicked.
	OnClick func(p *Protocol)

	id      string
	clicks  int
	removed bool
}

// ID returns the element ID assigned at registration.
func (e *Element) ID() string { return e.id }

// Point is a coordinate tap.
type Point struct{ X, Y int }

// Protocol is a fake Appium session.
type Protocol struct {
	// ConnectErr makes Connect fail.
	ConnectErr error
	// Errors makes the named method fail (e.g. "LaunchApp", "Tap", "HideKeyboard").
	Errors map[string]error
	// OnTap runs after a coordinate tap.
	OnTap func(p *Protocol, x, y int)
	// OnSwipe runs after a swipe.
	OnSwipe func(p *Protocol, startX, startY, endX, endY int)
	// OnHideKeyboard runs after a native keyboard hide.
	OnHideKeyboard func(p *Protocol)
	// Width and Height of the window.
	Width, Height int
	// PageSource returned by Source.
	PageSource string
	// PNG returned by Screenshot.
	PNG []byte

	mu        sync.Mutex
	sessionID string
	sessions  int
	nextID    int
	elements  map[string]*Element
	index     map[string][]*Element
	calls     []string
	taps      []Point
	swipes    [][5]int
	values    map[string]string
	launched  []string
	opened    []string
}

// New creates a fake with an iPhone-sized window.
func New() *Protocol {
	return &Protocol{
		Errors:   map[string]error{},
		Width:    402,
		Height:   874,
		PNG:      []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
		elements: map[string]*Element{},
		index:    map[string][]*Element{},
		values:   map[string]string{},
	}
}

func key(using, value string) string {
	return using + "\x00" + value
}

// Add registers an element under the given locators and returns it.
func (p *Protocol) Add(e *Element, locators ...core.Locator) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.id == "" {
		p.nextID++
		e.id = "el-" + strconv.Itoa(p.nextID)
		p.elements[e.id] = e
	}
	e.removed = false
	for _, loc := range locators {
		k := key(loc.Using, loc.Value)
		p.index[k] = append(p.index[k], e)
	}
	return e
}

// Remove takes the element out of the tree; later lookups fail and stale calls error.
func (p *Protocol) Remove(e *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e.removed = true
}

// Restore puts a removed element back.
func (p *Protocol) Restore(e *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e.removed = false
}

// SetHidden toggles an element's visibility.
func (p *Protocol) SetHidden(e *Element, hidden bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e.Hidden = hidden
}

// Clicks returns how many times the element was clicked.
func (p *Protocol) Clicks(e *Element) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return e.clicks
}

// TotalClicks returns the number of element clicks across all elements.
func (p *Protocol) TotalClicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.elements {
		n += e.clicks
	}
	return n
}

// Taps returns the coordinate taps in order.
func (p *Protocol) Taps() []Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Point(nil), p.taps...)
}

// Swipes returns recorded swipes as (startX, startY, endX, endY, durationMs).
func (p *Protocol) Swipes() [][5]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][5]int(nil), p.swipes...)
}

// Value returns the text last set into the element.
func (p *Protocol) Value(e *Element) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[e.id]
}

// Calls returns the names of the protocol methods invoked, in order.
func (p *Protocol) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CallCount returns how many times method was invoked.
func (p *Protocol) CallCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Sessions returns how many sessions were created.
func (p *Protocol) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}

// Launched returns the app IDs passed to LaunchApp.
func (p *Protocol) Launched() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.launched...)
}

// Opened returns the URLs passed to OpenURL.
func (p *Protocol) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opened...)
}

// begin records the call and returns the configured failure. Caller holds mu.
func (p *Protocol) begin(method string, needSession bool) error {
	p.calls = append(p.calls, method)
	if needSession && p.sessionID == "" {
		return appium.ErrNoSession
	}
	return p.Errors[method]
}

func noSuchElement(format string, args ...interface{}) error {
	return &appium.WebDriverError{Status: 404, Code: "no such element", Message: fmt.Sprintf(format, args...)}
}

func (p *Protocol) lookup(id string) (*Element, error) {
	e, ok := p.elements[id]
	if !ok || e.removed {
		return nil, &appium.WebDriverError{Status: 404, Code: "stale element reference", Message: id}
	}
	return e, nil
}

// Connect opens a fake session.
func (p *Protocol) Connect(capabilities map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "Connect")
	if p.ConnectErr != nil {
		return p.ConnectErr
	}
	p.sessions++
	p.sessionID = "fake-session-" + strconv.Itoa(p.sessions)
	return nil
}

// Disconnect closes the fake session.
func (p *Protocol) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "Disconnect")
	if p.sessionID == "" {
		return nil
	}
	p.sessionID = ""
	return p.Errors["Disconnect"]
}

// SessionID returns the current session ID.
func (p *Protocol) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// Platform always reports ios.
func (p *Protocol) Platform() string { return "ios" }

// LaunchApp records the activation.
func (p *Protocol) LaunchApp(appID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("LaunchApp", true); err != nil {
		return err
	}
	p.launched = append(p.launched, appID)
	return nil
}

// TerminateApp records the termination.
func (p *Protocol) TerminateApp(appID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begin("TerminateApp", true)
}

// OpenURL records the deep link.
func (p *Protocol) OpenURL(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("OpenURL", true); err != nil {
		return err
	}
	p.opened = append(p.opened, url)
	return nil
}

// FindElement returns the first live element registered under the locator.
func (p *Protocol) FindElement(using, value string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("FindElement", true); err != nil {
		return "", err
	}
	for _, e := range p.index[key(using, value)] {
		if !e.removed {
			return e.id, nil
		}
	}
	return "", noSuchElement("%s=%s", using, value)
}

// FindElements returns all live elements registered under the locator.
func (p *Protocol) FindElements(using, value string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("FindElements", true); err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range p.index[key(using, value)] {
		if !e.removed {
			ids = append(ids, e.id)
		}
	}
	return ids, nil
}

// ClickElement clicks and runs the element's hook.
func (p *Protocol) ClickElement(id string) error {
	p.mu.Lock()
	if err := p.begin("ClickElement", true); err != nil {
		p.mu.Unlock()
		return err
	}
	e, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	e.clicks++
	hook := e.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

// ClearElement clears the stored value.
func (p *Protocol) ClearElement(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("ClearElement", true); err != nil {
		return err
	}
	if _, err := p.lookup(id); err != nil {
		return err
	}
	p.values[id] = ""
	return nil
}

// SetElementValue appends text to the stored value, like typing.
func (p *Protocol) SetElementValue(id, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("SetElementValue", true); err != nil {
		return err
	}
	if _, err := p.lookup(id); err != nil {
		return err
	}
	p.values[id] += text
	return nil
}

// GetElementText returns Text, falling back to Label.
func (p *Protocol) GetElementText(id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("GetElementText", true); err != nil {
		return "", err
	}
	e, err := p.lookup(id)
	if err != nil {
		return "", err
	}
	if e.Text != "" {
		return e.Text, nil
	}
	return e.Label, nil
}

// GetElementAttribute answers the XCUITest attribute names.
func (p *Protocol) GetElementAttribute(id, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("GetElementAttribute", true); err != nil {
		return "", err
	}
	e, err := p.lookup(id)
	if err != nil {
		return "", err
	}
	switch name {
	case "name":
		return e.Name, nil
	case "label":
		return e.Label, nil
	case "value":
		if v, ok := p.values[id]; ok {
			return v, nil
		}
		return e.Value, nil
	case "type":
		return e.Type, nil
	case "placeholderValue":
		return e.Placeholder, nil
	case "visible":
		return strconv.FormatBool(!e.Hidden), nil
	case "enabled":
		return strconv.FormatBool(!e.Disabled), nil
	case "accessible":
		return "true", nil
	}
	return "", nil
}

// GetElementTagName returns the element type.
func (p *Protocol) GetElementTagName(id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("GetElementTagName", true); err != nil {
		return "", err
	}
	e, err := p.lookup(id)
	if err != nil {
		return "", err
	}
	return e.Type, nil
}

// IsElementDisplayed reports !Hidden.
func (p *Protocol) IsElementDisplayed(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("IsElementDisplayed", true); err != nil {
		return false, err
	}
	e, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	return !e.Hidden, nil
}

// IsElementEnabled reports !Disabled.
func (p *Protocol) IsElementEnabled(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("IsElementEnabled", true); err != nil {
		return false, err
	}
	e, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	return !e.Disabled, nil
}

// GetElementRect returns the element bounds.
func (p *Protocol) GetElementRect(id string) (x, y, w, h int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("GetElementRect", true); err != nil {
		return 0, 0, 0, 0, err
	}
	e, err := p.lookup(id)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return e.Bounds.X, e.Bounds.Y, e.Bounds.Width, e.Bounds.Height, nil
}

// Tap records the tap and runs OnTap.
func (p *Protocol) Tap(x, y int) error {
	p.mu.Lock()
	if err := p.begin("Tap", true); err != nil {
		p.mu.Unlock()
		return err
	}
	p.taps = append(p.taps, Point{x, y})
	hook := p.OnTap
	p.mu.Unlock()

	if hook != nil {
		hook(p, x, y)
	}
	return nil
}

// Swipe records the swipe and runs OnSwipe.
func (p *Protocol) Swipe(startX, startY, endX, endY, durationMs int) error {
	p.mu.Lock()
	if err := p.begin("Swipe", true); err != nil {
		p.mu.Unlock()
		return err
	}
	p.swipes = append(p.swipes, [5]int{startX, startY, endX, endY, durationMs})
	hook := p.OnSwipe
	p.mu.Unlock()

	if hook != nil {
		hook(p, startX, startY, endX, endY)
	}
	return nil
}

// HideKeyboard runs OnHideKeyboard.
func (p *Protocol) HideKeyboard() error {
	p.mu.Lock()
	if err := p.begin("HideKeyboard", true); err != nil {
		p.mu.Unlock()
		return err
	}
	hook := p.OnHideKeyboard
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

// WindowSize returns Width x Height.
func (p *Protocol) WindowSize() (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("WindowSize", true); err != nil {
		return 0, 0, err
	}
	return p.Width, p.Height, nil
}

// Screenshot returns PNG.
func (p *Protocol) Screenshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("Screenshot", true); err != nil {
		return nil, err
	}
	return p.PNG, nil
}

// Source returns PageSource.
func (p *Protocol) Source() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("Source", true); err != nil {
		return "", err
	}
	return p.PageSource, nil
}
