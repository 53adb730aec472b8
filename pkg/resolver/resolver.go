package resolver

import (
	"errors"
	"strings"
	"time"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/gesture"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
)

const (
	debugElementLimit = 20
	backTapX          = 50 // top-left, where the header back button sits
	backTapY          = 100
)

// Icon prefixes SF Symbols put in front of home screen action labels.
var homeButtonIcons = []string{"paperplane.fill", "arrow.up.to.line", "arrow.down.to.line"}

// Options configures a Resolver.
type Options struct {
	AttemptTimeout time.Duration // Budget per strategy when the caller gives none
	FillSettle     time.Duration // Pause after typing, before the keyboard is dismissed
}

// Resolver finds buttons and form fields and fills them in.
// It works through the session manager and never holds a session of its own.
type Resolver struct {
	s    *session.Manager
	g    gesture.Gestures
	opts Options
}

// New creates a Resolver.
func New(s *session.Manager, g gesture.Gestures, opts Options) *Resolver {
	return &Resolver{s: s, g: g, opts: opts}
}

// ButtonStrategies returns the ordered strategies for a labelled button:
// control role, container role, static text, attribute-contains, then
// containers whose descendant carries the label.
func (r *Resolver) ButtonStrategies(label string) []Strategy {
	return r.FromLocators(
		selector.ByRoleName(selector.RoleButton, label),
		selector.ByRoleName(selector.RoleOther, label),
		selector.ByRoleName(selector.RoleStaticText, label),
		selector.ByNameContains(selector.RoleAny, label),
		selector.ByRoleContainingDescendant(selector.RoleOther, selector.RoleStaticText, label),
		selector.ByRoleContainingDescendant(selector.RoleButton, selector.RoleStaticText, label),
	)
}

// FindButton resolves a button by its visible label, giving each strategy timeout.
func (r *Resolver) FindButton(label string, timeout time.Duration) (*Resolution, error) {
	res, err := ResolveByCascade("button "+label, r.ButtonStrategies(label), timeout)
	if err != nil && !errors.Is(err, core.ErrNotConnected) {
		r.logVisibleElements()
	}
	return res, err
}

// ClickButton resolves a button and clicks it once.
func (r *Resolver) ClickButton(label string) error {
	res, err := r.FindButton(label, r.opts.AttemptTimeout)
	if err != nil {
		return err
	}
	return res.Element.Click()
}

// FindHomeScreenButton resolves one of the home screen actions (Send, Withdraw,
// Load), which render as icon + label containers. Only clickable matches count.
func (r *Resolver) FindHomeScreenButton(text string, timeout time.Duration) (*Resolution, error) {
	id := strings.ToLower(text) + "-button"
	locs := []core.Locator{
		selector.ByIdentifier(id),
		selector.ByRoleName(selector.RoleButton, id),
		selector.ByRoleName(selector.RoleOther, id),
		selector.ByRoleName(selector.RoleButton, text),
		selector.ByRoleName(selector.RoleOther, text),
		selector.ByNameContains(selector.RoleAny, text),
		selector.ByRoleContainingDescendant(selector.RoleOther, selector.RoleStaticText, text),
		selector.ByRoleContainingDescendant(selector.RoleButton, selector.RoleStaticText, text),
	}
	for _, icon := range homeButtonIcons {
		locs = append(locs, selector.ByRoleContainingAll(selector.RoleOther, icon, text))
	}
	locs = append(locs, selector.ByText(text))

	var strategies []Strategy
	for _, loc := range locs {
		strategies = append(strategies, r.Clickable(r.FromLocator(loc)))
	}
	broad := core.Locator{
		Using: core.UsingXPath,
		Value: `//XCUIElementTypeButton | //XCUIElementTypeOther[@accessible="true"]`,
		Label: "by-scan:buttons",
	}
	strategies = append(strategies, r.Scan("broad-scan:"+text, broad, func(a core.ElementAttributes) bool {
		return a.NameOrLabelContains(text)
	}))

	return ResolveByCascade("home button "+text, strategies, timeout)
}

// FindByTestIdentifier resolves a React Native testID through every
// attribute it may surface as.
func (r *Resolver) FindByTestIdentifier(id string, timeout time.Duration) (*Resolution, error) {
	return ResolveByCascade("test id "+id, r.FromLocators(
		selector.ByIdentifier(id),
		selector.ByAttribute(selector.RoleAny, "name", id),
		selector.ByAttribute(selector.RoleAny, "testID", id),
		selector.ByAttribute(selector.RoleAny, "accessibilityLabel", id),
	), timeout)
}

// FindElementByAccessibilityID resolves an accessibility identifier, falling
// back to name matches.
func (r *Resolver) FindElementByAccessibilityID(id string, timeout time.Duration) (*Resolution, error) {
	return ResolveByCascade("accessibility id "+id, r.FromLocators(
		selector.ByIdentifier(id),
		selector.ByAttribute(selector.RoleAny, "accessibilityId", id),
		selector.ByAttribute(selector.RoleAny, "name", id),
		selector.ByNameContains(selector.RoleAny, id),
	), timeout)
}

// WaitForElementByText waits for any element whose name, label or text equals text.
func (r *Resolver) WaitForElementByText(text string, timeout time.Duration) (*session.Element, error) {
	return r.s.WaitForElement(selector.ByText(text), timeout)
}

// IsTextDisplayed reports whether text becomes visible within timeout.
func (r *Resolver) IsTextDisplayed(text string, timeout time.Duration) (bool, error) {
	return r.s.IsElementDisplayed(selector.ByText(text), timeout)
}

// IsElementDisabled reads the enabled attribute, then the enabled endpoint.
// An undeterminable state counts as enabled.
func (r *Resolver) IsElementDisabled(el *session.Element) bool {
	attr, err := el.Attribute("enabled")
	if err == nil {
		switch attr {
		case "false":
			return true
		case "true":
			return false
		}
	}
	enabled, err := el.IsEnabled()
	if err != nil {
		logger.Debug("could not determine disabled state: %v", err)
		return false
	}
	return !enabled
}

// VisibleElementNames returns the names of the first named elements that are displayed.
func (r *Resolver) VisibleElementNames() ([]string, error) {
	els, err := r.s.FindElements(selector.Named())
	if err != nil {
		return nil, err
	}
	if len(els) > debugElementLimit {
		els = els[:debugElementLimit]
	}

	var names []string
	for _, el := range els {
		shown, err := el.IsDisplayed()
		if err != nil || !shown {
			continue
		}
		name, err := el.Attribute("name")
		if err != nil || strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (r *Resolver) logVisibleElements() {
	names, err := r.VisibleElementNames()
	if err != nil {
		logger.Debug("could not list visible elements: %v", err)
		return
	}
	logger.Info("visible elements: %s", strings.Join(names, ", "))
}

// NavigateBack waits delay, then taps where the header back button sits.
func (r *Resolver) NavigateBack(delay time.Duration) error {
	if delay > 0 {
		time.Sleep(delay)
	}
	return r.g.TapAt(backTapX, backTapY)
}
