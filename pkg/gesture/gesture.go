// Package gesture implements touch primitives and keyboard handling on top of
// the session manager.
package gesture

import (
	"errors"
	"fmt"
	"time"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
)

// Default scroll parameters.
const (
	DefaultScrollDistance = 300
	scrollDurationMs      = 800
	outsideTapY           = 100
)

// Gestures is the swappable gesture set. Touch implements it for XCUITest.
type Gestures interface {
	Swipe(startX, startY, endX, endY, durationMs int) error
	TapAt(x, y int) error
	DismissKeyboard()
	IsKeyboardVisible() bool
	HideKeyboardIfVisible()
	TapOutsideKeyboard()
	ScrollDown(distance int) error
	ScrollUp(distance int) error
	ScrollToElement(loc core.Locator, maxSwipes int) (*session.Element, error)
	ScreenSize() (int, int, error)
}

// Options configures Touch.
type Options struct {
	KeyboardTimeout time.Duration // Budget for each keyboard-dismiss button
	OutsideSettle   time.Duration // Pause after tapping outside the keyboard
	ScrollProbe     time.Duration // Wait for the target before each scroll
	ScreenWidth     int           // Fixed profile; zero queries the device
	ScreenHeight    int
}

// Touch drives gestures through a session.
type Touch struct {
	s    *session.Manager
	opts Options
}

var _ Gestures = (*Touch)(nil)

// NewTouch creates a Touch.
func NewTouch(s *session.Manager, opts Options) *Touch {
	return &Touch{s: s, opts: opts}
}

// gestureError keeps NotConnected as is and wraps everything else as GestureFailed.
func gestureError(op string, err error) error {
	if err == nil || errors.Is(err, core.ErrNotConnected) {
		return err
	}
	return core.ErrGestureFailed.WithMessage(op + " rejected").WithCause(err)
}

// Swipe presses at the start point, waits durationMs, moves and releases.
func (t *Touch) Swipe(startX, startY, endX, endY, durationMs int) error {
	logger.Debug("swipe (%d,%d) -> (%d,%d) %dms", startX, startY, endX, endY, durationMs)
	return gestureError("swipe", t.s.Swipe(startX, startY, endX, endY, durationMs))
}

// TapAt taps screen coordinates. Last resort when no element can be resolved.
func (t *Touch) TapAt(x, y int) error {
	logger.Debug("tap at (%d,%d)", x, y)
	return gestureError(fmt.Sprintf("tap at (%d,%d)", x, y), t.s.Tap(x, y))
}

// DismissKeyboard tries the Done button, then Return, then the driver's
// native hide. It never fails; exhausting every method is logged.
func (t *Touch) DismissKeyboard() {
	for _, name := range []string{"Done", "Return"} {
		loc := selector.ByRoleName(selector.RoleButton, name)
		el, err := t.s.WaitForElement(loc, t.opts.KeyboardTimeout)
		if err != nil {
			if errors.Is(err, core.ErrNotConnected) {
				logger.Warn("dismiss keyboard: %v", err)
				return
			}
			continue
		}
		if err := el.Click(); err != nil {
			logger.Debug("dismiss keyboard via %s failed: %v", name, err)
			continue
		}
		logger.Debug("keyboard dismissed via %s", name)
		return
	}

	if err := t.s.HideKeyboard(); err != nil {
		logger.Warn("could not dismiss keyboard: %v", err)
		return
	}
	logger.Debug("keyboard dismissed via native hide")
}

// IsKeyboardVisible probes once for an on-screen keyboard.
func (t *Touch) IsKeyboardVisible() bool {
	shown, err := t.s.IsElementDisplayed(selector.ByRole(selector.RoleKeyboard), 0)
	return err == nil && shown
}

// HideKeyboardIfVisible dismisses the keyboard only when one is showing.
func (t *Touch) HideKeyboardIfVisible() {
	if t.IsKeyboardVisible() {
		t.DismissKeyboard()
	}
}

// TapOutsideKeyboard taps the top centre of the screen, away from the
// keyboard, then checks it is gone. Failures are logged.
func (t *Touch) TapOutsideKeyboard() {
	w, _, err := t.ScreenSize()
	if err != nil {
		logger.Warn("tap outside keyboard: %v", err)
		return
	}
	if err := t.TapAt(w/2, outsideTapY); err != nil {
		logger.Warn("tap outside keyboard: %v", err)
		return
	}
	if t.opts.OutsideSettle > 0 {
		time.Sleep(t.opts.OutsideSettle)
	}
	if t.IsKeyboardVisible() {
		logger.Warn("keyboard still visible after tapping outside")
	}
}

// ScrollDown swipes up from 80% of the screen height by distance points.
func (t *Touch) ScrollDown(distance int) error {
	w, h, err := t.ScreenSize()
	if err != nil {
		return gestureError("scroll down", err)
	}
	startY := h * 8 / 10
	return t.Swipe(w/2, startY, w/2, startY-distance, scrollDurationMs)
}

// ScrollUp swipes down from 20% of the screen height by distance points.
func (t *Touch) ScrollUp(distance int) error {
	w, h, err := t.ScreenSize()
	if err != nil {
		return gestureError("scroll up", err)
	}
	startY := h * 2 / 10
	return t.Swipe(w/2, startY, w/2, startY+distance, scrollDurationMs)
}

// ScrollToElement looks for loc and scrolls down between lookups until it is
// displayed. After maxSwipes scrolls without a match it fails with
// ErrElementNotFound.
func (t *Touch) ScrollToElement(loc core.Locator, maxSwipes int) (*session.Element, error) {
	for swipes := 0; ; swipes++ {
		el, err := t.s.WaitForElement(loc, t.opts.ScrollProbe)
		if err == nil {
			logger.Debug("%s visible after %d scrolls", loc, swipes)
			return el, nil
		}
		if errors.Is(err, core.ErrNotConnected) {
			return nil, err
		}
		if swipes >= maxSwipes {
			return nil, core.ErrElementNotFound.
				WithMessage(fmt.Sprintf("element %s not found after %d scrolls", loc, maxSwipes)).
				WithDetails(map[string]interface{}{"locator": loc.String(), "swipes": maxSwipes}).
				WithCause(err)
		}
		if err := t.ScrollDown(DefaultScrollDistance); err != nil {
			return nil, err
		}
	}
}

// ScreenSize returns the configured profile, or the live window size.
func (t *Touch) ScreenSize() (int, int, error) {
	if t.opts.ScreenWidth > 0 && t.opts.ScreenHeight > 0 {
		return t.opts.ScreenWidth, t.opts.ScreenHeight, nil
	}
	return t.s.WindowSize()
}
