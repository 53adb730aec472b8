package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/driver/appium"
	"github.com/limecash/lime-e2e/pkg/logger"
)

const defaultPoll = 200 * time.Millisecond

var errNotDisplayed = errors.New("not displayed")

// Handle identifies the live session. There is at most one per Manager.
type Handle struct {
	ID        string
	Platform  string
	StartedAt time.Time
}

// Options configures a Manager.
type Options struct {
	Capabilities map[string]interface{}
	AppID        string        // Activated right after connecting; empty skips activation
	Settle       time.Duration // Pause after activation
	Poll         time.Duration // Interval between lookups while waiting
}

// Manager opens, holds and closes the session. All protocol traffic goes
// through it, one call at a time.
type Manager struct {
	mu     sync.Mutex
	proto  Protocol
	opts   Options
	handle *Handle
}

// New creates a disconnected manager.
func New(proto Protocol, opts Options) *Manager {
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}
	return &Manager{proto: proto, opts: opts}
}

// Connect opens the session, or returns the live handle if one is open.
// Failing to activate the app is logged and does not fail the connection.
func (m *Manager) Connect() (*Handle, error) {
	m.mu.Lock()
	if m.handle != nil {
		h := m.handle
		m.mu.Unlock()
		return h, nil
	}

	if err := m.proto.Connect(m.opts.Capabilities); err != nil {
		m.mu.Unlock()
		return nil, core.ErrServerUnreachable.WithMessage("failed to open automation session").WithCause(err)
	}

	h := &Handle{
		ID:        m.proto.SessionID(),
		Platform:  m.proto.Platform(),
		StartedAt: time.Now(),
	}
	m.handle = h
	log := logger.L().With(zap.String("session", h.ID))
	log.Info("session connected", zap.String("platform", h.Platform))

	activated := false
	if m.opts.AppID != "" {
		if err := m.proto.LaunchApp(m.opts.AppID); err != nil {
			log.Warn("app activation failed", zap.String("app", m.opts.AppID), zap.Error(err))
		} else {
			activated = true
		}
	}
	m.mu.Unlock()

	if activated && m.opts.Settle > 0 {
		time.Sleep(m.opts.Settle)
	}
	return h, nil
}

// Disconnect closes the session. Without a session it does nothing.
// The handle is cleared even when the server rejects the delete.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil
	}
	id := m.handle.ID
	err := m.proto.Disconnect()
	m.handle = nil
	if err != nil {
		logger.L().Warn("session delete failed", zap.String("session", id), zap.Error(err))
		return fmt.Errorf("close session %s: %w", id, err)
	}
	logger.L().Info("session closed", zap.String("session", id))
	return nil
}

// Handle returns the live handle, or nil.
func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// Connected reports whether a session is open.
func (m *Manager) Connected() bool {
	return m.Handle() != nil
}

// AppID returns the application activated on connect.
func (m *Manager) AppID() string {
	return m.opts.AppID
}

// call runs fn against the protocol while holding the lock.
func (m *Manager) call(op string, fn func(p Protocol) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return core.ErrNotConnected.WithDetails(map[string]interface{}{"operation": op})
	}
	err := fn(m.proto)
	if errors.Is(err, appium.ErrNoSession) {
		return core.ErrNotConnected.WithDetails(map[string]interface{}{"operation": op}).WithCause(err)
	}
	return err
}

// find performs one lookup and returns the element if it is displayed.
func (m *Manager) find(loc core.Locator, needVisible bool) (*Element, error) {
	var el *Element
	err := m.call("find", func(p Protocol) error {
		id, err := p.FindElement(loc.Using, loc.Value)
		if err != nil {
			return err
		}
		if needVisible {
			shown, err := p.IsElementDisplayed(id)
			if err != nil {
				return err
			}
			if !shown {
				return fmt.Errorf("%s: %w", loc, errNotDisplayed)
			}
		}
		el = &Element{ID: id, Locator: loc, m: m}
		return nil
	})
	return el, err
}

// poll calls attempt until it reports done or the timeout expires.
// attempt always runs at least once, even with a zero timeout, and once
// more at the deadline when the last poll interval would overshoot it.
func (m *Manager) poll(timeout time.Duration, attempt func() (bool, error)) error {
	deadline := time.Now().Add(timeout)

	limiter := rate.NewLimiter(rate.Every(m.opts.Poll), 1)
	limiter.Allow() // the first attempt spends the burst

	for {
		done, err := attempt()
		if err != nil || done {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		time.Sleep(min(limiter.Reserve().Delay(), remaining))
	}
}

// WaitForElement waits until the locator matches a displayed element.
func (m *Manager) WaitForElement(loc core.Locator, timeout time.Duration) (*Element, error) {
	var (
		el      *Element
		lastErr error
	)
	err := m.poll(timeout, func() (bool, error) {
		found, err := m.find(loc, true)
		if err != nil {
			if errors.Is(err, core.ErrNotConnected) {
				return false, err
			}
			lastErr = err
			return false, nil
		}
		el = found
		return true, nil
	})
	if el != nil {
		return el, nil
	}
	if errors.Is(err, core.ErrNotConnected) {
		return nil, err
	}
	return nil, core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("element %s not displayed within %s", loc, timeout)).
		WithDetails(map[string]interface{}{"locator": loc.String(), "timeout": timeout.String()}).
		WithCause(lastErr)
}

// IsElementDisplayed reports whether the locator becomes visible within timeout.
// Absence is false, not an error; only a missing session is reported.
func (m *Manager) IsElementDisplayed(loc core.Locator, timeout time.Duration) (bool, error) {
	_, err := m.WaitForElement(loc, timeout)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, core.ErrNotConnected) {
		return false, err
	}
	return false, nil
}

// WaitForAbsence waits until the locator no longer matches a displayed element.
// Lookup failures other than a missing or hidden element do not count as gone.
func (m *Manager) WaitForAbsence(loc core.Locator, timeout time.Duration) (bool, error) {
	gone := false
	err := m.poll(timeout, func() (bool, error) {
		_, err := m.find(loc, true)
		switch {
		case err == nil:
			gone = false
		case errors.Is(err, core.ErrNotConnected):
			return false, err
		case appium.IsNoSuchElement(err), errors.Is(err, errNotDisplayed):
			gone = true
		default:
			logger.L().Debug("absence check failed", zap.String("locator", loc.String()), zap.Error(err))
			gone = false
		}
		return gone, nil
	})
	if errors.Is(err, core.ErrNotConnected) {
		return false, err
	}
	return gone, nil
}

// FindElements returns every element matching the locator, displayed or not.
func (m *Manager) FindElements(loc core.Locator) ([]*Element, error) {
	var out []*Element
	err := m.call("find elements", func(p Protocol) error {
		ids, err := p.FindElements(loc.Using, loc.Value)
		if err != nil {
			return err
		}
		for _, id := range ids {
			out = append(out, &Element{ID: id, Locator: loc, m: m})
		}
		return nil
	})
	return out, err
}

// ElementExists reports whether the locator matches anything in the tree.
func (m *Manager) ElementExists(loc core.Locator) (bool, error) {
	els, err := m.FindElements(loc)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

// Tap taps at screen coordinates.
func (m *Manager) Tap(x, y int) error {
	return m.call("tap", func(p Protocol) error { return p.Tap(x, y) })
}

// Swipe drags from start to end, holding for durationMs first.
func (m *Manager) Swipe(startX, startY, endX, endY, durationMs int) error {
	return m.call("swipe", func(p Protocol) error {
		return p.Swipe(startX, startY, endX, endY, durationMs)
	})
}

// HideKeyboard asks the driver to hide the keyboard.
func (m *Manager) HideKeyboard() error {
	return m.call("hide keyboard", func(p Protocol) error { return p.HideKeyboard() })
}

// WindowSize returns the viewport size.
func (m *Manager) WindowSize() (int, int, error) {
	var w, h int
	err := m.call("window size", func(p Protocol) error {
		var err error
		w, h, err = p.WindowSize()
		return err
	})
	return w, h, err
}

// Screenshot returns PNG bytes.
func (m *Manager) Screenshot() ([]byte, error) {
	var data []byte
	err := m.call("screenshot", func(p Protocol) error {
		var err error
		data, err = p.Screenshot()
		return err
	})
	return data, err
}

// Source returns the accessibility tree as XML.
func (m *Manager) Source() (string, error) {
	var src string
	err := m.call("source", func(p Protocol) error {
		var err error
		src, err = p.Source()
		return err
	})
	return src, err
}

// OpenURL opens a deep link.
func (m *Manager) OpenURL(url string) error {
	return m.call("open url", func(p Protocol) error { return p.OpenURL(url) })
}

// ActivateApp brings the app to the foreground.
func (m *Manager) ActivateApp(appID string) error {
	return m.call("activate app", func(p Protocol) error { return p.LaunchApp(appID) })
}

// TerminateApp stops the app.
func (m *Manager) TerminateApp(appID string) error {
	return m.call("terminate app", func(p Protocol) error { return p.TerminateApp(appID) })
}
