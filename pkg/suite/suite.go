// Package suite shares one automation client across a test suite: it is
// created and connected once, and torn down once at the end.
//
//	func TestMain(m *testing.M) {
//		os.Exit(suite.RunMain(m, suite.FromConfig(cfg)))
//	}
package suite

import (
	"errors"
	"sync"
	"time"

	"github.com/limecash/lime-e2e/pkg/automation"
	"github.com/limecash/lime-e2e/pkg/config"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/selector"
)

// readyRoles are probed in order to decide that the app has rendered.
var readyRoles = []string{
	selector.RoleButton,
	selector.RoleStaticText,
	selector.RoleNavigationBar,
	selector.RoleTabBar,
	selector.RoleTextField,
}

// Factory builds the client the suite shares.
type Factory func() (*automation.Client, error)

// Lifecycle owns the suite's client.
type Lifecycle struct {
	factory Factory
	probe   time.Duration // Per-role wait in WaitForAppReady

	mu     sync.Mutex
	client *automation.Client
	ready  bool
}

// New creates a lifecycle around factory.
func New(factory Factory, probe time.Duration) *Lifecycle {
	return &Lifecycle{factory: factory, probe: probe}
}

// FromConfig creates a lifecycle whose client is built from cfg.
func FromConfig(cfg *config.Config, opts ...automation.Option) *Lifecycle {
	return New(func() (*automation.Client, error) {
		return automation.New(cfg, opts...), nil
	}, cfg.Timeouts.AppReady)
}

// BeforeAll returns the shared client, creating and connecting it on the
// first call. A failed setup is torn down and the error returned; the next
// call starts over.
func (l *Lifecycle) BeforeAll() (*automation.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return l.client, nil
	}

	logger.Info("setting up test environment")
	client, err := l.factory()
	if err != nil {
		return nil, err
	}
	if _, err := client.Connect(); err != nil {
		logger.Error("test setup failed: %v", err)
		if derr := client.Disconnect(); derr != nil {
			logger.Warn("teardown after failed setup: %v", derr)
		}
		return nil, err
	}

	l.client = client
	l.ready = true
	return client, nil
}

// AfterAll disconnects the shared client. Later calls do nothing.
func (l *Lifecycle) AfterAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client == nil {
		return nil
	}
	err := l.client.Disconnect()
	l.client = nil
	l.ready = false
	logger.Info("test environment torn down")
	return err
}

// Client returns the shared client, or nil before BeforeAll.
func (l *Lifecycle) Client() *automation.Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client
}

// WaitForAppReady waits for the loading indicator to go away, then for any
// common element to render. Not detecting one is only a warning.
func (l *Lifecycle) WaitForAppReady(timeout time.Duration) error {
	c := l.Client()
	if c == nil {
		return core.ErrNotConnected.WithMessage("suite not set up")
	}

	logger.Info("waiting for app to be ready")
	if err := c.WaitForLoadingToDisappear(timeout); err != nil {
		return err
	}

	for _, role := range readyRoles {
		loc := selector.ByRole(role)
		if _, err := c.WaitForElement(loc, l.probe); err != nil {
			if errors.Is(err, core.ErrNotConnected) {
				return err
			}
			continue
		}
		logger.Info("app ready: found %s", loc)
		return nil
	}
	logger.Warn("could not detect app ready state, continuing")
	return nil
}

// Runner is what TestMain receives; *testing.M satisfies it.
type Runner interface {
	Run() int
}

// RunMain runs the suite and always tears the lifecycle down afterwards,
// even if the run panics. It returns the exit code.
func RunMain(m Runner, l *Lifecycle) int {
	defer func() {
		if err := l.AfterAll(); err != nil {
			logger.Warn("suite teardown: %v", err)
		}
	}()
	return m.Run()
}

// TB is the part of testing.TB CaptureOnFailure needs.
type TB interface {
	Name() string
	Failed() bool
	Cleanup(func())
}

// CaptureOnFailure saves a screenshot and the hierarchy when t fails.
func (l *Lifecycle) CaptureOnFailure(t TB) {
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		if c := l.Client(); c != nil {
			for _, p := range c.CaptureFailure(t.Name()) {
				logger.Info("failure artifact: %s", p)
			}
		}
	})
}

var (
	defaultMu        sync.Mutex
	defaultLifecycle *Lifecycle
)

// SetDefault replaces the package-level lifecycle.
func SetDefault(l *Lifecycle) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLifecycle = l
}

// BeforeAll sets up the package-level lifecycle, creating it from cfg on
// first use. A nil cfg uses config.Default().
func BeforeAll(cfg *config.Config) (*automation.Client, error) {
	defaultMu.Lock()
	if defaultLifecycle == nil {
		if cfg == nil {
			cfg = config.Default()
		}
		defaultLifecycle = FromConfig(cfg)
	}
	l := defaultLifecycle
	defaultMu.Unlock()
	return l.BeforeAll()
}

// AfterAll tears down the package-level lifecycle.
func AfterAll() error {
	defaultMu.Lock()
	l := defaultLifecycle
	defaultMu.Unlock()
	if l == nil {
		return nil
	}
	return l.AfterAll()
}
