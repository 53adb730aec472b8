// Package workflow implements the authentication workflows that move the app
// between screens. Screen state is never stored: every decision re-probes the
// anchor elements.
package workflow

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/limecash/lime-e2e/pkg/config"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/gesture"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/resolver"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
)

// Options configures Auth.
type Options struct {
	Anchors  config.Anchors
	Timeouts config.Timeouts
	Modal    config.Modal
}

// OptionsFromConfig picks the workflow settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{Anchors: cfg.Anchors, Timeouts: cfg.Timeouts, Modal: cfg.Modal}
}

// Auth drives login, logout and the screens between them.
type Auth struct {
	s    *session.Manager
	r    *resolver.Resolver
	g    gesture.Gestures
	opts Options
}

// New creates an Auth workflow over the given layers.
func New(s *session.Manager, r *resolver.Resolver, g gesture.Gestures, opts Options) *Auth {
	return &Auth{s: s, r: r, g: g, opts: opts}
}

func (a *Auth) loginAnchor() core.Locator { return selector.ByText(a.opts.Anchors.LoginText) }
func (a *Auth) homeAnchor() core.Locator  { return selector.ByText(a.opts.Anchors.HomeText) }
func (a *Auth) modalAnchor() core.Locator { return selector.ByText(a.opts.Anchors.ModalDescription) }

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// ProbeScreenState inspects the anchors in priority order: modal, home, login.
// A missing session reports StateUnreachable.
func (a *Auth) ProbeScreenState() core.ScreenState {
	if !a.s.Connected() {
		return core.StateUnreachable
	}
	probes := []struct {
		loc   core.Locator
		state core.ScreenState
	}{
		{a.modalAnchor(), core.StateModalOpen},
		{a.homeAnchor(), core.StateAuthenticatedHome},
		{a.loginAnchor(), core.StateLoginScreen},
	}
	for _, p := range probes {
		shown, err := a.s.IsElementDisplayed(p.loc, a.opts.Timeouts.Element)
		if err != nil {
			return core.StateUnreachable
		}
		if shown {
			return p.state
		}
	}
	return core.StateUnknown
}

// EnsureOnLoginScreen brings the app to the login screen. It does nothing
// when the login anchor is already visible. Failures along the way are
// logged and only a missing session is returned.
func (a *Auth) EnsureOnLoginScreen() error {
	state := a.ProbeScreenState()
	switch state {
	case core.StateUnreachable:
		return core.ErrNotConnected.WithDetails(map[string]interface{}{"operation": "ensure login screen"})
	case core.StateLoginScreen:
		logger.Info("already on login screen")
		return nil
	}
	logger.Info("ensuring login screen (current: %s)", state)

	if _, err := a.LogoutIfLoggedIn(); err != nil {
		if errors.Is(err, core.ErrNotConnected) {
			return err
		}
		logger.Warn("logout did not complete: %v", err)
	}

	onLogin, err := a.s.IsElementDisplayed(a.loginAnchor(), a.opts.Timeouts.Element)
	if err != nil {
		return err
	}
	if !onLogin {
		if err := a.RegisterToLogin(); err != nil {
			if errors.Is(err, core.ErrNotConnected) {
				return err
			}
			logger.Warn("sign in link route failed: %v", err)
		}
		sleep(a.opts.Timeouts.LogoutSettle)
	}

	if _, err := a.s.WaitForElement(a.loginAnchor(), a.opts.Timeouts.LoginWait); err != nil {
		if errors.Is(err, core.ErrNotConnected) {
			return err
		}
		logger.Warn("could not verify login screen: %v", err)
		return nil
	}
	logger.Info("on login screen")
	return nil
}

// LogoutIfLoggedIn logs out when the home anchor is visible and reports
// whether it did. When logged out it returns false without touching anything.
func (a *Auth) LogoutIfLoggedIn() (bool, error) {
	loggedIn, err := a.s.IsElementDisplayed(a.homeAnchor(), a.opts.Timeouts.Element)
	if err != nil {
		return false, err
	}
	if !loggedIn {
		logger.Info("not logged in, no logout needed")
		return false, nil
	}

	res, err := resolver.ResolveByCascade("logout control", a.logoutStrategies(), a.opts.Timeouts.Attempt)
	if err != nil {
		return false, err
	}
	if err := res.Element.Click(); err != nil {
		return false, err
	}
	logger.L().Info("logout clicked, waiting for confirmation", zap.String("strategy", res.Strategy))
	sleep(a.opts.Timeouts.LogoutSettle)

	outcome, err := a.ConfirmModal()
	if err != nil {
		return false, err
	}
	logger.L().Info("logout confirmed", zap.String("step", outcome.Step), zap.Int("taps", outcome.Taps))

	a.waitForLoginScreen()
	return true, nil
}

func (a *Auth) logoutStrategies() []resolver.Strategy {
	label := a.opts.Anchors.LogoutLabel
	return []resolver.Strategy{
		a.r.Clickable(a.r.FromLocator(selector.ByIdentifier(a.opts.Anchors.LogoutTestID))),
		a.r.Clickable(a.r.FromLocator(selector.ByNameContains(selector.RoleOther, label))),
		a.r.Clickable(a.r.FromLocator(selector.ByNameContains(selector.RoleButton, label))),
		a.r.Clickable(a.r.FromLocator(selector.ByNameContains(selector.RoleAny, label))),
		a.r.Scan("by-scan:other~"+label, selector.ByRole(selector.RoleOther), func(attrs core.ElementAttributes) bool {
			return attrs.NameOrLabelContains(label)
		}),
	}
}

// waitForLoginScreen waits for the login anchor after a confirmed logout.
// Not reaching it is only a warning: the logout itself went through.
func (a *Auth) waitForLoginScreen() {
	if _, err := a.s.WaitForElement(a.loginAnchor(), a.opts.Timeouts.LoginWait); err == nil {
		logger.Info("logout completed, back on login screen")
		return
	}
	open, _ := a.s.IsElementDisplayed(a.modalAnchor(), a.opts.Timeouts.Element)
	if open {
		logger.Warn("logout modal still visible")
		return
	}
	logger.Warn("login screen not visible after logout, modal dismissed")
}

// RegisterToLogin follows the sign-in link from the registration screen and
// waits for the login anchor.
func (a *Auth) RegisterToLogin() error {
	link, err := a.s.WaitForElement(selector.ByText(a.opts.Anchors.SignInLink), a.opts.Timeouts.LoginWait)
	if err != nil {
		return err
	}
	if err := link.Click(); err != nil {
		return err
	}
	if _, err := a.s.WaitForElement(a.loginAnchor(), a.opts.Timeouts.LoginWait); err != nil {
		return err
	}
	logger.Info("navigated from registration to login")
	return nil
}

// SignInStrategies is the cascade for the sign-in button: test identifier,
// visible text, then the first button on screen.
func (a *Auth) SignInStrategies() []resolver.Strategy {
	return a.r.FromLocators(
		selector.ByIdentifier(a.opts.Anchors.SignInTestID),
		selector.ByText(a.opts.Anchors.SignInButton),
		selector.ByPosition(selector.RoleButton, 1),
	)
}

// Login fills the credentials on the login screen, signs in and waits for
// the home anchor.
func (a *Auth) Login(email, password string) error {
	if err := a.r.FillEmailField(email); err != nil {
		return err
	}
	if err := a.r.FillPasswordField(password); err != nil {
		return err
	}
	res, err := resolver.ResolveByCascade("sign in button", a.SignInStrategies(), a.opts.Timeouts.Attempt)
	if err != nil {
		return err
	}
	if err := res.Element.Click(); err != nil {
		return err
	}
	if _, err := a.s.WaitForElement(a.homeAnchor(), a.opts.Timeouts.LoginWait); err != nil {
		return err
	}
	logger.Info("logged in as %s", email)
	return nil
}
