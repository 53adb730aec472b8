// Package automation is the single entry point tests use: it builds the
// session, gesture, resolver and workflow layers from a configuration and
// adds diagnostics and the dev server lifecycle on top.
package automation

import (
	"errors"
	"time"

	"github.com/limecash/lime-e2e/pkg/config"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/devserver"
	"github.com/limecash/lime-e2e/pkg/driver/appium"
	"github.com/limecash/lime-e2e/pkg/gesture"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/resolver"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
	"github.com/limecash/lime-e2e/pkg/simulator"
	"github.com/limecash/lime-e2e/pkg/workflow"
)

// Client composes the automation layers. Layers never reference the client.
type Client struct {
	cfg   *config.Config
	proto session.Protocol
	s     *session.Manager
	g     gesture.Gestures
	r     *resolver.Resolver
	auth  *workflow.Auth
	dev   *devserver.Server
	sims  *simulator.Manager
}

// Option customizes a Client.
type Option func(*Client)

// WithProtocol replaces the Appium client, e.g. with an in-memory fake.
func WithProtocol(p session.Protocol) Option {
	return func(c *Client) { c.proto = p }
}

// WithGestures replaces the touch implementation.
func WithGestures(g gesture.Gestures) Option {
	return func(c *Client) { c.g = g }
}

// WithDevServer replaces the dev server built from the configuration.
func WithDevServer(d *devserver.Server) Option {
	return func(c *Client) { c.dev = d }
}

// WithSimulators replaces the simulator manager.
func WithSimulators(m *simulator.Manager) Option {
	return func(c *Client) { c.sims = m }
}

// New builds a disconnected client. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.proto == nil {
		c.proto = appium.NewClient(cfg.ServerURL())
	}
	c.s = session.New(c.proto, session.Options{
		Capabilities: cfg.Capabilities(),
		AppID:        cfg.Device.BundleID,
		Settle:       cfg.Timeouts.ConnectSettle,
		Poll:         cfg.Timeouts.Poll,
	})
	if c.g == nil {
		c.g = gesture.NewTouch(c.s, gesture.Options{
			KeyboardTimeout: cfg.Timeouts.Keyboard,
			OutsideSettle:   cfg.Timeouts.FillSettle,
			ScrollProbe:     cfg.Timeouts.Attempt,
			ScreenWidth:     cfg.Screen.Width,
			ScreenHeight:    cfg.Screen.Height,
		})
	}
	c.r = resolver.New(c.s, c.g, resolver.Options{
		AttemptTimeout: cfg.Timeouts.Attempt,
		FillSettle:     cfg.Timeouts.FillSettle,
	})
	c.auth = workflow.New(c.s, c.r, c.g, workflow.OptionsFromConfig(cfg))
	if c.dev == nil {
		c.dev = devserver.New(devserver.OptionsFromConfig(cfg.DevServer))
	}
	if c.sims == nil {
		c.sims = simulator.NewManager(simulator.New())
	}
	return c
}

// Connect opens the session and activates the app.
func (c *Client) Connect() (*session.Handle, error) {
	return c.s.Connect()
}

// Disconnect closes the session. It is safe to call repeatedly.
func (c *Client) Disconnect() error {
	return c.s.Disconnect()
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config { return c.cfg }

// Session returns the session manager.
func (c *Client) Session() *session.Manager { return c.s }

// Gestures returns the gesture primitives.
func (c *Client) Gestures() gesture.Gestures { return c.g }

// Forms returns the element and form resolver.
func (c *Client) Forms() *resolver.Resolver { return c.r }

// Auth returns the authentication workflows.
func (c *Client) Auth() *workflow.Auth { return c.auth }

// ProbeScreenState reports which screen is showing.
func (c *Client) ProbeScreenState() core.ScreenState { return c.auth.ProbeScreenState() }

// EnsureOnLoginScreen brings the app to the login screen.
func (c *Client) EnsureOnLoginScreen() error { return c.auth.EnsureOnLoginScreen() }

// LogoutIfLoggedIn logs out when logged in.
func (c *Client) LogoutIfLoggedIn() (bool, error) { return c.auth.LogoutIfLoggedIn() }

// RegisterToLogin follows the sign-in link to the login screen.
func (c *Client) RegisterToLogin() error { return c.auth.RegisterToLogin() }

// Login signs in with the given credentials.
func (c *Client) Login(email, password string) error { return c.auth.Login(email, password) }

// ClickButton clicks the button labelled label.
func (c *Client) ClickButton(label string) error { return c.r.ClickButton(label) }

// ClickHomeScreenButton clicks one of the home screen actions.
func (c *Client) ClickHomeScreenButton(text string) error {
	res, err := c.r.FindHomeScreenButton(text, c.cfg.Timeouts.Attempt)
	if err != nil {
		return err
	}
	return res.Element.Click()
}

// ScrollToElement scrolls down until loc is displayed, up to maxSwipes times.
func (c *Client) ScrollToElement(loc core.Locator, maxSwipes int) (*session.Element, error) {
	return c.g.ScrollToElement(loc, maxSwipes)
}

// FillEmailField types email into the email field.
func (c *Client) FillEmailField(email string) error { return c.r.FillEmailField(email) }

// FillPasswordField types password into the password field.
func (c *Client) FillPasswordField(password string) error { return c.r.FillPasswordField(password) }

// FillField types text into the element found by loc and dismisses the keyboard.
func (c *Client) FillField(loc core.Locator, text string) error {
	return c.r.FillField(loc, text, true)
}

// WaitForElement waits for loc to be displayed.
func (c *Client) WaitForElement(loc core.Locator, timeout time.Duration) (*session.Element, error) {
	return c.s.WaitForElement(loc, timeout)
}

// IsTextDisplayed reports whether text shows up within the element timeout.
func (c *Client) IsTextDisplayed(text string) (bool, error) {
	return c.r.IsTextDisplayed(text, c.cfg.Timeouts.Element)
}

// ElementExists reports whether loc matches anything, displayed or not.
// Lookup failures other than a missing session count as absent.
func (c *Client) ElementExists(loc core.Locator) (bool, error) {
	ok, err := c.s.ElementExists(loc)
	if err != nil {
		if errors.Is(err, core.ErrNotConnected) {
			return false, err
		}
		logger.Debug("element exists %s: %v", loc, err)
		return false, nil
	}
	return ok, nil
}

// DismissKeyboard hides the keyboard if possible.
func (c *Client) DismissKeyboard() { c.g.DismissKeyboard() }

// WaitForLoadingToDisappear waits briefly for the loading indicator to show
// up, then for it to go away. A missing or stuck indicator is only logged.
func (c *Client) WaitForLoadingToDisappear(timeout time.Duration) error {
	loc := selector.ByIdentifier(c.cfg.Anchors.LoadingID)
	appear := loadingAppearTimeout
	if timeout < appear {
		appear = timeout
	}
	shown, err := c.s.IsElementDisplayed(loc, appear)
	if err != nil {
		return err
	}
	if !shown {
		logger.Debug("loading indicator not shown")
		return nil
	}
	gone, err := c.s.WaitForAbsence(loc, timeout)
	if err != nil {
		return err
	}
	if !gone {
		logger.Warn("loading indicator still visible after %s", timeout)
	}
	return nil
}

// loadingAppearTimeout bounds the wait for the loading indicator to render.
const loadingAppearTimeout = 2 * time.Second

// RestartApp terminates and re-activates the app under test.
func (c *Client) RestartApp() error {
	appID := c.s.AppID()
	if err := c.s.TerminateApp(appID); err != nil {
		if errors.Is(err, core.ErrNotConnected) {
			return err
		}
		logger.Warn("terminate %s: %v", appID, err)
	}
	if err := c.s.ActivateApp(appID); err != nil {
		return err
	}
	if d := c.cfg.Timeouts.ConnectSettle; d > 0 {
		time.Sleep(d)
	}
	logger.Info("restarted %s", appID)
	return nil
}
