package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limecash/lime-e2e/pkg/config"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/driver/fake"
	"github.com/limecash/lime-e2e/pkg/gesture"
	"github.com/limecash/lime-e2e/pkg/resolver"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
)

type harness struct {
	auth  *Auth
	proto *fake.Protocol
	s     *session.Manager
	cfg   *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Timeouts = config.Timeouts{Poll: time.Millisecond}

	proto := fake.New()
	s := session.New(proto, session.Options{Poll: time.Millisecond})
	g := gesture.NewTouch(s, gesture.Options{})
	r := resolver.New(s, g, resolver.Options{})
	_, err := s.Connect()
	require.NoError(t, err)

	return &harness{
		auth:  New(s, r, g, OptionsFromConfig(cfg)),
		proto: proto,
		s:     s,
		cfg:   cfg,
	}
}

func (h *harness) anchor(text string) *fake.Element {
	return h.proto.Add(&fake.Element{Type: selector.RoleStaticText, Label: text}, selector.ByText(text))
}

// loggedIn renders the home screen with the icon logout container. Clicking
// it opens the confirmation dialog; the returned dialog element is its description.
func (h *harness) loggedIn() (home, logout, dialog *fake.Element) {
	a := h.cfg.Anchors
	home = h.anchor(a.HomeText)
	dialog = &fake.Element{Type: selector.RoleStaticText, Label: a.ModalDescription}
	logout = h.proto.Add(&fake.Element{
		Type: selector.RoleOther,
		Name: "rectangle.portrait.and.arrow.forward Logout",
		OnClick: func(p *fake.Protocol) {
			p.Add(dialog, selector.ByText(a.ModalDescription))
		},
	}, selector.ByNameContains(selector.RoleOther, a.LogoutLabel))
	return home, logout, dialog
}

func TestProbeScreenState(t *testing.T) {
	h := newHarness(t)
	a := h.cfg.Anchors

	assert.Equal(t, core.StateUnknown, h.auth.ProbeScreenState())

	login := h.anchor(a.LoginText)
	assert.Equal(t, core.StateLoginScreen, h.auth.ProbeScreenState())

	h.proto.Remove(login)
	h.anchor(a.HomeText)
	assert.Equal(t, core.StateAuthenticatedHome, h.auth.ProbeScreenState())

	h.anchor(a.ModalDescription)
	assert.Equal(t, core.StateModalOpen, h.auth.ProbeScreenState(), "modal wins over the screen behind it")

	require.NoError(t, h.s.Disconnect())
	assert.Equal(t, core.StateUnreachable, h.auth.ProbeScreenState())
}

func TestEnsureOnLoginScreen_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.anchor(h.cfg.Anchors.LoginText)

	require.NoError(t, h.auth.EnsureOnLoginScreen())
	require.NoError(t, h.auth.EnsureOnLoginScreen())

	assert.Zero(t, h.proto.TotalClicks())
	assert.Empty(t, h.proto.Taps())
}

func TestEnsureOnLoginScreen_NotConnected(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.Disconnect())

	err := h.auth.EnsureOnLoginScreen()
	assert.ErrorIs(t, err, core.ErrNotConnected)
}

func TestEnsureOnLoginScreen_FromRegistration(t *testing.T) {
	h := newHarness(t)
	a := h.cfg.Anchors
	link := h.proto.Add(&fake.Element{
		Type:  selector.RoleStaticText,
		Label: a.SignInLink,
		OnClick: func(p *fake.Protocol) {
			p.Add(&fake.Element{Label: a.LoginText}, selector.ByText(a.LoginText))
		},
	}, selector.ByText(a.SignInLink))

	require.NoError(t, h.auth.EnsureOnLoginScreen())
	assert.Equal(t, 1, h.proto.Clicks(link))
	assert.Equal(t, core.StateLoginScreen, h.auth.ProbeScreenState())
}

func TestEnsureOnLoginScreen_SwallowsWorkflowFailures(t *testing.T) {
	h := newHarness(t)

	// Nothing recognisable: logout is a no-op and the sign-in link is missing.
	assert.NoError(t, h.auth.EnsureOnLoginScreen())
	assert.Zero(t, h.proto.TotalClicks())
}

func TestLogoutIfLoggedIn_NotLoggedIn(t *testing.T) {
	h := newHarness(t)
	h.anchor(h.cfg.Anchors.LoginText)

	did, err := h.auth.LogoutIfLoggedIn()
	require.NoError(t, err)
	assert.False(t, did)
	assert.Zero(t, h.proto.TotalClicks())
	assert.Empty(t, h.proto.Taps())
}

func TestLogoutIfLoggedIn_ConfirmByTestID(t *testing.T) {
	h := newHarness(t)
	a := h.cfg.Anchors
	home, logout, dialog := h.loggedIn()
	confirm := h.proto.Add(&fake.Element{
		Type: selector.RoleOther,
		Name: a.ConfirmLogoutTestID,
		OnClick: func(p *fake.Protocol) {
			p.Remove(dialog)
			p.Remove(home)
			p.Add(&fake.Element{Label: a.LoginText}, selector.ByText(a.LoginText))
		},
	}, selector.ByIdentifier(a.ConfirmLogoutTestID))

	did, err := h.auth.LogoutIfLoggedIn()
	require.NoError(t, err)
	assert.True(t, did)
	assert.Equal(t, 1, h.proto.Clicks(logout))
	assert.Equal(t, 1, h.proto.Clicks(confirm))
	assert.Empty(t, h.proto.Taps())
	assert.Equal(t, core.StateLoginScreen, h.auth.ProbeScreenState())
}

func TestEnsureOnLoginScreen_FromHome(t *testing.T) {
	h := newHarness(t)
	a := h.cfg.Anchors
	home, logout, dialog := h.loggedIn()
	h.proto.OnTap = func(p *fake.Protocol, x, y int) {
		p.Remove(dialog)
		p.Remove(home)
		p.Add(&fake.Element{Label: a.LoginText}, selector.ByText(a.LoginText))
	}

	require.NoError(t, h.auth.EnsureOnLoginScreen())
	assert.Equal(t, 1, h.proto.Clicks(logout))
	assert.Len(t, h.proto.Taps(), 1)
	assert.Equal(t, core.StateLoginScreen, h.auth.ProbeScreenState())
}

func TestLogoutIfLoggedIn_ModalNotDismissed(t *testing.T) {
	h := newHarness(t)
	h.loggedIn()

	did, err := h.auth.LogoutIfLoggedIn()
	assert.False(t, did)
	assert.ErrorIs(t, err, core.ErrModalNotDismissed)
}

func TestLogoutIfLoggedIn_NoControl(t *testing.T) {
	h := newHarness(t)
	h.anchor(h.cfg.Anchors.HomeText)

	did, err := h.auth.LogoutIfLoggedIn()
	assert.False(t, did)
	require.ErrorIs(t, err, core.ErrNoMatchingElement)
	assert.Contains(t, err.Error(), "by-identifier:logout-button")
}

func TestRegisterToLogin_MissingLink(t *testing.T) {
	h := newHarness(t)

	err := h.auth.RegisterToLogin()
	assert.ErrorIs(t, err, core.ErrElementNotFound)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	a := h.cfg.Anchors
	email := h.proto.Add(&fake.Element{Type: selector.RoleTextField}, selector.ByIdentifier("email-input"))
	password := h.proto.Add(&fake.Element{Type: selector.RoleSecureTextField}, selector.ByIdentifier("password-input"))
	signIn := h.proto.Add(&fake.Element{
		Type:  selector.RoleButton,
		Label: a.SignInButton,
		OnClick: func(p *fake.Protocol) {
			p.Add(&fake.Element{Label: a.HomeText}, selector.ByText(a.HomeText))
		},
	}, selector.ByText(a.SignInButton))

	require.NoError(t, h.auth.Login("jane@lime.cash", "hunter22"))

	assert.Equal(t, "jane@lime.cash", h.proto.Value(email))
	assert.Equal(t, "hunter22", h.proto.Value(password))
	assert.Equal(t, 1, h.proto.Clicks(signIn))
	assert.Equal(t, core.StateAuthenticatedHome, h.auth.ProbeScreenState())
}

func TestLogin_NoHome(t *testing.T) {
	h := newHarness(t)
	h.proto.Add(&fake.Element{Type: selector.RoleTextField}, selector.ByIdentifier("email-input"))
	h.proto.Add(&fake.Element{Type: selector.RoleSecureTextField}, selector.ByIdentifier("password-input"))
	h.proto.Add(&fake.Element{Type: selector.RoleButton}, selector.ByPosition(selector.RoleButton, 1))

	err := h.auth.Login("jane@lime.cash", "wrong")
	assert.ErrorIs(t, err, core.ErrElementNotFound)
}

func TestSignInCascade(t *testing.T) {
	h := newHarness(t)
	btn := h.proto.Add(&fake.Element{Type: selector.RoleButton, Label: "Sign In"}, selector.ByText("Sign In"))

	res, err := resolver.ResolveByCascade("sign in", h.auth.SignInStrategies(), 0)
	require.NoError(t, err)
	assert.Equal(t, btn.ID(), res.Element.ID)
	assert.Equal(t, "by-text:Sign In", res.Strategy)
	require.Len(t, res.Failed(), 1)
	assert.Equal(t, "by-identifier:signin-button", res.Failed()[0].Strategy)
}
