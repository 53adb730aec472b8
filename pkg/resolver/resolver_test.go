package resolver

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/driver/fake"
	"github.com/limecash/lime-e2e/pkg/gesture"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
)

func setup(t *testing.T) (*Resolver, *fake.Protocol) {
	t.Helper()
	proto := fake.New()
	s := session.New(proto, session.Options{Poll: time.Millisecond})
	_, err := s.Connect()
	require.NoError(t, err)
	return New(s, gesture.NewTouch(s, gesture.Options{}), Options{}), proto
}

func stub(name string, calls *[]string, el *session.Element, err error) Strategy {
	return Strategy{
		Name: name,
		Locate: func(time.Duration) (*session.Element, error) {
			*calls = append(*calls, name)
			return el, err
		},
	}
}

func TestResolveByCascade_Precedence(t *testing.T) {
	var calls []string
	winner := &session.Element{ID: "el-2"}

	res, err := ResolveByCascade("target", []Strategy{
		stub("first", &calls, nil, errors.New("not found")),
		stub("second", &calls, winner, nil),
		stub("third", &calls, &session.Element{ID: "el-3"}, nil),
	}, 0)
	require.NoError(t, err)

	assert.Same(t, winner, res.Element)
	assert.Equal(t, "second", res.Strategy)
	assert.Equal(t, []string{"first", "second"}, calls, "strategies after the winner must not run")
}

func TestResolveByCascade_Exhausted(t *testing.T) {
	var calls []string

	res, err := ResolveByCascade("button Send", []Strategy{
		stub("a", &calls, nil, errors.New("x")),
		stub("b", &calls, nil, nil),
		stub("c", &calls, nil, errors.New("y")),
	}, 0)
	assert.Nil(t, res)
	require.ErrorIs(t, err, core.ErrNoMatchingElement)
	assert.Contains(t, err.Error(), `"button Send"`)
	assert.Contains(t, err.Error(), "[a, b, c]")

	var execErr *core.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, []string{"a", "b", "c"}, execErr.Details["attempted"])
}

func TestResolveByCascade_NotConnectedAborts(t *testing.T) {
	var calls []string

	_, err := ResolveByCascade("x", []Strategy{
		stub("a", &calls, nil, core.ErrNotConnected),
		stub("b", &calls, &session.Element{}, nil),
	}, 0)
	assert.ErrorIs(t, err, core.ErrNotConnected)
	assert.Equal(t, []string{"a"}, calls)
}

func TestResolveByCascade_SignInScenario(t *testing.T) {
	r, proto := setup(t)
	byText := selector.ByText("Sign In")
	btn := proto.Add(&fake.Element{Type: selector.RoleButton, Label: "Sign In"}, byText)

	res, err := ResolveByCascade("sign in", r.FromLocators(
		selector.ByIdentifier("signin-button"),
		byText,
		selector.ByPosition(selector.RoleButton, 1),
	), 0)
	require.NoError(t, err)

	assert.Equal(t, btn.ID(), res.Element.ID)
	assert.Equal(t, "by-text:Sign In", res.Strategy)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "by-identifier:signin-button", res.Attempts[0].Strategy)
	assert.Error(t, res.Attempts[0].Err)
	assert.Equal(t, "by-text:Sign In", res.Attempts[1].Strategy)
	assert.NoError(t, res.Attempts[1].Err)
	assert.Len(t, res.Failed(), 1)
}

func TestFindButton_ContainsMatchOnIconLabel(t *testing.T) {
	r, proto := setup(t)
	container := proto.Add(&fake.Element{
		Type: selector.RoleOther,
		Name: "rectangle.portrait.and.arrow.forward Logout",
	}, selector.ByNameContains(selector.RoleAny, "Logout"))

	res, err := r.FindButton("Logout", 0)
	require.NoError(t, err)
	assert.Equal(t, "by-contains:any~Logout", res.Strategy)
	assert.Len(t, res.Failed(), 3)

	require.NoError(t, r.ClickButton("Logout"))
	assert.Equal(t, 1, proto.Clicks(container))
	assert.Equal(t, 1, proto.TotalClicks())
}

func TestFindButton_PrefersControlRole(t *testing.T) {
	r, proto := setup(t)
	button := proto.Add(&fake.Element{Type: selector.RoleButton, Name: "Send"}, selector.ByRoleName(selector.RoleButton, "Send"))
	proto.Add(&fake.Element{Type: selector.RoleOther, Name: "Send"}, selector.ByRoleName(selector.RoleOther, "Send"))

	res, err := r.FindButton("Send", 0)
	require.NoError(t, err)
	assert.Equal(t, button.ID(), res.Element.ID)
	assert.Empty(t, res.Failed())
}

func TestFindButton_NotFound(t *testing.T) {
	r, proto := setup(t)
	proto.Add(&fake.Element{Name: "Lime Cash"}, selector.Named())

	_, err := r.FindButton("Withdraw", 0)
	require.ErrorIs(t, err, core.ErrNoMatchingElement)
	assert.Contains(t, err.Error(), "by-button:Withdraw")
	assert.Contains(t, err.Error(), "by-ancestor:button>statictext:Withdraw")
}

func TestFindHomeScreenButton(t *testing.T) {
	t.Run("skips non-clickable", func(t *testing.T) {
		r, proto := setup(t)
		proto.Add(&fake.Element{Name: "send-button", Disabled: true}, selector.ByIdentifier("send-button"))
		icon := proto.Add(&fake.Element{Type: selector.RoleOther, Name: "paperplane.fill Send"},
			selector.ByRoleContainingAll(selector.RoleOther, "paperplane.fill", "Send"))

		res, err := r.FindHomeScreenButton("Send", 0)
		require.NoError(t, err)
		assert.Equal(t, icon.ID(), res.Element.ID)
		assert.Equal(t, "by-contains:other~paperplane.fill+Send", res.Strategy)
	})

	t.Run("broad scan", func(t *testing.T) {
		r, proto := setup(t)
		broad := core.Locator{Using: core.UsingXPath, Value: `//XCUIElementTypeButton | //XCUIElementTypeOther[@accessible="true"]`}
		proto.Add(&fake.Element{Type: selector.RoleButton, Label: "Load", Hidden: true}, broad)
		target := proto.Add(&fake.Element{Type: selector.RoleOther, Label: "Load money"}, broad)

		res, err := r.FindHomeScreenButton("Load", 0)
		require.NoError(t, err)
		assert.Equal(t, target.ID(), res.Element.ID)
		assert.Equal(t, "broad-scan:Load", res.Strategy)
	})
}

func TestFindByTestIdentifier(t *testing.T) {
	r, proto := setup(t)
	el := proto.Add(&fake.Element{Name: "signup-link"}, selector.ByAttribute(selector.RoleAny, "testID", "signup-link"))

	res, err := r.FindByTestIdentifier("signup-link", 0)
	require.NoError(t, err)
	assert.Equal(t, el.ID(), res.Element.ID)
	assert.Equal(t, []string{"by-identifier:signup-link", "by-name:signup-link"},
		[]string{res.Failed()[0].Strategy, res.Failed()[1].Strategy})
}

func TestFindElementByAccessibilityID(t *testing.T) {
	r, proto := setup(t)
	el := proto.Add(&fake.Element{Name: "recipient-email-input"}, selector.ByIdentifier("recipient-email-input"))

	res, err := r.FindElementByAccessibilityID("recipient-email-input", 0)
	require.NoError(t, err)
	assert.Equal(t, el.ID(), res.Element.ID)
	assert.Empty(t, res.Failed())
}

func TestTextHelpers(t *testing.T) {
	r, proto := setup(t)

	shown, err := r.IsTextDisplayed("Welcome back", 0)
	require.NoError(t, err)
	assert.False(t, shown)

	proto.Add(&fake.Element{Label: "Welcome back"}, selector.ByText("Welcome back"))
	shown, err = r.IsTextDisplayed("Welcome back", 0)
	require.NoError(t, err)
	assert.True(t, shown)

	el, err := r.WaitForElementByText("Welcome back", 0)
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestIsElementDisabled(t *testing.T) {
	r, proto := setup(t)
	loc := selector.ByIdentifier("send-money-btn")
	btn := proto.Add(&fake.Element{Name: "send-money-btn", Disabled: true}, loc)

	el, err := r.s.WaitForElement(loc, 0)
	require.NoError(t, err)
	assert.True(t, r.IsElementDisabled(el))

	btn.Disabled = false
	assert.False(t, r.IsElementDisabled(el))

	proto.Remove(btn)
	assert.False(t, r.IsElementDisabled(el), "unknown state counts as enabled")
}

func TestVisibleElementNames(t *testing.T) {
	r, proto := setup(t)
	named := selector.Named()
	proto.Add(&fake.Element{Name: "Lime Cash"}, named)
	proto.Add(&fake.Element{Name: "hidden", Hidden: true}, named)
	proto.Add(&fake.Element{Name: "   "}, named)
	for i := 0; i < 30; i++ {
		proto.Add(&fake.Element{Name: fmt.Sprintf("item-%d", i)}, named)
	}

	names, err := r.VisibleElementNames()
	require.NoError(t, err)
	assert.Len(t, names, 18, "only the first 20 elements are inspected")
	assert.Equal(t, "Lime Cash", names[0])
	assert.NotContains(t, names, "hidden")
}

func TestNavigateBack(t *testing.T) {
	r, proto := setup(t)

	require.NoError(t, r.NavigateBack(0))
	assert.Equal(t, []fake.Point{{X: 50, Y: 100}}, proto.Taps())
}
