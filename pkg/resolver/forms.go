package resolver

import (
	"strings"
	"time"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
	"github.com/limecash/lime-e2e/pkg/selector"
	"github.com/limecash/lime-e2e/pkg/session"
)

// fieldStrategies builds the email/password cascade: test identifier,
// placeholder, a scan for an empty or hint-labelled field, then the first
// field of the role.
//
// The last step assumes one field of the role per screen. Screens with
// several such fields may resolve the wrong one.
func (r *Resolver) fieldStrategies(testID, hint, role string) []Strategy {
	return []Strategy{
		r.FromLocator(selector.ByIdentifier(testID)),
		r.FromLocator(selector.ByPlaceholder(role, hint)),
		r.Scan("by-scan:"+selector.Short(role)+"~"+strings.ToLower(hint), selector.ByRole(role), func(a core.ElementAttributes) bool {
			switch a.Text {
			case hint, strings.ToLower(hint), "":
				return true
			}
			return false
		}),
		r.FromLocator(selector.ByPosition(role, 1)),
	}
}

// FindEmailField resolves the email text field.
func (r *Resolver) FindEmailField(timeout time.Duration) (*Resolution, error) {
	return ResolveByCascade("email field", r.fieldStrategies("email-input", "Email", selector.RoleTextField), timeout)
}

// FindPasswordField resolves the password secure field.
func (r *Resolver) FindPasswordField(timeout time.Duration) (*Resolution, error) {
	return ResolveByCascade("password field", r.fieldStrategies("password-input", "Password", selector.RoleSecureTextField), timeout)
}

// WaitForTextInput resolves a text or secure field by name, placeholder or label.
func (r *Resolver) WaitForTextInput(identifier string, timeout time.Duration) (*Resolution, error) {
	var locs []core.Locator
	for _, attr := range []string{"name", "placeholderValue", "label"} {
		locs = append(locs,
			selector.ByAttribute(selector.RoleTextField, attr, identifier),
			selector.ByAttribute(selector.RoleSecureTextField, attr, identifier),
		)
	}
	locs = append(locs,
		selector.ByNameContains(selector.RoleTextField, identifier),
		selector.ByNameContains(selector.RoleSecureTextField, identifier),
	)
	return ResolveByCascade("text input "+identifier, r.FromLocators(locs...), timeout)
}

// FindInputByPlaceholder resolves a field by exact, then partial, placeholder.
func (r *Resolver) FindInputByPlaceholder(placeholder string, timeout time.Duration) (*Resolution, error) {
	return ResolveByCascade("placeholder "+placeholder, r.FromLocators(
		selector.ByAttribute(selector.RoleTextField, "placeholderValue", placeholder),
		selector.ByAttribute(selector.RoleSecureTextField, "placeholderValue", placeholder),
		selector.ByPlaceholder(selector.RoleTextField, placeholder),
		selector.ByPlaceholder(selector.RoleSecureTextField, placeholder),
	), timeout)
}

// FindMoneyInputField resolves the amount field on the send/withdraw/load screens.
func (r *Resolver) FindMoneyInputField(timeout time.Duration) (*Resolution, error) {
	return ResolveByCascade("money input", r.FromLocators(
		selector.ByIdentifier("amount-input"),
		core.Locator{
			Using: core.UsingXPath,
			Value: `//XCUIElementTypeTextField[preceding-sibling::*[contains(@name,"$")] or following-sibling::*[contains(@name,"$")]]`,
			Label: "by-sibling:$",
		},
		selector.ByAttribute(selector.RoleTextField, "placeholderValue", "0"),
		core.Locator{
			Using: core.UsingXPath,
			Value: `//XCUIElementTypeTextField[contains(@name,"money") or contains(@name,"amount")]`,
			Label: "by-contains:textfield~money|amount",
		},
		selector.ByPosition(selector.RoleTextField, 1),
	), timeout)
}

// FillElement focuses el, replaces its content with text, lets the UI settle
// and optionally dismisses the keyboard.
func (r *Resolver) FillElement(el *session.Element, text string, dismiss bool) error {
	if err := el.Click(); err != nil {
		return err
	}
	if err := el.SetValue(text); err != nil {
		return err
	}
	if r.opts.FillSettle > 0 {
		time.Sleep(r.opts.FillSettle)
	}
	if dismiss {
		r.g.DismissKeyboard()
	}
	return nil
}

// FillField waits for loc and fills it.
func (r *Resolver) FillField(loc core.Locator, text string, dismiss bool) error {
	el, err := r.s.WaitForElement(loc, r.opts.AttemptTimeout)
	if err != nil {
		return err
	}
	return r.FillElement(el, text, dismiss)
}

// FillEmailField resolves the email field, fills it and dismisses the keyboard.
func (r *Resolver) FillEmailField(email string) error {
	res, err := r.FindEmailField(r.opts.AttemptTimeout)
	if err != nil {
		return err
	}
	logger.Debug("email field resolved via %s", res.Strategy)
	return r.FillElement(res.Element, email, true)
}

// FillPasswordField resolves the password field, fills it and dismisses the keyboard.
func (r *Resolver) FillPasswordField(password string) error {
	res, err := r.FindPasswordField(r.opts.AttemptTimeout)
	if err != nil {
		return err
	}
	logger.Debug("password field resolved via %s", res.Strategy)
	return r.FillElement(res.Element, password, true)
}
