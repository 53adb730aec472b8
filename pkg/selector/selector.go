// Package selector builds the locators the resolver tries. Every locator
// carries a short label ("by-identifier:signin-button") used in logs and in
// the attempted-selector list of a failed cascade.
package selector

import (
	"fmt"
	"strings"

	"github.com/limecash/lime-e2e/pkg/core"
)

// XCUITest element types.
const (
	RoleAny             = "*"
	RoleButton          = "XCUIElementTypeButton"
	RoleOther           = "XCUIElementTypeOther"
	RoleStaticText      = "XCUIElementTypeStaticText"
	RoleTextField       = "XCUIElementTypeTextField"
	RoleSecureTextField = "XCUIElementTypeSecureTextField"
	RoleKeyboard        = "XCUIElementTypeKeyboard"
	RoleNavigationBar   = "XCUIElementTypeNavigationBar"
	RoleTabBar          = "XCUIElementTypeTabBar"
	RoleImage           = "XCUIElementTypeImage"
)

// Quote returns s as an XPath string literal.
func Quote(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(quoted, `, '"', `) + ")"
}

// Short returns the role without the XCUIElementType prefix, lowercased.
func Short(role string) string {
	if role == RoleAny {
		return "any"
	}
	return strings.ToLower(strings.TrimPrefix(role, "XCUIElementType"))
}

func xpath(label, format string, args ...interface{}) core.Locator {
	return core.Locator{Using: core.UsingXPath, Value: fmt.Sprintf(format, args...), Label: label}
}

// ByIdentifier locates by accessibility identifier (React Native testID).
func ByIdentifier(id string) core.Locator {
	return core.Locator{Using: core.UsingAccessibilityID, Value: id, Label: "by-identifier:" + id}
}

// ByAttribute matches role[@attr=value].
func ByAttribute(role, attr, value string) core.Locator {
	return xpath(fmt.Sprintf("by-%s:%s", attr, value), "//%s[@%s=%s]", role, attr, Quote(value))
}

// ByRoleName matches role[@name=name].
func ByRoleName(role, name string) core.Locator {
	return xpath(fmt.Sprintf("by-%s:%s", Short(role), name), "//%s[@name=%s]", role, Quote(name))
}

// ByText matches any element whose name, label or text equals text.
func ByText(text string) core.Locator {
	q := Quote(text)
	return xpath("by-text:"+text, "//*[@name=%s or @label=%s or @text=%s]", q, q, q)
}

// ByNameContains matches role elements whose name contains s.
func ByNameContains(role, s string) core.Locator {
	return xpath(fmt.Sprintf("by-contains:%s~%s", Short(role), s), "//%s[contains(@name, %s)]", role, Quote(s))
}

// ByRoleContainingDescendant matches role elements that contain a descendant
// of descRole named name.
func ByRoleContainingDescendant(role, descRole, name string) core.Locator {
	return xpath(fmt.Sprintf("by-ancestor:%s>%s:%s", Short(role), Short(descRole), name),
		"//%s[.//%s[@name=%s]]", role, descRole, Quote(name))
}

// ByRoleContainingAll matches role elements whose name contains every part.
func ByRoleContainingAll(role string, parts ...string) core.Locator {
	conds := make([]string, len(parts))
	for i, p := range parts {
		conds[i] = "contains(@name, " + Quote(p) + ")"
	}
	return xpath(fmt.Sprintf("by-contains:%s~%s", Short(role), strings.Join(parts, "+")),
		"//%s[%s]", role, strings.Join(conds, " and "))
}

// ByRole matches every element of the role.
func ByRole(role string) core.Locator {
	return xpath("by-role:"+Short(role), "//%s", role)
}

// ByPosition matches the n-th (1-based) element of the role.
func ByPosition(role string, n int) core.Locator {
	label := fmt.Sprintf("by-position:%s-%d", Short(role), n)
	if n == 1 {
		label = "by-position:first-" + Short(role)
	}
	return xpath(label, "(//%s)[%d]", role, n)
}

// ByPlaceholder matches text-entry elements whose placeholder contains text, case-insensitively.
func ByPlaceholder(role, text string) core.Locator {
	escaped := strings.ReplaceAll(text, "'", `\'`)
	return core.Locator{
		Using: core.UsingIOSPredicate,
		Value: fmt.Sprintf("type == '%s' AND placeholderValue CONTAINS[c] '%s'", role, escaped),
		Label: fmt.Sprintf("by-placeholder:%s~%s", Short(role), text),
	}
}

// Named matches every element with a name attribute.
func Named() core.Locator {
	return xpath("by-named", "//*[@name]")
}

// Accessible matches every element flagged accessible.
func Accessible() core.Locator {
	return xpath("by-accessible", `//*[@accessible="true"]`)
}
