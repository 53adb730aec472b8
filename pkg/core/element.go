package core

import "strings"

// Locator strategies understood by the Appium server (W3C + Appium extensions).
const (
	UsingXPath           = "xpath"
	UsingAccessibilityID = "accessibility id"
	UsingIOSPredicate    = "-ios predicate string"
)

// Locator describes one way of locating a UI element in the remote tree.
type Locator struct {
	Using string // Wire strategy, e.g. "xpath"
	Value string // Strategy-specific query
	Label string // Human-readable name used in logs and errors
}

// String returns the label if set, otherwise "using:value".
func (l Locator) String() string {
	if l.Label != "" {
		return l.Label
	}
	return l.Using + ":" + l.Value
}

// IsZero returns true if the locator has no query.
func (l Locator) IsZero() bool {
	return l.Using == "" || l.Value == ""
}

// ElementAttributes is the attribute record every element predicate matches against.
// Attribute presence varies by control type; absent attributes are left empty.
type ElementAttributes struct {
	Name      string `json:"name,omitempty"`  // accessibility identifier / name
	Label     string `json:"label,omitempty"` // accessibility label
	Value     string `json:"value,omitempty"` // current value (text fields)
	Text      string `json:"text,omitempty"`  // rendered text
	Role      string `json:"role,omitempty"`  // element type, e.g. XCUIElementTypeButton
	Displayed bool   `json:"displayed"`
	Enabled   bool   `json:"enabled"`
	Clickable bool   `json:"clickable"`
}

// NameOrLabelContains reports whether name or label contains s (case-sensitive).
func (a ElementAttributes) NameOrLabelContains(s string) bool {
	return strings.Contains(a.Name, s) || strings.Contains(a.Label, s)
}

// NameOrLabelEquals reports whether name or label equals s exactly.
func (a ElementAttributes) NameOrLabelEquals(s string) bool {
	return a.Name == s || a.Label == s
}

// DisplayName returns the most descriptive non-empty text of the element.
func (a ElementAttributes) DisplayName() string {
	for _, s := range []string{a.Label, a.Name, a.Text, a.Value} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Interactive returns true if the element is visible and can receive taps.
func (a ElementAttributes) Interactive() bool {
	return a.Displayed && a.Clickable
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}
