package core

import "testing"

func TestLocator_String(t *testing.T) {
	labeled := Locator{Using: UsingXPath, Value: `//XCUIElementTypeButton[@name="Done"]`, Label: "by-role:Done"}
	if got := labeled.String(); got != "by-role:Done" {
		t.Errorf("String() = %q, want label", got)
	}

	bare := Locator{Using: UsingAccessibilityID, Value: "signin-button"}
	if got := bare.String(); got != "accessibility id:signin-button" {
		t.Errorf("String() = %q", got)
	}
}

func TestLocator_IsZero(t *testing.T) {
	if !(Locator{}).IsZero() {
		t.Error("empty locator should be zero")
	}
	if (Locator{Using: UsingXPath, Value: "//*"}).IsZero() {
		t.Error("populated locator should not be zero")
	}
}

func TestElementAttributes_Matching(t *testing.T) {
	attrs := ElementAttributes{
		Name:      "rectangle.portrait.and.arrow.forward Logout",
		Label:     "Logout",
		Role:      "XCUIElementTypeOther",
		Displayed: true,
		Clickable: true,
	}

	if !attrs.NameOrLabelContains("Logout") {
		t.Error("NameOrLabelContains(Logout) = false")
	}
	if !attrs.NameOrLabelEquals("Logout") {
		t.Error("NameOrLabelEquals(Logout) should match label")
	}
	if attrs.NameOrLabelEquals("logout") {
		t.Error("NameOrLabelEquals should be case-sensitive")
	}
	if !attrs.Interactive() {
		t.Error("Interactive() = false, want true")
	}
	if got := attrs.DisplayName(); got != "Logout" {
		t.Errorf("DisplayName() = %q, want Logout", got)
	}
}

func TestElementAttributes_DisplayNameFallsBack(t *testing.T) {
	attrs := ElementAttributes{Label: "  ", Value: "100"}
	if got := attrs.DisplayName(); got != "100" {
		t.Errorf("DisplayName() = %q, want 100", got)
	}
	if (ElementAttributes{}).DisplayName() != "" {
		t.Error("DisplayName() of empty record should be empty")
	}
}

func TestBounds_CenterAndContains(t *testing.T) {
	b := Bounds{X: 100, Y: 200, Width: 200, Height: 50}
	x, y := b.Center()
	if x != 200 || y != 225 {
		t.Errorf("Center() = (%d, %d), want (200, 225)", x, y)
	}
	if !b.Contains(100, 200) {
		t.Error("Contains(origin) = false")
	}
	if b.Contains(300, 250) {
		t.Error("Contains(exclusive corner) = true")
	}
}
