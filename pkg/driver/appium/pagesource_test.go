package appium

import (
	"testing"
)

const homeSource = `<?xml version="1.0" encoding="UTF-8"?>
<AppiumAUT>
  <XCUIElementTypeApplication type="XCUIElementTypeApplication" name="Expo Go" label="Expo Go" enabled="true" visible="true" accessible="false" x="0" y="0" width="402" height="874">
    <XCUIElementTypeStaticText type="XCUIElementTypeStaticText" name="Lime Cash" label="Lime Cash" enabled="true" visible="true" accessible="true" x="20" y="60" width="120" height="30"/>
    <XCUIElementTypeOther type="XCUIElementTypeOther" name="rectangle.portrait.and.arrow.forward Logout" label="rectangle.portrait.and.arrow.forward Logout" enabled="true" visible="true" accessible="true" x="300" y="60" width="90" height="40">
      <XCUIElementTypeButton type="XCUIElementTypeButton" name="Logout" label="Logout" enabled="true" visible="true" accessible="true" x="300" y="60" width="90" height="40"/>
    </XCUIElementTypeOther>
    <XCUIElementTypeTextField type="XCUIElementTypeTextField" name="amount-input" value="12.50" enabled="false" visible="false" accessible="true" x="20" y="300" width="360" height="44"/>
  </XCUIElementTypeApplication>
</AppiumAUT>`

func TestParsePageSource(t *testing.T) {
	elements, err := ParsePageSource(homeSource)
	if err != nil {
		t.Fatalf("ParsePageSource failed: %v", err)
	}

	if len(elements) != 5 {
		t.Fatalf("Expected 5 elements (AppiumAUT skipped), got %d", len(elements))
	}

	app := elements[0]
	if app.Type != "XCUIElementTypeApplication" || app.Depth != 0 || app.Parent != nil {
		t.Errorf("Unexpected root: %+v", app)
	}
	if len(app.Children) != 3 {
		t.Errorf("Expected 3 children under application, got %d", len(app.Children))
	}

	button := elements[3]
	if button.Type != "XCUIElementTypeButton" || button.Name != "Logout" {
		t.Errorf("Expected Logout button at index 3, got %+v", button)
	}
	if button.Depth != 2 {
		t.Errorf("Expected depth 2, got %d", button.Depth)
	}
	if button.Parent == nil || button.Parent.Type != "XCUIElementTypeOther" {
		t.Error("Button parent should be the Other container")
	}
	if button.Bounds.X != 300 || button.Bounds.Width != 90 {
		t.Errorf("Unexpected bounds %+v", button.Bounds)
	}

	field := elements[4]
	if field.Enabled || field.Visible {
		t.Error("Field should be disabled and hidden")
	}
	if field.Text() != "12.50" {
		t.Errorf("Expected text from value, got %q", field.Text())
	}
}

func TestParsePageSource_NoWrapper(t *testing.T) {
	elements, err := ParsePageSource(`<XCUIElementTypeButton name="ok" visible="true"/>`)
	if err != nil {
		t.Fatalf("ParsePageSource failed: %v", err)
	}
	if len(elements) != 1 {
		t.Fatalf("Expected 1 element, got %d", len(elements))
	}
	// type attribute missing: tag is used
	if elements[0].Type != "XCUIElementTypeButton" {
		t.Errorf("Expected type from tag, got %q", elements[0].Type)
	}
	if !elements[0].Enabled {
		t.Error("enabled defaults to true")
	}
}

func TestParsePageSource_Invalid(t *testing.T) {
	if _, err := ParsePageSource("<AppiumAUT name=></AppiumAUT>"); err == nil {
		t.Error("Expected error for malformed XML")
	}
	if _, err := ParsePageSource(""); err == nil {
		t.Error("Expected error for empty document")
	}
}

func TestFilterAccessible(t *testing.T) {
	elements, err := ParsePageSource(homeSource)
	if err != nil {
		t.Fatalf("ParsePageSource failed: %v", err)
	}

	all := FilterAccessible(elements, 0)
	if len(all) != 4 {
		t.Errorf("Expected 4 accessible elements, got %d", len(all))
	}

	limited := FilterAccessible(elements, 2)
	if len(limited) != 2 {
		t.Fatalf("Expected 2 elements with limit, got %d", len(limited))
	}
	if limited[0].Name != "Lime Cash" {
		t.Errorf("Expected document order, got %q first", limited[0].Name)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		elem ParsedElement
		want string
	}{
		{ParsedElement{Name: "n", Label: "l", Value: "v"}, "l"},
		{ParsedElement{Name: "n", Value: "v"}, "v"},
		{ParsedElement{Name: "n"}, "n"},
		{ParsedElement{}, ""},
	}
	for _, tt := range tests {
		if got := tt.elem.Text(); got != tt.want {
			t.Errorf("Text() = %q, want %q", got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	e := &ParsedElement{Type: "XCUIElementTypeStaticText", Label: "Welcome back"}
	want := `XCUIElementTypeStaticText: "Welcome back"`
	if got := Describe(e); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
