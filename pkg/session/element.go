package session

import (
	"github.com/limecash/lime-e2e/pkg/core"
)

// Element is a remote element reference. It is only valid until the screen
// changes; every method may fail independently.
type Element struct {
	ID      string
	Locator core.Locator // how it was found
	m       *Manager
}

// Click clicks the element.
func (e *Element) Click() error {
	return e.m.call("click", func(p Protocol) error { return p.ClickElement(e.ID) })
}

// Clear clears a text-entry element.
func (e *Element) Clear() error {
	return e.m.call("clear", func(p Protocol) error { return p.ClearElement(e.ID) })
}

// SetValue replaces the element's content with text.
func (e *Element) SetValue(text string) error {
	return e.m.call("set value", func(p Protocol) error {
		if err := p.ClearElement(e.ID); err != nil {
			return err
		}
		return p.SetElementValue(e.ID, text)
	})
}

// Text returns the element's visible text.
func (e *Element) Text() (string, error) {
	var s string
	err := e.m.call("text", func(p Protocol) error {
		var err error
		s, err = p.GetElementText(e.ID)
		return err
	})
	return s, err
}

// Attribute returns a named attribute (name, label, value, placeholderValue, ...).
func (e *Element) Attribute(name string) (string, error) {
	var s string
	err := e.m.call("attribute", func(p Protocol) error {
		var err error
		s, err = p.GetElementAttribute(e.ID, name)
		return err
	})
	return s, err
}

// TagName returns the element type.
func (e *Element) TagName() (string, error) {
	var s string
	err := e.m.call("tag name", func(p Protocol) error {
		var err error
		s, err = p.GetElementTagName(e.ID)
		return err
	})
	return s, err
}

// IsDisplayed reports visibility.
func (e *Element) IsDisplayed() (bool, error) {
	var b bool
	err := e.m.call("displayed", func(p Protocol) error {
		var err error
		b, err = p.IsElementDisplayed(e.ID)
		return err
	})
	return b, err
}

// IsEnabled reports whether the element accepts input.
func (e *Element) IsEnabled() (bool, error) {
	var b bool
	err := e.m.call("enabled", func(p Protocol) error {
		var err error
		b, err = p.IsElementEnabled(e.ID)
		return err
	})
	return b, err
}

// IsClickable reports displayed && enabled.
func (e *Element) IsClickable() (bool, error) {
	attrs, err := e.Attributes()
	if err != nil {
		return false, err
	}
	return attrs.Clickable, nil
}

// Rect returns the element bounds.
func (e *Element) Rect() (core.Bounds, error) {
	var b core.Bounds
	err := e.m.call("rect", func(p Protocol) error {
		x, y, w, h, err := p.GetElementRect(e.ID)
		b = core.Bounds{X: x, Y: y, Width: w, Height: h}
		return err
	})
	return b, err
}

// Attributes reads the element into the record predicates match against.
// Visibility and enablement errors fail the read; text attributes are best effort.
func (e *Element) Attributes() (core.ElementAttributes, error) {
	var a core.ElementAttributes
	err := e.m.call("attributes", func(p Protocol) error {
		var err error
		if a.Displayed, err = p.IsElementDisplayed(e.ID); err != nil {
			return err
		}
		if a.Enabled, err = p.IsElementEnabled(e.ID); err != nil {
			return err
		}
		a.Role, _ = p.GetElementTagName(e.ID)
		a.Name, _ = p.GetElementAttribute(e.ID, "name")
		a.Label, _ = p.GetElementAttribute(e.ID, "label")
		a.Value, _ = p.GetElementAttribute(e.ID, "value")
		a.Text, _ = p.GetElementText(e.ID)
		a.Clickable = a.Displayed && a.Enabled
		return nil
	})
	return a, err
}
