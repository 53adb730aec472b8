package appium

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/limecash/lime-e2e/pkg/core"
)

// ParsedElement is one node of the XCUITest page source.
type ParsedElement struct {
	Type       string // XCUIElementType
	Name       string // accessibility identifier
	Label      string // accessibility label
	Value      string // current value
	Enabled    bool
	Visible    bool
	Accessible bool
	Bounds     core.Bounds
	Depth      int
	Parent     *ParsedElement
	Children   []*ParsedElement
}

// Text returns the best human-readable text of the node.
func (e *ParsedElement) Text() string {
	switch {
	case e.Label != "":
		return e.Label
	case e.Value != "":
		return e.Value
	default:
		return e.Name
	}
}

// ParsePageSource parses page source XML into a flat, document-ordered element list.
// The AppiumAUT wrapper is skipped.
func ParsePageSource(xmlData string) ([]*ParsedElement, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlData); err != nil {
		return nil, fmt.Errorf("parse page source: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parse page source: empty document")
	}

	var elements []*ParsedElement
	var walk func(el *etree.Element, parent *ParsedElement, depth int)
	walk = func(el *etree.Element, parent *ParsedElement, depth int) {
		node := parseNode(el, depth)
		node.Parent = parent
		if parent != nil {
			parent.Children = append(parent.Children, node)
		}
		elements = append(elements, node)
		for _, child := range el.ChildElements() {
			walk(child, node, depth+1)
		}
	}

	if root.Tag == "AppiumAUT" {
		for _, child := range root.ChildElements() {
			walk(child, nil, 0)
		}
	} else {
		walk(root, nil, 0)
	}
	return elements, nil
}

func parseNode(el *etree.Element, depth int) *ParsedElement {
	typ := el.SelectAttrValue("type", "")
	if typ == "" {
		typ = el.Tag
	}
	return &ParsedElement{
		Type:       typ,
		Name:       el.SelectAttrValue("name", ""),
		Label:      el.SelectAttrValue("label", ""),
		Value:      el.SelectAttrValue("value", ""),
		Enabled:    el.SelectAttrValue("enabled", "true") == "true",
		Visible:    el.SelectAttrValue("visible", "true") == "true",
		Accessible: el.SelectAttrValue("accessible", "false") == "true",
		Bounds: core.Bounds{
			X:      atoi(el.SelectAttrValue("x", "0")),
			Y:      atoi(el.SelectAttrValue("y", "0")),
			Width:  atoi(el.SelectAttrValue("width", "0")),
			Height: atoi(el.SelectAttrValue("height", "0")),
		},
		Depth: depth,
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// FilterAccessible returns accessible elements in document order, at most limit (0 = all).
func FilterAccessible(elements []*ParsedElement, limit int) []*ParsedElement {
	var out []*ParsedElement
	for _, e := range elements {
		if !e.Accessible {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Describe formats an element as `Type: "text"`.
func Describe(e *ParsedElement) string {
	return fmt.Sprintf("%s: %q", e.Type, e.Text())
}
