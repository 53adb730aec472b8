// Package appium talks to an Appium server over the W3C WebDriver protocol.
package appium

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/limecash/lime-e2e/pkg/logger"
)

// ErrNoSession is returned by session-scoped commands before Connect succeeds.
var ErrNoSession = errors.New("no active session")

// WebDriverError is an error reported by the server in the response body.
type WebDriverError struct {
	Status  int    // HTTP status code
	Code    string // W3C error code, e.g. "no such element"
	Message string
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoSuchElement reports whether err means the element is not (or no longer) in the tree.
func IsNoSuchElement(err error) bool {
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		return false
	}
	return wdErr.Code == "no such element" || wdErr.Code == "stale element reference"
}

// envelope is the body of every W3C response.
type envelope struct {
	Value json.RawMessage `json:"value"`
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// elementRef is an element reference in either the W3C or the legacy JSONWP shape.
type elementRef struct {
	W3C    string `json:"element-6066-11e4-a52e-4f735466cecf"`
	Legacy string `json:"ELEMENT"`
}

func (r elementRef) id() string {
	if r.W3C != "" {
		return r.W3C
	}
	return r.Legacy
}

type rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type sessionReply struct {
	SessionID    string `json:"sessionId"`
	Capabilities struct {
		PlatformName string `json:"platformName"`
	} `json:"capabilities"`
}

type locator struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

// action is one entry of a W3C input source.
type action map[string]interface{}

func pointerMove(x, y int) action {
	return action{"type": "pointerMove", "duration": 0, "x": x, "y": y, "origin": "viewport"}
}

func pointerDown() action { return action{"type": "pointerDown", "button": 0} }
func pointerUp() action   { return action{"type": "pointerUp", "button": 0} }

func pause(ms int) action { return action{"type": "pause", "duration": ms} }

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Session creation boots WDA
		},
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{"alwaysMatch": capabilities},
	}

	var reply sessionReply
	if err := c.do(http.MethodPost, "/session", body, &reply); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if reply.SessionID == "" {
		return fmt.Errorf("create session: no session ID in response")
	}
	c.sessionID = reply.SessionID

	c.platform = strings.ToLower(reply.Capabilities.PlatformName)
	if c.platform == "" {
		p, _ := capabilities["platformName"].(string)
		c.platform = strings.ToLower(p)
	}

	// Lookups carry their own timeouts; server-side waiting only adds latency
	if err := c.do(http.MethodPost, c.sessionPath()+"/timeouts", map[string]int64{"implicit": 0}, nil); err != nil {
		logger.Debug("reset implicit wait: %v", err)
	}
	if c.platform == "ios" {
		settings := map[string]interface{}{"waitForIdleTimeout": 0, "animationCoolOffTimeout": 0}
		if err := c.do(http.MethodPost, c.sessionPath()+"/appium/settings", map[string]interface{}{"settings": settings}, nil); err != nil {
			logger.Debug("apply XCUITest settings: %v", err)
		}
	}

	logger.L().Debug("appium session created", zap.String("session", c.sessionID), zap.String("platform", c.platform))
	return nil
}

// Disconnect closes the session. The local session is dropped even if the delete fails.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	path := c.sessionPath()
	c.sessionID = ""
	return c.send(http.MethodDelete, path, nil, nil)
}

// SessionID returns the current session ID, or "" when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Platform returns the lower-cased platform reported by the server.
func (c *Client) Platform() string {
	return c.platform
}

// WindowSize returns the viewport dimensions.
func (c *Client) WindowSize() (int, int, error) {
	var r rect
	if err := c.do(http.MethodGet, c.sessionPath()+"/window/rect", nil, &r); err != nil {
		return 0, 0, err
	}
	return int(r.Width), int(r.Height), nil
}

// FindElement finds a single element.
func (c *Client) FindElement(using, value string) (string, error) {
	var ref elementRef
	if err := c.do(http.MethodPost, c.sessionPath()+"/element", locator{using, value}, &ref); err != nil {
		return "", err
	}
	if ref.id() == "" {
		return "", &WebDriverError{Code: "no such element", Message: "no element id in response"}
	}
	return ref.id(), nil
}

// FindElements finds multiple elements. No match is an empty slice, not an error.
func (c *Client) FindElements(using, value string) ([]string, error) {
	var refs []elementRef
	if err := c.do(http.MethodPost, c.sessionPath()+"/elements", locator{using, value}, &refs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := ref.id(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ClickElement clicks an element.
func (c *Client) ClickElement(elementID string) error {
	return c.do(http.MethodPost, c.elementPath(elementID)+"/click", nil, nil)
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	return c.do(http.MethodPost, c.elementPath(elementID)+"/clear", nil, nil)
}

// SetElementValue types text into an element. Falls back to key actions on
// the focused element when the element endpoint is rejected.
func (c *Client) SetElementValue(elementID, text string) error {
	err := c.do(http.MethodPost, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text":  text,
		"value": strings.Split(text, ""),
	}, nil)
	if err == nil || errors.Is(err, ErrNoSession) {
		return err
	}
	logger.Debug("element value rejected, sending keys: %v", err)
	return c.SendKeys(text)
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	var s string
	err := c.do(http.MethodGet, c.elementPath(elementID)+"/text", nil, &s)
	return s, err
}

// GetElementAttribute returns an attribute as a string. Booleans render as
// "true"/"false" and a null attribute as "".
func (c *Client) GetElementAttribute(elementID, name string) (string, error) {
	var v interface{}
	if err := c.do(http.MethodGet, c.elementPath(elementID)+"/attribute/"+name, nil, &v); err != nil {
		return "", err
	}
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// GetElementTagName returns the element's type, e.g. XCUIElementTypeButton.
func (c *Client) GetElementTagName(elementID string) (string, error) {
	var s string
	err := c.do(http.MethodGet, c.elementPath(elementID)+"/name", nil, &s)
	return s, err
}

// GetElementRect returns an element's position and size.
func (c *Client) GetElementRect(elementID string) (x, y, w, h int, err error) {
	var r rect
	if err := c.do(http.MethodGet, c.elementPath(elementID)+"/rect", nil, &r); err != nil {
		return 0, 0, 0, 0, err
	}
	return int(r.X), int(r.Y), int(r.Width), int(r.Height), nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	var b bool
	err := c.do(http.MethodGet, c.elementPath(elementID)+"/displayed", nil, &b)
	return b, err
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	var b bool
	err := c.do(http.MethodGet, c.elementPath(elementID)+"/enabled", nil, &b)
	return b, err
}

func (c *Client) touch(actions ...action) error {
	source := map[string]interface{}{
		"type":       "pointer",
		"id":         "finger1",
		"parameters": map[string]string{"pointerType": "touch"},
		"actions":    actions,
	}
	return c.do(http.MethodPost, c.sessionPath()+"/actions",
		map[string]interface{}{"actions": []interface{}{source}}, nil)
}

// Tap performs a tap at viewport coordinates.
func (c *Client) Tap(x, y int) error {
	return c.touch(pointerMove(x, y), pointerDown(), pause(50), pointerUp())
}

// Swipe presses at the start point, holds for durationMs, moves to the end point and releases.
func (c *Client) Swipe(startX, startY, endX, endY, durationMs int) error {
	return c.touch(pointerMove(startX, startY), pointerDown(), pause(durationMs), pointerMove(endX, endY), pointerUp())
}

// SendKeys types text into the focused element with key actions, falling
// back to the Appium active-element endpoint.
func (c *Client) SendKeys(text string) error {
	keys := make([]action, 0, 2*len(text))
	for _, ch := range text {
		keys = append(keys,
			action{"type": "keyDown", "value": string(ch)},
			action{"type": "keyUp", "value": string(ch)},
		)
	}

	source := map[string]interface{}{"type": "key", "id": "keyboard", "actions": keys}
	err := c.do(http.MethodPost, c.sessionPath()+"/actions", map[string]interface{}{"actions": []interface{}{source}}, nil)
	if err != nil && !errors.Is(err, ErrNoSession) {
		err = c.do(http.MethodPost, c.sessionPath()+"/appium/element/active/value", map[string]string{"text": text}, nil)
	}
	return err
}

// HideKeyboard hides the on-screen keyboard.
func (c *Client) HideKeyboard() error {
	return c.do(http.MethodPost, c.sessionPath()+"/appium/device/hide_keyboard", nil, nil)
}

// LaunchApp activates an app.
func (c *Client) LaunchApp(appID string) error {
	return c.do(http.MethodPost, c.sessionPath()+"/appium/device/activate_app", c.appBody(appID), nil)
}

// TerminateApp terminates an app.
func (c *Client) TerminateApp(appID string) error {
	return c.do(http.MethodPost, c.sessionPath()+"/appium/device/terminate_app", c.appBody(appID), nil)
}

func (c *Client) appBody(appID string) map[string]string {
	if c.platform == "android" {
		return map[string]string{"appId": appID}
	}
	return map[string]string{"bundleId": appID}
}

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	var encoded string
	if err := c.do(http.MethodGet, c.sessionPath()+"/screenshot", nil, &encoded); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source() (string, error) {
	var s string
	err := c.do(http.MethodGet, c.sessionPath()+"/source", nil, &s)
	return s, err
}

// OpenURL opens a deep link.
func (c *Client) OpenURL(url string) error {
	return c.do(http.MethodPost, c.sessionPath()+"/url", map[string]string{"url": url}, nil)
}

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

// do runs a session-scoped command; it fails fast without a session.
func (c *Client) do(method, path string, in, out interface{}) error {
	if strings.HasPrefix(path, "/session/") && c.sessionID == "" {
		return ErrNoSession
	}
	return c.send(method, path, in, out)
}

// send performs the request and decodes the value of the envelope into out.
// A value carrying an "error" key becomes a *WebDriverError.
func (c *Client) send(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.serverURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	logger.L().Debug("appium request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	if bytes.HasPrefix(bytes.TrimSpace(env.Value), []byte("{")) {
		var we wireError
		if json.Unmarshal(env.Value, &we) == nil && we.Error != "" {
			return &WebDriverError{Status: resp.StatusCode, Code: we.Error, Message: we.Message}
		}
	}

	if out == nil || len(env.Value) == 0 || string(env.Value) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
