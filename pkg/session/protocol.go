// Package session owns the single remote automation session and serializes
// every call made through it.
package session

// Protocol is the remote automation protocol the manager drives.
// appium.Client implements it against a real server, fake.Protocol in memory.
type Protocol interface {
	Connect(capabilities map[string]interface{}) error
	Disconnect() error
	SessionID() string
	Platform() string

	LaunchApp(appID string) error
	TerminateApp(appID string) error
	OpenURL(url string) error

	FindElement(using, value string) (string, error)
	FindElements(using, value string) ([]string, error)
	ClickElement(elementID string) error
	ClearElement(elementID string) error
	SetElementValue(elementID, text string) error
	GetElementText(elementID string) (string, error)
	GetElementAttribute(elementID, name string) (string, error)
	GetElementTagName(elementID string) (string, error)
	IsElementDisplayed(elementID string) (bool, error)
	IsElementEnabled(elementID string) (bool, error)
	GetElementRect(elementID string) (x, y, w, h int, err error)

	Tap(x, y int) error
	Swipe(startX, startY, endX, endY, durationMs int) error
	HideKeyboard() error
	WindowSize() (int, int, error)
	Screenshot() ([]byte, error)
	Source() (string, error)
}
