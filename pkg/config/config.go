// Package config handles configuration for lime-e2e.
//
// Values are layered: built-in defaults, then lime-e2e.yaml, then a .env file,
// then LIME_E2E_* environment variables. A variable that is not set never
// overrides a value from an earlier layer.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
)

// EnvPrefix is the prefix for environment overrides, e.g. LIME_E2E_SERVER_PORT.
const EnvPrefix = "LIME_E2E"

// File names searched by LoadFromDir, in order.
var fileNames = []string{"lime-e2e.yaml", "lime-e2e.yml"}

// Config represents the automation configuration (lime-e2e.yaml).
type Config struct {
	Server    Server         `yaml:"server"`
	Device    Device         `yaml:"device"`
	Screen    Screen         `yaml:"screen"`
	Timeouts  Timeouts       `yaml:"timeouts"`
	Anchors   Anchors        `yaml:"anchors"`
	Modal     Modal          `yaml:"modal"`
	Artifacts Artifacts      `yaml:"artifacts"`
	Log       logger.Options `yaml:"log"`
	DevServer DevServer      `yaml:"devServer" split_words:"true"`
}

// Server is the Appium endpoint.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Device holds the session capabilities.
type Device struct {
	PlatformName            string        `yaml:"platformName" split_words:"true"`
	AutomationName          string        `yaml:"automationName" split_words:"true"`
	DeviceName              string        `yaml:"deviceName" split_words:"true"`
	PlatformVersion         string        `yaml:"platformVersion" split_words:"true"`
	UDID                    string        `yaml:"udid"`
	BundleID                string        `yaml:"bundleId" split_words:"true"`
	AutoAcceptAlerts        bool          `yaml:"autoAcceptAlerts" split_words:"true"`
	Permissions             string        `yaml:"permissions"`                          // JSON, passed through verbatim
	NewCommandTimeout       int           `yaml:"newCommandTimeout" split_words:"true"` // Seconds
	ConnectHardwareKeyboard bool          `yaml:"connectHardwareKeyboard" split_words:"true"`
	NoReset                 bool          `yaml:"noReset" split_words:"true"`
	FullReset               bool          `yaml:"fullReset" split_words:"true"`
	AutoLaunch              bool          `yaml:"autoLaunch" split_words:"true"`
	WDALaunchTimeout        time.Duration `yaml:"wdaLaunchTimeout" split_words:"true"`
	WDAConnectionTimeout    time.Duration `yaml:"wdaConnectionTimeout" split_words:"true"`
}

// Screen is an optional fixed device profile. Zero means "ask the device".
type Screen struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Timeouts used across the engine.
type Timeouts struct {
	Element       time.Duration `yaml:"element"`                          // Single element wait
	Attempt       time.Duration `yaml:"attempt"`                          // Per-strategy budget in a cascade
	Keyboard      time.Duration `yaml:"keyboard"`                         // Each keyboard-dismiss attempt
	ConnectSettle time.Duration `yaml:"connectSettle" split_words:"true"` // After activate_app
	FillSettle    time.Duration `yaml:"fillSettle" split_words:"true"`    // After setting a field value
	ModalRender   time.Duration `yaml:"modalRender" split_words:"true"`   // Between modal steps
	LogoutSettle  time.Duration `yaml:"logoutSettle" split_words:"true"`  // After clicking logout
	LoginWait     time.Duration `yaml:"loginWait" split_words:"true"`     // Waiting for the login anchor
	Poll          time.Duration `yaml:"poll"`                             // Interval between lookups
	AppReady      time.Duration `yaml:"appReady" split_words:"true"`      // Generic UI probe in suite setup
	Loading       time.Duration `yaml:"loading"`                          // Loading indicator disappearance
}

// Anchors are the labels and identifiers screen-state probing relies on.
type Anchors struct {
	LoginText           string `yaml:"loginText" split_words:"true"`
	HomeText            string `yaml:"homeText" split_words:"true"`
	ModalDescription    string `yaml:"modalDescription" split_words:"true"`
	LogoutLabel         string `yaml:"logoutLabel" split_words:"true"`
	LogoutTestID        string `yaml:"logoutTestId" split_words:"true"`
	ConfirmLogoutTestID string `yaml:"confirmLogoutTestId" split_words:"true"`
	SignInLink          string `yaml:"signInLink" split_words:"true"`
	SignInButton        string `yaml:"signInButton" split_words:"true"`
	SignInTestID        string `yaml:"signInTestId" split_words:"true"`
	LoadingID           string `yaml:"loadingId" split_words:"true"`
}

// Modal configures the coordinate fallback of the confirmation pipeline.
type Modal struct {
	OffsetX int `yaml:"offsetX" split_words:"true"`
	OffsetY int `yaml:"offsetY" split_words:"true"`
}

// Artifacts configures where diagnostics are written.
type Artifacts struct {
	Dir string `yaml:"dir"` // Relative paths resolve against GetHome()
}

// DevServer configures the Expo development server companion process.
type DevServer struct {
	ProjectDir     string        `yaml:"projectDir" split_words:"true"`
	Command        string        `yaml:"command"`
	StartArgs      []string      `yaml:"startArgs" split_words:"true"`
	OpenArgs       []string      `yaml:"openArgs" split_words:"true"`
	ReadyMarkers   []string      `yaml:"readyMarkers" split_words:"true"`
	OpenMarkers    []string      `yaml:"openMarkers" split_words:"true"`
	StartupTimeout time.Duration `yaml:"startupTimeout" split_words:"true"`
	ReadySettle    time.Duration `yaml:"readySettle" split_words:"true"`
	OpenTimeout    time.Duration `yaml:"openTimeout" split_words:"true"`
	OpenSettle     time.Duration `yaml:"openSettle" split_words:"true"`
	StopTimeout    time.Duration `yaml:"stopTimeout" split_words:"true"`
	URL            string        `yaml:"url"` // Deep link opened in Expo Go
}

// Default returns the configuration for Expo Go on an iOS simulator.
func Default() *Config {
	return &Config{
		Server: Server{Host: "localhost", Port: 4723, Path: "/"},
		Device: Device{
			PlatformName:            "iOS",
			AutomationName:          "XCUITest",
			DeviceName:              "iPhone 16 Pro",
			PlatformVersion:         "18.4",
			BundleID:                "host.exp.Exponent",
			AutoAcceptAlerts:        true,
			Permissions:             `{"host.exp.exponent": {"location": "yes"}}`,
			NewCommandTimeout:       300,
			ConnectHardwareKeyboard: false,
			NoReset:                 true,
			FullReset:               false,
			AutoLaunch:              false,
			WDALaunchTimeout:        60 * time.Second,
			WDAConnectionTimeout:    60 * time.Second,
		},
		Timeouts: Timeouts{
			Element:       800 * time.Millisecond,
			Attempt:       5 * time.Second,
			Keyboard:      1 * time.Second,
			ConnectSettle: 800 * time.Millisecond,
			FillSettle:    500 * time.Millisecond,
			ModalRender:   1 * time.Second,
			LogoutSettle:  2 * time.Second,
			LoginWait:     10 * time.Second,
			Poll:          200 * time.Millisecond,
			AppReady:      5 * time.Second,
			Loading:       10 * time.Second,
		},
		Anchors: Anchors{
			LoginText:           "Welcome back",
			HomeText:            "Lime Cash",
			ModalDescription:    "Are you sure you want to logout?",
			LogoutLabel:         "Logout",
			LogoutTestID:        "logout-button",
			ConfirmLogoutTestID: "confirm-logout-button",
			SignInLink:          "Sign in",
			SignInButton:        "Sign In",
			SignInTestID:        "signin-button",
			LoadingID:           "loading",
		},
		Modal:     Modal{OffsetX: 80, OffsetY: 60},
		Artifacts: Artifacts{Dir: "screenshots"},
		Log:       logger.Options{Level: "info", Console: true, Format: "console", MaxSizeMB: 10, MaxBackups: 3},
		DevServer: DevServer{
			ProjectDir:     ".",
			Command:        "npx",
			StartArgs:      []string{"expo", "start", "--clear"},
			OpenArgs:       []string{"expo", "start", "--ios"},
			ReadyMarkers:   []string{"Metro waiting on", "Expo DevTools", "› Press"},
			OpenMarkers:    []string{"Opening on iOS", "Opened on iOS", "simulator"},
			StartupTimeout: 60 * time.Second,
			ReadySettle:    3 * time.Second,
			OpenTimeout:    30 * time.Second,
			OpenSettle:     8 * time.Second,
			StopTimeout:    5 * time.Second,
			URL:            "exp://127.0.0.1:8081",
		},
	}
}

// Load reads a YAML file on top of the defaults. Environment overrides are not applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("parse %s", path)).WithCause(err)
	}

	return cfg, nil
}

// LoadFromDir looks for lime-e2e.yaml or lime-e2e.yml in the directory.
// Without a file the defaults are returned.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range fileNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	return Default(), nil
}

// Resolve builds the effective configuration: the YAML file at path (or the
// one found in dir when path is empty), then .env in dir, then LIME_E2E_*
// variables. The result is validated.
func Resolve(path, dir string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = Load(path)
	} else {
		cfg, err = LoadFromDir(dir)
	}
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv exports variables from a .env file. Variables already present
// in the environment win. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("load %s", path)).WithCause(err)
	}
	return nil
}

// ApplyEnv overlays LIME_E2E_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return core.ErrInvalidConfig.WithMessage("environment override").WithCause(err)
	}
	return nil
}

// ServerURL returns the Appium base URL.
func (c *Config) ServerURL() string {
	path := c.Server.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port),
		Path:   path,
	}
	return strings.TrimSuffix(u.String(), "/")
}

// Capabilities renders the W3C alwaysMatch capabilities.
func (c *Config) Capabilities() map[string]interface{} {
	d := c.Device
	caps := map[string]interface{}{
		"platformName":                   d.PlatformName,
		"appium:automationName":          d.AutomationName,
		"appium:deviceName":              d.DeviceName,
		"appium:autoAcceptAlerts":        d.AutoAcceptAlerts,
		"appium:connectHardwareKeyboard": d.ConnectHardwareKeyboard,
		"appium:noReset":                 d.NoReset,
		"appium:fullReset":               d.FullReset,
		"appium:autoLaunch":              d.AutoLaunch,
	}
	if d.PlatformVersion != "" {
		caps["appium:platformVersion"] = d.PlatformVersion
	}
	if d.UDID != "" {
		caps["appium:udid"] = d.UDID
	}
	if d.BundleID != "" {
		caps["appium:bundleId"] = d.BundleID
	}
	if d.Permissions != "" {
		caps["appium:permissions"] = d.Permissions
	}
	if d.NewCommandTimeout > 0 {
		caps["appium:newCommandTimeout"] = d.NewCommandTimeout
	}
	if d.WDALaunchTimeout > 0 {
		caps["appium:wdaLaunchTimeout"] = d.WDALaunchTimeout.Milliseconds()
	}
	if d.WDAConnectionTimeout > 0 {
		caps["appium:wdaConnectionTimeout"] = d.WDAConnectionTimeout.Milliseconds()
	}
	return caps
}

// Validate checks the fields the engine cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Server.Host == "" {
		missing = append(missing, "server.host")
	}
	if c.Device.PlatformName == "" {
		missing = append(missing, "device.platformName")
	}
	if c.Device.AutomationName == "" {
		missing = append(missing, "device.automationName")
	}
	if c.Anchors.LoginText == "" {
		missing = append(missing, "anchors.loginText")
	}
	if c.Anchors.HomeText == "" {
		missing = append(missing, "anchors.homeText")
	}
	if len(missing) > 0 {
		return core.ErrMissingRequired.
			WithMessage("missing required config: " + strings.Join(missing, ", ")).
			WithDetails(map[string]interface{}{"fields": missing})
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid server.port %d", c.Server.Port))
	}
	if c.Screen.Width < 0 || c.Screen.Height < 0 {
		return core.ErrInvalidConfig.WithMessage("screen dimensions must not be negative")
	}
	if c.Timeouts.Poll <= 0 {
		return core.ErrInvalidConfig.WithMessage("timeouts.poll must be positive")
	}
	return nil
}
