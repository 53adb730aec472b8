package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limecash/lime-e2e/pkg/automation"
	"github.com/limecash/lime-e2e/pkg/config"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/driver/fake"
	"github.com/limecash/lime-e2e/pkg/selector"
)

const testYAML = `
timeouts:
  element: 0s
  attempt: 0s
  keyboard: 0s
  connectSettle: 0s
  fillSettle: 0s
  modalRender: 0s
  logoutSettle: 0s
  loginWait: 0s
  poll: 1ms
`

const pageSource = `<?xml version="1.0" encoding="UTF-8"?>
<AppiumAUT>
  <XCUIElementTypeApplication type="XCUIElementTypeApplication" name="Expo Go" label="Expo Go" accessible="true">
    <XCUIElementTypeStaticText type="XCUIElementTypeStaticText" name="Welcome back" label="Welcome back" accessible="true"/>
    <XCUIElementTypeButton type="XCUIElementTypeButton" name="signin-button" label="Sign In" accessible="true"/>
  </XCUIElementTypeApplication>
</AppiumAUT>`

type run struct {
	proto     *fake.Protocol
	out       *bytes.Buffer
	artifacts string
	cfg       *config.Config
}

// setup writes a fast config and routes every command to a fake device.
func setup(t *testing.T) (*run, string) {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	path := filepath.Join(dir, "lime-e2e.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o600))

	r := &run{proto: fake.New(), out: &bytes.Buffer{}, artifacts: filepath.Join(dir, "artifacts")}
	r.proto.PageSource = pageSource

	prev := newClient
	newClient = func(cfg *config.Config) *automation.Client {
		r.cfg = cfg
		return automation.New(cfg, automation.WithProtocol(r.proto))
	}
	t.Cleanup(func() { newClient = prev })
	return r, path
}

func (r *run) exec(args ...string) error {
	app := NewApp()
	app.Writer = r.out
	app.ErrWriter = r.out
	return app.Run(append([]string{"lime-e2e"}, args...))
}

func TestNewApp_Commands(t *testing.T) {
	app := NewApp()

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"state", "hierarchy", "screenshot", "ensure-login", "logout", "login", "devserver"}, names)
	assert.Equal(t, "lime-e2e", app.Name)
}

func TestApplyServerURL(t *testing.T) {
	tests := []struct {
		raw  string
		host string
		port int
		path string
	}{
		{"http://10.0.0.2:4724/wd/hub", "10.0.0.2", 4724, "/wd/hub"},
		{"http://appium.local", "appium.local", 4723, "/"},
		{"http://127.0.0.1:4723/", "127.0.0.1", 4723, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cfg := config.Default()
			require.NoError(t, applyServerURL(cfg, tt.raw))
			assert.Equal(t, tt.host, cfg.Server.Host)
			assert.Equal(t, tt.port, cfg.Server.Port)
			assert.Equal(t, tt.path, cfg.Server.Path)
		})
	}
}

func TestApplyServerURL_Invalid(t *testing.T) {
	for _, raw := range []string{"not a url", "http://host:abc", "http://host:70000"} {
		err := applyServerURL(config.Default(), raw)
		assert.ErrorIs(t, err, core.ErrInvalidConfig, raw)
	}
}

func TestState(t *testing.T) {
	r, path := setup(t)
	r.proto.Add(&fake.Element{Label: "Welcome back"}, selector.ByText("Welcome back"))

	require.NoError(t, r.exec("--config", path, "state"))

	assert.Contains(t, r.out.String(), "Connecting to http://localhost:4723")
	assert.Contains(t, r.out.String(), "Screen: login")
	assert.Equal(t, 1, r.proto.CallCount("Disconnect"))
}

func TestState_GlobalOverrides(t *testing.T) {
	r, path := setup(t)

	require.NoError(t, r.exec("--config", path, "--appium-url", "http://10.0.0.2:4724/wd/hub",
		"--artifacts-dir", r.artifacts, "--verbose", "state"))

	assert.Contains(t, r.out.String(), "Connecting to http://10.0.0.2:4724/wd/hub")
	assert.Contains(t, r.out.String(), "Screen: unknown")
	assert.Equal(t, r.artifacts, r.cfg.Artifacts.Dir)
	assert.Equal(t, "debug", r.cfg.Log.Level)
}

func TestState_ConnectFailure(t *testing.T) {
	r, path := setup(t)
	r.proto.ConnectErr = errors.New("connection refused")

	err := r.exec("--config", path, "state")
	require.Error(t, err)
	assert.NotContains(t, r.out.String(), "Screen:")
}

func TestMissingConfigFile(t *testing.T) {
	r, _ := setup(t)

	err := r.exec("--config", filepath.Join(t.TempDir(), "missing.yaml"), "state")
	require.Error(t, err)
	assert.Zero(t, r.proto.CallCount("Connect"))
}

func TestHierarchy(t *testing.T) {
	r, path := setup(t)

	require.NoError(t, r.exec("--config", path, "--artifacts-dir", r.artifacts, "hierarchy", "--save", "login"))

	assert.Contains(t, r.out.String(), `XCUIElementTypeStaticText: "Welcome back"`)
	assert.Contains(t, r.out.String(), `XCUIElementTypeButton: "Sign In"`)

	saved, err := os.ReadFile(filepath.Join(r.artifacts, "login.xml"))
	require.NoError(t, err)
	assert.Equal(t, pageSource, string(saved))
}

func TestScreenshot(t *testing.T) {
	r, path := setup(t)

	require.NoError(t, r.exec("--config", path, "--artifacts-dir", r.artifacts, "screenshot", "home"))

	data, err := os.ReadFile(filepath.Join(r.artifacts, "home.png"))
	require.NoError(t, err)
	assert.Equal(t, r.proto.PNG, data)
	assert.Contains(t, r.out.String(), "home.png")
}

func TestLogout_NotLoggedIn(t *testing.T) {
	r, path := setup(t)

	require.NoError(t, r.exec("--config", path, "logout"))
	assert.Contains(t, r.out.String(), "Not logged in")
	assert.Zero(t, r.proto.TotalClicks())
}

func TestEnsureLogin_AlreadyThere(t *testing.T) {
	r, path := setup(t)
	r.proto.Add(&fake.Element{Label: "Welcome back"}, selector.ByText("Welcome back"))

	require.NoError(t, r.exec("--config", path, "ensure-login"))
	assert.Contains(t, r.out.String(), "Screen: login")
	assert.Zero(t, r.proto.TotalClicks())
}

func TestLogin_RequiresCredentials(t *testing.T) {
	r, path := setup(t)
	for _, key := range []string{"LIME_E2E_EMAIL", "LIME_E2E_PASSWORD"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	err := r.exec("--config", path, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Required flag")
	assert.Zero(t, r.proto.CallCount("Connect"))
}

func TestLogin_FailureCapturesArtifacts(t *testing.T) {
	r, path := setup(t)

	err := r.exec("--config", path, "--artifacts-dir", r.artifacts,
		"login", "--email", "jane@lime.cash", "--password", "hunter22")
	require.Error(t, err)

	entries, readErr := os.ReadDir(r.artifacts)
	require.NoError(t, readErr)
	assert.Len(t, entries, 2, "screenshot and page source")
	assert.Contains(t, r.out.String(), "Tried [by-identifier:email-input")
	assert.Contains(t, r.out.String(), "Saved")
	assert.Equal(t, 1, r.proto.CallCount("Disconnect"))
}
