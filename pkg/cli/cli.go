// Package cli provides the command-line interface for lime-e2e.
package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/limecash/lime-e2e/pkg/automation"
	"github.com/limecash/lime-e2e/pkg/config"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// newClient builds the automation client for a command. Tests replace it.
var newClient = func(cfg *config.Config) *automation.Client {
	return automation.New(cfg)
}

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to lime-e2e.yaml (default: search the working directory)",
		EnvVars: []string{"LIME_E2E_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL, overrides server.host/port/path",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:  "artifacts-dir",
		Usage: "Directory for screenshots and page sources",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"LIME_E2E_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp assembles the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "lime-e2e",
		Usage:   "Drive the Lime Cash app through Appium",
		Version: Version,
		Description: `lime-e2e connects to an Appium server, inspects the running app and
moves it between the login and home screens.

Examples:
  lime-e2e state
  lime-e2e --appium-url http://127.0.0.1:4723 ensure-login
  lime-e2e hierarchy --save before-login
  lime-e2e devserver --open`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			stateCommand,
			hierarchyCommand,
			screenshotCommand,
			ensureLoginCommand,
			logoutCommand,
			loginCommand,
			devServerCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration and applies the global flag
// overrides, then starts the logger.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Resolve(c.String("config"), ".")
	if err != nil {
		return nil, err
	}

	if raw := c.String("appium-url"); raw != "" {
		if err := applyServerURL(cfg, raw); err != nil {
			return nil, err
		}
	}
	if dir := c.String("artifacts-dir"); dir != "" {
		cfg.Artifacts.Dir = dir
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
		cfg.Log.Console = true
	}

	cfg.Log.File = cfg.LogFile()
	if err := logger.Init(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyServerURL splits an Appium URL into the server section.
func applyServerURL(cfg *config.Config, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid appium url %q", raw)).WithCause(err)
	}

	port := 4723
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid appium port %q", p)).WithCause(err)
		}
	}

	cfg.Server.Host = u.Hostname()
	cfg.Server.Port = port
	cfg.Server.Path = "/" + strings.Trim(u.Path, "/")
	return cfg.Validate()
}
