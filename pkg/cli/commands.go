package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/limecash/lime-e2e/pkg/automation"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
)

var stateCommand = &cli.Command{
	Name:  "state",
	Usage: "Print the current screen state",
	Description: `Connect to Appium and report which screen the app shows:
login, home, modal, unknown or unreachable.

Examples:
  lime-e2e state
  lime-e2e --appium-url http://192.168.1.20:4723 state`,
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *automation.Client) error {
			printSuccess(c.App.Writer, "Screen: %s", stateLabel(client.ProbeScreenState()))
			return nil
		})
	},
}

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the accessible elements on screen",
	Description: `Print the accessible elements of the current screen, one per line.
With --save the full page source is written to the artifacts directory.

Examples:
  lime-e2e hierarchy
  lime-e2e hierarchy --save login-screen`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "save",
			Usage: "Also save the page source under this name",
		},
	},
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *automation.Client) error {
			lines, err := client.DumpAccessibleElements()
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(c.App.Writer, l)
			}
			if name := c.String("save"); name != "" {
				path, err := client.SaveHierarchy(name)
				if err != nil {
					return err
				}
				printSuccess(c.App.Writer, "Saved %s", path)
			}
			return nil
		})
	},
}

var screenshotCommand = &cli.Command{
	Name:      "screenshot",
	Usage:     "Save a screenshot of the device",
	ArgsUsage: "[file]",
	Description: `Capture the screen as PNG. Without a file name a unique one is generated
in the artifacts directory.

Examples:
  lime-e2e screenshot
  lime-e2e screenshot home.png`,
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *automation.Client) error {
			path, err := client.TakeScreenshot(c.Args().First())
			if err != nil {
				return err
			}
			printSuccess(c.App.Writer, "Saved %s", path)
			return nil
		})
	},
}

var ensureLoginCommand = &cli.Command{
	Name:  "ensure-login",
	Usage: "Bring the app to the login screen",
	Description: `Log out if logged in, follow the sign-in link from registration if
needed, and report the resulting screen. Running it on the login screen does nothing.`,
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *automation.Client) error {
			if err := client.EnsureOnLoginScreen(); err != nil {
				return err
			}
			printSuccess(c.App.Writer, "Screen: %s", stateLabel(client.ProbeScreenState()))
			return nil
		})
	},
}

var logoutCommand = &cli.Command{
	Name:  "logout",
	Usage: "Log out if a user is logged in",
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *automation.Client) error {
			did, err := client.LogoutIfLoggedIn()
			if err != nil {
				return err
			}
			if did {
				printSuccess(c.App.Writer, "Logged out")
			} else {
				printWarn(c.App.Writer, "Not logged in")
			}
			return nil
		})
	},
}

var loginCommand = &cli.Command{
	Name:  "login",
	Usage: "Log in with the given credentials",
	Description: `Fill the login form and wait for the home screen.

Examples:
  lime-e2e login --email jane@lime.cash --password hunter22
  LIME_E2E_EMAIL=jane@lime.cash LIME_E2E_PASSWORD=hunter22 lime-e2e login --ensure`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "email",
			Usage:    "Account email",
			EnvVars:  []string{"LIME_E2E_EMAIL"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "password",
			Usage:    "Account password",
			EnvVars:  []string{"LIME_E2E_PASSWORD"},
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "ensure",
			Usage: "Go to the login screen first",
		},
	},
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *automation.Client) error {
			if c.Bool("ensure") {
				if err := client.EnsureOnLoginScreen(); err != nil {
					return err
				}
			}
			if err := client.Login(c.String("email"), c.String("password")); err != nil {
				return err
			}
			printSuccess(c.App.Writer, "Logged in as %s", c.String("email"))
			return nil
		})
	},
}

var devServerCommand = &cli.Command{
	Name:  "devserver",
	Usage: "Run the Expo dev server until interrupted",
	Description: `Start the Expo dev server and open the app in the simulator, then keep
the server running until Ctrl-C.

Examples:
  lime-e2e devserver
  lime-e2e devserver --attach
  lime-e2e devserver --no-open`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-open",
			Usage: "Only start the server",
		},
		&cli.BoolFlag{
			Name:  "attach",
			Usage: "Open the dev server URL with simctl instead of the Expo CLI",
		},
	},
	Action: runDevServer,
}

const simulatorShutdownTimeout = 30 * time.Second

func runDevServer(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := c.App.Writer
	client := newClient(cfg)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), simulatorShutdownTimeout)
		defer cancel()
		if err := client.StopCompanions(stopCtx); err != nil {
			printWarn(w, "Simulator shutdown: %v", err)
		}
	}()

	printStep(w, "Starting dev server in %s", cfg.DevServer.ProjectDir)
	switch {
	case c.Bool("attach"):
		if err := client.StartDevServer(ctx); err != nil {
			return err
		}
		if err := client.AttachToDevServer(ctx); err != nil {
			return err
		}
	case c.Bool("no-open"):
		if err := client.StartDevServer(ctx); err != nil {
			return err
		}
	default:
		if err := client.SetupApp(ctx); err != nil {
			return err
		}
	}
	printSuccess(w, "Dev server ready, press Ctrl-C to stop")

	<-ctx.Done()
	printStep(w, "Stopping dev server")
	return nil
}

// withSession runs fn against a connected client and always disconnects.
// Failures other than a lost session leave a screenshot and page source behind.
func withSession(c *cli.Context, fn func(*automation.Client) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	w := c.App.Writer
	client := newClient(cfg)

	printStep(w, "Connecting to %s", cfg.ServerURL())
	h, err := client.Connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			logger.Warn("disconnect: %v", err)
		}
	}()
	printSuccess(w, "Session %s", h.ID)

	if err := fn(client); err != nil {
		var execErr *core.ExecutionError
		if errors.As(err, &execErr) {
			if tried := execErr.Detail("attempted"); tried != nil {
				printWarn(w, "Tried %v", tried)
			}
		}
		if !errors.Is(err, core.ErrNotConnected) {
			for _, path := range client.CaptureFailure(c.Command.Name) {
				printWarn(w, "Saved %s", path)
			}
		}
		return err
	}
	return nil
}
