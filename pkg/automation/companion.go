package automation

import (
	"context"

	"github.com/limecash/lime-e2e/pkg/logger"
)

// StartDevServer starts the Expo dev server and waits until it is ready.
func (c *Client) StartDevServer(ctx context.Context) error {
	return c.dev.Start(ctx)
}

// OpenInSimulator opens the app in the simulator through the Expo CLI.
func (c *Client) OpenInSimulator(ctx context.Context) error {
	return c.dev.Open(ctx)
}

// SetupApp starts the dev server and opens the app, stopping the server on failure.
func (c *Client) SetupApp(ctx context.Context) error {
	return c.dev.Setup(ctx)
}

// StopDevServer stops the dev server if it runs.
func (c *Client) StopDevServer() {
	c.dev.Stop()
}

// StopCompanions stops the dev server and shuts down every simulator this
// client booted. Simulators that were already running are left alone.
func (c *Client) StopCompanions(ctx context.Context) error {
	c.StopDevServer()
	return c.sims.ShutdownAll(ctx)
}

// AttachToDevServer points Expo Go at the dev server URL. The deep link goes
// through the live session when there is one, otherwise through simctl on the
// configured (or booted) simulator.
func (c *Client) AttachToDevServer(ctx context.Context) error {
	url := c.cfg.DevServer.URL
	if c.s.Connected() {
		err := c.s.OpenURL(url)
		if err == nil {
			logger.Info("opened %s through the session", url)
			return nil
		}
		logger.Warn("open %s through the session: %v; falling back to simctl", url, err)
	}

	udid, err := c.sims.EnsureBooted(ctx, c.cfg.Device.UDID, c.cfg.Device.WDALaunchTimeout)
	if err != nil {
		return err
	}
	return c.sims.Simctl().OpenURL(ctx, udid, url)
}
