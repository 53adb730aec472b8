// Package simulator controls iOS simulators through xcrun simctl.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/limecash/lime-e2e/pkg/logger"
)

const (
	stateBooted   = "Booted"
	stateShutdown = "Shutdown"
)

// Runner runs xcrun with args and returns its standard output.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func xcrun(ctx context.Context, args ...string) ([]byte, error) {
	if _, err := exec.LookPath("xcrun"); err != nil {
		return nil, fmt.Errorf("xcrun not found; install Xcode Command Line Tools: xcode-select --install")
	}
	out, err := exec.CommandContext(ctx, "xcrun", args...).Output() //#nosec G204 -- fixed binary, args built here
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("xcrun %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("xcrun %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Simctl wraps the simctl subcommands lime-e2e needs.
type Simctl struct {
	run  Runner
	poll time.Duration
}

// New returns a Simctl that shells out to xcrun.
func New() *Simctl {
	return NewWithRunner(xcrun)
}

// NewWithRunner returns a Simctl that runs commands through r.
func NewWithRunner(r Runner) *Simctl {
	return &Simctl{run: r, poll: time.Second}
}

// simctlDevicesOutput is the JSON printed by simctl list devices -j.
type simctlDevicesOutput struct {
	Devices map[string][]simctlDevice `json:"devices"`
}

type simctlDevice struct {
	Name        string `json:"name"`
	UDID        string `json:"udid"`
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
}

// parseDevices decodes simctl JSON into available devices, ordered by runtime then name.
func parseDevices(data []byte) ([]Device, error) {
	var out simctlDevicesOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse simctl output: %w", err)
	}

	var devices []Device
	for runtime, devs := range out.Devices {
		version := extractOSVersion(runtime)
		for _, d := range devs {
			if !d.IsAvailable {
				continue
			}
			devices = append(devices, Device{
				Name:        d.Name,
				UDID:        d.UDID,
				Runtime:     runtime,
				OSVersion:   version,
				State:       d.State,
				IsAvailable: true,
			})
		}
	}
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Runtime != devices[j].Runtime {
			return devices[i].Runtime < devices[j].Runtime
		}
		return devices[i].Name < devices[j].Name
	})
	return devices, nil
}

// List returns every available simulator.
func (s *Simctl) List(ctx context.Context) ([]Device, error) {
	data, err := s.run(ctx, "simctl", "list", "devices", "available", "-j")
	if err != nil {
		return nil, fmt.Errorf("list simulators: %w", err)
	}
	devices, err := parseDevices(data)
	if err != nil {
		return nil, err
	}
	logger.Debug("found %d available simulators", len(devices))
	return devices, nil
}

// Find returns the simulator with the given UDID or name (case-insensitive).
// A booted match is preferred over a shut down one.
func (s *Simctl) Find(ctx context.Context, nameOrUDID string) (*Device, error) {
	devices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var found *Device
	for i, d := range devices {
		if d.UDID != nameOrUDID && !strings.EqualFold(d.Name, nameOrUDID) {
			continue
		}
		if d.Booted() {
			return &devices[i], nil
		}
		if found == nil {
			found = &devices[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("simulator not found: %s", nameOrUDID)
	}
	return found, nil
}

// Booted returns the first booted simulator, or nil if none is running.
func (s *Simctl) Booted(ctx context.Context) (*Device, error) {
	devices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Booted() {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// OpenURL opens url on the simulator. An empty udid targets the booted one.
func (s *Simctl) OpenURL(ctx context.Context, udid, url string) error {
	if udid == "" {
		udid = "booted"
	}
	logger.Info("opening %s on simulator %s", url, udid)
	if _, err := s.run(ctx, "simctl", "openurl", udid, url); err != nil {
		return fmt.Errorf("open url on simulator: %w", err)
	}
	return nil
}

// Boot boots the simulator and waits until simctl reports it booted.
func (s *Simctl) Boot(ctx context.Context, udid string) error {
	logger.Info("booting simulator %s", udid)
	if _, err := s.run(ctx, "simctl", "boot", udid); err != nil {
		if !strings.Contains(err.Error(), "current state: Booted") {
			return fmt.Errorf("boot simulator: %w", err)
		}
		logger.Info("simulator already booted: %s", udid)
		return nil
	}
	return s.waitForState(ctx, udid, stateBooted)
}

// Shutdown shuts the simulator down and waits for it to stop.
func (s *Simctl) Shutdown(ctx context.Context, udid string) error {
	logger.Info("shutting down simulator %s", udid)
	if _, err := s.run(ctx, "simctl", "shutdown", udid); err != nil {
		if strings.Contains(err.Error(), "current state: Shutdown") {
			return nil
		}
		logger.Warn("simctl shutdown failed for %s: %v", udid, err)
	}
	return s.waitForState(ctx, udid, stateShutdown)
}

func (s *Simctl) waitForState(ctx context.Context, udid, state string) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		d, err := s.Find(ctx, udid)
		switch {
		case err != nil:
			logger.Debug("state check for %s: %v", udid, err)
		case d.State == state:
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("simulator %s did not reach %s: %w", udid, state, ctx.Err())
		case <-ticker.C:
		}
	}
}

// extractOSVersion extracts the version from a runtime identifier.
// e.g., "com.apple.CoreSimulator.SimRuntime.iOS-18-4" -> "18.4"
func extractOSVersion(runtime string) string {
	for _, prefix := range []string{"iOS-", "watchOS-", "tvOS-", "xrOS-"} {
		if idx := strings.LastIndex(runtime, prefix); idx != -1 {
			return strings.ReplaceAll(runtime[idx+len(prefix):], "-", ".")
		}
	}
	return ""
}
