package simulator

import "time"

// Device is a simulator as reported by simctl list.
type Device struct {
	Name        string // e.g., "iPhone 16 Pro"
	UDID        string
	Runtime     string // e.g., "com.apple.CoreSimulator.SimRuntime.iOS-18-4"
	OSVersion   string // e.g., "18.4" (extracted from Runtime)
	State       string // "Shutdown", "Booted", ...
	IsAvailable bool
}

// Booted reports whether the simulator is running.
func (d Device) Booted() bool {
	return d.State == stateBooted
}

// Instance tracks a simulator booted by lime-e2e.
type Instance struct {
	UDID         string
	Name         string
	BootStart    time.Time
	BootDuration time.Duration
}
