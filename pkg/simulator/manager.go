package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/limecash/lime-e2e/pkg/logger"
)

// Manager boots simulators on demand and remembers which ones it started,
// so only those are shut down again.
type Manager struct {
	ctl     *Simctl
	started sync.Map // UDID -> *Instance
}

// NewManager creates a manager over ctl.
func NewManager(ctl *Simctl) *Manager {
	return &Manager{ctl: ctl}
}

// Simctl returns the underlying command wrapper.
func (m *Manager) Simctl() *Simctl {
	return m.ctl
}

// EnsureBooted returns the UDID of a booted simulator matching nameOrUDID,
// booting it if needed. An empty name accepts any booted simulator.
func (m *Manager) EnsureBooted(ctx context.Context, nameOrUDID string, timeout time.Duration) (string, error) {
	if nameOrUDID == "" {
		d, err := m.ctl.Booted(ctx)
		if err != nil {
			return "", err
		}
		if d == nil {
			return "", fmt.Errorf("no booted simulator")
		}
		return d.UDID, nil
	}

	d, err := m.ctl.Find(ctx, nameOrUDID)
	if err != nil {
		return "", err
	}
	if d.Booted() {
		logger.Info("simulator already booted: %s (%s)", d.Name, d.UDID)
		return d.UDID, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := m.ctl.Boot(ctx, d.UDID); err != nil {
		return "", err
	}
	m.started.Store(d.UDID, &Instance{
		UDID:         d.UDID,
		Name:         d.Name,
		BootStart:    start,
		BootDuration: time.Since(start),
	})
	logger.Info("simulator started: %s (%s, boot time: %v)", d.Name, d.UDID, time.Since(start))
	return d.UDID, nil
}

// IsStartedByUs reports whether the manager booted udid.
func (m *Manager) IsStartedByUs(udid string) bool {
	_, ok := m.started.Load(udid)
	return ok
}

// Started returns the UDIDs the manager booted.
func (m *Manager) Started() []string {
	var udids []string
	m.started.Range(func(key, _ interface{}) bool {
		udids = append(udids, key.(string))
		return true
	})
	return udids
}

// ShutdownAll shuts down, in parallel, every simulator the manager booted.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, udid := range m.Started() {
		udid := udid
		g.Go(func() error {
			if err := m.ctl.Shutdown(ctx, udid); err != nil {
				return fmt.Errorf("shutdown %s: %w", udid, err)
			}
			m.started.Delete(udid)
			return nil
		})
	}
	return g.Wait()
}
