// Package sleep implements the mesh node sleep/wake state machine and its
// Wake-on-LAN trigger.
package sleep

import (
	"context"
	"sync"
	"time"

	"github.com/loka-network/loka/internal/domain"
)

// Config controls idle timeouts and WoL behavior for one tracked node.
type Config struct {
	IdleMinutes     time.Duration
	WakeOnLANEnabled bool
	MAC             string
	BroadcastAddr   string
	CheckInterval   time.Duration
}

// DefaultConfig matches the gateway's documented 60-second check interval.
func DefaultConfig() Config {
	return Config{
		IdleMinutes:      15 * time.Minute,
		CheckInterval:    60 * time.Second,
		BroadcastAddr:    "255.255.255.255",
	}
}

// Machine tracks one node's sleep state and the time of its last observed
// activity.
type Machine struct {
	mu           sync.Mutex
	cfg          Config
	state        domain.NodeState
	lastActivity time.Time
}

// New creates a machine starting in the online state.
func New(cfg Config) *Machine {
	if cfg.CheckInterval == 0 {
		cfg = DefaultConfig()
	}
	return &Machine{cfg: cfg, state: domain.NodeOnline, lastActivity: time.Now()}
}

// State returns the current state.
func (m *Machine) State() domain.NodeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Activity records observed activity: any state transitions back to
// online and the idle clock resets.
func (m *Machine) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.NodeOnline
	m.lastActivity = time.Now()
}

// Tick evaluates idle-timeout transitions only and never emits network
// traffic; waking a deep-sleeping node is a separate WakeRequest call.
func (m *Machine) Tick(now time.Time) domain.NodeState {
	m.mu.Lock()
	defer m.mu.Unlock()

	idle := now.Sub(m.lastActivity)
	switch m.state {
	case domain.NodeOnline:
		if idle >= m.cfg.IdleMinutes {
			m.state = domain.NodeLightSleep
		}
	case domain.NodeLightSleep:
		if idle >= 2*m.cfg.IdleMinutes {
			m.state = domain.NodeDeepSleep
		}
	}
	return m.state
}

// WakeRequest emits a magic packet and transitions to waking, if the
// machine is deep asleep, WoL is enabled, and a MAC is configured.
func (m *Machine) WakeRequest() error {
	m.mu.Lock()
	state := m.state
	cfg := m.cfg
	m.mu.Unlock()

	if state != domain.NodeDeepSleep || !cfg.WakeOnLANEnabled || cfg.MAC == "" {
		return domain.ErrWakeFailed
	}

	if err := Wake(cfg.MAC, cfg.BroadcastAddr); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = domain.NodeWaking
	m.mu.Unlock()
	return nil
}

// Run starts the periodic idle-check loop; call in a goroutine.
func (m *Machine) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}
