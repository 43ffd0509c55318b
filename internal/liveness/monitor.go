// Package liveness disconnects sessions that have gone quiet past a
// configured timeout, checked on a fixed interval (spec.md §4.3, §5).
// It generalizes the teacher's per-connection TCP keepalive probing —
// which only detects a dead socket, not a silent-but-open one — into an
// application-level sweep driven off each session's own activity clock.
package liveness

import (
	"context"
	"log/slog"
	"time"

	"github.com/rivermoor/realmd/internal/registry"
)

// Config tunes how often the monitor checks and how long a session may
// stay idle before it's disconnected.
type Config struct {
	CheckInterval time.Duration
	Timeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	return c
}

// liveSession is the narrow view Monitor needs beyond registry.Session.
// *session.Session satisfies this.
type liveSession interface {
	registry.Session
	IdleFor() time.Duration
	Close() error
}

// Monitor periodically scans a registry.Registry and closes any session
// idle past its configured timeout.
type Monitor struct {
	registry *registry.Registry
	cfg      Config
}

// New creates a Monitor watching r.
func New(r *registry.Registry, cfg Config) *Monitor {
	return &Monitor{registry: r, cfg: cfg.withDefaults()}
}

// SweepOnce closes every registered session idle past the configured
// timeout and returns how many it closed. Sessions that don't implement
// liveSession (none in this server, but defensive against a future
// registry.Session implementation that doesn't track activity) are
// skipped.
func (m *Monitor) SweepOnce() int {
	var timedOut []liveSession
	m.registry.ForEach(func(s registry.Session) bool {
		live, ok := s.(liveSession)
		if ok && live.IdleFor() > m.cfg.Timeout {
			timedOut = append(timedOut, live)
		}
		return true
	})

	for _, s := range timedOut {
		slog.Info("closing idle session", "session", s.ID(), "idleFor", s.IdleFor())
		s.Close()
	}
	return len(timedOut)
}

// Run drives SweepOnce on a fixed interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOnce()
		}
	}
}
