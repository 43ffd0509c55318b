// Package gameservice wires connected sessions to characters on a
// worldmap.Map: it authenticates logins, adopts reconnecting sessions
// back onto their parked character, applies move intents, and turns
// the map's per-tick events into wire packets for the right recipients
// (spec.md §4.10). It is the glue the teacher's ClientManager + Handler
// pair plays for GameClient/Player, generalized to this server's
// session-id-keyed, cipher-free session type.
package gameservice

import (
	"sync"
	"time"

	"github.com/rivermoor/realmd/internal/auth"
	"github.com/rivermoor/realmd/internal/dispatch"
	"github.com/rivermoor/realmd/internal/registry"
	"github.com/rivermoor/realmd/internal/worldmap"
)

const (
	defaultCharacterHP    int32 = 100
	defaultCharacterLevel int32 = 1
)

// Config tunes Service behavior beyond the collaborators it wires
// together.
type Config struct {
	InterestRadius    float32
	ReconnectGrace    time.Duration
	AllowAutoRegister bool // spec.md §9 test affordance, default off
}

func (c Config) withDefaults() Config {
	if c.InterestRadius <= 0 {
		c.InterestRadius = 50
	}
	if c.ReconnectGrace <= 0 {
		c.ReconnectGrace = 30 * time.Second
	}
	return c
}

// parkEntry remembers a parked character's objectID and when its owning
// session disconnected, so the sweeper knows when the grace window has
// expired.
type parkEntry struct {
	objectID     uint32
	disconnected time.Time
}

// Service holds every mapping spec.md §4.10 lists: session<->character,
// token<->session, username<->session, and the reconnection parking
// table, guarded by one mutex since logins, reconnects, disconnects and
// sweeps all touch overlapping maps.
type Service struct {
	auth       auth.Authenticator
	world      *worldmap.Map
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	cfg        Config

	mu                sync.Mutex
	charBySession     map[string]uint32
	usernameBySession map[string]string
	tokenBySession    map[string]string
	sessionByUsername map[string]string
	sessionByToken    map[string]string
	parked            map[string]parkEntry
}

// New creates a Service over the given authenticator and world map.
// Call Wire before accepting connections.
func New(authenticator auth.Authenticator, world *worldmap.Map, cfg Config) *Service {
	return &Service{
		auth:              authenticator,
		world:             world,
		cfg:               cfg.withDefaults(),
		charBySession:     make(map[string]uint32),
		usernameBySession: make(map[string]string),
		tokenBySession:    make(map[string]string),
		sessionByUsername: make(map[string]string),
		sessionByToken:    make(map[string]string),
		parked:            make(map[string]parkEntry),
	}
}

// Wire binds the Service to the registry and dispatcher that deliver it
// work, and registers itself as the registry's disconnect callback so a
// dropped connection parks its character (spec.md §4.10).
func (s *Service) Wire(r *registry.Registry, d *dispatch.Dispatcher) {
	s.registry = r
	s.dispatcher = d
	r.OnDisconnect(s.handleDisconnect)
}

// ParkedCount reports how many characters are currently parked, pending
// reconnection or eviction. Exposed for tests and diagnostics.
func (s *Service) ParkedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parked)
}
