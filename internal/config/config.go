// Package config loads the realm daemon's YAML configuration, following
// the same load-with-defaults shape the teacher's login/game server
// configs use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all tunables for a single realmd process (spec.md §2–§5).
type Server struct {
	// Network
	BindAddress    string `yaml:"bind_address"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"`

	// Session I/O
	SendQueueSize     int           `yaml:"send_queue_size"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	KeepAliveIdle     time.Duration `yaml:"keepalive_idle"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	KeepAliveProbes   int           `yaml:"keepalive_probes"`

	// Liveness
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`

	// Dispatcher
	DispatcherWorkers int `yaml:"dispatcher_workers"`

	// World simulation
	TickRate            int           `yaml:"tick_rate"` // ticks per second
	CellSize            float32       `yaml:"cell_size"`
	DefaultInterestRadius float32     `yaml:"default_interest_radius"`
	MapDescriptorPath   string        `yaml:"map_descriptor_path"`

	// Reconnection
	ReconnectGraceWindow time.Duration `yaml:"reconnect_grace_window"`
	ParkingSweepInterval time.Duration `yaml:"parking_sweep_interval"`

	// Test affordance, spec.md §9 — default off.
	AllowAutoRegister bool `yaml:"allow_auto_register"`

	// Authentication backend
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds connection parameters for the reference
// Postgres-backed Authenticator (internal/auth).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// TickPeriod returns the tick duration for TickRate (default 20/s -> 50ms).
func (s Server) TickPeriod() time.Duration {
	if s.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(s.TickRate)
}

// Default returns Server config with the defaults spec.md names throughout.
func Default() Server {
	return Server{
		BindAddress:    "0.0.0.0",
		Port:           8888,
		MaxConnections: 1000,

		SendQueueSize:     1000,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      30 * time.Second,
		KeepAliveIdle:     30 * time.Second,
		KeepAliveInterval: 10 * time.Second,
		KeepAliveProbes:   3,

		HeartbeatInterval: 30 * time.Second,
		SessionTimeout:    90 * time.Second,

		DispatcherWorkers: 4,

		TickRate:              20,
		CellSize:              10,
		DefaultInterestRadius: 50,
		MapDescriptorPath:     "",

		ReconnectGraceWindow: 30 * time.Second,
		ParkingSweepInterval: 5 * time.Second,

		AllowAutoRegister: false,

		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "realmd",
			Password: "realmd",
			DBName:  "realmd",
			SSLMode: "disable",
		},
	}
}

// Load reads Server config from a YAML file. If the file does not exist,
// it returns the defaults, matching the teacher's LoadLoginServer.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
