package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rivermoor/realmd/internal/auth"
	"github.com/rivermoor/realmd/internal/config"
	"github.com/rivermoor/realmd/internal/dispatch"
	"github.com/rivermoor/realmd/internal/gameservice"
	"github.com/rivermoor/realmd/internal/liveness"
	"github.com/rivermoor/realmd/internal/registry"
	"github.com/rivermoor/realmd/internal/session"
	"github.com/rivermoor/realmd/internal/worldmap"
)

const configPathEnv = "REALMD_CONFIG"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	path := "config/realmd.yaml"
	if p := os.Getenv(configPathEnv); p != "" {
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.Info("realmd starting",
		"bind", cfg.BindAddress, "port", cfg.Port, "maxConnections", cfg.MaxConnections)

	authenticator, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}
	defer authenticator.Close()

	descriptor, err := worldmap.LoadDescriptor(cfg.MapDescriptorPath, cfg.CellSize)
	if err != nil {
		return fmt.Errorf("loading map descriptor: %w", err)
	}

	world := worldmap.New(descriptor.Name, cfg.CellSize)
	world.SetDefaultInterestRadius(cfg.DefaultInterestRadius)
	world.SetTickPeriod(cfg.TickPeriod())
	world.LoadDescriptor(descriptor, time.Now())
	slog.Info("map loaded", "name", world.Name(), "monsters", world.MonsterCount())

	reg := registry.New(cfg.MaxConnections)
	svc := gameservice.New(authenticator, world, gameservice.Config{
		InterestRadius:    cfg.DefaultInterestRadius,
		ReconnectGrace:    cfg.ReconnectGraceWindow,
		AllowAutoRegister: cfg.AllowAutoRegister,
	})

	workers := cfg.DispatcherWorkers
	if workers < 1 {
		workers = 1
	}
	dispatcher := dispatch.New(workers, svc.ProcessJob)
	svc.Wire(reg, dispatcher)

	monitor := liveness.New(reg, liveness.Config{
		CheckInterval: cfg.HeartbeatInterval,
		Timeout:       cfg.SessionTimeout,
	})

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("listening", "address", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		svc.RunTickLoop(gctx, cfg.TickPeriod())
		return nil
	})
	g.Go(func() error {
		svc.RunParkingSweeper(gctx, cfg.ParkingSweepInterval)
		return nil
	})
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return acceptLoop(gctx, ln, reg, svc, cfg)
	})

	g.Go(func() error {
		<-gctx.Done()
		return shutdown(ln, reg)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newAuthenticator(ctx context.Context, cfg config.Server) (auth.Authenticator, error) {
	if cfg.Database.Host == "" {
		slog.Warn("no database configured, using in-memory authenticator (accounts do not persist across restarts)")
		return auth.NewMemoryAuthenticator(), nil
	}

	dsn := cfg.Database.DSN()
	if err := auth.RunMigrations(ctx, dsn); err != nil {
		return nil, fmt.Errorf("running auth migrations: %w", err)
	}
	authenticator, err := auth.NewPostgresAuthenticator(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting auth database: %w", err)
	}
	return authenticator, nil
}

// acceptLoop admits TCP connections until ctx is cancelled, grounded on
// the teacher's gameserver.acceptLoop/handleConnection pair — simplified
// since session.Session already owns its own read/write loops and
// socket tuning.
func acceptLoop(ctx context.Context, ln net.Listener, reg *registry.Registry, svc *gameservice.Service, cfg config.Server) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		go handleConnection(ctx, conn, reg, svc, cfg)
	}
}

func handleConnection(ctx context.Context, conn net.Conn, reg *registry.Registry, svc *gameservice.Service, cfg config.Server) {
	sessCfg := session.Config{
		SendQueueSize:     cfg.SendQueueSize,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		KeepAliveIdle:     cfg.KeepAliveIdle,
		KeepAliveInterval: cfg.KeepAliveInterval,
		KeepAliveProbes:   cfg.KeepAliveProbes,
	}
	if err := session.TuneSocket(conn, sessCfg); err != nil {
		slog.Warn("socket tuning failed", "remote", conn.RemoteAddr(), "error", err)
	}

	id := newSessionID()
	sess := session.New(id, conn, sessCfg, svc.OnFrame)
	sess.OnClose(func(*session.Session) { reg.Remove(id) })

	if !reg.TryAdd(sess) {
		slog.Warn("connection rejected, registry at capacity", "remote", conn.RemoteAddr())
		sess.Close()
		return
	}

	slog.Info("session connected", "session", id, "remote", conn.RemoteAddr())
	sess.Run(ctx)
	slog.Debug("session disconnected", "session", id)
}

// shutdown stops accepting new connections and gives live sessions a
// grace period to drain before the process exits (spec.md §5's 5s drain
// deadline), grounded on the teacher's Server.Close/saveAllPlayers —
// here there is no player state to persist, so the drain just waits for
// in-flight sends to flush before forcing every session closed.
func shutdown(ln net.Listener, reg *registry.Registry) error {
	ln.Close()

	deadline := time.NewTimer(5 * time.Second)
	defer deadline.Stop()
	<-deadline.C

	reg.ForEach(func(s registry.Session) bool {
		if closer, ok := s.(interface{ Close() error }); ok {
			closer.Close()
		}
		return true
	})
	return nil
}

var sessionSeq atomic.Uint64

func newSessionID() string {
	return fmt.Sprintf("sess-%d", sessionSeq.Add(1))
}
