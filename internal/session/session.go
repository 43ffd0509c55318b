// Package session owns one TCP connection to a client: framing,
// read/write loops, a bounded send queue with backpressure, and
// liveness bookkeeping (spec.md §4.3, §4.9). It generalizes the
// teacher's GameClient/writePump pair — which layers Blowfish/XOR
// encryption over the wire — by dropping the cipher (this server's
// wire protocol is plaintext, spec.md §6) while keeping its async
// write-queue, close-once, and socket-tuning shape.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rivermoor/realmd/internal/wire"
)

// ErrSendQueueFull is returned by Send when the outgoing queue cannot
// accept another frame because the client isn't draining fast enough,
// and also when the session is closed while Send waits.
var ErrSendQueueFull = errors.New("session: send queue full")

// Config tunes one Session's I/O behavior. Zero SendQueueSize,
// ReadTimeout and WriteTimeout fall back to the defaults below; the
// keepalive fields have no defaults here.
type Config struct {
	SendQueueSize     int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	KeepAliveIdle     time.Duration
	KeepAliveInterval time.Duration
	KeepAliveProbes   int
}

const (
	defaultSendQueueSize = 256
	defaultReadTimeout   = 90 * time.Second
	defaultWriteTimeout  = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueueSize
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	return c
}

// FrameHandler processes one decoded frame body read from a session.
// recvTime is when the frame's bytes were fully received, used by the
// dispatcher for priority/staleness decisions (spec.md §4.4).
type FrameHandler func(s *Session, body []byte, recvTime time.Time)

// Session owns one client connection end to end.
type Session struct {
	id   string
	conn net.Conn
	cfg  Config

	onFrame FrameHandler
	onClose func(*Session)

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	lastActivity atomic.Int64 // UnixNano

	characterID atomic.Uint32 // 0 until a character is bound to this session
}

// New creates a Session around conn. id must be unique across the
// server's lifetime (the registry keys sessions by it). onFrame is
// called from the session's own read loop for every complete frame;
// it must not block for long, since it stalls this session's reads.
func New(id string, conn net.Conn, cfg Config, onFrame FrameHandler) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		onFrame: onFrame,
		sendCh:  make(chan []byte, cfg.SendQueueSize),
		closeCh: make(chan struct{}),
	}
	s.Touch()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the client's remote address as a string.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// OnClose sets the callback invoked exactly once, after the connection
// is torn down.
func (s *Session) OnClose(fn func(*Session)) { s.onClose = fn }

// Touch records the current time as the session's last activity.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the last time the session was touched — on every
// frame received and every frame sent.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// IdleFor returns how long the session has gone without activity.
func (s *Session) IdleFor() time.Duration {
	return time.Since(s.LastActivity())
}

// CharacterID returns the objectID of the character currently bound to
// this session, or 0 if none (spec.md §4.10's login/reconnect flow).
func (s *Session) CharacterID() uint32 { return s.characterID.Load() }

// BindCharacter associates objectID with this session.
func (s *Session) BindCharacter(objectID uint32) { s.characterID.Store(objectID) }

// Send queues body as a framed packet for delivery, blocking until the
// queue has room (spec.md §3/§5: backpressure blocks the caller rather
// than silently dropping frames). The block is bounded by WriteTimeout —
// a client that can't drain its queue within that window is too slow to
// keep up, and the session is closed rather than stalling its caller
// forever.
func (s *Session) Send(body []byte) error {
	frame := wire.EncodeFrame(body)
	timer := time.NewTimer(s.cfg.WriteTimeout)
	defer timer.Stop()

	select {
	case s.sendCh <- frame:
		return nil
	case <-timer.C:
		slog.Warn("send queue full past write timeout, disconnecting slow client", "session", s.id)
		s.Close()
		return ErrSendQueueFull
	case <-s.closeCh:
		return ErrSendQueueFull
	}
}

// Close tears down the session's connection. Safe to call multiple
// times and from multiple goroutines; only the first call has effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	return nil
}

// Run drives the session's read and write loops until the connection
// closes, ctx is cancelled, or a protocol error occurs. It blocks until
// the session is fully torn down.
func (s *Session) Run(ctx context.Context) {
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	s.readLoop()
	wg.Wait()
}

func (s *Session) readLoop() {
	acc := wire.NewAccumulator()
	buf := make([]byte, 64*1024)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			acc.Append(buf[:n])
			frames, extractErr := acc.Extract()
			if extractErr != nil {
				slog.Warn("protocol error, closing session", "session", s.id, "error", extractErr)
				return
			}
			if len(frames) > 0 {
				recvTime := time.Now()
				s.Touch()
				for _, body := range frames {
					if s.onFrame != nil {
						s.onFrame(s, body, recvTime)
					}
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Debug("session disconnected", "session", s.id)
			} else {
				slog.Debug("session read error", "session", s.id, "error", err)
			}
			return
		}

		select {
		case <-s.closeCh:
			return
		default:
		}
	}
}

func (s *Session) writeLoop() {
	bufs := make(net.Buffers, 0, 32)

	for {
		select {
		case frame, ok := <-s.sendCh:
			if !ok {
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}

			queued := len(s.sendCh)
			if queued == 0 {
				if _, err := s.conn.Write(frame); err != nil {
					return
				}
				s.Touch()
				continue
			}

			bufs = bufs[:0]
			bufs = append(bufs, frame)
			for i := 0; i < queued; i++ {
				bufs = append(bufs, <-s.sendCh)
			}
			if _, err := bufs.WriteTo(s.conn); err != nil {
				return
			}
			s.Touch()

		case <-s.closeCh:
			return
		}
	}
}

// tuneSocket applies keepalive and buffering settings appropriate for a
// long-lived interactive connection. Grounded on the teacher's
// acceptLoop, which sets SetKeepAlive/SetKeepAlivePeriod on every
// accepted *net.TCPConn; generalized here to the separate idle/interval
// /probe counts spec.md's config exposes, via net.TCPConn's
// SetKeepAliveConfig.
func tuneSocket(conn net.Conn, cfg Config) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		return fmt.Errorf("disabling Nagle's algorithm: %w", err)
	}
	if err := tcpConn.SetReadBuffer(64 * 1024); err != nil {
		return fmt.Errorf("setting receive buffer: %w", err)
	}
	if err := tcpConn.SetWriteBuffer(64 * 1024); err != nil {
		return fmt.Errorf("setting send buffer: %w", err)
	}

	kaCfg := net.KeepAliveConfig{
		Enable:   true,
		Idle:     cfg.KeepAliveIdle,
		Interval: cfg.KeepAliveInterval,
		Count:    cfg.KeepAliveProbes,
	}
	if err := tcpConn.SetKeepAliveConfig(kaCfg); err != nil {
		return fmt.Errorf("configuring keepalive: %w", err)
	}
	return nil
}

// TuneSocket is the exported entry point for the accept loop to call
// right after accepting a connection, before constructing a Session.
func TuneSocket(conn net.Conn, cfg Config) error {
	return tuneSocket(conn, cfg)
}
