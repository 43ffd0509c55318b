package gameservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rivermoor/realmd/internal/auth"
	"github.com/rivermoor/realmd/internal/entity"
	"github.com/rivermoor/realmd/internal/registry"
	"github.com/rivermoor/realmd/internal/session"
	"github.com/rivermoor/realmd/internal/wire"
)

// handleLogin implements spec.md §4.10's login flow: authenticate,
// optionally auto-register-and-retry (a test affordance, spec.md §9),
// spawn a character at the origin, snapshot its surroundings, broadcast
// its spawn to already-present neighbors, and reply with a fresh token.
func (s *Service) handleLogin(sess *session.Session, req *wire.LoginRequest) {
	ctx := context.Background()

	if err := s.authenticate(ctx, req.Username, req.Password); err != nil {
		slog.Warn("login failed", "username", req.Username, "session", sess.ID(), "error", err)
		resp := wire.LoginResponse{Success: false, Message: "invalid credentials"}
		s.send(sess, resp.Encode())
		return
	}

	c, events := s.world.AddCharacter(sess.ID(), req.Username, entity.Vec3{}, defaultCharacterHP, defaultCharacterHP, defaultCharacterLevel, s.cfg.InterestRadius)
	sess.BindCharacter(c.ObjectID())

	token, err := newToken()
	if err != nil {
		slog.Error("failed to mint auth token", "session", sess.ID(), "error", err)
		resp := wire.LoginResponse{Success: false, Message: "internal error"}
		s.send(sess, resp.Encode())
		return
	}

	s.bindSession(sess.ID(), req.Username, token, c.ObjectID())

	s.broadcastEvents(events)
	s.sendSnapshot(sess, c)

	resp := wire.LoginResponse{Success: true, Message: "", Token: token}
	s.send(sess, resp.Encode())
	slog.Info("session logged in", "username", req.Username, "session", sess.ID(), "objectID", c.ObjectID())
}

// authenticate delegates to the configured Authenticator, applying the
// register-and-retry test affordance from spec.md §9 when enabled.
func (s *Service) authenticate(ctx context.Context, username, password string) error {
	err := s.auth.Authenticate(ctx, username, password)
	if err == nil {
		return nil
	}
	if !s.cfg.AllowAutoRegister || !errors.Is(err, auth.ErrInvalidCredentials) {
		return err
	}
	if regErr := s.auth.Register(ctx, username, password); regErr != nil {
		return err
	}
	return s.auth.Authenticate(ctx, username, password)
}

// bindSession records every mapping a fresh login or successful
// reconnect needs (spec.md §4.10's holds list).
func (s *Service) bindSession(sid, username, token string, objectID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charBySession[sid] = objectID
	s.usernameBySession[sid] = username
	s.tokenBySession[sid] = token
	s.sessionByUsername[username] = sid
	s.sessionByToken[token] = sid
}

// handleReconnect implements spec.md §4.10's reconnect flow: resolve the
// disconnected session that owned this account, adopt its parked
// character if it is still on file (SweepParked evicts expired entries;
// no time check is made here), or fall back to a fresh login on the
// same connection.
func (s *Service) handleReconnect(sess *session.Session, req *wire.ReconnectRequest) {
	oldSID, entry, found := s.takeParked(req.Token, req.Username)
	if !found {
		s.startFreshGame(sess, req.Username, "no parked session found, starting a new game")
		return
	}

	c, events, ok := s.world.AdoptCharacter(entry.objectID, sess.ID(), s.cfg.InterestRadius)
	if !ok {
		s.startFreshGame(sess, req.Username, "parked character expired, starting a new game")
		return
	}

	sess.BindCharacter(c.ObjectID())
	token, err := newToken()
	if err != nil {
		slog.Error("failed to mint auth token on reconnect", "session", sess.ID(), "error", err)
		resp := wire.ReconnectResponse{Success: false, Message: "internal error"}
		s.send(sess, resp.Encode())
		return
	}

	s.mu.Lock()
	delete(s.usernameBySession, oldSID)
	delete(s.tokenBySession, oldSID)
	delete(s.sessionByToken, req.Token)
	s.mu.Unlock()
	s.bindSession(sess.ID(), req.Username, token, c.ObjectID())

	s.broadcastEvents(events)
	s.sendSnapshot(sess, c)

	resp := wire.ReconnectResponse{Success: true, Message: "", SessionID: sess.ID()}
	s.send(sess, resp.Encode())
	slog.Info("session reconnected", "username", req.Username, "session", sess.ID(), "objectID", c.ObjectID())
}

// takeParked resolves the disconnected session id owning req's account —
// by token first, then by username, per spec.md §4.10 — and, if a
// parked entry is still on file for it, removes and returns it.
func (s *Service) takeParked(token, username string) (oldSID string, entry parkEntry, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSID, ok := s.sessionByToken[token]
	if !ok || oldSID == "" {
		oldSID, ok = s.sessionByUsername[username]
	}
	if !ok {
		return "", parkEntry{}, false
	}

	entry, ok = s.parked[oldSID]
	if !ok {
		return "", parkEntry{}, false
	}
	delete(s.parked, oldSID)
	return oldSID, entry, true
}

// startFreshGame handles a reconnect miss: spec.md §4.10 treats it as a
// brand-new login on the same connection, minus the credential check:
// neither a password nor the offered token is verified on this path.
func (s *Service) startFreshGame(sess *session.Session, username, message string) {
	c, events := s.world.AddCharacter(sess.ID(), username, entity.Vec3{}, defaultCharacterHP, defaultCharacterHP, defaultCharacterLevel, s.cfg.InterestRadius)
	sess.BindCharacter(c.ObjectID())

	token, err := newToken()
	if err != nil {
		slog.Error("failed to mint auth token on fresh game", "session", sess.ID(), "error", err)
		resp := wire.ReconnectResponse{Success: false, Message: "internal error"}
		s.send(sess, resp.Encode())
		return
	}
	s.bindSession(sess.ID(), username, token, c.ObjectID())

	s.broadcastEvents(events)
	s.sendSnapshot(sess, c)

	resp := wire.ReconnectResponse{Success: true, Message: message, SessionID: sess.ID()}
	s.send(sess, resp.Encode())
}

// handleMove implements spec.md §4.10's move flow: it only records
// intent. The tick loop integrates actual motion (internal/entity's
// Character.Step, driven from worldmap.Map.Tick).
func (s *Service) handleMove(sess *session.Session, req *wire.MoveRequest) {
	objectID := sess.CharacterID()
	if objectID == 0 {
		return
	}
	s.world.SetCharacterMoveTarget(objectID, entity.Vec3{X: req.TargetX, Y: req.TargetY, Z: req.TargetZ})
}

// handleDisconnect implements spec.md §4.10's disconnect flow: park the
// character (don't destroy it), remove its interest area, and broadcast
// the resulting despawn. Registered as the registry's OnDisconnect
// callback by Wire.
func (s *Service) handleDisconnect(rs registry.Session) {
	s.parkSession(rs.ID(), time.Now())
}

func (s *Service) parkSession(sid string, now time.Time) {
	s.mu.Lock()
	objectID, ok := s.charBySession[sid]
	if ok {
		delete(s.charBySession, sid)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	events := s.world.ParkCharacter(sid, objectID)
	s.broadcastEvents(events)

	s.mu.Lock()
	s.parked[sid] = parkEntry{objectID: objectID, disconnected: now}
	s.mu.Unlock()
}
