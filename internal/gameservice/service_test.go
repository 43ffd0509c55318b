package gameservice

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rivermoor/realmd/internal/auth"
	"github.com/rivermoor/realmd/internal/dispatch"
	"github.com/rivermoor/realmd/internal/entity"
	"github.com/rivermoor/realmd/internal/registry"
	"github.com/rivermoor/realmd/internal/session"
	"github.com/rivermoor/realmd/internal/wire"
	"github.com/rivermoor/realmd/internal/worldmap"
)

// newHarness builds a Service wired to a fresh registry and dispatcher,
// backed by an in-memory authenticator and an empty map.
func newHarness(t *testing.T, cfg Config) (*Service, *registry.Registry) {
	t.Helper()
	world := worldmap.New("test", 100)
	authn := auth.NewMemoryAuthenticator()
	svc := New(authn, world, cfg)
	r := registry.New(10)
	d := dispatch.New(1, svc.ProcessJob)
	svc.Wire(r, d)
	return svc, r
}

// newTestSession registers id in r over a net.Pipe, running its read and
// write loops so Send/Close behave like a live connection.
func newTestSession(t *testing.T, r *registry.Registry, id string) (*session.Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	sess := session.New(id, client, session.Config{SendQueueSize: 16}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go sess.Run(ctx)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	if !r.TryAdd(sess) {
		t.Fatalf("TryAdd(%q) failed", id)
	}
	return sess, server
}

// readFrames drains whatever the write loop has flushed to server within
// a short deadline and returns each frame's decoded packet.
func readFrames(t *testing.T, server net.Conn, want int) []any {
	t.Helper()
	acc := wire.NewAccumulator()
	var pkts []any
	deadline := time.Now().Add(2 * time.Second)

	for len(pkts) < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames, got %d", want, len(pkts))
		}
		server.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		buf := make([]byte, 4096)
		n, err := server.Read(buf)
		if n > 0 {
			acc.Append(buf[:n])
			frames, extractErr := acc.Extract()
			if extractErr != nil {
				t.Fatalf("Extract: %v", extractErr)
			}
			for _, body := range frames {
				_, pkt, decErr := wire.Decode(body)
				if decErr != nil {
					t.Fatalf("Decode: %v", decErr)
				}
				pkts = append(pkts, pkt)
			}
		}
		if err != nil && n == 0 {
			continue
		}
	}
	return pkts
}

func TestHandleLoginSuccessSpawnsCharacterAndRespondsWithToken(t *testing.T) {
	svc, r := newHarness(t, Config{})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	if err := authn.Register(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	sess, server := newTestSession(t, r, "s1")
	svc.handleLogin(sess, &wire.LoginRequest{Username: "alice", Password: "secret"})

	pkts := readFrames(t, server, 2)
	snapshot, ok := pkts[0].(*wire.ObjectSnapshot)
	if !ok {
		t.Fatalf("first packet = %T, want *ObjectSnapshot", pkts[0])
	}
	if len(snapshot.Entries) != 0 {
		t.Errorf("snapshot entries = %d, want 0 (alice is alone)", len(snapshot.Entries))
	}

	resp, ok := pkts[1].(*wire.LoginResponse)
	if !ok {
		t.Fatalf("second packet = %T, want *LoginResponse", pkts[1])
	}
	if !resp.Success {
		t.Fatalf("LoginResponse.Success = false, want true (message %q)", resp.Message)
	}
	if resp.Token == "" {
		t.Error("LoginResponse.Token is empty")
	}

	if sess.CharacterID() == 0 {
		t.Error("session was not bound to a character")
	}
	if got := svc.world.CharacterCount(); got != 1 {
		t.Errorf("CharacterCount() = %d, want 1", got)
	}
}

func TestHandleLoginFailureWithoutAccountSendsError(t *testing.T) {
	svc, r := newHarness(t, Config{})
	sess, server := newTestSession(t, r, "s1")

	svc.handleLogin(sess, &wire.LoginRequest{Username: "ghost", Password: "whatever"})

	pkts := readFrames(t, server, 1)
	resp, ok := pkts[0].(*wire.LoginResponse)
	if !ok {
		t.Fatalf("packet = %T, want *LoginResponse", pkts[0])
	}
	if resp.Success {
		t.Error("LoginResponse.Success = true, want false for an unknown account")
	}
	if sess.CharacterID() != 0 {
		t.Error("session was bound to a character despite a failed login")
	}
}

func TestHandleLoginAutoRegisterCreatesAccountOnFirstLogin(t *testing.T) {
	svc, r := newHarness(t, Config{AllowAutoRegister: true})
	sess, server := newTestSession(t, r, "s1")

	svc.handleLogin(sess, &wire.LoginRequest{Username: "newplayer", Password: "secret"})

	pkts := readFrames(t, server, 2)
	resp, ok := pkts[1].(*wire.LoginResponse)
	if !ok {
		t.Fatalf("second packet = %T, want *LoginResponse", pkts[1])
	}
	if !resp.Success {
		t.Fatalf("LoginResponse.Success = false, want true (message %q)", resp.Message)
	}

	authn := svc.auth.(*auth.MemoryAuthenticator)
	if err := authn.Authenticate(context.Background(), "newplayer", "secret"); err != nil {
		t.Errorf("account was not actually registered: %v", err)
	}
}

func TestHandleLoginAutoRegisterDisabledByDefault(t *testing.T) {
	svc, r := newHarness(t, Config{})
	sess, server := newTestSession(t, r, "s1")

	svc.handleLogin(sess, &wire.LoginRequest{Username: "newplayer", Password: "secret"})

	pkts := readFrames(t, server, 1)
	resp := pkts[0].(*wire.LoginResponse)
	if resp.Success {
		t.Error("LoginResponse.Success = true, want false when auto-register is off")
	}
}

func TestHandleLoginSpawnBroadcastsToExistingNeighbors(t *testing.T) {
	svc, r := newHarness(t, Config{})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")
	authn.Register(context.Background(), "bob", "pw")

	sess1, server1 := newTestSession(t, r, "s1")
	svc.handleLogin(sess1, &wire.LoginRequest{Username: "alice", Password: "pw"})
	readFrames(t, server1, 2)

	sess2, server2 := newTestSession(t, r, "s2")
	svc.handleLogin(sess2, &wire.LoginRequest{Username: "bob", Password: "pw"})

	pkts1 := readFrames(t, server1, 1)
	spawn, ok := pkts1[0].(*wire.ObjectSpawn)
	if !ok {
		t.Fatalf("packet to alice = %T, want *ObjectSpawn", pkts1[0])
	}
	if spawn.ID != sess2.CharacterID() {
		t.Errorf("spawn.ID = %d, want bob's objectID %d", spawn.ID, sess2.CharacterID())
	}

	pkts2 := readFrames(t, server2, 2)
	snapshot := pkts2[0].(*wire.ObjectSnapshot)
	if len(snapshot.Entries) != 1 || snapshot.Entries[0].ID != sess1.CharacterID() {
		t.Errorf("bob's snapshot = %+v, want one entry for alice's objectID %d", snapshot.Entries, sess1.CharacterID())
	}
}

func TestHandleMoveSetsTargetAndTickIntegratesPosition(t *testing.T) {
	svc, r := newHarness(t, Config{})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")

	sess, server := newTestSession(t, r, "s1")
	svc.handleLogin(sess, &wire.LoginRequest{Username: "alice", Password: "pw"})
	readFrames(t, server, 2)

	svc.handleMove(sess, &wire.MoveRequest{TargetX: 10, TargetY: 0, TargetZ: 0})

	c, ok := svc.world.Character(sess.CharacterID())
	if !ok {
		t.Fatal("character vanished after move request")
	}
	if c.Position().X != 0 {
		t.Errorf("position.X = %v before any tick, want 0", c.Position().X)
	}

	svc.TickOnce(time.Now())
	svc.TickOnce(time.Now().Add(time.Second))

	if c.Position().X <= 0 {
		t.Errorf("position.X = %v after ticking, want > 0", c.Position().X)
	}
}

func TestHandleMoveWithoutLoginIsNoop(t *testing.T) {
	svc, r := newHarness(t, Config{})
	sess, _ := newTestSession(t, r, "s1")

	svc.handleMove(sess, &wire.MoveRequest{TargetX: 10})
	// No character was ever bound; SetCharacterMoveTarget must not be
	// reached, and nothing should panic.
}

func TestDisconnectParksCharacterAndBroadcastsDespawn(t *testing.T) {
	svc, r := newHarness(t, Config{})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")
	authn.Register(context.Background(), "bob", "pw")

	sess1, server1 := newTestSession(t, r, "s1")
	svc.handleLogin(sess1, &wire.LoginRequest{Username: "alice", Password: "pw"})
	readFrames(t, server1, 2)

	sess2, server2 := newTestSession(t, r, "s2")
	svc.handleLogin(sess2, &wire.LoginRequest{Username: "bob", Password: "pw"})
	readFrames(t, server1, 1) // spawn notification to alice
	readFrames(t, server2, 2)

	r.Remove("s2")

	pkts := readFrames(t, server1, 1)
	despawn, ok := pkts[0].(*wire.ObjectDespawn)
	if !ok {
		t.Fatalf("packet = %T, want *ObjectDespawn", pkts[0])
	}
	if despawn.ID != sess2.CharacterID() {
		t.Errorf("despawn.ID = %d, want bob's objectID %d", despawn.ID, sess2.CharacterID())
	}

	if svc.ParkedCount() != 1 {
		t.Errorf("ParkedCount() = %d, want 1", svc.ParkedCount())
	}
	if _, ok := svc.world.Character(sess2.CharacterID()); !ok {
		t.Error("bob's character should still exist while parked")
	}
}

func TestReconnectByTokenAdoptsParkedCharacter(t *testing.T) {
	svc, r := newHarness(t, Config{ReconnectGrace: time.Minute})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")

	sess1, server1 := newTestSession(t, r, "s1")
	svc.handleLogin(sess1, &wire.LoginRequest{Username: "alice", Password: "pw"})
	pkts := readFrames(t, server1, 2)
	token := pkts[1].(*wire.LoginResponse).Token
	objectID := sess1.CharacterID()

	r.Remove("s1")

	sess2, server2 := newTestSession(t, r, "s2")
	svc.handleReconnect(sess2, &wire.ReconnectRequest{Token: token, Username: "alice"})

	pkts2 := readFrames(t, server2, 2)
	resp, ok := pkts2[1].(*wire.ReconnectResponse)
	if !ok {
		t.Fatalf("packet = %T, want *ReconnectResponse", pkts2[1])
	}
	if !resp.Success {
		t.Fatalf("ReconnectResponse.Success = false, want true (message %q)", resp.Message)
	}
	if sess2.CharacterID() != objectID {
		t.Errorf("reconnected session bound to objectID %d, want original %d", sess2.CharacterID(), objectID)
	}
	if svc.ParkedCount() != 0 {
		t.Errorf("ParkedCount() = %d, want 0 after a successful reconnect", svc.ParkedCount())
	}
}

func TestReconnectByUsernameFallsBackWhenTokenUnknown(t *testing.T) {
	svc, r := newHarness(t, Config{ReconnectGrace: time.Minute})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")

	sess1, server1 := newTestSession(t, r, "s1")
	svc.handleLogin(sess1, &wire.LoginRequest{Username: "alice", Password: "pw"})
	readFrames(t, server1, 2)
	objectID := sess1.CharacterID()

	r.Remove("s1")

	sess2, server2 := newTestSession(t, r, "s2")
	svc.handleReconnect(sess2, &wire.ReconnectRequest{Token: "not-a-real-token", Username: "alice"})

	readFrames(t, server2, 2)
	if sess2.CharacterID() != objectID {
		t.Errorf("reconnected session bound to objectID %d, want original %d", sess2.CharacterID(), objectID)
	}
}

func TestReconnectMissStartsFreshGame(t *testing.T) {
	svc, r := newHarness(t, Config{})
	sess, server := newTestSession(t, r, "s1")

	svc.handleReconnect(sess, &wire.ReconnectRequest{Token: "bogus", Username: "stranger"})

	pkts := readFrames(t, server, 2)
	resp, ok := pkts[1].(*wire.ReconnectResponse)
	if !ok {
		t.Fatalf("packet = %T, want *ReconnectResponse", pkts[1])
	}
	if !resp.Success {
		t.Error("a reconnect miss should still start a fresh game successfully")
	}
	if sess.CharacterID() == 0 {
		t.Error("fresh game did not bind a character")
	}
}

func TestSweepParkedEvictsOnlyPastGraceWindow(t *testing.T) {
	svc, r := newHarness(t, Config{ReconnectGrace: 10 * time.Second})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")

	sess, server := newTestSession(t, r, "s1")
	svc.handleLogin(sess, &wire.LoginRequest{Username: "alice", Password: "pw"})
	readFrames(t, server, 2)
	objectID := sess.CharacterID()

	start := time.Now()
	svc.parkSession("s1", start)

	if n := svc.SweepParked(start.Add(5 * time.Second)); n != 0 {
		t.Errorf("SweepParked before grace elapsed evicted %d, want 0", n)
	}
	if _, ok := svc.world.Character(objectID); !ok {
		t.Error("character evicted before its grace window expired")
	}

	if n := svc.SweepParked(start.Add(11 * time.Second)); n != 1 {
		t.Errorf("SweepParked after grace elapsed evicted %d, want 1", n)
	}
	if _, ok := svc.world.Character(objectID); ok {
		t.Error("character still present after its grace window expired")
	}
	if svc.ParkedCount() != 0 {
		t.Errorf("ParkedCount() = %d, want 0 after sweep", svc.ParkedCount())
	}
}

func TestTickOnceWithNearbyMonsterDoesNotPanic(t *testing.T) {
	svc, r := newHarness(t, Config{})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")

	svc.world.LoadDescriptor(worldmap.Descriptor{
		Monsters: []worldmap.MonsterSpawn{
			{TemplateID: 1, Position: entity.Vec3{X: 1}, HP: 50, Level: 1, AggroRange: 30},
		},
	}, time.Now())

	sess, server := newTestSession(t, r, "s1")
	svc.handleLogin(sess, &wire.LoginRequest{Username: "alice", Password: "pw"})
	readFrames(t, server, 2)

	if svc.world.MonsterCount() != 1 {
		t.Fatalf("MonsterCount() = %d, want 1", svc.world.MonsterCount())
	}

	// Ticking must not panic even when nothing moves; it's fine if no
	// frame arrives since idle monsters generate no events.
	svc.TickOnce(time.Now())
}

func TestProcessJobDecodesAndDispatchesLogin(t *testing.T) {
	svc, r := newHarness(t, Config{})
	authn := svc.auth.(*auth.MemoryAuthenticator)
	authn.Register(context.Background(), "alice", "pw")

	sess, server := newTestSession(t, r, "s1")
	req := &wire.LoginRequest{Username: "alice", Password: "pw"}

	svc.ProcessJob(&dispatch.Job{SessionID: "s1", Body: req.Encode(), Priority: dispatch.PriorityControl})

	pkts := readFrames(t, server, 2)
	resp, ok := pkts[1].(*wire.LoginResponse)
	if !ok || !resp.Success {
		t.Fatalf("ProcessJob login = %+v, %v, want a successful LoginResponse", pkts[1], ok)
	}
	if sess.CharacterID() == 0 {
		t.Error("ProcessJob did not bind a character for the login")
	}
}

func TestProcessJobUnknownSessionIsNoop(t *testing.T) {
	svc, _ := newHarness(t, Config{})
	req := &wire.LoginRequest{Username: "alice", Password: "pw"}
	// Must not panic: "s-missing" was never added to the registry.
	svc.ProcessJob(&dispatch.Job{SessionID: "s-missing", Body: req.Encode()})
}

func TestOnFrameRoutesHeartbeatInlineAndOthersToDispatcher(t *testing.T) {
	svc, r := newHarness(t, Config{})
	sess, _ := newTestSession(t, r, "s1")

	hb := &wire.Heartbeat{}
	svc.OnFrame(sess, hb.Encode(), time.Now())
	if svc.dispatcher.QueueLen() != 0 {
		t.Errorf("QueueLen() = %d after a heartbeat, want 0 (handled inline)", svc.dispatcher.QueueLen())
	}

	move := &wire.MoveRequest{TargetX: 1}
	svc.OnFrame(sess, move.Encode(), time.Now())
	if svc.dispatcher.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d after a MoveRequest, want 1", svc.dispatcher.QueueLen())
	}
}

func TestPriorityForMatchesGameplayControlAndIdleClasses(t *testing.T) {
	cases := map[wire.PacketID]dispatch.Priority{
		wire.PacketMoveRequest:      dispatch.PriorityGameplay,
		wire.PacketObjectUpdate:     dispatch.PriorityGameplay,
		wire.PacketLoginRequest:     dispatch.PriorityControl,
		wire.PacketReconnectRequest: dispatch.PriorityControl,
		wire.PacketHeartbeat:        dispatch.PriorityIdle,
		wire.PacketObjectSnapshot:   dispatch.PriorityDefault,
	}
	for id, want := range cases {
		if got := priorityFor(id); got != want {
			t.Errorf("priorityFor(%d) = %v, want %v", id, got, want)
		}
	}
}
