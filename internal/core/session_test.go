package core

import (
	"context"
	"sync"
	"testing"
)

func TestSessionRoomScenario(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")
	bob := env.connect(t, ctx, "bob")
	carol := env.connect(t, ctx, "carol")

	alice.send("/create_room team")
	alice.waitFor("[i] Room team created")

	bob.send("/join_room team")
	bob.waitFor("[i] Joined room team")
	alice.send("/join_room team")
	alice.waitFor("[i] Joined room team")

	alice.send("/m_room team hello")
	bob.waitFor("[team] [alice] hello")
	alice.neverSees("[team] [alice] hello")
	carol.neverSees("[team] [alice] hello")

	carol.send("/view_users team")
	carol.waitFor("[i] Member lists are private. Join room to view.")

	bob.send("/view_users team")
	bob.waitFor("[alice]")
	bob.waitFor("[bob]")
}

func TestSessionRoomMessageAfterLeave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")
	bob := env.connect(t, ctx, "bob")

	alice.send("/create_room team")
	alice.waitFor("[i] Room team created")
	alice.send("/join_room team")
	alice.waitFor("[i] Joined room team")
	bob.send("/join_room team")
	bob.waitFor("[i] Joined room team")

	bob.send("/leave_room team")
	bob.waitFor("[i] Left room team")

	alice.send("/m_room team anyone here")
	bob.neverSees("[team] [alice] anyone here")
}

func TestSessionPrivateMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")
	bob := env.connect(t, ctx, "bob")
	carol := env.connect(t, ctx, "carol")

	alice.send("/pm bob secret")
	bob.waitFor("[PM] [alice] secret")
	carol.neverSees("[PM]")
	alice.neverSees("[PM]")

	alice.send("/pm ghost hi")
	alice.waitFor("User not found")
}

func TestSessionGlobalBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")
	bob := env.connect(t, ctx, "bob")

	alice.send("hello there")
	bob.waitFor("[glb] [alice] hello there")
	alice.neverSees("[glb]")
}

func TestSessionDisconnectNotice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")
	bob := env.connect(t, ctx, "bob")

	bob.conn.Close()
	alice.waitFor("[i] bob disconnected")
	waitUntil(t, func() bool {
		_, ok := env.reg.Find("bob")
		return !ok
	})

	alice.send("/list")
	alice.waitFor("[alice]")
	alice.neverSees("[bob]")
}

func TestSessionExitCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")
	bob := env.connect(t, ctx, "bob")

	alice.send("/exit")
	bob.waitFor("[i] alice disconnected")
	waitUntil(t, func() bool {
		_, ok := env.reg.Find("alice")
		return !ok
	})
}

func TestSessionArrivalNotice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")
	env.connect(t, ctx, "bob")

	alice.waitFor("[i] bob connected")
}

func TestSessionDuplicateUsernameReprompted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	env.connect(t, ctx, "alice")

	second := env.dial(t, ctx)
	second.waitFor("Please enter your username: ")
	second.send("alice")
	second.waitFor("Username alice is already taken")
	second.send("alex")
	waitUntil(t, func() bool {
		_, ok := env.reg.Find("alex")
		return ok
	})
}

func TestSessionEmptyUsernameReprompted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	tc := env.dial(t, ctx)
	tc.waitFor("Please enter your username: ")
	tc.send("")
	tc.send("   ")
	tc.send("alice")
	waitUntil(t, func() bool {
		_, ok := env.reg.Find("alice")
		return ok
	})
}

func TestSessionMalformedCommandsSurfaceUsage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")

	alice.send("/pm")
	alice.waitFor("usage: /pm <user> <message>")
	alice.send("/pm bob")
	alice.waitFor("usage: /pm <user> <message>")
	alice.send("/report")
	alice.waitFor("usage: /report <user>")
	alice.send("/m_room team")
	alice.waitFor("usage: /m_room <name> <message>")
	alice.send("/join_room")
	alice.waitFor("usage: /join_room <name>")

	// The connection survives malformed input.
	alice.send("/list")
	alice.waitFor("[alice]")
}

func TestSessionRoomCommandErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")

	alice.send("/join_room ghost")
	alice.waitFor("Room ghost does not exist")

	alice.send("/leave_room ghost")
	alice.waitFor("Room does not exist")

	alice.send("/create_room glb")
	alice.waitFor("Room name glb is reserved")
	alice.send("/create_room adm")
	alice.waitFor("Room name adm is reserved")

	alice.send("/create_room team")
	alice.waitFor("[i] Room team created")
	alice.send("/create_room team")
	alice.waitFor("Room team already exists")

	alice.send("/leave_room team")
	alice.waitFor("You are not a member of team")

	alice.send("/m_room team hi")
	alice.waitFor("You are not a member of team")

	alice.send("/view_rooms")
	alice.waitFor("[team]")
}

func TestSessionHelp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	alice := env.connect(t, ctx, "alice")

	alice.send("/help")
	alice.waitFor("Available commands:")
	alice.waitFor("/m_room <name> <message>")

	alice.send("/help /pm")
	alice.waitFor("/pm <user> <message> - send a private message")

	alice.send("/help bogus")
	alice.waitFor("command not found")
}

type reportRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *reportRecorder) SaveReport(_ context.Context, reporter, reported string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, reporter+":"+reported)
	return nil
}

func (r *reportRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func TestSessionReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv()
	recorder := &reportRecorder{}
	env.reports = recorder

	alice := env.connect(t, ctx, "alice")
	env.connect(t, ctx, "bob")

	alice.send("/report ghost")
	alice.waitFor("User ghost does not exist")

	alice.send("/report bob")
	waitUntil(t, func() bool {
		entries := recorder.all()
		return len(entries) == 1 && entries[0] == "alice:bob"
	})
}
