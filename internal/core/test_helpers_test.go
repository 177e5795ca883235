package core

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type testEnv struct {
	reg     *Registry
	dir     *Directory
	bus     *Bus
	reports ReportSink
}

func newTestEnv() *testEnv {
	reg := NewRegistry()
	return &testEnv{
		reg: reg,
		dir: NewDirectory(reg),
		bus: NewBus(8),
	}
}

// testClient drives one end of a net.Pipe whose other end is owned by a
// running session. A pump goroutine accumulates everything the session
// writes so assertions can poll the transcript.
type testClient struct {
	t    *testing.T
	conn net.Conn

	mu  sync.Mutex
	buf bytes.Buffer
}

// dial starts a session on an in-memory pipe and returns the client end.
func (e *testEnv) dial(t *testing.T, ctx context.Context) *testClient {
	t.Helper()

	server, client := net.Pipe()
	logger := zerolog.Nop()
	sess := NewSession(server, e.reg, e.dir, e.bus, e.reports, &logger)
	go sess.Run(ctx)

	tc := &testClient{t: t, conn: client}
	go tc.pump()
	return tc
}

// connect dials and completes the username handshake, returning once the
// user is visible in the registry.
func (e *testEnv) connect(t *testing.T, ctx context.Context, username string) *testClient {
	t.Helper()

	before := e.bus.Subscribers()
	tc := e.dial(t, ctx)
	tc.waitFor("Please enter your username: ")
	tc.send(username)
	waitUntil(t, func() bool {
		_, ok := e.reg.Find(username)
		return ok
	})
	// Delivery is only guaranteed once the session has subscribed.
	waitUntil(t, func() bool {
		return e.bus.Subscribers() > before
	})
	return tc
}

func (c *testClient) pump() {
	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.buf.Write(buf[:n])
			c.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (c *testClient) send(line string) {
	c.t.Helper()

	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *testClient) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// waitFor blocks until substr shows up in the transcript.
func (c *testClient) waitFor(substr string) {
	c.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(c.output(), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.t.Fatalf("expected %q in output, got:\n%s", substr, c.output())
}

// neverSees gives in-flight deliveries a moment to land, then asserts substr
// is absent from the transcript.
func (c *testClient) neverSees(substr string) {
	c.t.Helper()

	time.Sleep(150 * time.Millisecond)
	if strings.Contains(c.output(), substr) {
		c.t.Fatalf("unexpected %q in output:\n%s", substr, c.output())
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
