package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/saifulwebid/ngobrol/internal/bus"
	"github.com/saifulwebid/ngobrol/internal/config"
	"github.com/saifulwebid/ngobrol/internal/protocol"
	"github.com/saifulwebid/ngobrol/internal/status"
)

// testServer is a scripted chat server endpoint. Each accepted connection
// is reported on conns; client frames are relayed on frames.
type testServer struct {
	srv    *httptest.Server
	conns  chan net.Conn
	frames chan []byte
	users  chan string // userId query param per connection
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		conns:  make(chan net.Conn, 4),
		frames: make(chan []byte, 16),
		users:  make(chan string, 4),
	}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.users <- r.URL.Query().Get("userId")
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ts.conns <- conn
		go func() {
			for {
				data, err := wsutil.ReadClientText(conn)
				if err != nil {
					return
				}
				ts.frames <- data
			}
		}()
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
}

func (ts *testServer) nextFrame(t *testing.T) (string, any) {
	t.Helper()
	select {
	case data := <-ts.frames:
		tag, payload, err := protocol.Parse(data)
		if err != nil {
			t.Fatalf("server received bad frame: %v", err)
		}
		return tag, payload
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client frame")
		return "", nil
	}
}

func newManager(ts *testServer, handshake string, handler FrameHandler) (*Manager, *status.Machine) {
	machine := status.NewMachine(bus.New())
	m := NewManager(ts.wsURL(), handshake, machine, handler, zap.NewNop())
	return m, machine
}

func waitForState(t *testing.T, machine *status.Machine, want status.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if machine.Current() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", machine.Current(), want)
}

func TestConnectQueryHandshake(t *testing.T) {
	ts := newTestServer(t)
	m, machine := newManager(ts, config.HandshakeQuery, nil)

	if err := m.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	if machine.Current() != status.Connected {
		t.Errorf("state = %s, want CONNECTED", machine.Current())
	}
	if got := <-ts.users; got != "alice" {
		t.Errorf("userId query param = %q, want alice", got)
	}

	// The first command after open is the notification fetch.
	tag, _ := ts.nextFrame(t)
	if tag != protocol.EventGetNotif {
		t.Errorf("first frame tag = %q, want getNotif", tag)
	}
}

func TestConnectFrameHandshake(t *testing.T) {
	ts := newTestServer(t)
	m, _ := newManager(ts, config.HandshakeFrame, nil)

	if err := m.Connect(context.Background(), "budi"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	if got := <-ts.users; got != "" {
		t.Errorf("userId query param = %q, want empty for frame variant", got)
	}

	tag, payload := ts.nextFrame(t)
	if tag != protocol.EventOnline {
		t.Fatalf("first frame tag = %q, want online", tag)
	}
	if payload.(protocol.PresencePayload).UserID != "budi" {
		t.Errorf("online payload = %+v", payload)
	}

	tag, _ = ts.nextFrame(t)
	if tag != protocol.EventGetNotif {
		t.Errorf("second frame tag = %q, want getNotif", tag)
	}
}

func TestInboundFramesReachHandlerInOrder(t *testing.T) {
	received := make(chan []byte, 8)
	ts := newTestServer(t)
	m, _ := newManager(ts, config.HandshakeQuery, func(data []byte) {
		received <- data
	})

	if err := m.Connect(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	defer m.Disconnect()

	conn := <-ts.conns
	for _, body := range []string{"one", "two", "three"} {
		frame, err := protocol.NewEnvelope(protocol.EventChat, protocol.Message{
			ID: int64(len(body)), From: "bob", To: "alice", Body: body, Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, frame); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []string{"one", "two", "three"} {
		select {
		case data := <-received:
			_, payload, err := protocol.Parse(data)
			if err != nil {
				t.Fatal(err)
			}
			if got := payload.(protocol.Message).Body; got != want {
				t.Errorf("frame body = %q, want %q (ordering)", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for inbound frame")
		}
	}
}

func TestSendWhileDisconnectedIsNoop(t *testing.T) {
	ts := newTestServer(t)
	m, _ := newManager(ts, config.HandshakeQuery, nil)

	// No queuing, no error.
	if err := m.Send(protocol.EventChat, protocol.ChatSend{From: "a", To: "b", Body: "lost"}); err != nil {
		t.Errorf("Send() while disconnected = %v, want nil", err)
	}
}

func TestDisconnect(t *testing.T) {
	ts := newTestServer(t)
	m, machine := newManager(ts, config.HandshakeQuery, nil)

	if err := m.Connect(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	m.Disconnect()

	if machine.Current() != status.Disconnected {
		t.Errorf("state = %s, want DISCONNECTED", machine.Current())
	}
	// Second disconnect is safe.
	m.Disconnect()

	// And the manager can dial again.
	if err := m.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("reconnect after Disconnect: %v", err)
	}
	m.Disconnect()
}

func TestServerCloseTransitionsToDisconnected(t *testing.T) {
	ts := newTestServer(t)
	m, machine := newManager(ts, config.HandshakeQuery, nil)

	if err := m.Connect(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}

	conn := <-ts.conns
	_ = conn.Close()

	waitForState(t, machine, status.Disconnected)
}

func TestConnectFailureLandsInDisconnected(t *testing.T) {
	machine := status.NewMachine(nil)
	m := NewManager("ws://127.0.0.1:1/ws", config.HandshakeQuery, machine, nil, zap.NewNop())

	if err := m.Connect(context.Background(), "alice"); err == nil {
		t.Fatal("Connect() to dead endpoint should fail")
	}
	if machine.Current() != status.Disconnected {
		t.Errorf("state = %s, want DISCONNECTED", machine.Current())
	}
}
