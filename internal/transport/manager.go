// Package transport owns the persistent WebSocket connection to the chat
// server: dialing, the read loop, outbound sends, and teardown. It speaks
// raw frames; envelope semantics live in the dispatcher and protocol
// packages. There is no reconnect logic: any failure transitions straight
// to Disconnected and recovery is a fresh login.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/saifulwebid/ngobrol/internal/config"
	"github.com/saifulwebid/ngobrol/internal/metrics"
	"github.com/saifulwebid/ngobrol/internal/protocol"
	"github.com/saifulwebid/ngobrol/internal/status"
)

// FrameHandler receives each inbound text frame. It is invoked
// synchronously from the read loop, so frames are handled in delivery
// order and one frame completes before the next is dispatched.
type FrameHandler func(data []byte)

// Manager owns the transport connection lifecycle and its current status.
type Manager struct {
	serverURL string
	handshake string
	machine   *status.Machine
	handler   FrameHandler
	logger    *zap.Logger

	mu   sync.Mutex
	conn net.Conn
	done chan struct{}
}

// NewManager creates a connection manager. serverURL is the ws:// endpoint;
// handshake selects how presence is announced (config.HandshakeQuery puts
// userId in the URL, config.HandshakeFrame sends an online envelope after
// open).
func NewManager(serverURL, handshake string, machine *status.Machine, handler FrameHandler, logger *zap.Logger) *Manager {
	return &Manager{
		serverURL: serverURL,
		handshake: handshake,
		machine:   machine,
		handler:   handler,
		logger:    logger,
	}
}

// State returns the current connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Connect dials the server for the given user and, on success, immediately
// requests the user's pending notifications. The caller validates that
// userID is non-empty.
func (m *Manager) Connect(ctx context.Context, userID string) error {
	if err := m.machine.Transition(status.Connecting); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	target := m.serverURL
	if m.handshake == config.HandshakeQuery {
		u, err := url.Parse(m.serverURL)
		if err != nil {
			_ = m.machine.Transition(status.Disconnected)
			return fmt.Errorf("parse server url: %w", err)
		}
		q := u.Query()
		q.Set("userId", userID)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	conn, _, _, err := ws.Dial(ctx, target)
	if err != nil {
		_ = m.machine.Transition(status.Disconnected)
		metrics.ConnectsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("dial %s: %w", target, err)
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.conn = conn
	m.done = done
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connected)
	metrics.ConnectsTotal.WithLabelValues("opened").Inc()
	m.logger.Info("connected", zap.String("url", m.serverURL), zap.String("handshake", m.handshake))

	if m.handshake == config.HandshakeFrame {
		if err := m.Send(protocol.EventOnline, protocol.PresencePayload{UserID: userID}); err != nil {
			m.logger.Warn("online announce failed", zap.Error(err))
		}
	}

	// Pending notifications are fetched as soon as the socket opens.
	if err := m.Send(protocol.EventGetNotif, struct{}{}); err != nil {
		m.logger.Warn("notification fetch failed", zap.Error(err))
	}

	go m.readLoop(conn, done)
	return nil
}

// Send serializes and transmits a command envelope. While not Connected it
// is a documented no-op: nothing is queued and no error is surfaced.
func (m *Manager) Send(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		m.logger.Debug("send dropped while disconnected", zap.String("event", event))
		return nil
	}

	data, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := wsutil.WriteClientMessage(m.conn, ws.OpText, data); err != nil {
		return fmt.Errorf("write %q frame: %w", event, err)
	}
	metrics.FramesTotal.WithLabelValues("outbound").Inc()
	return nil
}

// Disconnect closes the transport and clears the handle. Safe to call while
// already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	done := m.done
	m.conn = nil
	m.done = nil
	m.mu.Unlock()

	if conn == nil {
		return
	}
	close(done)
	_ = conn.Close()
	_ = m.machine.Transition(status.Disconnected)
	m.logger.Info("disconnected")
}

// readLoop reads frames until the connection closes or errors, handing each
// one to the frame handler in order.
func (m *Manager) readLoop(conn net.Conn, done chan struct{}) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			select {
			case <-done:
				// Intentional local close; Disconnect already ran.
			default:
				m.logger.Warn("read failed, dropping connection", zap.Error(err))
				m.teardown(conn)
			}
			return
		}

		metrics.FramesTotal.WithLabelValues("inbound").Inc()
		if m.handler != nil {
			m.handler(data)
		}
	}
}

// teardown handles a server-side close or read error for the given conn.
func (m *Manager) teardown(conn net.Conn) {
	m.mu.Lock()
	if m.conn != conn {
		// A newer connection took over; nothing to do.
		m.mu.Unlock()
		return
	}
	done := m.done
	m.conn = nil
	m.done = nil
	m.mu.Unlock()

	close(done)
	_ = conn.Close()
	_ = m.machine.Transition(status.Disconnected)
}
