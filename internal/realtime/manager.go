package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/senigami/factorywatch/internal/telemetry"
)

// DefaultReconnectDelay is the fixed pause before a reconnect attempt after
// any closure. It is a plain constant with no backoff schedule behind it.
const DefaultReconnectDelay = 5 * time.Second

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
)

// Handlers receives dispatched push-channel messages and liveness changes.
// Nil fields are skipped. Handlers are called from the manager's read-loop
// goroutine, one message at a time.
type Handlers struct {
	JobPatch     func(jobID string, updates json.RawMessage)
	QueueChanged func()
	PauseChanged func(paused bool)
	TestProgress func(name string, progress float64, startedAt *float64)
	LiveChanged  func(live bool)
}

// Manager owns the single push-channel connection to the factory server. It
// is an explicit state machine (idle -> connecting -> open -> idle) with one
// owned reconnect timer, so at most one reconnect attempt is ever pending.
type Manager struct {
	logger   *log.Logger
	endpoint string
	delay    time.Duration
	handlers Handlers
	dialer   *websocket.Dialer

	mu        sync.Mutex
	state     connState
	conn      *websocket.Conn
	reconnect *time.Timer
	gen       uint64 // connection generation; stale goroutine callbacks check it
}

// NewManager derives the websocket endpoint from the server's HTTP base URL,
// mirroring its scheme (http -> ws, https -> wss).
func NewManager(logger *log.Logger, baseURL string, delay time.Duration, handlers Handlers) (*Manager, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported server url scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""

	return &Manager{
		logger:   logger,
		endpoint: u.String(),
		delay:    delay,
		handlers: handlers,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Endpoint returns the derived websocket URL.
func (m *Manager) Endpoint() string { return m.endpoint }

// Live reports whether the push channel is currently open.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateOpen
}

// Connect starts opening the push channel. It is idempotent: calling it
// while a connection is open or already being opened is a no-op. A pending
// reconnect timer is cancelled, since the attempt is happening now instead.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		return
	}
	m.cancelReconnectLocked()
	m.state = stateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.dial(gen)
}

// Disconnect tears the channel down: it closes any open connection and
// cancels any pending reconnect. Safe to call at any point, including while
// a dial is in flight, and leaves no timers or goroutines behind.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.gen++ // orphan any in-flight dial or read loop
	wasOpen := m.state == stateOpen
	conn := m.conn
	m.conn = nil
	m.state = stateIdle
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasOpen {
		m.setLive(false)
	}
}

func (m *Manager) dial(gen uint64) {
	conn, resp, err := m.dialer.Dial(m.endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if m.gen != gen {
		// Torn down or superseded while dialing.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		m.state = stateIdle
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.logger.Printf("push channel connect failed: %v", err)
		return
	}

	m.conn = conn
	m.state = stateOpen
	m.cancelReconnectLocked()
	m.mu.Unlock()

	m.logger.Printf("push channel open endpoint=%s", m.endpoint)
	m.setLive(true)
	go m.readLoop(conn, gen)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		m.dispatch(payload)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = stateIdle
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	_ = conn.Close()
	m.logger.Printf("push channel closed, reconnecting in %s", m.delay)
	m.setLive(false)
}

// scheduleReconnectLocked arms the single reconnect timer unless one is
// already pending. Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnect != nil {
		return
	}
	telemetry.ReconnectsTotal.Inc()
	m.reconnect = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		m.reconnect = nil
		if m.state != stateIdle {
			m.mu.Unlock()
			return
		}
		m.state = stateConnecting
		m.gen++
		gen := m.gen
		m.mu.Unlock()

		go m.dial(gen)
	})
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) setLive(live bool) {
	if live {
		telemetry.ConnectionLive.Set(1)
	} else {
		telemetry.ConnectionLive.Set(0)
	}
	if m.handlers.LiveChanged != nil {
		m.handlers.LiveChanged(live)
	}
}

// dispatch decodes one raw payload and routes it by type. Malformed payloads
// are dropped; they never crash the loop and are never retried.
func (m *Manager) dispatch(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		telemetry.DecodeDropsTotal.Inc()
		m.logger.Printf("dropping undecodable push message: %v", err)
		return
	}

	switch env.Type {
	case MessageJobUpdated:
		telemetry.MessagesTotal.WithLabelValues(string(env.Type)).Inc()
		if m.handlers.JobPatch != nil {
			m.handlers.JobPatch(env.JobID, env.Updates)
		}
	case MessageQueueUpdated:
		telemetry.MessagesTotal.WithLabelValues(string(env.Type)).Inc()
		if m.handlers.QueueChanged != nil {
			m.handlers.QueueChanged()
		}
	case MessagePauseUpdated:
		telemetry.MessagesTotal.WithLabelValues(string(env.Type)).Inc()
		if m.handlers.PauseChanged != nil {
			m.handlers.PauseChanged(env.Paused)
		}
	case MessageTestProgress:
		telemetry.MessagesTotal.WithLabelValues(string(env.Type)).Inc()
		if m.handlers.TestProgress != nil {
			m.handlers.TestProgress(env.Name, env.Progress, env.StartedAt)
		}
	default:
		telemetry.DecodeDropsTotal.Inc()
		m.logger.Printf("dropping push message with unknown type %q", env.Type)
	}
}
