package watch

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type welcomeMessage struct {
	Type              string `json:"type"`
	ConnectionID      string `json:"connectionId"`
	HeartbeatInterval int    `json:"heartbeatInterval"`
	ConnectionTimeout int    `json:"connectionTimeout"`
	ConnectedAt       int64  `json:"connectedAt"`
}

type subscribedMessage struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type eventMessage struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	OldPath   string `json:"oldPath,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type pingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type pongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// inbound is the shape of every client->server message this hub accepts.
type inbound struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

// Connection wraps one accepted websocket with the per-connection state
// the heartbeat reaper and subscription dispatcher need.
type Connection struct {
	ID  string
	ws  *websocket.Conn
	hub *Hub
	log *logrus.Entry

	writeMu sync.Mutex

	missedPongs int32

	activityMu sync.Mutex
	lastSeen   time.Time
}

func newConnection(id string, ws *websocket.Conn, hub *Hub, log *logrus.Entry) *Connection {
	return &Connection{ID: id, ws: ws, hub: hub, log: log, lastSeen: time.Now()}
}

func (c *Connection) send(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).Warn("watch: failed to marshal outbound message")
		return
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.WithError(err).Debug("watch: write failed, connection likely closed")
	}
}

func (c *Connection) touch() {
	c.activityMu.Lock()
	c.lastSeen = time.Now()
	c.activityMu.Unlock()
}

func (c *Connection) lastActivity() time.Time {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	return c.lastSeen
}

func (c *Connection) incrementMissedPongs() {
	atomic.AddInt32(&c.missedPongs, 1)
}

func (c *Connection) resetMissedPongs() {
	atomic.StoreInt32(&c.missedPongs, 0)
}

func (c *Connection) missedPongsOver(n int) bool {
	return atomic.LoadInt32(&c.missedPongs) >= int32(n)
}

func (c *Connection) closeWithPolicyViolation() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many missed heartbeats"), deadline)
	_ = c.ws.Close()
}

// readLoop drives the connection until it closes, dispatching subscribe,
// unsubscribe and ping/pong client messages.
func (c *Connection) readLoop() {
	defer c.hub.Unregister(c)
	defer func() { _ = c.ws.Close() }()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		c.resetMissedPongs()

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(errorMessage{Type: "error", Message: "Unknown message type: "})
			continue
		}

		switch msg.Type {
		case "subscribe":
			if len(msg.Path) == 0 || msg.Path[0] != '/' {
				c.send(errorMessage{Type: "error", Message: "path must start with /"})
				continue
			}
			c.hub.Subscribe(c, msg.Path, msg.Recursive)
			c.send(subscribedMessage{Type: "subscribed", Path: msg.Path})
		case "unsubscribe":
			c.hub.Unsubscribe(c, msg.Path)
			c.send(struct {
				Type string `json:"type"`
			}{"unsubscribed"})
		case "ping":
			c.send(pongMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})
		case "pong":
			// resetMissedPongs above already handled liveness.
		default:
			c.send(errorMessage{Type: "error", Message: "Unknown message type: " + msg.Type})
		}
	}
}
