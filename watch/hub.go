// Package watch implements the change-notification channel: one logical
// long-lived connection per client, path subscriptions (exact and
// recursive), heartbeat-driven liveness, and mutation fan-out from the
// InodeGraph's Notifier hook.
package watch

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsxd/fsxd/vfs"
	"github.com/sirupsen/logrus"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultConnectionTimeout = 90 * time.Second
	maxMissedPongs           = 3
)

// Hub fans VFS mutation events out to subscribed connections and manages
// their heartbeat lifecycle. It implements vfs.Notifier.
type Hub struct {
	log *logrus.Entry

	heartbeatInterval time.Duration
	connectionTimeout time.Duration

	mu          sync.Mutex
	conns       map[string]*Connection
	exact       map[string]map[string]*Connection // path -> connID -> conn
	recursive   map[string]map[string]*Connection // ancestor path -> connID -> conn
	timer       *time.Timer
	timerActive bool

	seq uint64
}

// NewHub builds a Hub with the default heartbeat and timeout values.
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		log:               log,
		heartbeatInterval: defaultHeartbeatInterval,
		connectionTimeout: defaultConnectionTimeout,
		conns:             make(map[string]*Connection),
		exact:             make(map[string]map[string]*Connection),
		recursive:         make(map[string]map[string]*Connection),
	}
}

// WithIntervals overrides the heartbeat/timeout durations, for tests and
// operator tuning. Non-positive values keep the defaults.
func (h *Hub) WithIntervals(heartbeat, timeout time.Duration) *Hub {
	if heartbeat > 0 {
		h.heartbeatInterval = heartbeat
	}
	if timeout > 0 {
		h.connectionTimeout = timeout
	}
	return h
}

// Register adds conn to the hub, sends its welcome message, and starts
// the heartbeat timer if it isn't already running. One timer drives
// heartbeats for every connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.ensureTimerLocked()
	h.mu.Unlock()

	conn.send(welcomeMessage{
		Type:              "welcome",
		ConnectionID:      conn.ID,
		HeartbeatInterval: int(h.heartbeatInterval / time.Millisecond),
		ConnectionTimeout: int(h.connectionTimeout / time.Millisecond),
		ConnectedAt:       time.Now().UnixMilli(),
	})
}

// Unregister removes conn from the hub and every subscription set.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn.ID)
	for path, set := range h.exact {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(h.exact, path)
		}
	}
	for path, set := range h.recursive {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(h.recursive, path)
		}
	}
	if len(h.conns) == 0 {
		h.stopTimerLocked()
	}
}

// Subscribe adds conn's interest in path (recursive, when set, also
// matches descendants).
func (h *Hub) Subscribe(conn *Connection, path string, recursive bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	index := h.exact
	if recursive {
		index = h.recursive
	}
	if index[path] == nil {
		index[path] = make(map[string]*Connection)
	}
	index[path][conn.ID] = conn
}

// Unsubscribe removes conn's interest in path from both indices.
func (h *Hub) Unsubscribe(conn *Connection, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.exact[path]; ok {
		delete(set, conn.ID)
	}
	if set, ok := h.recursive[path]; ok {
		delete(set, conn.ID)
	}
}

// Notify implements vfs.Notifier: dispatch evt to every exact subscriber
// of evt.Path and every recursive subscriber of an ancestor of evt.Path.
// Keeping the two indices separate makes dispatch O(path depth) rather
// than O(subscribers).
func (h *Hub) Notify(evt vfs.Event) {
	msg := eventMessage{
		Type:      string(evt.Kind),
		Path:      evt.Path,
		OldPath:   evt.OldPath,
		Timestamp: evt.Timestamp.UnixMilli(),
	}

	h.mu.Lock()
	targets := make(map[string]*Connection)
	if set, ok := h.exact[evt.Path]; ok {
		for id, c := range set {
			targets[id] = c
		}
	}
	for ancestor := range ancestorsOf(evt.Path) {
		if set, ok := h.recursive[ancestor]; ok {
			for id, c := range set {
				targets[id] = c
			}
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.send(msg)
	}
}

// ancestorsOf yields every prefix of path that a recursive subscription
// could have been registered against, including path itself.
func ancestorsOf(path string) map[string]struct{} {
	out := map[string]struct{}{path: {}}
	for {
		idx := strings.LastIndex(path, "/")
		if idx <= 0 {
			out["/"] = struct{}{}
			break
		}
		path = path[:idx]
		out[path] = struct{}{}
	}
	return out
}

func (h *Hub) ensureTimerLocked() {
	if h.timerActive {
		return
	}
	h.timerActive = true
	h.timer = time.AfterFunc(h.heartbeatInterval, h.tick)
}

func (h *Hub) stopTimerLocked() {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timerActive = false
}

// tick runs once per heartbeatInterval: ping every connection, reap stale
// ones, and reschedule iff connections remain.
func (h *Hub) tick() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	now := time.Now()
	for _, c := range conns {
		if c.missedPongsOver(maxMissedPongs) || now.Sub(c.lastActivity()) > h.connectionTimeout {
			c.send(errorMessage{Type: "error", Message: "Too many missed heartbeats", Code: "CONNECTION_STALE"})
			c.closeWithPolicyViolation()
			h.Unregister(c)
			continue
		}
		c.incrementMissedPongs()
		c.send(pingMessage{Type: "ping", Timestamp: now.UnixMilli()})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) > 0 {
		h.timer = time.AfterFunc(h.heartbeatInterval, h.tick)
	} else {
		h.timerActive = false
	}
}

// NewConnectionID issues a conn-<ts>-<seq> identifier: a millisecond
// timestamp plus a per-hub sequence number so two connections accepted in
// the same millisecond still get distinct ids.
func (h *Hub) NewConnectionID() string {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()
	return "conn-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.FormatUint(seq, 10)
}
