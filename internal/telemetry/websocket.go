package telemetry

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   65536,
	EnableCompression: false,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// wsConn wraps a connection with a write mutex, in the shape of wsConn
// (websocket.go) — gorilla's Conn is not safe for concurrent writers and
// the broadcaster fans one snapshot out to many clients.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Broadcaster serves a read-only websocket feed of Snapshot values (spec
// SPEC_FULL.md §4.K): clients connect, receive every update the
// coordinator pushes, and can never send anything that mutates state.
type Broadcaster struct {
	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{conns: make(map[*wsConn]struct{})}
}

// Handler upgrades incoming HTTP requests to websocket connections and
// registers them for broadcast. Mount under e.g. "/ws/status".
func (b *Broadcaster) Handler(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("telemetry: websocket upgrade failed: %v", err)
		return
	}

	c := &wsConn{conn: raw}
	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()

	// Drain and discard any client messages; this feed is read-only.
	go func() {
		defer b.remove(c)
		for {
			if _, _, err := raw.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *Broadcaster) remove(c *wsConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, c)
	c.conn.Close()
}

// Broadcast pushes a Snapshot to every connected client, dropping any
// connection whose write fails.
func (b *Broadcaster) Broadcast(s Snapshot) {
	payload := snapshotView{
		Timestamp:      s.Timestamp.Unix(),
		RunID:          s.RunID,
		SceneIntensity: s.SceneIntensity,
		PowerLimited:   s.PowerLimited,
		FrameRate:      s.FrameRate,
	}
	payload.ZoneColors = make([][3]int, len(s.ZoneColors))
	for i, c := range s.ZoneColors {
		payload.ZoneColors[i] = [3]int{int(c.R), int(c.G), int(c.B)}
	}

	b.mu.Lock()
	targets := make([]*wsConn, 0, len(b.conns))
	for c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.Unlock()

	for _, c := range targets {
		if err := c.writeJSON(payload); err != nil {
			b.remove(c)
		}
	}
}

type snapshotView struct {
	Timestamp      int64    `json:"timestamp"`
	RunID          string   `json:"run_id"`
	SceneIntensity float64  `json:"scene_intensity"`
	PowerLimited   bool     `json:"power_limited"`
	FrameRate      float64  `json:"frame_rate"`
	ZoneColors     [][3]int `json:"zone_colors"`
}
