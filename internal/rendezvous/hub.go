package rendezvous

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
	maxMessage = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type member struct {
	PeerInfo
	room string
	send chan message
	done chan struct{}
	once sync.Once
}

func (m *member) close() {
	m.once.Do(func() { close(m.done) })
}

// queue hands msg to the member's writer without blocking. A member that
// cannot keep up is dropped.
func (m *member) queue(msg message) bool {
	select {
	case m.send <- msg:
		return true
	case <-m.done:
		return false
	default:
		m.close()
		return false
	}
}

// Hub groups peers into rooms by public IP address and relays signals
// between members of the same room.
type Hub struct {
	logger *logrus.Logger

	mu    sync.Mutex
	peers map[string]*member
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		logger: logger,
		peers:  make(map[string]*member),
	}
}

// Handler serves the WebSocket endpoint on /ws and a health string on /.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("Signaling Server Running"))
	})
	return mux
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("Error upgrading connection from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var join message
	if err := conn.ReadJSON(&join); err != nil {
		h.logger.Debugf("Error reading join from %s: %v", r.RemoteAddr, err)
		return
	}
	if join.Type != typeJoin || join.PeerID == "" {
		_ = conn.WriteJSON(message{Type: typeError, Error: "expected join with peer_id"})
		return
	}
	if join.Name == "" {
		join.Name = "Anonymous"
	}

	m := &member{
		PeerInfo: PeerInfo{PeerID: join.PeerID, Name: join.Name},
		room:     "room_" + clientIP(r),
		send:     make(chan message, sendBuffer),
		done:     make(chan struct{}),
	}
	existing := h.join(m)
	defer h.leave(m)

	go h.writeLoop(conn, m)
	m.queue(message{Type: typeExistingPeers, Peers: existing})

	h.logger.Infof("Peer %s (%s) joined %s", m.PeerID, m.Name, m.room)
	h.readLoop(conn, m)
}

func (h *Hub) readLoop(conn *websocket.Conn, m *member) {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugf("Error reading from %s: %v", m.PeerID, err)
			}
			return
		}

		switch msg.Type {
		case typeSignal:
			h.relay(m, msg)
		default:
			h.logger.Debugf("Ignoring %q message from %s", msg.Type, m.PeerID)
		}

		select {
		case <-m.done:
			return
		default:
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, m *member) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg := <-m.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				m.close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.close()
				return
			}
		case <-m.done:
			return
		}
	}
}

// join registers m and returns the peers already in its room. A peer
// rejoining under the same id replaces its stale entry.
func (h *Hub) join(m *member) []PeerInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.peers[m.PeerID]; ok {
		old.close()
	}
	h.peers[m.PeerID] = m

	existing := []PeerInfo{}
	for id, other := range h.peers {
		if id == m.PeerID || other.room != m.room {
			continue
		}
		existing = append(existing, other.PeerInfo)
		other.queue(message{Type: typePeerJoined, PeerID: m.PeerID, Name: m.Name})
	}
	return existing
}

func (h *Hub) leave(m *member) {
	m.close()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.peers[m.PeerID] != m {
		return
	}
	delete(h.peers, m.PeerID)
	for _, other := range h.peers {
		if other.room == m.room {
			other.queue(message{Type: typePeerLeft, PeerID: m.PeerID})
		}
	}
	h.logger.Infof("Peer %s disconnected", m.PeerID)
}

func (h *Hub) relay(from *member, msg message) {
	h.mu.Lock()
	target, ok := h.peers[msg.Target]
	h.mu.Unlock()

	if !ok || target.room != from.room {
		from.queue(message{Type: typeError, Target: msg.Target, Error: "unknown peer"})
		return
	}
	target.queue(message{Type: typeSignal, From: from.PeerID, Payload: msg.Payload})
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// clientIP prefers the first X-Forwarded-For entry, for hubs behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
