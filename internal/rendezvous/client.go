package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

var ErrClientClosed = errors.New("rendezvous client closed")

type EventType int

const (
	PeerJoined EventType = iota
	PeerLeft
)

func (t EventType) String() string {
	if t == PeerJoined {
		return "joined"
	}
	return "left"
}

type Event struct {
	Type EventType
	Peer PeerInfo
}

// Client is a member of a hub room. It tracks the other peers in the room
// and carries WebRTC signals to them.
type Client struct {
	self   PeerInfo
	conn   *websocket.Conn
	logger *logrus.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	peers   map[string]PeerInfo
	changed chan struct{}

	events  chan Event
	signals chan transport.Signal
	done    chan struct{}
	once    sync.Once
	err     error
}

// Dial connects to the hub at url (a ws:// or wss:// address ending in /ws)
// and joins the room for this host's public address.
func Dial(ctx context.Context, url string, self PeerInfo, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if self.PeerID == "" {
		return nil, errors.New("peer id is required")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		self:    self,
		conn:    conn,
		logger:  logger,
		peers:   make(map[string]PeerInfo),
		changed: make(chan struct{}),
		events:  make(chan Event, 64),
		signals: make(chan transport.Signal, 64),
		done:    make(chan struct{}),
	}

	if err := c.write(ctx, message{Type: typeJoin, PeerID: self.PeerID, Name: self.Name}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to join: %w", err)
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) Self() PeerInfo {
	return c.self
}

func (c *Client) readLoop() {
	defer func() {
		c.shutdown(nil)
		close(c.events)
		close(c.signals)
	}()

	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warnf("Lost connection to rendezvous server: %v", err)
				c.shutdown(err)
			}
			return
		}

		switch msg.Type {
		case typeExistingPeers:
			for _, p := range msg.Peers {
				c.addPeer(p)
			}
		case typePeerJoined:
			c.addPeer(PeerInfo{PeerID: msg.PeerID, Name: msg.Name})
		case typePeerLeft:
			c.removePeer(msg.PeerID)
		case typeSignal:
			select {
			case c.signals <- transport.Signal{PeerID: msg.From, Payload: msg.Payload}:
			case <-c.done:
				return
			}
		case typeError:
			c.logger.Warnf("Rendezvous server error: %s", msg.Error)
		default:
			c.logger.Debugf("Ignoring %q message", msg.Type)
		}
	}
}

func (c *Client) addPeer(p PeerInfo) {
	if p.PeerID == "" || p.PeerID == c.self.PeerID {
		return
	}
	c.mu.Lock()
	c.peers[p.PeerID] = p
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Debugf("Peer %s (%s) joined", p.PeerID, p.Name)
	c.emit(Event{Type: PeerJoined, Peer: p})
}

func (c *Client) removePeer(id string) {
	c.mu.Lock()
	p, ok := c.peers[id]
	delete(c.peers, id)
	if ok {
		c.notifyLocked()
	}
	c.mu.Unlock()

	if ok {
		c.logger.Debugf("Peer %s (%s) left", p.PeerID, p.Name)
		c.emit(Event{Type: PeerLeft, Peer: p})
	}
}

func (c *Client) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// emit drops the event when nobody is draining Events.
func (c *Client) emit(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

// Events reports peers joining and leaving the room. It is closed when the
// client stops.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Peers returns the other members of the room sorted by name.
func (c *Client) Peers() []PeerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	peers := make([]PeerInfo, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Name != peers[j].Name {
			return peers[i].Name < peers[j].Name
		}
		return peers[i].PeerID < peers[j].PeerID
	})
	return peers
}

// FindPeer matches a peer id exactly, then a display name ignoring case.
func (c *Client) FindPeer(idOrName string) (PeerInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(idOrName)
}

func (c *Client) findLocked(idOrName string) (PeerInfo, bool) {
	if p, ok := c.peers[idOrName]; ok {
		return p, true
	}
	for _, p := range c.peers {
		if strings.EqualFold(p.Name, idOrName) {
			return p, true
		}
	}
	return PeerInfo{}, false
}

// WaitForPeer blocks until a peer matching idOrName is in the room.
func (c *Client) WaitForPeer(ctx context.Context, idOrName string) (PeerInfo, error) {
	for {
		c.mu.Lock()
		p, ok := c.findLocked(idOrName)
		changed := c.changed
		c.mu.Unlock()
		if ok {
			return p, nil
		}

		select {
		case <-changed:
		case <-c.done:
			return PeerInfo{}, c.closedErr()
		case <-ctx.Done():
			return PeerInfo{}, ctx.Err()
		}
	}
}

func (c *Client) SendSignal(ctx context.Context, peerID string, signal []byte) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}
	return c.write(ctx, message{Type: typeSignal, Target: peerID, Payload: signal})
}

func (c *Client) write(ctx context.Context, msg message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(msg)
}

func (c *Client) RecvSignal() <-chan transport.Signal {
	return c.signals
}

// Done is closed once the connection to the hub is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return fmt.Errorf("%w: %v", ErrClientClosed, c.err)
	}
	return ErrClientClosed
}

func (c *Client) Close() error {
	c.shutdown(nil)

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	return c.conn.Close()
}

var _ transport.Signaler = (*Client)(nil)
