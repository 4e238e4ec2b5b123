// Package hub keeps the process-local set of live notification connections per user.
package hub

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Frame is one event pushed to a client.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is one live connection. Frames queued for it are drained by the transport's
// writer goroutine through Send.
type Client struct {
	UserID uint64

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client whose queue holds at most buffer frames.
func NewClient(userID uint64, buffer int) *Client {
	return &Client{
		UserID: userID,
		send:   make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
}

// Send is the queue the writer drains.
func (c *Client) Send() <-chan Frame {
	return c.send
}

// Done is closed once the client has been unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Registry maps user ids to their live clients. The zero value is not usable; build one
// with NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint64]map[*Client]struct{}
	log     logrus.FieldLogger
}

// NewRegistry returns an empty registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		clients: make(map[uint64]map[*Client]struct{}),
		log:     log,
	}
}

// Register adds c to its user's group.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.clients[c.UserID]
	if !ok {
		group = make(map[*Client]struct{})
		r.clients[c.UserID] = group
	}
	group[c] = struct{}{}
}

// Unregister removes c and closes its Done channel. Safe to call more than once.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	if group, ok := r.clients[c.UserID]; ok {
		delete(group, c)
		if len(group) == 0 {
			delete(r.clients, c.UserID)
		}
	}
	r.mu.Unlock()

	c.close()
}

// Connections returns how many clients userID currently has.
func (r *Registry) Connections(userID uint64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID])
}

// PublishToUser queues frame for every client of userID without blocking and returns how
// many clients accepted it. A client whose queue is full misses the frame.
func (r *Registry) PublishToUser(userID uint64, frame Frame) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for c := range r.clients[userID] {
		select {
		case c.send <- frame:
			delivered++
		default:
			r.log.WithFields(logrus.Fields{
				"user_id": userID,
				"type":    frame.Type,
			}).Warn("Notification client buffer full, dropping frame")
		}
	}

	return delivered
}
