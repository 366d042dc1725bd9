// Package bus implements the in-process publish/subscribe backbone that
// carries the kernel's runtime control surface and snapshot/command
// exchange (see kernel/control and kernel/snapshot). Topics are slash-free
// sequences of string tokens; subscriptions may use the MQTT-style
// wildcards "+" (matches exactly one level) and "#" (matches the remainder
// of the topic, must be the final token).
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of string tokens identifying a channel.
type Topic []string

// T builds a Topic from the given tokens. Tokens must be comparable
// strings; T panics if given a non-string argument, since topics are
// string paths, not an arbitrary keyed structure.
func T(tokens ...any) Topic {
	out := make(Topic, len(tokens))
	for i, tok := range tokens {
		s, ok := tok.(string)
		if !ok {
			panic(fmt.Sprintf("bus.T: token %d (%#v) is not comparable as a topic element", i, tok))
		}
		out[i] = s
	}
	return out
}

// String renders a Topic as a slash-joined path, for logging and for
// callers that want to use a topic as a map key or requestId.
func (t Topic) String() string {
	s := ""
	for i, tok := range t {
		if i > 0 {
			s += "/"
		}
		s += tok
	}
	return s
}

const (
	wildcardOne = "+"
	wildcardAny = "#"
)

func matches(pattern, topic Topic) bool {
	for i, p := range pattern {
		if p == wildcardAny {
			return true // matches this level and everything after
		}
		if i >= len(topic) {
			return false
		}
		if p != wildcardOne && p != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

// Message is the unit of exchange on the bus.
type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

// Subscription represents one connection's interest in a topic pattern.
type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
}

func (s *Subscription) Topic() Topic             { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus is the shared, concurrency-safe pub/sub core. A Bus has no notion of
// identity; callers interact through a Connection.
type Bus struct {
	mu        sync.RWMutex
	subs      []*Subscription
	retained  map[string]*Message // key: exact topic joined with \x00
	qLen      int
	requestID atomic.Uint64
}

// NewBus creates a bus whose per-subscription delivery queues have
// capacity queueLen; a non-positive queueLen is replaced by 8.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		retained: make(map[string]*Message),
		qLen:     queueLen,
	}
}

func topicKey(t Topic) string {
	// Tokens are user-controlled process-internal identifiers; a simple
	// separator-joined key is sufficient since tokens never themselves
	// contain the separator in this domain.
	key := ""
	for i, tok := range t {
		if i > 0 {
			key += "\x00"
		}
		key += tok
	}
	return key
}

// NewMessage constructs a message addressed to topic.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	var replay []*Message
	for _, msg := range b.retained {
		if matches(sub.pattern, msg.Topic) {
			replay = append(replay, msg)
		}
	}
	b.mu.Unlock()

	for _, msg := range replay {
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Publish delivers msg to every subscription whose pattern matches its
// topic, and updates the retained-message store for that exact topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	if msg.Retained {
		key := topicKey(msg.Topic)
		if msg.Payload == nil {
			delete(b.retained, key)
		} else {
			b.retained[key] = msg
		}
	}
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if matches(sub.pattern, msg.Topic) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		default:
			// Drop the oldest queued message to make room; a slow
			// consumer loses history, not liveness.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// nextRequestID returns a process-unique reply-topic suffix.
func (b *Bus) nextRequestID() uint64 { return b.requestID.Add(1) }

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection is a named handle onto a Bus that tracks its own
// subscriptions for bulk teardown via Disconnect.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a connection identified by id (used only for
// diagnostics; the bus does not enforce uniqueness).
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

// NewMessage constructs a message addressed to topic, via this
// connection's bus.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends msg on the underlying bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers interest in pattern (which may contain "+"/"#"
// wildcards) and returns a handle whose Channel() delivers matches,
// including any currently-retained message on a matching exact topic.
func (c *Connection) Subscribe(pattern Topic) *Subscription {
	sub := &Subscription{
		pattern: pattern,
		ch:      make(chan *Message, c.bus.qLen),
		conn:    c,
	}
	c.bus.addSubscription(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe tears down sub and closes its channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect tears down every subscription owned by this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request / reply
// -----------------------------------------------------------------------------

// Reply publishes payload to the ReplyTo topic of req. It is a no-op if
// req carries no ReplyTo (the sender used fire-and-forget Publish).
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}

// Request stamps req with a fresh, process-unique ReplyTo topic,
// subscribes to it, publishes req, and returns the subscription so the
// caller can read the reply (or replies, for fan-in patterns) at its own
// pace. The caller owns unsubscribing.
func (c *Connection) Request(req *Message) *Subscription {
	id := c.bus.nextRequestID()
	req.ReplyTo = Topic{"_reply", c.id, fmt.Sprintf("%d", id)}
	sub := c.Subscribe(req.ReplyTo)
	c.Publish(req)
	return sub
}

// RequestWait is Request followed by a single blocking receive bounded
// by ctx; the reply subscription is always torn down before returning.
func (c *Connection) RequestWait(ctx context.Context, req *Message) (*Message, error) {
	sub := c.Request(req)
	defer c.Unsubscribe(sub)

	select {
	case reply, ok := <-sub.Channel():
		if !ok {
			return nil, fmt.Errorf("bus: request channel closed before reply")
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
