// Package bus implements the MessageBus abstraction SPEC_FULL §5/§9 calls
// for: addressable, reliable, in-process delivery of typed messages between
// agents. Grounded on pkg/events/events.go's Broker/Subscriber shape,
// generalized from broadcast-only pub/sub to addressed point-to-point
// delivery, and changed from "drop when full" to "never drop" — the spec's
// mailboxes are unbounded by design (SPEC_FULL §5, "Backpressure: None").
package bus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cuemby/fleetsim/pkg/simtypes"
)

// Message is one envelope delivered through the bus.
type Message struct {
	From         string
	To           string
	Performative simtypes.Performative
	Body         json.RawMessage
	SentAt       time.Time
}

// Decode unmarshals the message body into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}

const mailboxBuffer = 256

// mailbox is a single recipient's inbox: a buffered channel backed by an
// unbounded overflow queue, so Send never blocks and never drops — unlike
// pkg/events.Broker's broadcast, which drops on a full subscriber buffer.
type mailbox struct {
	mu       sync.Mutex
	ch       chan Message
	overflow []Message
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan Message, mailboxBuffer)}
}

func (b *mailbox) deliver(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case b.ch <- m:
		return
	default:
	}
	b.overflow = append(b.overflow, m)
}

// drainOverflow moves as much of the overflow queue into the channel as
// fits. Called opportunistically by Receive so a slow consumer eventually
// catches up without the sender ever blocking.
func (b *mailbox) drainOverflow() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.overflow) > 0 {
		select {
		case b.ch <- b.overflow[0]:
			b.overflow = b.overflow[1:]
		default:
			return
		}
	}
}

// Bus is the in-process MessageBus: every agent id is mapped to exactly one
// mailbox, and Send serializes enqueues per destination so that messages
// from a fixed sender A to a fixed recipient B are delivered in send order
// (SPEC_FULL §5's two-agent ordering guarantee).
type Bus struct {
	mu        sync.RWMutex
	mailboxes map[string]*mailbox
	sendLocks map[string]*sync.Mutex
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		mailboxes: make(map[string]*mailbox),
		sendLocks: make(map[string]*sync.Mutex),
	}
}

// Connect registers an agent id, creating its mailbox if this is the first
// time the id has been seen.
func (b *Bus) Connect(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.mailboxes[id]; !ok {
		b.mailboxes[id] = newMailbox()
		b.sendLocks[id] = &sync.Mutex{}
	}
}

// Send delivers a message to `to`'s mailbox. body is marshaled to JSON.
// Unknown recipients are silently dropped (SPEC_FULL §4.1's failure
// semantics: "a missing world address... emits a warning and is dropped").
func (b *Bus) Send(from, to string, performative simtypes.Performative, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	b.mu.RLock()
	box, ok := b.mailboxes[to]
	lock := b.sendLocks[to]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	lock.Lock()
	defer lock.Unlock()
	box.deliver(Message{From: from, To: to, Performative: performative, Body: raw, SentAt: time.Now()})
	return nil
}

// Receive blocks until a message for `id` arrives, the context-like
// deadline `timeout` elapses (ok=false), or the bus has no mailbox for id.
func (b *Bus) Receive(id string, timeout time.Duration) (Message, bool) {
	b.mu.RLock()
	box, ok := b.mailboxes[id]
	b.mu.RUnlock()
	if !ok {
		return Message{}, false
	}
	box.drainOverflow()
	select {
	case m := <-box.ch:
		return m, true
	case <-time.After(timeout):
		box.drainOverflow()
		return Message{}, false
	}
}

// TryReceive returns immediately: the next queued message, or ok=false if
// the mailbox is empty.
func (b *Bus) TryReceive(id string) (Message, bool) {
	b.mu.RLock()
	box, ok := b.mailboxes[id]
	b.mu.RUnlock()
	if !ok {
		return Message{}, false
	}
	box.drainOverflow()
	select {
	case m := <-box.ch:
		return m, true
	default:
		return Message{}, false
	}
}

// Broadcast sends the same body to every id in `to`.
func (b *Bus) Broadcast(from string, to []string, performative simtypes.Performative, body any) {
	for _, t := range to {
		_ = b.Send(from, t, performative, body)
	}
}
