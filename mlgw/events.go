package mlgw

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the two event envelopes the engine publishes
// (§4.8). A typed discriminator replaces the source's untyped dictionaries
// (§9 Dynamic dictionaries as payloads).
type EventKind string

const (
	EventMLTelegram   EventKind = "ML_TELEGRAM"
	EventMLGWTelegram EventKind = "MLGW_TELEGRAM"
)

// Event is the envelope fanned out to subscribers. CorrelationID is a fresh
// UUID minted per published event; it identifies the event itself and is not
// linked to any probe or command ID. The discovery binding stays purely
// positional (§8 law 4).
type Event struct {
	Kind          EventKind
	CorrelationID string
	Timestamp     time.Time
	ML            *MLTelegramEvent
	MLGW          *MLGWTelegramEvent
}

// MLTelegramEvent mirrors the C2 record plus the fields §4.8 adds: a
// hex-encoded copy of the raw bytes and, where the tracker has bound an
// ml_address to a product, the owning MLN and name on either side. The
// FromEntityID/ToEntityID fields are not filled in by this package.
type MLTelegramEvent struct {
	Telegram MLTelegram
	Bytes    string

	FromMLN      byte
	FromName     string
	FromEntityID string
	HasFrom      bool

	ToMLN      byte
	ToName     string
	ToEntityID string
	HasTo      bool
}

// MLGWTelegramEvent carries the payload_type tag plus whichever decoded
// payload applies to it (§4.8). At most one of the typed payload fields is
// populated, matching PayloadType; "all_standby" carries none.
type MLGWTelegramEvent struct {
	PayloadType string

	SourceStatus    *SourceStatus
	PictSoundStatus *PictSoundStatus
	LightControl    *LightControl
	VirtualButton   *VirtualButton
}

// Publisher fans Events out to subscribers. Subscribe/Unsubscribe follow the
// teacher's map-of-channels pattern (lwl.Client.pendingJSON): a full
// subscriber channel drops the event rather than blocking the publisher.
type Publisher struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewPublisher returns a ready-to-use Publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[string]chan Event)}
}

// Subscribe registers ch to receive future events and returns a token usable
// with Unsubscribe.
func (p *Publisher) Subscribe(ch chan Event) string {
	token := uuid.New().String()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[token] = ch
	return token
}

// Unsubscribe removes a previously registered subscriber.
func (p *Publisher) Unsubscribe(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, token)
}

func (p *Publisher) publish(e Event) {
	e.CorrelationID = uuid.New().String()
	e.Timestamp = time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// PublishML emits an ML_TELEGRAM event.
func (p *Publisher) PublishML(ev MLTelegramEvent) {
	ev.Bytes = hex.EncodeToString(ev.Telegram.Raw)
	p.publish(Event{Kind: EventMLTelegram, ML: &ev})
}

// PublishMLGW emits an MLGW_TELEGRAM event.
func (p *Publisher) PublishMLGW(ev MLGWTelegramEvent) {
	p.publish(Event{Kind: EventMLGWTelegram, MLGW: &ev})
}
