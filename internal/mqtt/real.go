package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/date-slicer/internal/filter"
	"github.com/sweeney/date-slicer/internal/reconcile"
)

const (
	publishTimeout    = 5 * time.Second
	subscribeTimeout  = 5 * time.Second
	defaultBufferSize = 64
	eventQueueSize    = 64
)

// Options configures a RealBus.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int
	Logger     *slog.Logger
}

// RealBus is the filter bus on an actual MQTT broker. Publishes made while
// the connection is down are buffered and flushed on reconnect.
type RealBus struct {
	client paho.Client
	logger *slog.Logger

	mu      sync.Mutex
	topics  Topics
	current map[string]filter.Set // last known set per filters topic
	buffer  *ringBuffer

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewRealBus creates a bus and starts connecting in the background.
func NewRealBus(opts Options) *RealBus {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}

	b := &RealBus{
		logger:  opts.Logger,
		topics:  opts.Topics,
		current: make(map[string]filter.Set),
		buffer:  newRingBuffer(opts.BufferSize),
		events:  make(chan Event, eventQueueSize),
		done:    make(chan struct{}),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetWill(opts.Topics.System(), string(will), 1, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			b.logger.Warn("mqtt: connection lost", "err", err)
		})

	b.client = paho.NewClient(clientOpts)
	b.client.Connect()
	return b
}

// onConnect (re)subscribes and flushes messages buffered while offline.
func (b *RealBus) onConnect(c paho.Client) {
	b.mu.Lock()
	subs := b.topics.subscriptions()
	pending := b.buffer.drainAll()
	b.mu.Unlock()

	b.logger.Info("mqtt: connected", "buffered", len(pending))

	token := c.SubscribeMultiple(subs, b.handle)
	if !token.WaitTimeout(subscribeTimeout) {
		b.logger.Warn("mqtt: subscribe timeout")
	} else if err := token.Error(); err != nil {
		b.logger.Warn("mqtt: subscribe failed", "err", err)
	}

	for _, msg := range pending {
		t := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !t.WaitTimeout(publishTimeout) || t.Error() != nil {
			b.logger.Warn("mqtt: replay failed", "topic", msg.topic, "err", t.Error())
		}
	}
}

func (b *RealBus) handle(_ paho.Client, m paho.Message) {
	b.deliver(m.Topic(), m.Payload())
}

// deliver parses one message and queues it for the daemon. Malformed
// payloads are logged and dropped.
func (b *RealBus) deliver(topic string, payload []byte) {
	b.mu.Lock()
	topics := b.topics
	b.mu.Unlock()

	ev, err := ParseEvent(topics, topic, payload)
	if err != nil {
		b.logger.Warn("mqtt: dropped message", "topic", topic, "err", err)
		return
	}
	if ev.Kind == EventFilters {
		b.mu.Lock()
		b.current[topic] = ev.Filters
		b.mu.Unlock()
	}

	b.enqueue(ev)
}

// enqueue never blocks the client's router: a full queue sheds its oldest
// event so that acknowledgements for our own publishes keep flowing.
func (b *RealBus) enqueue(ev Event) {
	for {
		select {
		case <-b.done:
			return
		default:
		}
		select {
		case b.events <- ev:
			return
		default:
		}
		select {
		case old := <-b.events:
			b.logger.Warn("mqtt: event queue full, dropped oldest", "kind", old.Kind)
		default:
		}
	}
}

// ApplyPredicate merges p into the last known set of its column and
// publishes the result, retained at QoS 1.
func (b *RealBus) ApplyPredicate(ctx context.Context, p filter.Predicate, strategy filter.MergeStrategy) error {
	b.mu.Lock()
	topic := b.topics.WithTarget(p.Target).Filters()
	merged := b.current[topic].Apply(p, strategy)
	b.current[topic] = merged
	b.mu.Unlock()

	payload, err := FormatFilters(merged)
	if err != nil {
		return fmt.Errorf("format filters: %w", err)
	}
	return b.publish(ctx, topic, 1, true, payload)
}

// PublishState sends the captured snapshot, retained.
func (b *RealBus) PublishState(snap reconcile.Snapshot) error {
	payload, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("format state: %w", err)
	}
	return b.publish(context.Background(), b.Topics().State(), 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (b *RealBus) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return b.publish(context.Background(), b.Topics().System(), 1, event.Retained, payload)
}

func (b *RealBus) publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if !b.client.IsConnectionOpen() {
		b.mu.Lock()
		if b.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}) {
			b.logger.Warn("mqtt: buffer full, dropping oldest", "capacity", b.buffer.capacity)
		}
		b.mu.Unlock()
		return nil
	}

	token := b.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Rebind moves the data and filter subscriptions to another column.
func (b *RealBus) Rebind(target filter.Target) error {
	b.mu.Lock()
	old := b.topics
	if old.Target == target {
		b.mu.Unlock()
		return nil
	}
	b.topics = old.WithTarget(target)
	delete(b.current, old.Filters())
	next := b.topics
	b.mu.Unlock()

	if !b.client.IsConnectionOpen() {
		// onConnect subscribes to the new topics.
		return nil
	}

	if t := b.client.Unsubscribe(old.Data(), old.Filters()); t.WaitTimeout(subscribeTimeout) && t.Error() != nil {
		b.logger.Warn("mqtt: unsubscribe failed", "err", t.Error())
	}
	subs := map[string]byte{next.Data(): 1, next.Filters(): 1}
	t := b.client.SubscribeMultiple(subs, b.handle)
	if !t.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe %s: timeout", target)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", target, err)
	}
	return nil
}

// Topics returns the topics currently in use.
func (b *RealBus) Topics() Topics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topics
}

// Events delivers parsed host messages.
func (b *RealBus) Events() <-chan Event {
	return b.events
}

// IsConnected reports whether the broker connection is up.
func (b *RealBus) IsConnected() bool {
	return b.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (b *RealBus) Close() error {
	b.once.Do(func() { close(b.done) })
	b.client.Disconnect(1000) // 1 second timeout
	return nil
}
