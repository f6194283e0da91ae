package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aurihome/aurihome-core/internal/device"
	"github.com/aurihome/aurihome-core/internal/infrastructure/mqtt"
)

// State is the bridge's view of the broker connection.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateOffline      State = "OFFLINE"
	StateError        State = "ERROR"
)

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the slice of the MQTT client the bridge uses.
// *mqtt.Client satisfies it; tests substitute a fake.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
}

// DeviceResolver maps wire topics to devices. The device registry's
// topic index satisfies it.
type DeviceResolver interface {
	GetByTopic(ctx context.Context, topic string) (*device.Device, error)
	List(ctx context.Context) ([]device.Device, error)
}

// DeltaSink receives inbound state deltas. The orchestration pipeline
// implements this: applying a transport delta persists it, logs it, and
// feeds event-triggered scenarios.
type DeltaSink interface {
	ApplyTransportDelta(ctx context.Context, deviceID string, delta map[string]any) error
}

// StatusRecorder receives connection lifecycle events for the system
// log. May be nil.
type StatusRecorder interface {
	TransportStatus(ctx context.Context, state State, detail string)
}

// commandQoS is used for outbound device commands. At-least-once keeps
// commands from silently vanishing on a flaky link; duplicate deliveries
// are tolerated by the state-merge semantics downstream.
const commandQoS = 1

// Bridge translates between the wire protocol and internal state
// deltas, and owns the per-device topic subscriptions.
//
// The underlying transport reconnects itself on a constant interval;
// the bridge tracks the resulting connection state and re-syncs
// subscriptions on every connect.
type Bridge struct {
	transport Transport
	devices   DeviceResolver
	sink      DeltaSink
	recorder  StatusRecorder
	logger    Logger
	topics    mqtt.Topics

	mu         sync.RWMutex
	state      State
	subscribed map[string]struct{} // device topics currently subscribed
}

// New creates a transport bridge. Call Start to register connection
// callbacks and establish subscriptions.
func New(transport Transport, devices DeviceResolver, sink DeltaSink, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		transport:  transport,
		devices:    devices,
		sink:       sink,
		logger:     logger,
		state:      StateDisconnected,
		subscribed: make(map[string]struct{}),
	}
}

// SetRecorder wires the event log sink. Called once during startup.
func (b *Bridge) SetRecorder(r StatusRecorder) {
	b.recorder = r
}

// Start registers connection callbacks and, if the transport is already
// connected, performs the initial subscription sync.
func (b *Bridge) Start(ctx context.Context) error {
	b.transport.SetOnConnect(func() {
		b.setState(StateConnected, "broker connected")
		if err := b.SyncSubscriptions(context.Background()); err != nil {
			b.logger.Error("subscription sync failed", "error", err)
		}
	})
	b.transport.SetOnDisconnect(func(err error) {
		if err != nil {
			b.setState(StateError, fmt.Sprintf("broker connection lost: %v", err))
		} else {
			b.setState(StateOffline, "broker connection closed")
		}
		// paho retries on its own; reflect that in the state machine.
		b.setState(StateConnecting, "")
	})

	if b.transport.IsConnected() {
		b.setState(StateConnected, "broker connected")
		return b.SyncSubscriptions(ctx)
	}
	b.setState(StateConnecting, "")
	return nil
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SubscriptionCount returns the number of bound device topics the
// bridge is subscribed to, excluding the discovery wildcard.
func (b *Bridge) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribed)
}

// setState updates the connection state and records a SYSTEM log entry
// on transitions that carry a detail message.
func (b *Bridge) setState(state State, detail string) {
	b.mu.Lock()
	changed := b.state != state
	b.state = state
	b.mu.Unlock()

	if !changed {
		return
	}
	b.logger.Info("transport state changed", "state", string(state))
	if detail != "" && b.recorder != nil {
		b.recorder.TransportStatus(context.Background(), state, detail)
	}
}

// SyncSubscriptions subscribes to one topic per bound device plus the
// discovery wildcard, and drops subscriptions for topics that no longer
// have a device behind them.
func (b *Bridge) SyncSubscriptions(ctx context.Context) error {
	devices, err := b.devices.List(ctx)
	if err != nil {
		return fmt.Errorf("listing devices for subscription sync: %w", err)
	}

	wanted := make(map[string]struct{})
	for i := range devices {
		if devices[i].Topic != nil && *devices[i].Topic != "" {
			wanted[*devices[i].Topic] = struct{}{}
		}
	}

	b.mu.Lock()
	current := make([]string, 0, len(b.subscribed))
	for topic := range b.subscribed {
		current = append(current, topic)
	}
	b.mu.Unlock()

	for _, topic := range current {
		if _, keep := wanted[topic]; keep {
			continue
		}
		if err := b.transport.Unsubscribe(topic); err != nil {
			b.logger.Warn("unsubscribing stale topic", "topic", topic, "error", err)
			continue
		}
		b.mu.Lock()
		delete(b.subscribed, topic)
		b.mu.Unlock()
	}

	for topic := range wanted {
		if err := b.subscribeTopic(topic); err != nil {
			b.logger.Warn("subscribing device topic", "topic", topic, "error", err)
		}
	}

	if err := b.transport.Subscribe(b.topics.AllDiscovery(), 0, b.handleDiscovery); err != nil {
		b.logger.Warn("subscribing discovery wildcard", "error", err)
	}

	b.logger.Info("subscriptions synced", "devices", len(wanted))
	return nil
}

// BindDevice subscribes a newly bound device topic. Called when a
// device is created or its topic binding changes.
func (b *Bridge) BindDevice(topic string) error {
	if topic == "" {
		return nil
	}
	return b.subscribeTopic(topic)
}

// UnbindDevice drops the subscription for a removed topic binding.
func (b *Bridge) UnbindDevice(topic string) error {
	if topic == "" {
		return nil
	}
	if err := b.transport.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing %q: %w", topic, err)
	}
	b.mu.Lock()
	delete(b.subscribed, topic)
	b.mu.Unlock()
	return nil
}

func (b *Bridge) subscribeTopic(topic string) error {
	b.mu.RLock()
	_, already := b.subscribed[topic]
	b.mu.RUnlock()
	if already {
		return nil
	}

	if err := b.transport.Subscribe(topic, 0, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing %q: %w", topic, err)
	}
	b.mu.Lock()
	b.subscribed[topic] = struct{}{}
	b.mu.Unlock()
	return nil
}

// handleMessage translates an inbound hardware message into a state
// delta and hands it to the pipeline. Unknown topics and unmappable
// payloads are discarded without error.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	ctx := context.Background()

	dev, err := b.devices.GetByTopic(ctx, topic)
	if err != nil {
		b.logger.Debug("message on unbound topic discarded", "topic", topic)
		return nil
	}

	delta := TranslateInbound(payload)
	if len(delta) == 0 {
		b.logger.Debug("payload carried no mappable fields", "topic", topic)
		return nil
	}

	if err := b.sink.ApplyTransportDelta(ctx, dev.ID, delta); err != nil {
		return fmt.Errorf("applying delta for %s: %w", dev.ID, err)
	}
	return nil
}

// handleDiscovery logs hardware announcements on the discovery
// wildcard. Announced devices are provisioned explicitly by the user;
// the bridge only surfaces that they exist.
func (b *Bridge) handleDiscovery(topic string, payload []byte) error {
	b.logger.Info("device announcement", "topic", topic, "bytes", len(payload))
	return nil
}

// SendCommand translates a desired partial state into a wire command on
// <topic>/set. It is a logged no-op when the device has no topic
// binding, the bridge is not connected, or nothing in the delta maps to
// a wire field. Commands are never queued for later delivery.
func (b *Bridge) SendCommand(_ context.Context, dev *device.Device, desired map[string]any) error {
	if dev.Topic == nil || *dev.Topic == "" {
		b.logger.Warn("command dropped, device has no topic binding", "device_id", dev.ID)
		return nil
	}
	if !b.transport.IsConnected() {
		b.logger.Warn("command dropped, transport not connected", "device_id", dev.ID)
		return nil
	}

	wire := TranslateOutbound(desired)
	if len(wire) == 0 {
		b.logger.Debug("command carried no publishable fields", "device_id", dev.ID)
		return nil
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	topic := b.topics.DeviceCommand(*dev.Topic)
	if err := b.transport.Publish(topic, payload, commandQoS, false); err != nil {
		return fmt.Errorf("publishing command to %q: %w", topic, err)
	}

	b.logger.Debug("command published", "device_id", dev.ID, "topic", topic)
	return nil
}
