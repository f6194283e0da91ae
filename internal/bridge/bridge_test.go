package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aurihome/aurihome-core/internal/device"
	"github.com/aurihome/aurihome-core/internal/infrastructure/mqtt"
)

// fakeTransport records subscriptions and publishes, and lets tests
// inject inbound messages through the captured handlers.
type fakeTransport struct {
	mu           sync.Mutex
	connected    bool
	handlers     map[string]mqtt.MessageHandler
	published    []publishedMsg
	onConnect    func()
	onDisconnect func(err error)
}

type publishedMsg struct {
	topic   string
	payload []byte
	qos     byte
}

func newFakeTransport(connected bool) *fakeTransport {
	return &fakeTransport{
		connected: connected,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload, qos: qos})
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SetOnConnect(callback func())       { f.onConnect = callback }
func (f *fakeTransport) SetOnDisconnect(cb func(err error)) { f.onDisconnect = cb }

func (f *fakeTransport) deliver(t *testing.T, topic string, payload []byte) error {
	t.Helper()
	f.mu.Lock()
	handler, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for topic %q", topic)
	}
	return handler(topic, payload)
}

func (f *fakeTransport) publishedTo(topic string) []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msgs []publishedMsg
	for _, m := range f.published {
		if m.topic == topic {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func (f *fakeTransport) hasSubscription(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

// fakeResolver serves devices by topic from a fixed map.
type fakeResolver struct {
	devices map[string]*device.Device // keyed by topic
}

func (f *fakeResolver) GetByTopic(_ context.Context, topic string) (*device.Device, error) {
	if d, ok := f.devices[topic]; ok {
		return d.DeepCopy(), nil
	}
	return nil, device.ErrDeviceNotFound
}

func (f *fakeResolver) List(_ context.Context) ([]device.Device, error) {
	var devices []device.Device
	for _, d := range f.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

// fakeSink records applied transport deltas.
type fakeSink struct {
	mu     sync.Mutex
	deltas []sinkDelta
}

type sinkDelta struct {
	deviceID string
	delta    map[string]any
}

func (f *fakeSink) ApplyTransportDelta(_ context.Context, deviceID string, delta map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, sinkDelta{deviceID: deviceID, delta: delta})
	return nil
}

func (f *fakeSink) all() []sinkDelta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sinkDelta(nil), f.deltas...)
}

func boundDevice(id, topic string) *device.Device {
	return &device.Device{
		ID:     id,
		Name:   "Device " + id,
		Type:   device.TypeLight,
		Status: device.StatusOnline,
		Topic:  &topic,
		State:  device.State{"power": false},
	}
}

func setupBridge(t *testing.T, connected bool, devices ...*device.Device) (*Bridge, *fakeTransport, *fakeSink) {
	t.Helper()

	transport := newFakeTransport(connected)
	resolver := &fakeResolver{devices: make(map[string]*device.Device)}
	for _, d := range devices {
		if d.Topic != nil {
			resolver.devices[*d.Topic] = d
		}
	}
	sink := &fakeSink{}

	b := New(transport, resolver, sink, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return b, transport, sink
}

func TestStart_SubscribesBoundDevicesAndDiscovery(t *testing.T) {
	b, transport, _ := setupBridge(t, true,
		boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"),
		boundDevice("dev-bbbb2222", "zigbee2mqtt/hall/sensor"),
	)

	if !transport.hasSubscription("zigbee2mqtt/kitchen/lamp") {
		t.Error("kitchen lamp topic not subscribed")
	}
	if !transport.hasSubscription("zigbee2mqtt/hall/sensor") {
		t.Error("hall sensor topic not subscribed")
	}
	if !transport.hasSubscription("aurihome/discovery/#") {
		t.Error("discovery wildcard not subscribed")
	}
	if b.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", b.SubscriptionCount())
	}
	if b.State() != StateConnected {
		t.Errorf("State() = %s, want CONNECTED", b.State())
	}
}

func TestInbound_AppliesTranslatedDelta(t *testing.T) {
	_, transport, sink := setupBridge(t, true, boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"))

	if err := transport.deliver(t, "zigbee2mqtt/kitchen/lamp", []byte(`{"state":"ON","brightness":128}`)); err != nil {
		t.Fatalf("deliver() error = %v", err)
	}

	deltas := sink.all()
	if len(deltas) != 1 {
		t.Fatalf("sink received %d deltas, want 1", len(deltas))
	}
	if deltas[0].deviceID != "dev-aaaa1111" {
		t.Errorf("delta device = %s, want dev-aaaa1111", deltas[0].deviceID)
	}
	if deltas[0].delta["power"] != true || deltas[0].delta["brightness"] != float64(128) {
		t.Errorf("delta = %v, want power true and brightness 128", deltas[0].delta)
	}
}

func TestInbound_BareSignal(t *testing.T) {
	_, transport, sink := setupBridge(t, true, boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"))

	if err := transport.deliver(t, "zigbee2mqtt/kitchen/lamp", []byte("OFF")); err != nil {
		t.Fatalf("deliver() error = %v", err)
	}

	deltas := sink.all()
	if len(deltas) != 1 || deltas[0].delta["power"] != false {
		t.Errorf("sink deltas = %v, want single power false", deltas)
	}
}

func TestInbound_UnmappablePayloadDiscarded(t *testing.T) {
	_, transport, sink := setupBridge(t, true, boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"))

	if err := transport.deliver(t, "zigbee2mqtt/kitchen/lamp", []byte("gibberish")); err != nil {
		t.Fatalf("deliver() error = %v", err)
	}
	if err := transport.deliver(t, "zigbee2mqtt/kitchen/lamp", []byte(`{"linkquality":87}`)); err != nil {
		t.Fatalf("deliver() error = %v", err)
	}

	if got := sink.all(); len(got) != 0 {
		t.Errorf("sink received %d deltas for unmappable payloads, want 0", len(got))
	}
}

func TestInbound_UnknownTopicSilentlyDiscarded(t *testing.T) {
	b, transport, sink := setupBridge(t, true, boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"))

	// Subscribe a topic and then take the device away, simulating a
	// message racing a deletion.
	if err := b.BindDevice("zigbee2mqtt/ghost"); err != nil {
		t.Fatalf("BindDevice() error = %v", err)
	}
	if err := transport.deliver(t, "zigbee2mqtt/ghost", []byte(`{"state":"ON"}`)); err != nil {
		t.Errorf("unknown topic returned error %v, want silent discard", err)
	}
	if got := sink.all(); len(got) != 0 {
		t.Errorf("sink received %d deltas for unknown topic, want 0", len(got))
	}
}

func TestSendCommand_PublishesToSetTopic(t *testing.T) {
	b, transport, _ := setupBridge(t, true, boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"))

	dev := boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp")
	if err := b.SendCommand(context.Background(), dev, map[string]any{"power": true}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	msgs := transport.publishedTo("zigbee2mqtt/kitchen/lamp/set")
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	var wire map[string]any
	if err := json.Unmarshal(msgs[0].payload, &wire); err != nil {
		t.Fatalf("unmarshalling published payload: %v", err)
	}
	if wire["state"] != "ON" {
		t.Errorf("wire payload = %v, want state ON", wire)
	}
}

func TestSendCommand_DroppedWhenUnboundOrDisconnected(t *testing.T) {
	t.Run("no topic binding", func(t *testing.T) {
		b, transport, _ := setupBridge(t, true)
		dev := &device.Device{ID: "dev-aaaa1111", Name: "Unbound", Type: device.TypeLight}

		if err := b.SendCommand(context.Background(), dev, map[string]any{"power": true}); err != nil {
			t.Fatalf("SendCommand() error = %v, want nil no-op", err)
		}
		transport.mu.Lock()
		defer transport.mu.Unlock()
		if len(transport.published) != 0 {
			t.Errorf("published %d messages for unbound device, want 0", len(transport.published))
		}
	})

	t.Run("disconnected", func(t *testing.T) {
		b, transport, _ := setupBridge(t, false, boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"))
		dev := boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp")

		if err := b.SendCommand(context.Background(), dev, map[string]any{"power": true}); err != nil {
			t.Fatalf("SendCommand() error = %v, want nil no-op", err)
		}
		transport.mu.Lock()
		defer transport.mu.Unlock()
		if len(transport.published) != 0 {
			t.Errorf("published %d messages while disconnected, want 0", len(transport.published))
		}
	})
}

func TestSyncSubscriptions_DropsStaleTopics(t *testing.T) {
	b, transport, _ := setupBridge(t, true, boundDevice("dev-aaaa1111", "zigbee2mqtt/kitchen/lamp"))

	if err := b.BindDevice("zigbee2mqtt/old/topic"); err != nil {
		t.Fatalf("BindDevice() error = %v", err)
	}
	if b.SubscriptionCount() != 2 {
		t.Fatalf("SubscriptionCount() = %d, want 2", b.SubscriptionCount())
	}

	// Re-sync: only the lamp is in the resolver, the bound extra goes.
	if err := b.SyncSubscriptions(context.Background()); err != nil {
		t.Fatalf("SyncSubscriptions() error = %v", err)
	}

	if b.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d after sync, want 1", b.SubscriptionCount())
	}
	if transport.hasSubscription("zigbee2mqtt/old/topic") {
		t.Error("stale topic still subscribed after sync")
	}
}

func TestConnectionStateTransitions(t *testing.T) {
	b, transport, _ := setupBridge(t, false)

	if b.State() != StateConnecting {
		t.Fatalf("State() = %s before connect, want CONNECTING", b.State())
	}

	transport.mu.Lock()
	transport.connected = true
	transport.mu.Unlock()
	transport.onConnect()
	if b.State() != StateConnected {
		t.Errorf("State() = %s after connect, want CONNECTED", b.State())
	}

	transport.onDisconnect(errAny{})
	if b.State() != StateConnecting {
		t.Errorf("State() = %s after drop, want CONNECTING (auto-retry)", b.State())
	}
}

type errAny struct{}

func (errAny) Error() string { return "connection reset" }
