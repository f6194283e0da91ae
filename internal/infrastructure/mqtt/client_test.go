package mqtt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aurihome/aurihome-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "aurihome-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			RetryInterval: 5,
		},
	}
}

func TestBuildClientOptions_BrokerURL(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("server count = %d, want 1", len(opts.Servers))
	}
	got := opts.Servers[0].String()
	if got != "tcp://localhost:1883" {
		t.Errorf("broker URL = %q, want %q", got, "tcp://localhost:1883")
	}
}

func TestBuildClientOptions_TLSScheme(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	opts := buildClientOptions(cfg)

	got := opts.Servers[0].String()
	if got != "ssl://localhost:8883" {
		t.Errorf("broker URL = %q, want %q", got, "ssl://localhost:8883")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig is nil, want configured")
	}
}

func TestBuildClientOptions_ConstantRetryInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect.RetryInterval = 7
	opts := buildClientOptions(cfg)

	want := 7 * time.Second
	if opts.ConnectRetryInterval != want {
		t.Errorf("ConnectRetryInterval = %v, want %v", opts.ConnectRetryInterval, want)
	}
	// Max equals initial: no exponential backoff.
	if opts.MaxReconnectInterval != want {
		t.Errorf("MaxReconnectInterval = %v, want %v", opts.MaxReconnectInterval, want)
	}
}

func TestBuildClientOptions_Credentials(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "homeuser"
	cfg.Auth.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "homeuser" {
		t.Errorf("Username = %q, want %q", opts.Username, "homeuser")
	}
	if opts.Password != "secret" {
		t.Errorf("Password = %q, want %q", opts.Password, "secret")
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "aurihome/system/status" {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, "aurihome/system/status")
	}
	payload := string(opts.WillPayload)
	if !strings.Contains(payload, `"status":"offline"`) {
		t.Errorf("will payload missing offline status: %s", payload)
	}
	if !strings.Contains(payload, `"reason":"unexpected_disconnect"`) {
		t.Errorf("will payload missing disconnect reason: %s", payload)
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device command", Topics{}.DeviceCommand("zigbee2mqtt/living_room/lamp"), "zigbee2mqtt/living_room/lamp/set"},
		{"system status", Topics{}.SystemStatus(), "aurihome/system/status"},
		{"discovery", Topics{}.Discovery("lamp-01"), "aurihome/discovery/lamp-01"},
		{"all discovery", Topics{}.AllDiscovery(), "aurihome/discovery/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "some/topic", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "some/topic", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want %v", err, ErrInvalidTopic)
	}
	if err := c.Subscribe("t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v, want %v", err, ErrInvalidQoS)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want %v", err, ErrSubscribeFailed)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}

	c.subscriptions["a/topic"] = subscription{topic: "a/topic", qos: 1}

	if !c.HasSubscription("a/topic") {
		t.Error("HasSubscription(a/topic) = false, want true")
	}
	if c.HasSubscription("other") {
		t.Error("HasSubscription(other) = true, want false")
	}
}
