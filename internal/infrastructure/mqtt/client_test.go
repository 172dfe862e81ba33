package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "skybridge-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "TelescopeStatus",
			builder: func() string {
				return Topics{}.TelescopeStatus(3)
			},
			expected: "skybridge/telescope/3/status",
		},
		{
			name: "TelescopePosition",
			builder: func() string {
				return Topics{}.TelescopePosition(1)
			},
			expected: "skybridge/telescope/1/position",
		},
		{
			name: "TelescopeGoto",
			builder: func() string {
				return Topics{}.TelescopeGoto(9)
			},
			expected: "skybridge/telescope/9/goto",
		},
		{
			name: "TelescopeSync",
			builder: func() string {
				return Topics{}.TelescopeSync(4)
			},
			expected: "skybridge/telescope/4/sync",
		},
		{
			name: "SystemStatus",
			builder: func() string {
				return Topics{}.SystemStatus()
			},
			expected: "skybridge/system/status",
		},
		{
			name: "SystemEvent",
			builder: func() string {
				return Topics{}.SystemEvent("telescope_connected")
			},
			expected: "skybridge/system/event/telescope_connected",
		},
		{
			name: "AllTelescopeGotos",
			builder: func() string {
				return Topics{}.AllTelescopeGotos()
			},
			expected: "skybridge/telescope/+/goto",
		},
		{
			name: "AllTelescopeSyncs",
			builder: func() string {
				return Topics{}.AllTelescopeSyncs()
			},
			expected: "skybridge/telescope/+/sync",
		},
		{
			name: "AllTelescopeStatuses",
			builder: func() string {
				return Topics{}.AllTelescopeStatuses()
			},
			expected: "skybridge/telescope/+/status",
		},
		{
			name: "AllTelescopePositions",
			builder: func() string {
				return Topics{}.AllTelescopePositions()
			},
			expected: "skybridge/telescope/+/position",
		},
		{
			name: "AllTopics",
			builder: func() string {
				return Topics{}.AllTopics()
			},
			expected: "skybridge/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers count = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want %q", got, "tcp://127.0.0.1:1883")
	}
	if opts.ClientID != "skybridge-test" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "skybridge-test")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.ConnectRetryInterval != 1*time.Second {
		t.Errorf("ConnectRetryInterval = %v, want 1s", opts.ConnectRetryInterval)
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want %q", got, "ssl://127.0.0.1:1883")
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig = nil with TLS enabled")
	}
	if opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLS MinVersion = %d, want %d", opts.TLSConfig.MinVersion, tlsMinVersion)
	}
}

func TestBuildClientOptionsAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "observer"
	cfg.Auth.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "observer" {
		t.Errorf("Username = %q, want %q", opts.Username, "observer")
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
	if opts.WillTopic != "skybridge/system/status" {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, "skybridge/system/status")
	}
	if opts.WillQos != 1 {
		t.Errorf("WillQos = %d, want 1", opts.WillQos)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var will struct {
		Status   string `json:"status"`
		ClientID string `json:"client_id"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("WillPayload not valid JSON: %v", err)
	}
	if will.Status != "offline" {
		t.Errorf("will status = %q, want %q", will.Status, "offline")
	}
	if will.ClientID != "skybridge-test" {
		t.Errorf("will client_id = %q, want %q", will.ClientID, "skybridge-test")
	}
	if will.Reason != "unexpected_disconnect" {
		t.Errorf("will reason = %q, want %q", will.Reason, "unexpected_disconnect")
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus string
		wantReason string
	}{
		{"online", buildOnlinePayload("sb-1"), "online", ""},
		{"offline", buildOfflinePayload("sb-1"), "offline", "graceful_shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Status    string `json:"status"`
				ClientID  string `json:"client_id"`
				Reason    string `json:"reason"`
				Timestamp string `json:"timestamp"`
			}
			if err := json.Unmarshal([]byte(tt.payload), &got); err != nil {
				t.Fatalf("payload not valid JSON: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.ClientID != "sb-1" {
				t.Errorf("client_id = %q, want %q", got.ClientID, "sb-1")
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if _, err := time.Parse(time.RFC3339, got.Timestamp); err != nil {
				t.Errorf("timestamp %q not RFC3339: %v", got.Timestamp, err)
			}
		})
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "skybridge/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "skybridge/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "skybridge/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "skybridge/test", 3, handler, ErrInvalidQoS},
		{"nil handler", "skybridge/test", 1, nil, ErrSubscribeFailed},
		{"not connected", "skybridge/test", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := &Client{}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("skybridge/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := &Client{}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
	if client.HasSubscription("nonexistent/topic") {
		t.Error("HasSubscription() should be false for unsubscribed topic")
	}
}
