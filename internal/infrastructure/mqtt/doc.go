// Package mqtt provides MQTT client connectivity for Skybridge Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Skybridge uses MQTT as the observatory bus: per-slot connection status
// and position samples are published for dashboards and automation, and
// inbound goto/sync commands are accepted from external tooling. The
// broker (typically Mosquitto) decouples the core from its consumers.
//
//	Skybridge Core ↔ MQTT Broker ↔ Observatory tooling
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to goto commands for every slot
//	err = client.Subscribe(mqtt.Topics{}.AllTelescopeGotos(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a slot's retained status
//	topic := mqtt.Topics{}.TelescopeStatus(3)
//	client.PublishRetained(topic, []byte(`{"status":"connected"}`))
package mqtt
