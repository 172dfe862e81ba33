package tsdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WritePosition writes a telescope position sample to VictoriaMetrics.
//
// This is the primary method for recording pointing telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - slot: The telescope slot number (1-9)
//   - name: The telescope's display name
//   - raHours: Right ascension in hours [0, 24)
//   - decDegrees: Declination in degrees [-90, 90]
//   - deviceStatus: The device status code from the report (0 = healthy)
//   - observedAt: The device-side timestamp of the report
//
// Example:
//
//	client.WritePosition(3, "LX200 West", 5.5, -5.4, 0, sample.ObservedAt)
func (c *Client) WritePosition(slot int, name string, raHours, decDegrees float64, deviceStatus int32, observedAt time.Time) {
	c.addLine(formatLineProtocol(
		"telescope_position",
		map[string]string{
			"slot": strconv.Itoa(slot),
			"name": name,
		},
		map[string]interface{}{
			"ra_hours":      raHours,
			"dec_degrees":   decDegrees,
			"device_status": int64(deviceStatus),
		},
		observedAt,
	))
}

// WriteConnectionEvent writes a connection lifecycle event.
//
// Used for plotting per-slot uptime and correlating position gaps with
// link loss.
//
// Parameters:
//   - slot: The telescope slot number
//   - name: The telescope's display name
//   - eventType: The event kind (e.g., "telescope_connected")
//   - at: When the edge was observed
func (c *Client) WriteConnectionEvent(slot int, name string, eventType string, at time.Time) {
	connected := int64(0)
	if eventType == "telescope_connected" {
		connected = 1
	}

	c.addLine(formatLineProtocol(
		"telescope_events",
		map[string]string{
			"slot":  strconv.Itoa(slot),
			"event": eventType,
		},
		map[string]interface{}{
			"name":      name,
			"connected": connected,
		},
		at,
	))
}

// WriteRegistryStats writes registry-wide counters.
//
// Parameters:
//   - stored: Number of stored slot descriptions
//   - active: Number of slots with a live transport
//   - connected: Number of slots currently connected
func (c *Client) WriteRegistryStats(stored, active, connected int) {
	c.addLine(formatLineProtocol(
		"registry_stats",
		map[string]string{},
		map[string]interface{}{
			"stored":    int64(stored),
			"active":    int64(active),
			"connected": int64(connected),
		},
		time.Now(),
	))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.addLine(formatLineProtocol(measurement, tags, fields, time.Now()))
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.addLine(formatLineProtocol(measurement, tags, fields, timestamp))
}

// formatLineProtocol formats a data point as an InfluxDB line protocol string.
//
// Format: measurement,tag1=val1,tag2=val2 field1=val1,field2=val2 timestamp_ns
//
// VictoriaMetrics accepts this format on the /write endpoint.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]interface{}, t time.Time) string {
	var b strings.Builder

	// Measurement (escaped to prevent injection)
	b.WriteString(escapeMeasurement(measurement))

	// Tags (sorted for deterministic output and testability)
	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	// Fields (sorted for deterministic output)
	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	b.WriteByte(' ')
	first := true
	for _, k := range fieldKeys {
		v := fields[k]
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		switch val := v.(type) {
		case float64:
			b.WriteString(fmt.Sprintf("%g", val))
		case int:
			b.WriteString(fmt.Sprintf("%di", val))
		case int64:
			b.WriteString(fmt.Sprintf("%di", val))
		case bool:
			if val {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		case string:
			b.WriteString(fmt.Sprintf("%q", val))
		default:
			b.WriteString(fmt.Sprintf("%v", val))
		}
	}

	// Timestamp in nanoseconds
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%d", t.UnixNano()))

	return b.String()
}

// escapeTag escapes special characters in tag keys/values per line protocol spec.
// Commas, equals signs, and spaces must be backslash-escaped.
// Newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
// Newlines are stripped to prevent line protocol injection.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
