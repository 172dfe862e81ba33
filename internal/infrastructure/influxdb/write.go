package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePosition writes a telescope position sample to InfluxDB.
//
// This is the primary method for recording pointing telemetry. The
// write is non-blocking; data is batched and sent asynchronously.
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
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
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
	)

	c.writeAPI.WritePoint(point)
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
	if !c.IsConnected() {
		return
	}

	connected := int64(0)
	if eventType == "telescope_connected" {
		connected = 1
	}

	point := write.NewPoint(
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
	)

	c.writeAPI.WritePoint(point)
}

// WriteRegistryStats writes registry-wide counters.
//
// Parameters:
//   - stored: Number of stored slot descriptions
//   - active: Number of slots with a live transport
//   - connected: Number of slots currently connected
func (c *Client) WriteRegistryStats(stored, active, connected int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"registry_stats",
		map[string]string{},
		map[string]interface{}{
			"stored":    int64(stored),
			"active":    int64(active),
			"connected": int64(connected),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
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
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
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
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
