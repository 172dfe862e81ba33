package mqtt

import "fmt"

// Topic prefixes for the Skybridge MQTT surface.
//
// All telescope topics use the flat scheme: skybridge/telescope/{slot}/{channel}
// so external tooling can address a slot without knowing its display name.
const (
	// TopicPrefix is the base for all Skybridge topics.
	TopicPrefix = "skybridge"

	// TopicPrefixTelescope is the base for per-slot telescope topics.
	TopicPrefixTelescope = "skybridge/telescope"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "skybridge/system"
)

// Topics provides builders for Skybridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.TelescopeStatus(3)
//	// Returns: "skybridge/telescope/3/status"
type Topics struct{}

// TelescopeStatus returns the retained connection status topic for a slot.
//
// Example: skybridge/telescope/3/status
func (Topics) TelescopeStatus(slot int) string {
	return fmt.Sprintf("%s/%d/status", TopicPrefixTelescope, slot)
}

// TelescopePosition returns the position sample topic for a slot.
//
// Example: skybridge/telescope/3/position
func (Topics) TelescopePosition(slot int) string {
	return fmt.Sprintf("%s/%d/position", TopicPrefixTelescope, slot)
}

// TelescopeGoto returns the inbound goto command topic for a slot.
//
// Example: skybridge/telescope/3/goto
func (Topics) TelescopeGoto(slot int) string {
	return fmt.Sprintf("%s/%d/goto", TopicPrefixTelescope, slot)
}

// TelescopeSync returns the inbound sync command topic for a slot.
//
// Example: skybridge/telescope/3/sync
func (Topics) TelescopeSync(slot int) string {
	return fmt.Sprintf("%s/%d/sync", TopicPrefixTelescope, slot)
}

// SystemStatus returns the system status topic carrying the retained
// online/offline payload and the Last Will message.
//
// Example: skybridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemEvent returns the topic for core lifecycle events.
//
// Example: skybridge/system/event/telescope_connected
func (Topics) SystemEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixSystem, eventType)
}

// AllTelescopeGotos returns a pattern matching goto commands for every slot.
//
// Pattern: skybridge/telescope/+/goto
func (Topics) AllTelescopeGotos() string {
	return fmt.Sprintf("%s/+/goto", TopicPrefixTelescope)
}

// AllTelescopeSyncs returns a pattern matching sync commands for every slot.
//
// Pattern: skybridge/telescope/+/sync
func (Topics) AllTelescopeSyncs() string {
	return fmt.Sprintf("%s/+/sync", TopicPrefixTelescope)
}

// AllTelescopeStatuses returns a pattern matching every slot's status.
//
// Pattern: skybridge/telescope/+/status
func (Topics) AllTelescopeStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixTelescope)
}

// AllTelescopePositions returns a pattern matching every slot's samples.
//
// Pattern: skybridge/telescope/+/position
func (Topics) AllTelescopePositions() string {
	return fmt.Sprintf("%s/+/position", TopicPrefixTelescope)
}

// AllTopics returns a pattern matching all Skybridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: skybridge/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
