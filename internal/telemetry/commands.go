package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/mqtt"
	"github.com/skybridge-obs/skybridge-core/internal/protocol"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

// CommandBus is the subscribing surface used to receive inbound
// commands, satisfied by *mqtt.Client.
type CommandBus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Commander is the slice of the telescope registry the command router
// drives.
type Commander interface {
	Slew(slot int, direction protocol.Vec3) error
	Sync(slot int, direction protocol.Vec3) error
}

// BindCommands subscribes to the per-slot goto and sync command topics
// and routes their payloads into the registry. Payloads use the same
// coordinate forms as the REST API:
//
//	{"x": -0.5, "y": 0.7, "z": 0.5}
//	{"ra_hours": 5.5, "dec_degrees": -5.4}
//
// Handler errors (unknown slot, bad payload, slot not connected) are
// returned to the MQTT layer, which logs and drops them.
func BindCommands(bus CommandBus, commander Commander, qos byte, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &commandRouter{commander: commander, logger: logger}

	topics := mqtt.Topics{}
	if err := bus.Subscribe(topics.AllTelescopeGotos(), qos, r.handleGoto); err != nil {
		return fmt.Errorf("telemetry: subscribing goto commands: %w", err)
	}
	if err := bus.Subscribe(topics.AllTelescopeSyncs(), qos, r.handleSync); err != nil {
		return fmt.Errorf("telemetry: subscribing sync commands: %w", err)
	}
	return nil
}

type commandRouter struct {
	commander Commander
	logger    Logger
}

func (r *commandRouter) handleGoto(topic string, payload []byte) error {
	slot, direction, err := parseCommand(topic, payload)
	if err != nil {
		return err
	}
	if err := r.commander.Slew(slot, direction); err != nil {
		return fmt.Errorf("goto command: %w", err)
	}
	r.logger.Info("goto accepted", "slot", slot, "source", "mqtt")
	return nil
}

func (r *commandRouter) handleSync(topic string, payload []byte) error {
	slot, direction, err := parseCommand(topic, payload)
	if err != nil {
		return err
	}
	if err := r.commander.Sync(slot, direction); err != nil {
		return fmt.Errorf("sync command: %w", err)
	}
	r.logger.Info("sync accepted", "slot", slot, "source", "mqtt")
	return nil
}

func parseCommand(topic string, payload []byte) (int, protocol.Vec3, error) {
	slot, err := slotFromTopic(topic)
	if err != nil {
		return 0, protocol.Vec3{}, err
	}
	direction, err := telescope.ParseDirection(payload)
	if err != nil {
		return 0, protocol.Vec3{}, fmt.Errorf("slot %d: %w", slot, err)
	}
	return slot, direction, nil
}

// slotFromTopic extracts the slot number from a command topic of the
// form skybridge/telescope/{slot}/{channel}. Range checks are left to
// the registry.
func slotFromTopic(topic string) (int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 {
		return 0, fmt.Errorf("telemetry: unexpected command topic %q", topic)
	}
	slot, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("telemetry: bad slot in topic %q: %w", topic, err)
	}
	return slot, nil
}
