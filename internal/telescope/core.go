package telescope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/catalog"
	"github.com/skybridge-obs/skybridge-core/internal/process"
	"github.com/skybridge-obs/skybridge-core/internal/protocol"
	"github.com/skybridge-obs/skybridge-core/internal/transport"
)

// Logger defines the logging interface used by the Core.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const defaultTickInterval = 100 * time.Millisecond

// Options holds configuration for creating a Core.
type Options struct {
	// TelescopesPath and ConnectionsPath locate the persisted documents.
	TelescopesPath  string
	ConnectionsPath string

	// ServerLogs enables per-slot capture of spawned server output into
	// ServerLogDir.
	ServerLogs   bool
	ServerLogDir string

	// ServersDir is where relative server executables resolve. Empty
	// leaves resolution to PATH.
	ServersDir string

	// TickInterval is the communication loop period. Defaults to 100ms.
	TickInterval time.Duration

	// SampleInterval rate-limits telemetry samples per slot. Zero
	// disables sampling.
	SampleInterval time.Duration

	// ReadinessTimeout and StopGracePeriod bound spawned server startup
	// and termination. Zero uses the transport defaults.
	ReadinessTimeout time.Duration
	StopGracePeriod  time.Duration

	// Catalog resolves device models for the local kind. Optional; a
	// nil catalog only fails starts that need a model lookup.
	Catalog *catalog.Catalog

	// Logger is optional; defaults to a no-op.
	Logger Logger
}

// entry is one live slot: its transport and tick-to-tick bookkeeping.
type entry struct {
	transport   transport.Transport
	name        string
	lastStatus  transport.Status
	lastSampled time.Time
	log         *serverLog
}

// Core is the slot registry and communication loop owner. One mutex
// serializes every operation and the tick, so transports are only ever
// touched by a single goroutine at a time; their own background workers
// synchronise internally.
//
// The operation surface comes in pairs: error-returning methods carry
// the failure cause for hosts that need it (the API maps sentinels to
// status codes), and boolean twins fold the same calls to the
// true/false contract the control surface expects.
type Core struct {
	opts Options

	mu           sync.Mutex
	descriptions map[int]Description
	active       map[int]*entry

	notifiers []Notifier
	samplers  []Sampler
	logger    Logger
}

// New creates a Core. Call LoadStored to pick up persisted
// descriptions, then Run to drive the communication loop.
func New(opts Options) *Core {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Core{
		opts:         opts,
		descriptions: make(map[int]Description),
		active:       make(map[int]*entry),
		logger:       opts.Logger,
	}
}

// AddNotifier registers a connection event consumer.
func (c *Core) AddNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifiers = append(c.notifiers, n)
}

// AddSampler registers a position telemetry consumer.
func (c *Core) AddSampler(s Sampler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samplers = append(c.samplers, s)
}

// LoadStored replaces the in-memory descriptions with the persisted
// document and returns how many slots were restored. Load problems
// degrade to an empty registry.
func (c *Core) LoadStored() int {
	stored, err := LoadTelescopes(c.opts.TelescopesPath)
	if err != nil {
		c.logger.Warn("loading stored telescopes", "error", err)
	}

	c.mu.Lock()
	c.descriptions = stored
	c.mu.Unlock()

	if len(stored) > 0 {
		c.logger.Info("stored telescopes loaded", "count", len(stored))
	}
	return len(stored)
}

// Persist writes both persisted documents. Callers invoke it after
// mutating the stored descriptions; failures wrap ErrPersistence.
func (c *Core) Persist() error {
	c.mu.Lock()
	snapshot := make(map[int]Description, len(c.descriptions))
	for slot, d := range c.descriptions {
		snapshot[slot] = d
	}
	c.mu.Unlock()

	if err := SaveTelescopes(c.opts.TelescopesPath, snapshot); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := SaveConnections(c.opts.ConnectionsPath, snapshot); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Add stores a description at a slot, replacing whatever was there.
// The description is stored as given; validation happens at start and
// on the API surface.
func (c *Core) Add(slot int, d Description) error {
	if !validSlot(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrInvalidSlot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptions[slot] = d
	c.logger.Info("telescope stored", "slot", slot, "name", d.Name, "kind", d.Kind)
	return nil
}

// AddAtSlot is the boolean form of Add.
func (c *Core) AddAtSlot(slot int, d Description) bool {
	return c.Add(slot, d) == nil
}

// Remove erases the stored description. A live transport keeps running
// until stopped; callers that want both stop first.
func (c *Core) Remove(slot int) error {
	if !validSlot(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrInvalidSlot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.descriptions, slot)
	c.logger.Info("telescope removed", "slot", slot)
	return nil
}

// RemoveAtSlot is the boolean form of Remove.
func (c *Core) RemoveAtSlot(slot int) bool {
	return c.Remove(slot) == nil
}

// Start brings a slot up: validates the stored description, resolves
// the device model, opens the server log when enabled and builds the
// transport. On success the slot is live in Connecting or Connected.
func (c *Core) Start(slot int) error {
	if !validSlot(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrInvalidSlot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(slot)
}

// StartAtSlot is the boolean form of Start.
func (c *Core) StartAtSlot(slot int) bool {
	return c.Start(slot) == nil
}

func (c *Core) startLocked(slot int) error {
	d, ok := c.descriptions[slot]
	if !ok {
		return fmt.Errorf("slot %d: %w", slot, ErrNoDescription)
	}
	if _, live := c.active[slot]; live {
		return fmt.Errorf("slot %d: %w", slot, ErrAlreadyActive)
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("slot %d: %w", slot, err)
	}

	var binary string
	if d.Kind == transport.KindLocal {
		var err error
		binary, err = c.resolveServerBinary(d)
		if err != nil {
			c.logger.Warn("telescope start failed",
				"slot", slot,
				"name", d.Name,
				"error", err,
			)
			return fmt.Errorf("slot %d: %w", slot, err)
		}
		if d.Delay == 0 {
			if model, ok := c.lookupModel(d.DeviceModel); ok && model.DefaultDelay > 0 {
				d.Delay = model.DefaultDelay
			}
		}
	}
	d = d.withDefaults()

	var slog *serverLog
	var sink io.Writer
	if c.opts.ServerLogs && d.Kind == transport.KindLocal {
		sl, err := openServerLog(c.opts.ServerLogDir, slot)
		if err != nil {
			// The log is an aid, not a prerequisite.
			c.logger.Warn("server log unavailable", "slot", slot, "error", err)
		} else {
			slog = sl
			sink = sl
		}
	}

	tr, err := transport.New(transport.Config{
		Slot:             slot,
		Name:             d.Name,
		Kind:             d.Kind,
		Host:             d.Host,
		Port:             d.Port,
		Device:           d.Device,
		Delay:            d.DelayDuration(),
		BaseURL:          d.BaseURL,
		APIDevice:        d.APIDevice,
		ServerBinary:     binary,
		ServerLog:        sink,
		ReadinessTimeout: c.opts.ReadinessTimeout,
		StopGracePeriod:  c.opts.StopGracePeriod,
		Logger:           c.logger,
	})
	if err != nil {
		if slog != nil {
			slog.Close()
		}
		c.logger.Warn("telescope start failed",
			"slot", slot,
			"name", d.Name,
			"kind", d.Kind,
			"error", err,
		)
		return fmt.Errorf("slot %d: %w", slot, err)
	}

	c.active[slot] = &entry{
		transport:  tr,
		name:       d.Name,
		lastStatus: transport.StatusDisconnected,
		log:        slog,
	}
	c.logger.Info("telescope started", "slot", slot, "name", d.Name, "kind", d.Kind)
	return nil
}

// Stop takes a slot down. Stopping an inactive slot is a no-op.
// ErrStopUnconfirmed reports an owned process that could not be
// confirmed dead; the slot's bookkeeping is removed regardless.
func (c *Core) Stop(slot int) error {
	if !validSlot(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrInvalidSlot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(slot, time.Now().UTC())
}

// StopAtSlot is the boolean form of Stop.
func (c *Core) StopAtSlot(slot int) bool {
	return c.Stop(slot) == nil
}

func (c *Core) stopLocked(slot int, now time.Time) error {
	e, ok := c.active[slot]
	if !ok {
		return nil
	}
	delete(c.active, slot)

	wasConnected := e.transport.Status() == transport.StatusConnected
	err := e.transport.Close()

	if e.log != nil {
		if cerr := e.log.Close(); cerr != nil {
			c.logger.Debug("closing server log", "slot", slot, "error", cerr)
		}
	}
	if wasConnected {
		c.emitLocked(EventDisconnected, slot, e.name, now)
	}

	if err != nil {
		c.logger.Warn("telescope stop unclean", "slot", slot, "name", e.name, "error", err)
		if errors.Is(err, process.ErrUnconfirmed) {
			return fmt.Errorf("slot %d: %w", slot, ErrStopUnconfirmed)
		}
		return fmt.Errorf("slot %d: %w", slot, err)
	}

	c.logger.Info("telescope stopped", "slot", slot, "name", e.name)
	return nil
}

// StopAll stops every active slot. True only when every stop was clean;
// the registry is empty of live transports either way.
func (c *Core) StopAll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopAllLocked()
}

func (c *Core) stopAllLocked() bool {
	now := time.Now().UTC()
	clean := true
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if err := c.stopLocked(slot, now); err != nil {
			clean = false
		}
	}
	return clean
}

// DeleteAll stops everything and clears all stored descriptions: the
// full reset. The caller persists the now-empty mapping.
func (c *Core) DeleteAll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	clean := c.stopAllLocked()
	c.descriptions = make(map[int]Description)
	c.logger.Info("all telescopes removed")
	return clean
}

// IsActive reports whether the slot has a live transport.
func (c *Core) IsActive(slot int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[slot]
	return ok
}

// IsConnected reports whether the slot's transport is connected.
func (c *Core) IsConnected(slot int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.active[slot]
	return ok && e.transport.Status() == transport.StatusConnected
}

// ConnectedNames returns the display names of connected slots in slot
// order.
func (c *Core) ConnectedNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var names []string
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if e, ok := c.active[slot]; ok && e.transport.Status() == transport.StatusConnected {
			names = append(names, e.name)
		}
	}
	return names
}

// DescriptionAt returns a copy of the stored description.
func (c *Core) DescriptionAt(slot int) (Description, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.descriptions[slot]
	return d, ok
}

// Descriptions returns a copy of the full slot mapping.
func (c *Core) Descriptions() map[int]Description {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[int]Description, len(c.descriptions))
	for slot, d := range c.descriptions {
		out[slot] = d
	}
	return out
}

// StatusAt returns the slot's connection status, Disconnected when
// nothing is live.
func (c *Core) StatusAt(slot int) transport.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.active[slot]; ok {
		return e.transport.Status()
	}
	return transport.StatusDisconnected
}

// Slew queues a slew toward a unit direction on a connected slot. A
// queued command that has not been transmitted yet is superseded.
func (c *Core) Slew(slot int, target protocol.Vec3) error {
	if !validSlot(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrInvalidSlot)
	}
	direction := target.Normalized()
	if direction.IsZero() {
		return fmt.Errorf("slot %d: zero goto direction", slot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.active[slot]
	if !ok || e.transport.Status() != transport.StatusConnected {
		return fmt.Errorf("slot %d: %w", slot, ErrNotActive)
	}
	e.transport.SendGoto(direction, time.Now().UTC())
	c.logger.Debug("goto queued", "slot", slot, "name", e.name)
	return nil
}

// Goto is the boolean form of Slew.
func (c *Core) Goto(slot int, target protocol.Vec3) bool {
	return c.Slew(slot, target) == nil
}

// Sync tells a connected mount that its current pointing equals target.
// Transports that cannot express sync report transport.ErrUnsupported.
func (c *Core) Sync(slot int, target protocol.Vec3) error {
	if !validSlot(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrInvalidSlot)
	}
	direction := target.Normalized()
	if direction.IsZero() {
		return fmt.Errorf("slot %d: zero sync direction", slot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.active[slot]
	if !ok || e.transport.Status() != transport.StatusConnected {
		return fmt.Errorf("slot %d: %w", slot, ErrNotActive)
	}
	if !e.transport.SyncPosition(direction) {
		return fmt.Errorf("slot %d: %w", slot, transport.ErrUnsupported)
	}
	c.logger.Info("position synced", "slot", slot, "name", e.name)
	return nil
}

// SyncPosition is the boolean form of Sync.
func (c *Core) SyncPosition(slot int, target protocol.Vec3) bool {
	return c.Sync(slot, target) == nil
}

// PositionAt returns the last known position of a live slot. False
// before the first report or when nothing is live.
func (c *Core) PositionAt(slot int) (PositionSample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.active[slot]
	if !ok {
		return PositionSample{}, false
	}
	return e.transport.Position()
}

// SlotView is the combined stored + live picture of one slot, shaped
// for status surfaces.
type SlotView struct {
	Slot        int              `json:"slot"`
	Description Description      `json:"description"`
	Active      bool             `json:"active"`
	Status      transport.Status `json:"status"`
	Position    *PositionSample  `json:"position,omitempty"`
}

// SlotAt returns the view of one slot; false when the slot is invalid
// or holds neither a description nor a live transport.
func (c *Core) SlotAt(slot int) (SlotView, bool) {
	if !validSlot(slot) {
		return SlotView{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(slot)
}

// Slots returns views of every occupied slot in ascending order.
func (c *Core) Slots() []SlotView {
	c.mu.Lock()
	defer c.mu.Unlock()

	var views []SlotView
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if v, ok := c.viewLocked(slot); ok {
			views = append(views, v)
		}
	}
	return views
}

func (c *Core) viewLocked(slot int) (SlotView, bool) {
	d, stored := c.descriptions[slot]
	e, live := c.active[slot]
	if !stored && !live {
		return SlotView{}, false
	}

	v := SlotView{
		Slot:        slot,
		Description: d,
		Active:      live,
		Status:      transport.StatusDisconnected,
	}
	if live {
		v.Status = e.transport.Status()
		if sample, ok := e.transport.Position(); ok {
			v.Position = &sample
		}
		if !stored {
			v.Description.Name = e.name
		}
	}
	return v, true
}

// Stats summarises the registry for monitoring surfaces.
type Stats struct {
	Stored    int `json:"stored"`
	Active    int `json:"active"`
	Connected int `json:"connected"`
}

// GetStats returns current registry statistics.
func (c *Core) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Stored: len(c.descriptions),
		Active: len(c.active),
	}
	for _, e := range c.active {
		if e.transport.Status() == transport.StatusConnected {
			stats.Connected++
		}
	}
	return stats
}

// Communicate performs exactly one tick: every live slot drains its
// inbound data, flushes its queued command, has its status edges
// observed and its position sampled. One misbehaving device never
// blocks the others.
func (c *Core) Communicate(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for slot := MinSlot; slot <= MaxSlot; slot++ {
		e, ok := c.active[slot]
		if !ok {
			continue
		}

		if err := e.transport.Communicate(now); err != nil {
			c.logger.Error("communication failed", "slot", slot, "name", e.name, "error", err)
		}

		status := e.transport.Status()
		if status != e.lastStatus {
			switch {
			case status == transport.StatusConnected:
				c.emitLocked(EventConnected, slot, e.name, now)
			case e.lastStatus == transport.StatusConnected:
				c.emitLocked(EventDisconnected, slot, e.name, now)
			}
			e.lastStatus = status
		}

		if status == transport.StatusConnected && c.opts.SampleInterval > 0 &&
			now.Sub(e.lastSampled) >= c.opts.SampleInterval {
			if sample, ok := e.transport.Position(); ok {
				e.lastSampled = now
				for _, s := range c.samplers {
					s.Sample(slot, e.name, sample)
				}
			}
		}
	}
}

// Run drives the communication loop until ctx is cancelled, starting
// ConnectAtStartup slots first and stopping everything on the way out.
func (c *Core) Run(ctx context.Context) {
	c.autostart()

	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	c.logger.Info("communication loop running", "tick_interval", c.opts.TickInterval)
	for {
		select {
		case <-ctx.Done():
			c.StopAll()
			c.logger.Info("communication loop stopped")
			return
		case now := <-ticker.C:
			c.Communicate(now)
		}
	}
}

func (c *Core) autostart() {
	c.mu.Lock()
	var slots []int
	for slot, d := range c.descriptions {
		if d.ConnectAtStartup {
			slots = append(slots, slot)
		}
	}
	c.mu.Unlock()

	sort.Ints(slots)
	for _, slot := range slots {
		if err := c.Start(slot); err != nil {
			c.logger.Warn("autostart failed", "slot", slot, "error", err)
		}
	}
}

func (c *Core) emitLocked(t EventType, slot int, name string, at time.Time) {
	e := Event{Type: t, Slot: slot, Name: name, At: at}
	for _, n := range c.notifiers {
		n.Notify(e)
	}

	msg := "telescope connected"
	if t == EventDisconnected {
		msg = "telescope disconnected"
	}
	c.logger.Info(msg, "slot", slot, "name", name)
}

func (c *Core) lookupModel(name string) (catalog.Model, bool) {
	if c.opts.Catalog == nil {
		return catalog.Model{}, false
	}
	return c.opts.Catalog.Lookup(name)
}

// resolveServerBinary finds the executable for a server-bridging slot:
// the description's explicit override, else the device model's server,
// rooted in ServersDir unless already absolute.
func (c *Core) resolveServerBinary(d Description) (string, error) {
	name := d.ServerExecutable
	if name == "" {
		model, ok := c.lookupModel(d.DeviceModel)
		if !ok {
			return "", fmt.Errorf("%w: %q", catalog.ErrModelNotFound, d.DeviceModel)
		}
		name = model.Server
	}
	if name == "" {
		return "", fmt.Errorf("model %q names no server executable", d.DeviceModel)
	}
	if c.opts.ServersDir != "" && !filepath.IsAbs(name) {
		return filepath.Join(c.opts.ServersDir, name), nil
	}
	return name, nil
}
