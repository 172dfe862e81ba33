package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultDelayMicroseconds is the connection delay assumed for models
// that do not declare one.
const DefaultDelayMicroseconds = 500000

//go:embed device_models.json
var defaultModelsJSON []byte

// Model describes one supported telescope or mount model.
type Model struct {
	// Name is the display name and catalog key.
	Name string `json:"name"`

	// Description is a short human-readable note about the model.
	Description string `json:"description,omitempty"`

	// Server is the protocol family of the server executable that
	// drives this model (for example "lx200" or "nexstar"). Empty for
	// INDI models.
	Server string `json:"server,omitempty"`

	// DefaultDelay is the suggested time lag in microseconds between
	// the core and this device.
	DefaultDelay int64 `json:"default_delay"`

	// DefaultPort is the suggested TCP port, 0 when the slot default
	// applies.
	DefaultPort int `json:"default_port,omitempty"`

	// INDI marks models contributed by an INDI driver manifest.
	INDI bool `json:"indi,omitempty"`

	// Driver is the INDI driver executable for INDI models.
	Driver string `json:"driver,omitempty"`
}

// modelEntry is the on-disk shape of one device_models.json value.
type modelEntry struct {
	Server       string `json:"server"`
	Description  string `json:"description"`
	DefaultDelay int64  `json:"default_delay"`
	DefaultPort  int    `json:"default_port"`
}

// Catalog holds the loaded device models. It is populated during
// startup and read-only afterwards, so lookups need no locking.
type Catalog struct {
	models   map[string]Model
	warnings []string
}

// Load reads a device_models.json file. A missing file yields an empty
// catalog with a warning recorded; the caller decides whether to
// restore defaults. Entries without a server family are skipped with a
// warning rather than failing the whole load.
func Load(path string) (*Catalog, error) {
	c := &Catalog{models: make(map[string]Model)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.warn("device model list %s does not exist", path)
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading device model list: %w", err)
	}

	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDefault builds a catalog from the embedded default model list.
func LoadDefault() (*Catalog, error) {
	c := &Catalog{models: make(map[string]Model)}
	if err := c.merge(defaultModelsJSON); err != nil {
		return nil, err
	}
	return c, nil
}

// Restore writes the embedded default device_models.json to the given
// path, creating parent directories as needed. Used when the user copy
// is missing or damaged.
func Restore(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}
	if err := os.WriteFile(path, defaultModelsJSON, 0o644); err != nil {
		return fmt.Errorf("restoring device model list: %w", err)
	}
	return nil
}

func (c *Catalog) merge(data []byte) error {
	var entries map[string]modelEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	for name, entry := range entries {
		if name == "" {
			c.warn("skipping device model with empty name")
			continue
		}
		if entry.Server == "" {
			c.warn("skipping device model %q: no server family", name)
			continue
		}
		delay := entry.DefaultDelay
		if delay <= 0 {
			delay = DefaultDelayMicroseconds
		}
		c.models[name] = Model{
			Name:         name,
			Description:  entry.Description,
			Server:       entry.Server,
			DefaultDelay: delay,
			DefaultPort:  entry.DefaultPort,
		}
	}
	return nil
}

// Lookup returns the model with the given name.
func (c *Catalog) Lookup(name string) (Model, bool) {
	m, ok := c.models[name]
	return m, ok
}

// Models returns all models sorted by name.
func (c *Catalog) Models() []Model {
	out := make([]Model, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all model names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.models))
	for name := range c.models {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of models in the catalog.
func (c *Catalog) Len() int {
	return len(c.models)
}

// Warnings lists non-fatal issues recorded while loading, for the
// caller to log.
func (c *Catalog) Warnings() []string {
	return c.warnings
}

func (c *Catalog) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}
