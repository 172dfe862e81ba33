package telescope

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/skybridge-obs/skybridge-core/internal/transport"
)

// Connection is the reduced per-slot record written to the companion
// connections document: only the live link parameters, for tooling that
// inspects connectivity without caring about display metadata.
type Connection struct {
	Kind   string `json:"kind"`
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	Device string `json:"device,omitempty"`
	Delay  int64  `json:"delay,omitempty"`
}

// SaveTelescopes writes the full slot mapping as a JSON document keyed
// by decimal slot number. The write is atomic: a temp file in the same
// directory is renamed over the destination, so readers never see a
// half-written document.
func SaveTelescopes(path string, m map[int]Description) error {
	doc := make(map[string]Description, len(m))
	for slot, d := range m {
		doc[strconv.Itoa(slot)] = d
	}
	return writeJSON(path, doc)
}

// LoadTelescopes reads the slot mapping. A missing or corrupt document
// yields an empty mapping and no error; individually malformed entries,
// out-of-range slots, and unknown kinds are skipped so valid siblings
// survive. The error return is reserved for real I/O failures on an
// existing file.
func LoadTelescopes(path string) (map[int]Description, error) {
	out := make(map[int]Description)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return out, nil
	}

	for key, raw := range doc {
		slot, err := strconv.Atoi(key)
		if err != nil || !validSlot(slot) {
			continue
		}
		var d Description
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		if !transport.KnownKind(d.Kind) {
			continue
		}
		out[slot] = d
	}
	return out, nil
}

// SaveConnections writes the companion connection document derived from
// the same mapping, keeping both documents in step.
func SaveConnections(path string, m map[int]Description) error {
	doc := make(map[string]Connection, len(m))
	for slot, d := range m {
		doc[strconv.Itoa(slot)] = Connection{
			Kind:   d.Kind,
			Host:   d.Host,
			Port:   d.Port,
			Device: d.Device,
			Delay:  d.Delay,
		}
	}
	return writeJSON(path, doc)
}

// LoadConnections reads the companion document with the same degrade
// semantics as LoadTelescopes. The registry treats telescopes.json as
// authoritative; this read path serves external tooling.
func LoadConnections(path string) (map[int]Connection, error) {
	out := make(map[int]Connection)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return out, nil
	}

	for key, raw := range doc {
		slot, err := strconv.Atoi(key)
		if err != nil || !validSlot(slot) {
			continue
		}
		var c Connection
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		out[slot] = c
	}
	return out, nil
}

func writeJSON(path string, doc any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
