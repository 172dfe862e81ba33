package catalog

import (
	"fmt"
	"os"

	"github.com/clbanning/mxj/v2"
)

func init() {
	mxj.PrependAttrWithHyphen(false)
	mxj.SetAttrPrefix("attr_")
}

// LoadINDI merges an INDI drivers.xml-style manifest into the catalog.
// Each <device> label becomes an INDI model carrying its driver
// executable. A missing file records a warning and leaves the catalog
// unchanged; a file that cannot be parsed returns ErrInvalidManifest so
// the caller can log and continue without INDI models.
func (c *Catalog) LoadINDI(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.warn("INDI driver manifest %s does not exist", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading INDI driver manifest: %w", err)
	}

	mv, err := mxj.NewMapXml(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	groups, err := mv.ValuesForPath("driversList.devGroup")
	if err != nil || len(groups) == 0 {
		return fmt.Errorf("%w: no devGroup elements", ErrInvalidManifest)
	}

	for _, rawGroup := range groups {
		group, ok := rawGroup.(map[string]interface{})
		if !ok {
			continue
		}
		groupName := attrString(group, "attr_group")
		for _, rawDevice := range children(group, "device") {
			device, ok := rawDevice.(map[string]interface{})
			if !ok {
				continue
			}
			label := attrString(device, "attr_label")
			driver := driverName(device)
			if label == "" || driver == "" {
				c.warn("skipping INDI device with missing label or driver in group %q", groupName)
				continue
			}
			description := "INDI driver " + driver
			if groupName != "" {
				description = fmt.Sprintf("INDI driver %s (%s)", driver, groupName)
			}
			c.models[label] = Model{
				Name:         label,
				Description:  description,
				DefaultDelay: DefaultDelayMicroseconds,
				INDI:         true,
				Driver:       driver,
			}
		}
	}
	return nil
}

// children returns the child elements under key, which mxj decodes as a
// single map for one child and a slice for several.
func children(m map[string]interface{}, key string) []interface{} {
	switch v := m[key].(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		return []interface{}{v}
	default:
		return nil
	}
}

// driverName extracts the driver executable from a <driver> element,
// which mxj decodes as a plain string when the element has no
// attributes and as a map with a #text key when it does.
func driverName(device map[string]interface{}) string {
	switch v := device["driver"].(type) {
	case string:
		return v
	case map[string]interface{}:
		if text, ok := v["#text"].(string); ok {
			return text
		}
	}
	return ""
}

func attrString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
