package resolver

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/netinv/netinv/internal/datamodel"
	"github.com/netinv/netinv/internal/model"
)

// identityFields is the fixed priority order used both to key override
// entries and to index discovered records. The first populated field wins.
var identityFields = []string{"chassis_id", "device_id", "node_id", "hostname", "name"}

// InventoryEntry is one record of the optional test-inventory override
// file: an allow-list entry identified by whichever identity field is
// present, optionally annotated with connection parameters.
type InventoryEntry struct {
	ChassisID string `yaml:"chassis_id,omitempty"`
	DeviceID  string `yaml:"device_id,omitempty"`
	NodeID    string `yaml:"node_id,omitempty"`
	Hostname  string `yaml:"hostname,omitempty"`
	Name      string `yaml:"name,omitempty"`

	ConnectionOptions *model.ConnectionOptions `yaml:"connection_options,omitempty" validate:"omitempty"`
}

// identityValue returns the entry's identifying value by field priority.
func (e InventoryEntry) identityValue() (field, value string) {
	for _, f := range identityFields {
		if v := e.fieldValue(f); v != "" {
			return f, v
		}
	}
	return "", ""
}

func (e InventoryEntry) fieldValue(field string) string {
	switch field {
	case "chassis_id":
		return e.ChassisID
	case "device_id":
		return e.DeviceID
	case "node_id":
		return e.NodeID
	case "hostname":
		return e.Hostname
	case "name":
		return e.Name
	}
	return ""
}

type inventoryFile struct {
	Devices []InventoryEntry `yaml:"devices"`
}

var inventoryValidate = validator.New()

// LoadInventory reads a test-inventory override file. The devices list may
// sit at the document root or be nested under the architecture's schema
// root key (architectures with nested structure keep their overrides
// there). A missing path is not an error; the filter is simply bypassed.
func LoadInventory(path, rootKey string) ([]InventoryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test inventory %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse test inventory %s: %w", path, err)
	}

	section := doc
	if nested, ok := datamodel.AsMap(doc[rootKey]); ok {
		if _, hasDevices := nested["devices"]; hasDevices {
			section = nested
		}
	}

	raw, err := yaml.Marshal(section)
	if err != nil {
		return nil, fmt.Errorf("failed to reparse test inventory %s: %w", path, err)
	}
	var file inventoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse test inventory %s: %w", path, err)
	}

	for i, entry := range file.Devices {
		if _, v := entry.identityValue(); v == "" {
			return nil, fmt.Errorf(
				"test inventory %s: entry %d has no identifying field (expected one of %v)",
				path, i, identityFields,
			)
		}
		if err := inventoryValidate.Struct(entry); err != nil {
			return nil, fmt.Errorf("test inventory %s: entry %d invalid: %w", path, i, err)
		}
	}
	return file.Devices, nil
}

// filterAndMerge intersects the discovered records with the override
// entries. Discovered records are indexed under every identity field they
// expose; each entry looks up its highest-priority value. A miss logs a
// warning and is skipped, so a retired device in the override file never
// aborts a run. A hit shallow-merges the entry's fields over a copy of the
// discovered record, override values winning. The returned order follows
// the override entries (explicit intent order).
func filterAndMerge(discovered []datamodel.RawRecord, entries []InventoryEntry, log *slog.Logger) []datamodel.RawRecord {
	index := make(map[string]datamodel.RawRecord)
	for _, raw := range discovered {
		for _, field := range identityFields {
			if v := identityFromRecord(raw, field); v != "" {
				if _, taken := index[v]; !taken {
					index[v] = raw
				}
			}
		}
	}

	merged := make([]datamodel.RawRecord, 0, len(entries))
	for _, entry := range entries {
		field, value := entry.identityValue()
		raw, found := index[value]
		if !found {
			log.Warn("Test inventory entry matches no discovered device, skipping",
				"field", field, "value", value)
			continue
		}
		merged = append(merged, mergeEntry(raw, entry))
	}
	return merged
}

// identityFromRecord reads an identity field off a raw record, covering the
// schema-specific spellings: the standalone schema stores its identifier as
// a bare "id", and the SD-WAN schema nests the hostname under
// device_variables.
func identityFromRecord(raw datamodel.RawRecord, field string) string {
	if v := raw.String(field); v != "" {
		return v
	}
	switch field {
	case "device_id":
		return raw.String("id")
	case "hostname":
		return datamodel.Stringify(raw.Map("device_variables")["system_hostname"])
	}
	return ""
}

// mergeEntry lays the override entry's populated fields over a shallow copy
// of the discovered record. connection_options merges key by key (one
// level), so an override setting only the port keeps a discovered protocol.
func mergeEntry(raw datamodel.RawRecord, entry InventoryEntry) datamodel.RawRecord {
	out := raw.Clone()
	for _, field := range identityFields {
		if v := entry.fieldValue(field); v != "" {
			out[field] = v
			// Records spelling their identifier "id" keep it in sync.
			if field == "device_id" && out.String("id") != "" {
				out["id"] = v
			}
		}
	}
	if entry.ConnectionOptions != nil {
		co := map[string]any{}
		for k, v := range out.Map("connection_options") {
			co[k] = v
		}
		if entry.ConnectionOptions.Port != 0 {
			co["port"] = entry.ConnectionOptions.Port
		}
		if entry.ConnectionOptions.Protocol != "" {
			co["protocol"] = entry.ConnectionOptions.Protocol
		}
		out["connection_options"] = co
	}
	return out
}
