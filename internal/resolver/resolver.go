// Package resolver turns a merged, schema-specific data model into a
// normalized, credential-bearing device inventory for test execution.
//
// The package has four moving parts: architecture detection (detector.go),
// the family registry (registry.go), one schema variant per controller
// family (sdwan.go, catalystcenter.go, standalone.go) and the shared
// template that drives every variant (this file). The optional test
// inventory filter lives in inventory.go.
package resolver

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"
	"strings"

	"github.com/netinv/netinv/internal/datamodel"
	"github.com/netinv/netinv/internal/model"
)

// Resolver runs the shared resolution steps over one schema variant:
// navigate, filter against the test inventory, extract and validate fields,
// inject credentials. Instances are created per resolution call and hold
// only a reference to the already-loaded data model.
type Resolver struct {
	variant   Variant
	m         datamodel.Model
	env       Environment
	overrides []InventoryEntry
	log       *slog.Logger

	skipped []model.SkippedDevice
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOverrides installs test-inventory override entries. Without them the
// full discovered set passes through unfiltered.
func WithOverrides(entries []InventoryEntry) Option {
	return func(r *Resolver) { r.overrides = entries }
}

// WithLogger sets the resolution logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// NewResolver binds a schema variant to a data model and environment.
func NewResolver(variant Variant, m datamodel.Model, env Environment, opts ...Option) *Resolver {
	r := &Resolver{
		variant: variant,
		m:       m,
		env:     env,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolvedInventory returns the normalized device list in discovery order
// (override-entry order when a test inventory is present). Devices excluded
// by a validation hook or a missing field are recorded in Skipped; a
// malformed host address aborts the whole batch instead.
func (r *Resolver) ResolvedInventory() ([]model.Device, error) {
	desc := r.variant.Descriptor()
	r.skipped = nil

	if !r.m.Has(desc.RootKey) {
		return nil, fmt.Errorf(
			"%w %q for architecture %q",
			ErrSchemaMismatch, desc.RootKey, desc.Identity,
		)
	}

	discovered := r.variant.NavigateToDevices()
	r.log.Debug("Discovered devices in data model",
		"architecture", desc.Identity, "count", len(discovered))

	if len(r.overrides) > 0 {
		discovered = filterAndMerge(discovered, r.overrides, r.log)
	}

	devices := make([]model.Device, 0, len(discovered))
	validator, _ := r.variant.(DeviceValidator)
	decorator, _ := r.variant.(DeviceDecorator)

	for _, raw := range discovered {
		if validator != nil {
			if err := validator.ValidateDevice(raw); err != nil {
				r.skip(raw, err)
				continue
			}
		}

		hostname, err := r.variant.ExtractHostname(raw)
		if err != nil {
			r.skip(raw, err)
			continue
		}

		rawIP, err := r.variant.ExtractHostIP(raw)
		if err != nil {
			r.skip(raw, err)
			continue
		}

		deviceID := r.variant.ExtractDeviceID(raw)
		if deviceID == "" {
			// Hostname is a reasonable universal fallback identifier.
			deviceID = hostname
		}

		host, err := normalizeHostIP(deviceID, rawIP)
		if err != nil {
			// A bad address is a data-model authoring mistake worth
			// surfacing loudly, not a device to drop.
			return nil, err
		}

		device := model.Device{
			DeviceID:   deviceID,
			Hostname:   hostname,
			Host:       host,
			OS:         r.variant.ExtractOSType(raw),
			Connection: connectionOptions(raw),
		}
		if decorator != nil {
			decorator.DecorateDevice(&device, raw)
		}
		devices = append(devices, device)
		r.log.Debug("Resolved device",
			"hostname", device.Hostname, "host", device.Host, "os", device.OS)
	}

	if err := r.injectCredentials(devices); err != nil {
		return nil, err
	}

	r.log.Info("Resolved device inventory",
		"architecture", desc.Identity,
		"resolved", len(devices),
		"skipped", len(r.skipped),
	)
	return devices, nil
}

// Skipped returns the devices excluded during the last resolution pass,
// with reasons.
func (r *Resolver) Skipped() []model.SkippedDevice {
	return r.skipped
}

func (r *Resolver) skip(raw datamodel.RawRecord, reason error) {
	deviceID := r.variant.ExtractDeviceID(raw)
	if deviceID == "" {
		deviceID = "<unknown>"
	}
	r.log.Debug("Skipping device", "device_id", deviceID, "reason", reason.Error())
	r.skipped = append(r.skipped, model.SkippedDevice{
		DeviceID: deviceID,
		Reason:   reason.Error(),
	})
}

// injectCredentials resolves the device credential pair once and writes it
// onto every device. All missing variable names aggregate into one error.
func (r *Resolver) injectCredentials(devices []model.Device) error {
	usernameVar, passwordVar := r.variant.CredentialEnvVars()
	username := r.env.Get(usernameVar)
	password := r.env.Get(passwordVar)

	var missing []string
	if username == "" {
		missing = append(missing, usernameVar)
	}
	if password == "" {
		missing = append(missing, passwordVar)
	}
	if len(missing) > 0 {
		return &MissingCredentialError{
			Architecture: string(r.variant.Descriptor().Identity),
			Vars:         missing,
		}
	}

	for i := range devices {
		devices[i].Username = username
		devices[i].Password = password
	}
	return nil
}

// normalizeHostIP strips an optional CIDR suffix and validates the result
// as an IPv4/IPv6 address.
func normalizeHostIP(deviceID, value string) (string, error) {
	host := value
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	if _, err := netip.ParseAddr(host); err != nil {
		return "", &MalformedAddressError{DeviceID: deviceID, Value: value}
	}
	return host, nil
}

// connectionOptions reads transport parameters merged into the raw record,
// falling back to SSH/22.
func connectionOptions(raw datamodel.RawRecord) model.ConnectionOptions {
	opts := model.DefaultConnectionOptions()
	co := raw.Map("connection_options")
	if port, ok := asInt(co["port"]); ok && port > 0 {
		opts.Port = port
	}
	if proto := datamodel.Stringify(co["protocol"]); proto != "" {
		opts.Protocol = proto
	}
	return opts
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}
