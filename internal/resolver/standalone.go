package resolver

import (
	"fmt"

	"github.com/netinv/netinv/internal/datamodel"
)

// standaloneDescriptor covers controller-less deployments: a flat device
// list with no managing controller, so no environment triple. It must be
// registered last because its generic "devices" root key would otherwise
// shadow structural detection of the richer schemas.
var standaloneDescriptor = Descriptor{
	Identity:      IdentityStandalone,
	RootKey:       "devices",
	DeviceClasses: []string{ClassSSH},
}

// StandaloneVariant resolves a flat devices[] list.
type StandaloneVariant struct {
	m datamodel.Model
}

// NewStandaloneVariant builds the standalone schema variant.
func NewStandaloneVariant(m datamodel.Model) Variant {
	return &StandaloneVariant{m: m}
}

func (v *StandaloneVariant) Descriptor() Descriptor { return standaloneDescriptor }

func (v *StandaloneVariant) NavigateToDevices() []datamodel.RawRecord {
	return datamodel.AsList(v.m["devices"])
}

// ExtractDeviceID returns the explicit id field when present. An empty
// return falls back to the hostname in the shared template.
func (v *StandaloneVariant) ExtractDeviceID(raw datamodel.RawRecord) string {
	return raw.String("id")
}

func (v *StandaloneVariant) ExtractHostname(raw datamodel.RawRecord) (string, error) {
	if hostname := raw.String("hostname"); hostname != "" {
		return hostname, nil
	}
	if name := raw.String("name"); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("device missing 'hostname' and 'name' fields")
}

func (v *StandaloneVariant) ExtractHostIP(raw datamodel.RawRecord) (string, error) {
	// Primary field with a secondary fallback for older inventories.
	if host := raw.String("host"); host != "" {
		return host, nil
	}
	if ip := raw.String("ip"); ip != "" {
		return ip, nil
	}
	return "", fmt.Errorf("device missing 'host' and 'ip' fields")
}

func (v *StandaloneVariant) ExtractOSType(raw datamodel.RawRecord) string {
	if os := raw.String("os"); os != "" {
		return os
	}
	return "iosxe"
}

func (v *StandaloneVariant) CredentialEnvVars() (string, string) {
	return "DEVICE_USERNAME", "DEVICE_PASSWORD"
}
