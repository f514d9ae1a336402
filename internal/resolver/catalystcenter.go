package resolver

import (
	"fmt"
	"strings"

	"github.com/netinv/netinv/internal/datamodel"
)

var catalystCenterDescriptor = Descriptor{
	Identity:      IdentityCatalystCenter,
	RootKey:       "catalyst_center",
	EnvURL:        "CATALYST_CENTER_URL",
	EnvUsername:   "CATALYST_CENTER_USERNAME",
	EnvPassword:   "CATALYST_CENTER_PASSWORD",
	DeviceClasses: []string{ClassSSH},
}

// CatalystCenterVariant navigates the fleet-controller schema:
// catalyst_center.inventory.devices[]. Devices still in provisioning states
// (INIT, PNP) are excluded from the resolved set because they are not yet
// reachable over SSH; that is a skip, not an error.
type CatalystCenterVariant struct {
	m datamodel.Model
}

// NewCatalystCenterVariant builds the Catalyst Center schema variant.
func NewCatalystCenterVariant(m datamodel.Model) Variant {
	return &CatalystCenterVariant{m: m}
}

func (v *CatalystCenterVariant) Descriptor() Descriptor { return catalystCenterDescriptor }

func (v *CatalystCenterVariant) NavigateToDevices() []datamodel.RawRecord {
	root, _ := v.m.Section("catalyst_center")
	inventory, _ := datamodel.AsMap(root["inventory"])
	return datamodel.AsList(inventory["devices"])
}

// ValidateDevice skips devices that are not fully provisioned.
func (v *CatalystCenterVariant) ValidateDevice(raw datamodel.RawRecord) error {
	state := strings.ToUpper(raw.String("state"))
	if state == "INIT" || state == "PNP" {
		return fmt.Errorf("device has unsupported state %q (not fully provisioned)", state)
	}
	return nil
}

func (v *CatalystCenterVariant) ExtractDeviceID(raw datamodel.RawRecord) string {
	return raw.String("name")
}

func (v *CatalystCenterVariant) ExtractHostname(raw datamodel.RawRecord) (string, error) {
	// Prefer the fully qualified name when the inventory carries one.
	if fqdn := raw.String("fqdn_name"); fqdn != "" {
		return fqdn, nil
	}
	name := raw.String("name")
	if name == "" {
		return "", fmt.Errorf("device missing 'name' field")
	}
	return name, nil
}

func (v *CatalystCenterVariant) ExtractHostIP(raw datamodel.RawRecord) (string, error) {
	deviceIP := raw.String("device_ip")
	if deviceIP == "" {
		return "", fmt.Errorf("device missing 'device_ip' field; ensure device_ip is configured in the inventory")
	}
	return deviceIP, nil
}

func (v *CatalystCenterVariant) ExtractOSType(raw datamodel.RawRecord) string {
	if os := raw.String("os"); os != "" {
		return os
	}
	// Managed campus devices are IOS-XE based.
	return "iosxe"
}

func (v *CatalystCenterVariant) CredentialEnvVars() (string, string) {
	return "IOSXE_USERNAME", "IOSXE_PASSWORD"
}
