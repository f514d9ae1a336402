package resolver

import (
	"fmt"
	"log/slog"

	"github.com/netinv/netinv/internal/datamodel"
	"github.com/netinv/netinv/internal/model"
)

// sdwanDescriptor declares the SD-WAN controller family. Edge devices are
// IOS-XE based, so device credentials come from the IOSXE pair rather than
// the controller triple.
var sdwanDescriptor = Descriptor{
	Identity:      IdentitySDWAN,
	RootKey:       "sdwan",
	EnvURL:        "SDWAN_URL",
	EnvUsername:   "SDWAN_USERNAME",
	EnvPassword:   "SDWAN_PASSWORD",
	DeviceClasses: []string{ClassSSH},
}

// SDWANVariant navigates the SD-WAN schema: sdwan.sites[].routers[].
//
// Management IP resolution is indirect: each router names which device
// variable holds its live management address via management_ip_variable,
// with a router-level value taking precedence over the deployment-wide
// default on the sdwan root.
type SDWANVariant struct {
	m datamodel.Model
}

// NewSDWANVariant builds the SD-WAN schema variant bound to a data model.
func NewSDWANVariant(m datamodel.Model) Variant {
	return &SDWANVariant{m: m}
}

func (v *SDWANVariant) Descriptor() Descriptor { return sdwanDescriptor }

func (v *SDWANVariant) NavigateToDevices() []datamodel.RawRecord {
	var devices []datamodel.RawRecord
	root, _ := v.m.Section("sdwan")
	for _, site := range datamodel.AsList(root["sites"]) {
		devices = append(devices, datamodel.AsList(site["routers"])...)
	}
	return devices
}

func (v *SDWANVariant) ExtractDeviceID(raw datamodel.RawRecord) string {
	return raw.String("chassis_id")
}

func (v *SDWANVariant) ExtractHostname(raw datamodel.RawRecord) (string, error) {
	vars := raw.Map("device_variables")
	if hostname := datamodel.Stringify(vars["system_hostname"]); hostname != "" {
		return hostname, nil
	}
	chassisID := raw.String("chassis_id")
	if chassisID == "" {
		return "", fmt.Errorf("router has neither system_hostname nor chassis_id")
	}
	slog.Warn("No system_hostname found, using chassis_id as hostname", "chassis_id", chassisID)
	return chassisID, nil
}

func (v *SDWANVariant) ExtractHostIP(raw datamodel.RawRecord) (string, error) {
	vars := raw.Map("device_variables")

	// Cascading lookup: router-level override beats the sdwan-level default.
	ipVar := raw.String("management_ip_variable")
	if ipVar == "" {
		if root, ok := v.m.Section("sdwan"); ok {
			ipVar = datamodel.Stringify(root["management_ip_variable"])
		}
	}
	if ipVar == "" {
		return "", fmt.Errorf(
			"management_ip_variable not configured; set it at router level or sdwan level")
	}

	value, present := vars[ipVar]
	if !present {
		return "", fmt.Errorf("management_ip_variable %q not found in device_variables", ipVar)
	}
	return datamodel.Stringify(value), nil
}

func (v *SDWANVariant) ExtractOSType(raw datamodel.RawRecord) string {
	if os := raw.String("os"); os != "" {
		return os
	}
	return "iosxe"
}

// DecorateDevice marks SD-WAN edges as routers on the sdwan platform, which
// downstream connection layers use for driver selection.
func (v *SDWANVariant) DecorateDevice(d *model.Device, _ datamodel.RawRecord) {
	d.Platform = "sdwan"
	d.Type = "router"
}

func (v *SDWANVariant) CredentialEnvVars() (string, string) {
	return "IOSXE_USERNAME", "IOSXE_PASSWORD"
}
