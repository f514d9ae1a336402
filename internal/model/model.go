// Package model defines the normalized device records exchanged between the
// resolution subsystem and the test-execution engine.
package model

// Default connection parameters applied when neither the data model nor the
// test inventory overrides them.
const (
	DefaultProtocol = "ssh"
	DefaultPort     = 22
)

// ConnectionOptions carries transport parameters for one device.
type ConnectionOptions struct {
	Port     int    `json:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Protocol string `json:"protocol" yaml:"protocol" validate:"omitempty,oneof=ssh telnet"`
}

// DefaultConnectionOptions returns the SSH/22 defaults.
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{Port: DefaultPort, Protocol: DefaultProtocol}
}

// Device is a resolved, connectable device. Instances are constructed once
// per resolution pass and treated as immutable afterwards.
type Device struct {
	// DeviceID is the stable identifier used for inventory matching and logging.
	DeviceID string `json:"device_id" yaml:"device_id"`
	// Hostname is the human-readable device name.
	Hostname string `json:"hostname" yaml:"hostname"`
	// Host is the bare management IP address, CIDR suffix stripped.
	Host string `json:"host" yaml:"host"`
	// OS identifies the network operating system (e.g. "iosxe").
	OS string `json:"os" yaml:"os"`
	// Platform is an optional abstraction hint (e.g. "sdwan" edge platforms).
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`
	// Type is an optional device role (e.g. "router").
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Credentials are injected from the environment and never serialized.
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"-"`

	Connection ConnectionOptions `json:"connection_options" yaml:"connection_options"`
}

// SkippedDevice records a device excluded during resolution together with
// the reason, for post-run diagnostics.
type SkippedDevice struct {
	DeviceID string `json:"device_id" yaml:"device_id"`
	Reason   string `json:"reason" yaml:"reason"`
}
