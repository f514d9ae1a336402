package resolver

import (
	"slices"

	"github.com/netinv/netinv/internal/datamodel"
	"github.com/netinv/netinv/internal/model"
)

// Identity tags a controller family (architecture). It is the registry
// lookup key and the detection result.
type Identity string

// Built-in controller families.
const (
	IdentitySDWAN          Identity = "sdwan"
	IdentityCatalystCenter Identity = "catalyst_center"
	IdentityStandalone     Identity = "standalone"
)

// Device classes a resolver can produce inventories for.
const (
	ClassSSH = "ssh"
)

// Descriptor declares the static properties of a controller family: its
// schema root key, the environment triple that configures its controller
// (empty for controller-less families) and the device classes it supports.
type Descriptor struct {
	Identity Identity
	RootKey  string

	// Controller environment triple. All three are empty for families
	// without a managing controller (standalone).
	EnvURL      string
	EnvUsername string
	EnvPassword string

	DeviceClasses []string
}

// HasControllerEnv reports whether this family is configured through a
// controller environment triple.
func (d Descriptor) HasControllerEnv() bool {
	return d.EnvURL != ""
}

// SupportsClass reports whether the family can resolve devices of the
// given class.
func (d Descriptor) SupportsClass(class string) bool {
	return slices.Contains(d.DeviceClasses, class)
}

// Variant is the schema-specific half of the device resolver. One
// implementation exists per controller family; the shared orchestration in
// Resolver drives these hooks.
type Variant interface {
	Descriptor() Descriptor

	// NavigateToDevices walks the family's schema to the raw device
	// records. The root key is known to exist when this is called; a
	// present-but-empty subtree yields an empty slice, not an error.
	NavigateToDevices() []datamodel.RawRecord

	// ExtractDeviceID returns the family-specific device identifier, or
	// "" to fall back to the hostname.
	ExtractDeviceID(raw datamodel.RawRecord) string

	ExtractHostname(raw datamodel.RawRecord) (string, error)

	// ExtractHostIP returns the management address, which may still carry
	// a CIDR suffix. Stripping and validation happen in the template.
	ExtractHostIP(raw datamodel.RawRecord) (string, error)

	// ExtractOSType returns the network OS, applying the family default
	// when the record does not say.
	ExtractOSType(raw datamodel.RawRecord) string

	// CredentialEnvVars names the environment variables holding the
	// per-device SSH credentials.
	CredentialEnvVars() (usernameVar, passwordVar string)
}

// DeviceValidator is an optional hook a variant can implement to exclude
// devices before field extraction (e.g. devices still being provisioned).
// A returned error skips the device with that reason; it is not fatal.
type DeviceValidator interface {
	ValidateDevice(raw datamodel.RawRecord) error
}

// DeviceDecorator is an optional hook for family-specific fields on the
// resolved device (platform, type).
type DeviceDecorator interface {
	DecorateDevice(d *model.Device, raw datamodel.RawRecord)
}

// Factory constructs a variant bound to one loaded data model. Variants
// hold only a reference to the model; they never mutate it.
type Factory func(m datamodel.Model) Variant
