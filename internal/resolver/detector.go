package resolver

import (
	"fmt"
	"strings"

	"github.com/netinv/netinv/internal/datamodel"
)

// Detect decides which controller family is active. Environment signals
// win over data-model structure:
//
//  1. Exactly one family with a complete URL/username/password triple is
//     selected, regardless of data-model content.
//  2. A partially configured family (with no fully configured one) is an
//     error naming the missing variables; ambiguity is never silently
//     resolved.
//  3. Two or more complete triples is an error listing every family.
//  4. With no environment signal, the first registered family whose schema
//     root key appears in the data model is selected.
//  5. Otherwise detection fails, enumerating the top-level keys found.
//
// The selected family must support the requested device class.
func Detect(env Environment, m datamodel.Model, reg *Registry, class string) (Identity, error) {
	var complete []Descriptor
	var partial []incompleteFamily

	for _, desc := range reg.Descriptors() {
		if !desc.HasControllerEnv() {
			continue
		}
		missing := missingEnvVars(env, desc)
		switch len(missing) {
		case 0:
			complete = append(complete, desc)
		case 3:
			// No signal at all for this family.
		default:
			partial = append(partial, incompleteFamily{desc: desc, missing: missing})
		}
	}

	switch {
	case len(complete) == 1:
		return checkClass(complete[0], class)

	case len(complete) > 1:
		names := make([]string, len(complete))
		for i, d := range complete {
			names[i] = string(d.Identity)
		}
		return "", fmt.Errorf(
			"%w: multiple controller families configured (%s); only one controller type may be active",
			ErrAmbiguousConfiguration, strings.Join(names, ", "),
		)

	case len(partial) > 0:
		details := make([]string, len(partial))
		for i, p := range partial {
			details[i] = fmt.Sprintf("%s (missing %s)", p.desc.Identity, strings.Join(p.missing, ", "))
		}
		return "", fmt.Errorf("%w: %s", ErrIncompleteConfiguration, strings.Join(details, "; "))
	}

	// No environment signal anywhere: fall back to structural inference in
	// registration order.
	for _, desc := range reg.Descriptors() {
		if m.Has(desc.RootKey) {
			return checkClass(desc, class)
		}
	}

	return "", fmt.Errorf(
		"%w: no controller environment configured and no recognized root key in data model (found top-level keys: %v)",
		ErrAmbiguousConfiguration, m.TopLevelKeys(),
	)
}

type incompleteFamily struct {
	desc    Descriptor
	missing []string
}

func missingEnvVars(env Environment, desc Descriptor) []string {
	var missing []string
	for _, v := range []string{desc.EnvURL, desc.EnvUsername, desc.EnvPassword} {
		if env.Get(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

func checkClass(desc Descriptor, class string) (Identity, error) {
	if class != "" && !desc.SupportsClass(class) {
		return "", fmt.Errorf(
			"%w: architecture %q does not resolve %q devices (supported: %v)",
			ErrUnsupportedArchitecture, desc.Identity, class, desc.DeviceClasses,
		)
	}
	return desc.Identity, nil
}
