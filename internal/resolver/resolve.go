package resolver

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/netinv/netinv/internal/datamodel"
	"github.com/netinv/netinv/internal/model"
)

// Options tunes a resolution run.
type Options struct {
	// DeviceClass the caller intends to test. Defaults to ClassSSH.
	DeviceClass string
	// InventoryPath points at an optional test-inventory override file.
	// Empty means no filtering.
	InventoryPath string
	// Registry defaults to the process-wide registry.
	Registry *Registry
	Logger   *slog.Logger
}

// Result is the outcome of one resolution run.
type Result struct {
	// RunID correlates the log lines of one resolution pass.
	RunID    string                `json:"run_id" yaml:"run_id"`
	Identity Identity              `json:"architecture" yaml:"architecture"`
	Devices  []model.Device        `json:"devices" yaml:"devices"`
	Skipped  []model.SkippedDevice `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Resolve is the single entry point for the test-orchestration engine:
// detect the active architecture, look up its resolver, apply the optional
// test-inventory filter and return the normalized device list.
func Resolve(env Environment, m datamodel.Model, opts Options) (*Result, error) {
	reg := opts.Registry
	if reg == nil {
		reg = GetRegistry()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	class := opts.DeviceClass
	if class == "" {
		class = ClassSSH
	}

	runID := uuid.New().String()
	log = log.With("run_id", runID)

	identity, err := Detect(env, m, reg, class)
	if err != nil {
		return nil, err
	}
	log.Info("Detected architecture", "architecture", identity)

	desc, factory, err := reg.Lookup(identity)
	if err != nil {
		return nil, err
	}

	resolverOpts := []Option{WithLogger(log)}
	if opts.InventoryPath != "" {
		entries, err := LoadInventory(opts.InventoryPath, desc.RootKey)
		if err != nil {
			return nil, err
		}
		log.Info("Applying test inventory overrides",
			"path", opts.InventoryPath, "entries", len(entries))
		resolverOpts = append(resolverOpts, WithOverrides(entries))
	}

	r := NewResolver(factory(m), m, env, resolverOpts...)
	devices, err := r.ResolvedInventory()
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:    runID,
		Identity: identity,
		Devices:  devices,
		Skipped:  r.Skipped(),
	}, nil
}
