// Command netinv resolves the normalized device inventory for the active
// architecture and prints it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netinv/netinv/internal/authcache"
	"github.com/netinv/netinv/internal/controller"
	"github.com/netinv/netinv/internal/datamodel"
	"github.com/netinv/netinv/internal/reachability"
	"github.com/netinv/netinv/internal/resolver"
)

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

// output is the CLI's serialized shape: the resolution result flattened at
// the top level, plus the optional probe sections. Secrets never appear
// here; the controller-auth status reports payload key names only.
type output struct {
	resolver.Result `yaml:",inline"`

	Reachability   []reachability.Result `json:"reachability,omitempty" yaml:"reachability,omitempty"`
	ControllerAuth *controllerAuthStatus `json:"controller_auth,omitempty" yaml:"controller_auth,omitempty"`
}

type controllerAuthStatus struct {
	Architecture  string   `json:"architecture" yaml:"architecture"`
	Authenticated bool     `json:"authenticated" yaml:"authenticated"`
	PayloadKeys   []string `json:"payload_keys,omitempty" yaml:"payload_keys,omitempty"`
}

func main() {
	var dataModelPaths multiFlag
	flag.Var(&dataModelPaths, "data-model", "data model YAML file (repeatable; later files win on top-level keys)")
	inventoryPath := flag.String("inventory", "", "optional test inventory override file")
	deviceClass := flag.String("class", resolver.ClassSSH, "device class to resolve")
	format := flag.String("format", "json", "output format: json, yaml or table")
	checkSSH := flag.Bool("check-ssh", false, "probe each resolved device with an SSH handshake")
	sshTimeout := flag.Duration("ssh-timeout", 5*time.Second, "per-device SSH probe timeout")
	checkAuth := flag.Bool("check-controller-auth", false, "authenticate to the managing controller through the shared token cache")
	cacheDir := flag.String("auth-cache-dir", authcache.DefaultDir(), "controller token cache directory")
	verifySSL := flag.Bool("verify-ssl", false, "verify controller TLS certificates")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if len(dataModelPaths) == 0 {
		fmt.Fprintln(os.Stderr, "netinv: at least one -data-model file is required")
		os.Exit(2)
	}

	m, err := datamodel.Load(dataModelPaths...)
	if err != nil {
		fail(err)
	}

	result, err := resolver.Resolve(resolver.OSEnvironment(), m, resolver.Options{
		DeviceClass:   *deviceClass,
		InventoryPath: *inventoryPath,
		Logger:        logger,
	})
	if err != nil {
		fail(err)
	}

	out := output{Result: *result}

	if *checkSSH {
		out.Reachability = reachability.CheckAll(context.Background(), result.Devices, *sshTimeout)
	}

	if *checkAuth {
		status, err := checkControllerAuth(result.Identity, *cacheDir, *verifySSL, logger)
		if err != nil {
			fail(err)
		}
		out.ControllerAuth = status
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fail(err)
		}
	case "yaml":
		if err := yaml.NewEncoder(os.Stdout).Encode(out); err != nil {
			fail(err)
		}
	case "table":
		printTable(out)
	default:
		fmt.Fprintf(os.Stderr, "netinv: unknown format %q\n", *format)
		os.Exit(2)
	}
}

// checkControllerAuth exercises the two-tier auth path for the detected
// family. The credential itself stays in the cache; only its key names are
// reported.
func checkControllerAuth(identity resolver.Identity, cacheDir string, verifySSL bool, logger *slog.Logger) (*controllerAuthStatus, error) {
	adapter, err := controller.ForIdentity(identity, resolver.OSEnvironment(), verifySSL)
	if err != nil {
		return nil, err
	}
	cache, err := authcache.New(cacheDir, authcache.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	payload, err := adapter.CachedCredential(context.Background(), cache)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &controllerAuthStatus{
		Architecture:  string(identity),
		Authenticated: true,
		PayloadKeys:   keys,
	}, nil
}

func printTable(out output) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "DEVICE ID\tHOSTNAME\tHOST\tOS\tPORT\n")
	for _, d := range out.Devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", d.DeviceID, d.Hostname, d.Host, d.OS, d.Connection.Port)
	}
	w.Flush()

	if len(out.Skipped) > 0 {
		fmt.Printf("\nskipped %d device(s):\n", len(out.Skipped))
		for _, s := range out.Skipped {
			fmt.Printf("  %s: %s\n", s.DeviceID, s.Reason)
		}
	}
	if len(out.Reachability) > 0 {
		fmt.Println("\nssh reachability:")
		for _, p := range out.Reachability {
			status := "ok"
			if !p.Success {
				status = "FAILED: " + p.Error
			}
			fmt.Printf("  %s (%s): %s\n", p.DeviceID, p.Host, status)
		}
	}
	if out.ControllerAuth != nil {
		fmt.Printf("\ncontroller auth (%s): ok, payload keys %s\n",
			out.ControllerAuth.Architecture, strings.Join(out.ControllerAuth.PayloadKeys, ", "))
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "netinv: %v\n", err)
	os.Exit(1)
}
