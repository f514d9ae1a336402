// Package reachability performs optional post-resolution SSH handshake
// probes against resolved devices. Probes report per-device results and
// never affect the resolved inventory itself.
package reachability

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netinv/netinv/internal/model"
)

// Result is the outcome of one device probe.
type Result struct {
	DeviceID      string `json:"device_id" yaml:"device_id"`
	Host          string `json:"host" yaml:"host"`
	Success       bool   `json:"success" yaml:"success"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
	RemoteVersion string `json:"remote_version,omitempty" yaml:"remote_version,omitempty"`
}

// CheckSSH attempts an SSH handshake with the device's injected
// credentials. Uses golang.org/x/crypto/ssh.
func CheckSSH(ctx context.Context, device model.Device, timeout time.Duration) Result {
	result := Result{DeviceID: device.DeviceID, Host: device.Host}

	config := &ssh.ClientConfig{
		User:            device.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(device.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Validation happens at connection time
		Timeout:         timeout,
	}

	address := fmt.Sprintf("%s:%d", device.Host, device.Connection.Port)
	done := make(chan struct{})
	var client *ssh.Client
	var err error
	go func() {
		client, err = ssh.Dial("tcp", address, config)
		close(done)
	}()

	select {
	case <-ctx.Done():
		result.Error = ctx.Err().Error()
		return result
	case <-done:
	}

	if err != nil {
		result.Error = fmt.Sprintf("SSH handshake failed: %v", err)
		return result
	}
	defer client.Close()

	result.Success = true
	result.RemoteVersion = string(client.ServerVersion())
	return result
}

// CheckAll probes every device sequentially and returns one result per
// device, in inventory order.
func CheckAll(ctx context.Context, devices []model.Device, timeout time.Duration) []Result {
	results := make([]Result, 0, len(devices))
	for _, device := range devices {
		results = append(results, CheckSSH(ctx, device, timeout))
	}
	return results
}
