package model

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func testDevice() Device {
	return Device{
		DeviceID:   "sw1",
		Hostname:   "sw1.lab",
		Host:       "10.0.0.1",
		OS:         "iosxe",
		Username:   "netops",
		Password:   "s3cret",
		Connection: DefaultConnectionOptions(),
	}
}

func TestDeviceSerializationOmitsPassword(t *testing.T) {
	device := testDevice()

	testCases := []struct {
		name    string
		marshal func(any) ([]byte, error)
	}{
		{"json", json.Marshal},
		{"yaml", yaml.Marshal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.marshal(device)
			if err != nil {
				t.Fatal(err)
			}
			text := string(data)
			if strings.Contains(text, "s3cret") {
				t.Fatalf("password leaked into %s output: %s", tc.name, text)
			}
			if !strings.Contains(text, "device_id") {
				t.Errorf("%s output missing device_id key: %s", tc.name, text)
			}
			if !strings.Contains(text, "connection_options") {
				t.Errorf("%s output missing connection_options key: %s", tc.name, text)
			}
		})
	}
}

func TestDeviceYAMLKeysMatchJSON(t *testing.T) {
	data, err := yaml.Marshal(testDevice())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"device_id:", "hostname:", "host:", "os:", "username:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("yaml output missing %q:\n%s", key, data)
		}
	}
}
