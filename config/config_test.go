package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "epos-bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.Address)
	assert.Empty(t, cfg.Raw.Address)
	assert.Equal(t, 30*time.Second, cfg.Print.SendTimeout)
	assert.Equal(t, 5*time.Second, cfg.Print.ReceiptGrace)
	assert.False(t, cfg.Print.PulseAfterJob)
	assert.Equal(t, 7*time.Second, cfg.Discovery.Window)
	assert.Equal(t, time.Second, cfg.Discovery.USBWindow)
	assert.Equal(t, 9100, cfg.Discovery.TCP.Port)
	assert.Equal(t, "auto", cfg.Discovery.TCP.Subnet)
	assert.Equal(t, 50, cfg.Discovery.TCP.Workers)
	assert.Equal(t, 200.0, cfg.Discovery.TCP.Rate)
	assert.Equal(t, 300*time.Millisecond, cfg.Discovery.TCP.ProbeTimeout)
	assert.False(t, cfg.Status.ExtendedChecks)
	assert.Equal(t, 5*time.Second, cfg.TCP.DialTimeout)
	assert.Empty(t, cfg.Bluetooth.Devices)
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 0.0.0.0:9000
print:
  send_timeout: 10s
  pulse_after_job: true
discovery:
  tcp:
    subnet: 192.168.1.0/24
bluetooth:
  devices:
    "00:01:90:aa:bb:cc": /dev/rfcomm0
`)

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Print.SendTimeout)
	assert.True(t, cfg.Print.PulseAfterJob)
	assert.Equal(t, "192.168.1.0/24", cfg.Discovery.TCP.Subnet)
	assert.Equal(t, map[string]string{"00:01:90:AA:BB:CC": "/dev/rfcomm0"}, cfg.Bluetooth.Devices)
	assert.Equal(t, 7*time.Second, cfg.Discovery.Window)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("EPOS_SERVER_ADDRESS", "127.0.0.1:7000")
	t.Setenv("EPOS_DISCOVERY_TCP_WORKERS", "8")
	t.Setenv("EPOS_STATUS_EXTENDED_CHECKS", "true")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Address)
	assert.Equal(t, 8, cfg.Discovery.TCP.Workers)
	assert.True(t, cfg.Status.ExtendedChecks)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("EPOS_SERVER_ADDRESS", "127.0.0.1:7000")

	cfg, err := Load([]string{"--address", "127.0.0.1:7001", "--raw-address", ":9100", "--raw-target", "TCP:10.0.0.5"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7001", cfg.Server.Address)
	assert.Equal(t, ":9100", cfg.Raw.Address)
	assert.Equal(t, "TCP:10.0.0.5", cfg.Raw.Target)
	assert.Equal(t, "TM_T88", cfg.Raw.Series)
}

func TestInvalidConfig(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = Load([]string{"--raw-address", ":9100"})
	assert.ErrorContains(t, err, "raw.target")

	_, err = Load([]string{"--unknown-flag"})
	assert.Error(t, err)

	path := writeConfig(t, "print:\n  send_timeout: 0s\n")
	_, err = Load([]string{"--config", path})
	assert.ErrorContains(t, err, "send_timeout")
}
