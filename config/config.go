// Package config loads the bridge settings from defaults, an optional YAML
// file, EPOS_ environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. EPOS_SERVER_ADDRESS
const EnvPrefix = "EPOS"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Raw       RawConfig       `mapstructure:"raw"`
	Print     PrintConfig     `mapstructure:"print"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Status    StatusConfig    `mapstructure:"status"`
	Bluetooth BluetoothConfig `mapstructure:"bluetooth"`
	TCP       TCPConfig       `mapstructure:"tcp"`
	Device    DeviceConfig    `mapstructure:"device"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// RawConfig enables the raw passthrough port when Address is set
type RawConfig struct {
	Address string `mapstructure:"address"`
	Target  string `mapstructure:"target"`
	Series  string `mapstructure:"series"`
}

type PrintConfig struct {
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	ReceiptGrace   time.Duration `mapstructure:"receipt_grace"`
	PulseAfterJob  bool          `mapstructure:"pulse_after_job"`
	SettingTimeout time.Duration `mapstructure:"setting_timeout"`
}

type DiscoveryConfig struct {
	Window    time.Duration `mapstructure:"window"`
	USBWindow time.Duration `mapstructure:"usb_window"`

	// QueryModel asks each TCP and Bluetooth hit for its model name
	QueryModel bool               `mapstructure:"query_model"`
	TCP        DiscoveryTCPConfig `mapstructure:"tcp"`
}

type DiscoveryTCPConfig struct {
	Port         int           `mapstructure:"port"`
	Subnet       string        `mapstructure:"subnet"`
	Workers      int           `mapstructure:"workers"`
	Rate         float64       `mapstructure:"rate"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type StatusConfig struct {
	ExtendedChecks bool `mapstructure:"extended_checks"`
}

// BluetoothConfig binds paired printers to their serial devices
type BluetoothConfig struct {
	Devices map[string]string `mapstructure:"devices"`
	Baud    int               `mapstructure:"baud"`
}

type TCPConfig struct {
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type DeviceConfig struct {
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "localhost:8080")
	v.SetDefault("raw.address", "")
	v.SetDefault("raw.target", "")
	v.SetDefault("raw.series", "TM_T88")
	v.SetDefault("print.send_timeout", 30*time.Second)
	v.SetDefault("print.receipt_grace", 5*time.Second)
	v.SetDefault("print.pulse_after_job", false)
	v.SetDefault("print.setting_timeout", 30*time.Second)
	v.SetDefault("discovery.window", 7*time.Second)
	v.SetDefault("discovery.usb_window", time.Second)
	v.SetDefault("discovery.tcp.port", 9100)
	v.SetDefault("discovery.tcp.subnet", "auto")
	v.SetDefault("discovery.tcp.workers", 50)
	v.SetDefault("discovery.tcp.rate", 200.0)
	v.SetDefault("discovery.tcp.probe_timeout", 300*time.Millisecond)
	v.SetDefault("discovery.query_model", true)
	v.SetDefault("status.extended_checks", false)
	v.SetDefault("bluetooth.devices", map[string]string{})
	v.SetDefault("bluetooth.baud", 115200)
	v.SetDefault("tcp.dial_timeout", 5*time.Second)
	v.SetDefault("device.read_timeout", 5*time.Second)
}

// Load parses args (without the program name) and resolves the settings
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("epos-bridge", pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "path to a YAML config file")
	fs.String("address", "", "WebSocket/HTTP listen address")
	fs.String("raw-address", "", "raw passthrough listen address")
	fs.String("raw-target", "", "printer the raw passthrough prints to, e.g. TCP:192.168.1.50")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server.address": "address",
		"raw.address":    "raw-address",
		"raw.target":     "raw-target",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		v.SetConfigName("epos-bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/epos-bridge")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize upper-cases Bluetooth addresses, which viper lower-cases as map keys
func (c *Config) normalize() {
	devices := make(map[string]string, len(c.Bluetooth.Devices))
	for bd, path := range c.Bluetooth.Devices {
		devices[strings.ToUpper(bd)] = path
	}
	c.Bluetooth.Devices = devices
}

// Validate rejects settings the bridge cannot run with
func (c *Config) Validate() error {
	if c.Server.Address == "" && c.Raw.Address == "" {
		return errors.New("no listen address configured")
	}
	if c.Raw.Address != "" && c.Raw.Target == "" {
		return errors.New("raw.address requires raw.target")
	}
	if c.Print.SendTimeout <= 0 {
		return fmt.Errorf("print.send_timeout must be positive, got %s", c.Print.SendTimeout)
	}
	if c.Discovery.TCP.Workers < 0 || c.Discovery.TCP.Rate < 0 {
		return errors.New("discovery.tcp workers and rate must not be negative")
	}
	return nil
}
