// Package config resolves the daemon configuration from defaults, the
// environment, an optional TOML file and command line flags, in increasing
// order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/ardctl/pkg/pins"
	"github.com/robotalks/ardctl/pkg/serialgate"
)

// Serial configures the UART pad-control registers.
type Serial struct {
	// PadBase is the physical address of the TX pad-control register.
	PadBase uint64 `toml:"pad_base"`
	// Gate enables pad gating around the erase sequence.
	Gate bool `toml:"gate"`
}

// Config is the daemon configuration.
type Config struct {
	ID          string `toml:"id"`
	Description string `toml:"description"`

	// MQTTBrokerURL specifies the MQTT broker to use, empty disables MQTT.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string `toml:"mqtt_url"`
	// HTTPAddr is the listen address for /metrics and /cmd, empty disables.
	HTTPAddr string `toml:"http_addr"`

	Pins   pins.Assignment `toml:"pins"`
	Serial Serial          `toml:"serial"`

	// Simulate replaces the GPIO lines and registers with in-memory ones.
	Simulate bool `toml:"simulate"`

	// File is the TOML file to load.
	File string `toml:"-"`
}

var defaultConfig = Config{
	Description:   "UDOO companion MCU programming control",
	MQTTBrokerURL: "mqtt://localhost:1883/ardctl/",
	HTTPAddr:      ":8080",
	Serial: Serial{
		PadBase: serialgate.PadBase,
		Gate:    true,
	},
}

func init() {
	if val := os.Getenv("ARDCTL_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("ARDCTL_CONFIG"); val != "" {
		defaultConfig.File = val
	}
	if val := os.Getenv("ARDCTL_ID"); val != "" {
		defaultConfig.ID = val
	} else {
		defaultConfig.ID = MachineID()
	}
}

// MachineID retrieves the unique ID identifying the machine, falling back
// to the host name.
func MachineID() string {
	id, err := machineid.ID()
	if err == nil && id != "" {
		return id
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "ardctl"
}

// BindFlags registers the command line flags writing into c.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.File, "config", c.File, "TOML config file")
	fs.StringVar(&c.ID, "id", c.ID, "Device ID")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP listen address, empty to disable")
	fs.StringVar(&c.Pins.Clock, "pin-clock", c.Pins.Clock, "Programming clock pin")
	fs.StringVar(&c.Pins.Data, "pin-data", c.Pins.Data, "Programming data pin")
	fs.StringVar(&c.Pins.Erase, "pin-erase", c.Pins.Erase, "Target erase pin")
	fs.StringVar(&c.Pins.Reset, "pin-reset", c.Pins.Reset, "Target reset pin")
	fs.Uint64Var(&c.Serial.PadBase, "serial-pad-base", c.Serial.PadBase, "UART pad-control register base address")
	fs.BoolVar(&c.Serial.Gate, "serial-gate", c.Serial.Gate, "Gate the UART pads while erasing")
	fs.BoolVar(&c.Simulate, "sim", c.Simulate, "Simulate lines and registers")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.BindFlags(flag.CommandLine)
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig resolves the config after flag.Parse.
func NewConfig() (*Config, error) {
	return Resolve(defaultConfig, flag.CommandLine)
}

// Resolve loads base.File, if any, over base and re-applies the flags
// explicitly set in fs so they win over the file.
func Resolve(base Config, fs *flag.FlagSet) (*Config, error) {
	conf := base
	if conf.File != "" {
		if err := conf.LoadFile(conf.File); err != nil {
			return nil, err
		}
		overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
		conf.BindFlags(overrides)
		var err error
		fs.Visit(func(f *flag.Flag) {
			if overrides.Lookup(f.Name) == nil || err != nil {
				return
			}
			err = overrides.Set(f.Name, f.Value.String())
		})
		if err != nil {
			return nil, err
		}
	}
	if conf.Simulate {
		conf.Pins = conf.Pins.WithRoleNames()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// LoadFile decodes a TOML file over c. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(fn string) error {
	meta, err := toml.DecodeFile(fn, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", fn, err)
	}
	for _, key := range meta.Undecoded() {
		glog.Warningf("config %s: unknown key %q", fn, key.String())
	}
	return nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("device id must be specified")
	}
	return c.Pins.Validate()
}

// PinNames returns the pin assignment keyed by role.
func (c *Config) PinNames() map[string]string {
	names := make(map[string]string)
	for role, name := range c.Pins.Names() {
		names[string(role)] = name
	}
	return names
}
