package sh

import (
	"flag"
	"os"
)

// Config provides the options to reach a daemon.
type Config struct {
	// ID of the daemon to talk to. If empty, the shell discovers one.
	ID string

	// MQTTBrokerURL specifies the broker the daemons are registered with.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
}

var defaultConfig = Config{
	MQTTBrokerURL: "mqtt://localhost:1883/ardctl/",
}

func init() {
	if val := os.Getenv("ARDCTL_ID"); val != "" {
		defaultConfig.ID = val
	}
	if val := os.Getenv("ARDCTL_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Device ID to talk to.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL.")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
