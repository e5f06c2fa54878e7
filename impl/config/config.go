package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerTlsCfg holds the server certificate and key paths
type ServerTlsCfg struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// PolicyCfg is the file representation of the admission policy
type PolicyCfg struct {
	AllowPrefixes []string `yaml:"allowPrefixes"`
	AllowImages   []string `yaml:"allowImages"`
	DenyPrefixes  []string `yaml:"denyPrefixes"`
	DenyImages    []string `yaml:"denyImages"`
}

// Configuration represents the totality of configuration knobs and dials that can come from
// a configuration file or the command line. It is converted into a RuntimeConfig by way of
// the Builder before the server starts.
type Configuration struct {
	LogLevel        string       `yaml:"logLevel"`
	ConfigFile      string       `yaml:"configFile"`
	DataDir         string       `yaml:"dataDir"`
	Host            string       `yaml:"host"`
	Port            int64        `yaml:"port"`
	BackendHost     string       `yaml:"backendHost"`
	BackendPort     int64        `yaml:"backendPort"`
	HostNames       []string     `yaml:"hostNames"`
	Policy          PolicyCfg    `yaml:"policy"`
	ServerTlsConfig ServerTlsCfg `yaml:"serverTlsConfig"`
	Metrics         int64        `yaml:"metrics"`
	DryRun          bool         `yaml:"dryRun"`
}

// FromCmdLine has a flag for every command-line option. The parsing code
// sets the flag to true if the option was explicitly provided on the command
// line by the user.
type FromCmdLine struct {
	Command         string
	LogLevel        bool
	ConfigFile      bool
	DataDir         bool
	Host            bool
	Port            bool
	BackendHost     bool
	BackendPort     bool
	HostNames       bool
	AllowPrefixes   bool
	AllowImages     bool
	DenyPrefixes    bool
	DenyImages      bool
	TlsCert         bool
	TlsKey          bool
	Metrics         bool
	DryRun          bool
}

var config Configuration

// Load loads the passed configuration file into the configuration struct
func Load(configFile string) error {
	if _, err := os.Stat(configFile); err != nil {
		return fmt.Errorf("unable to stat configuration file: %s", configFile)
	}
	if contents, err := os.ReadFile(configFile); err != nil {
		return fmt.Errorf("error reading configuration file: %s", configFile)
	} else if err := SetConfigFromStr(contents); err != nil {
		return fmt.Errorf("error parsing configuration file: %s, the error was: %s", configFile, err)
	}
	return nil
}

// Get gets the current configuration
func Get() Configuration {
	return config
}

// Set replaces the configuration with the passed configuration
func Set(cfg Configuration) {
	config = cfg
}

// SetConfigFromStr parses the yaml input and sets the configuration from it
func SetConfigFromStr(configBytes []byte) error {
	var cfg Configuration
	if err := yaml.Unmarshal(configBytes, &cfg); err != nil {
		return err
	}
	config = cfg
	return nil
}

// Builder converts the configuration into a Builder. Ports must fit in 16 bits, and
// TLS is attached only if both the cert and the key are configured. Configuring just
// one of them is an error because the server would silently fall back to plain HTTP.
func (c Configuration) Builder() (*Builder, error) {
	port, err := toPort("port", c.Port)
	if err != nil {
		return nil, err
	}
	backendPort, err := toPort("backend port", c.BackendPort)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(
		c.DataDir,
		AddressSpec{Host: c.Host, Port: port},
		AddressSpec{Host: c.BackendHost, Port: backendPort},
		c.HostNames,
		c.Policy.AllowPrefixes,
		c.Policy.AllowImages,
		c.Policy.DenyPrefixes,
		c.Policy.DenyImages,
		c.DryRun,
	)
	tlsCfg := c.ServerTlsConfig
	switch {
	case tlsCfg.Cert != "" && tlsCfg.Key != "":
		b.WithTls(tlsCfg.Cert, tlsCfg.Key)
	case tlsCfg.Cert != "" || tlsCfg.Key != "":
		return nil, &ConfigurationError{Field: "TLS material", Msg: "cert and key must be provided together"}
	}
	return b, nil
}

func toPort(what string, port int64) (uint16, error) {
	if port < 0 || port > 65535 {
		return 0, &ConfigurationError{Field: what, Msg: fmt.Sprintf("%d is out of range", port)}
	}
	return uint16(port), nil
}
