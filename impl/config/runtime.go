package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
)

// AddressSpec is a host and port to listen on or connect to. Port zero requests an
// ephemeral port.
type AddressSpec struct {
	Host string
	Port uint16
}

// String returns the address in host:port form
func (a AddressSpec) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Validate returns a ConfigurationError if the host is empty
func (a AddressSpec) Validate(what string) error {
	if a.Host == "" {
		return &ConfigurationError{Field: what, Msg: "host must not be empty"}
	}
	return nil
}

// TlsMaterial holds the paths of the server certificate and key. A RuntimeConfig holds
// either both or neither.
type TlsMaterial struct {
	CertFile string
	KeyFile  string
}

// AdmissionPolicy holds the exceptions layered on top of the default image admission
// behavior: remote images are denied unless allowed, and local images are allowed
// unless denied. Order and duplicates within a list do not matter.
type AdmissionPolicy struct {
	AllowPrefixes []string
	AllowImages   []string
	DenyPrefixes  []string
	DenyImages    []string
}

// clone returns a deep copy so that a frozen config never shares backing arrays with
// the builder that produced it.
func (p AdmissionPolicy) clone() AdmissionPolicy {
	return AdmissionPolicy{
		AllowPrefixes: cloneStrings(p.AllowPrefixes),
		AllowImages:   cloneStrings(p.AllowImages),
		DenyPrefixes:  cloneStrings(p.DenyPrefixes),
		DenyImages:    cloneStrings(p.DenyImages),
	}
}

// ConfigurationError is returned when the runtime configuration cannot be used: a bad
// data directory, an incomplete address, or unusable TLS material.
type ConfigurationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %s", e.Field, e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// RuntimeConfig is the frozen configuration shared read-only by every component once the
// server starts. It can only be obtained from Builder.Build and has no setters. Slice getters
// return copies.
type RuntimeConfig struct {
	dataDir     string
	addr        AddressSpec
	tls         *TlsMaterial
	backendAddr AddressSpec
	hostNames   []string
	policy      AdmissionPolicy
	dryRun      bool
}

func (c RuntimeConfig) DataDir() string {
	return c.dataDir
}

func (c RuntimeConfig) Addr() AddressSpec {
	return c.addr
}

func (c RuntimeConfig) BackendAddr() AddressSpec {
	return c.backendAddr
}

// Tls returns the TLS material, or nil if the server should serve plain HTTP
func (c RuntimeConfig) Tls() *TlsMaterial {
	if c.tls == nil {
		return nil
	}
	t := *c.tls
	return &t
}

// HostNames returns the names the server considers to refer to itself when deciding
// whether an image is local.
func (c RuntimeConfig) HostNames() []string {
	return cloneStrings(c.hostNames)
}

func (c RuntimeConfig) Policy() AdmissionPolicy {
	return c.policy.clone()
}

func (c RuntimeConfig) DryRun() bool {
	return c.dryRun
}

// Validate checks the parts of the configuration that must be sound before anything is
// started. A data directory that does not exist yet is fine, the backend creates it.
func (c RuntimeConfig) Validate() error {
	if c.dataDir == "" {
		return &ConfigurationError{Field: "data directory", Msg: "must not be empty"}
	}
	if fi, err := os.Stat(c.dataDir); err == nil && !fi.IsDir() {
		return &ConfigurationError{Field: "data directory", Msg: fmt.Sprintf("%s is not a directory", c.dataDir)}
	}
	if err := c.addr.Validate("listen address"); err != nil {
		return err
	}
	return c.backendAddr.Validate("backend address")
}

// Builder stages a RuntimeConfig. Attaching TLS material is the only mutation it allows
// after construction.
type Builder struct {
	cfg RuntimeConfig
}

// NewBuilder takes every mandatory configuration value. There are no defaults: an empty
// policy list means no exceptions. No validation is done here.
func NewBuilder(dataDir string, addr AddressSpec, backendAddr AddressSpec, hostNames []string,
	allowPrefixes []string, allowImages []string, denyPrefixes []string, denyImages []string, dryRun bool) *Builder {
	return &Builder{
		cfg: RuntimeConfig{
			dataDir:     dataDir,
			addr:        addr,
			backendAddr: backendAddr,
			hostNames:   cloneStrings(hostNames),
			policy: AdmissionPolicy{
				AllowPrefixes: cloneStrings(allowPrefixes),
				AllowImages:   cloneStrings(allowImages),
				DenyPrefixes:  cloneStrings(denyPrefixes),
				DenyImages:    cloneStrings(denyImages),
			},
			dryRun: dryRun,
		},
	}
}

// WithTls attaches the server certificate and key. A second call replaces the first.
func (b *Builder) WithTls(certFile string, keyFile string) *Builder {
	b.cfg.tls = &TlsMaterial{CertFile: certFile, KeyFile: keyFile}
	return b
}

// Build returns the frozen configuration. Later builder calls do not affect a config
// that was already built.
func (b *Builder) Build() RuntimeConfig {
	cfg := b.cfg
	cfg.tls = b.cfg.Tls()
	cfg.hostNames = cloneStrings(b.cfg.hostNames)
	cfg.policy = b.cfg.policy.clone()
	return cfg
}

// cloneStrings copies the passed slice, always returning a non-nil slice
func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
