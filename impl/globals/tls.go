package globals

import (
	"crypto/tls"
	"fmt"

	"github.com/regfront/regfront/impl/config"
)

// ParseTls builds the server TLS configuration from the passed TLS material. If the
// material is nil then a nil tls.Config is returned to the caller, which means the server
// should serve on HTTP. Otherwise the cert and key are loaded, and a failure to load them
// is returned as a ConfigurationError.
func ParseTls(material *config.TlsMaterial) (*tls.Config, error) {
	if material == nil {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(material.CertFile, material.KeyFile)
	if err != nil {
		return nil, &config.ConfigurationError{
			Field: "TLS material",
			Msg:   fmt.Sprintf("cannot load cert %s and key %s", material.CertFile, material.KeyFile),
			Err:   err,
		}
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// TlsMsg formats the server TLS configuration for the startup banner
func TlsMsg(material *config.TlsMaterial) string {
	if material == nil {
		return "none"
	}
	return fmt.Sprintf("cert=%s, key=%s", material.CertFile, material.KeyFile)
}
