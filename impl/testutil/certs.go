// Package testutil has helpers shared by tests in several packages
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// ServerCerts holds the paths of a CA-signed server certificate and key written to disk,
// plus the CA so a client can verify the server.
type ServerCerts struct {
	CertFile string
	KeyFile  string
	CaPool   *x509.CertPool
}

// WriteServerCerts creates a CA and a server cert for localhost / 127.0.0.1 signed by
// that CA, and writes the server cert and key as 'cert.pem' and 'key.pem' to the passed
// directory.
func WriteServerCerts(dir string) (ServerCerts, error) {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return ServerCerts{}, err
	}
	caTmpl := newX509("root", true)
	caDER, err := x509.CreateCertificate(rand.Reader, &caTmpl, &caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		return ServerCerts{}, err
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return ServerCerts{}, err
	}

	srvKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return ServerCerts{}, err
	}
	srvTmpl := newX509("server", false)
	srvDER, err := x509.CreateCertificate(rand.Reader, &srvTmpl, caCert, &srvKey.PublicKey, caKey)
	if err != nil {
		return ServerCerts{}, err
	}

	certs := ServerCerts{
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
		CaPool:   x509.NewCertPool(),
	}
	certs.CaPool.AddCert(caCert)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srvDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(srvKey)})
	if err := os.WriteFile(certs.CertFile, certPEM, 0644); err != nil {
		return ServerCerts{}, err
	}
	if err := os.WriteFile(certs.KeyFile, keyPEM, 0600); err != nil {
		return ServerCerts{}, err
	}
	return certs, nil
}

// newX509 returns a new x509 cert template with the passed common name. If isCA is true then
// a CA cert is generated, otherwise a server cert.
func newX509(cn string, isCA bool) x509.Certificate {
	keyUsage := x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	if isCA {
		keyUsage |= x509.KeyUsageCertSign
	}
	serial, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	return x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		IsCA:                  isCA,
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:             time.Now().Add(-5 * time.Minute),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		KeyUsage:              keyUsage,
	}
}
