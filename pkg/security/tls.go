package security

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"go.etcd.io/etcd/client/pkg/v3/transport"
)

const (
	// certRotationThreshold is how close to expiry a client certificate
	// gets before it is reported
	certRotationThreshold = 30 * 24 * time.Hour

	// DefaultDialTimeout bounds connection setup to a store endpoint
	DefaultDialTimeout = 5 * time.Second
)

// TLSFiles names the PEM files used to reach a TLS protected store
type TLSFiles struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// Empty reports whether no file is set
func (f TLSFiles) Empty() bool {
	return f.CertFile == "" && f.KeyFile == "" && f.CAFile == ""
}

// CheckReadable returns an error unless path is a regular file the process
// can open for reading
func CheckReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// LoadClientCert loads a certificate and key pair with Leaf populated
func LoadClientCert(certFile, keyFile string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		cert.Leaf = leaf
	}

	return &cert, nil
}

// LoadCACert loads the first certificate of a PEM file
func LoadCACert(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("failed to decode CA certificate PEM")
	}

	ca, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	return ca, nil
}

// CertNeedsRotation returns true if less than 30 days remain until expiry
func CertNeedsRotation(cert *x509.Certificate) bool {
	if cert == nil {
		return true
	}
	return time.Until(cert.NotAfter) < certRotationThreshold
}

// CertTimeRemaining returns the time left until the certificate expires
func CertTimeRemaining(cert *x509.Certificate) time.Duration {
	if cert == nil {
		return 0
	}
	return time.Until(cert.NotAfter)
}

// ClientTransport builds the HTTP transport used by the etcd store. The
// files are parsed up front so a bad certificate fails here rather than
// on the first request. A client certificate close to expiry is logged.
func ClientTransport(files TLSFiles, dialTimeout time.Duration) (*http.Transport, error) {
	if files.CAFile != "" {
		if _, err := LoadCACert(files.CAFile); err != nil {
			return nil, err
		}
	}

	if files.CertFile != "" || files.KeyFile != "" {
		cert, err := LoadClientCert(files.CertFile, files.KeyFile)
		if err != nil {
			return nil, err
		}
		if CertNeedsRotation(cert.Leaf) {
			logger := log.WithComponent("security")
			logger.Warn().
				Str("cert_file", files.CertFile).
				Time("not_after", cert.Leaf.NotAfter).
				Dur("remaining", CertTimeRemaining(cert.Leaf)).
				Msg("client certificate expires soon")
		}
	}

	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	info := transport.TLSInfo{
		CertFile:      files.CertFile,
		KeyFile:       files.KeyFile,
		TrustedCAFile: files.CAFile,
	}
	t, err := transport.NewTransport(info, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS transport: %w", err)
	}
	return t, nil
}
