package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCertPair writes a self-signed certificate and its key to dir and
// returns their paths
func writeCertPair(t *testing.T, dir, name string, validFor time.Duration) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, name+".crt")
	keyPath := filepath.Join(dir, name+".key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0644))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certPath, keyPath
}

func TestCheckReadable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.NoError(t, CheckReadable(file))
	assert.Error(t, CheckReadable(filepath.Join(dir, "missing.crt")))
	assert.Error(t, CheckReadable(dir))
}

func TestLoadCerts(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeCertPair(t, dir, "client", 365*24*time.Hour)

	cert, err := LoadClientCert(certPath, keyPath)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, "client", cert.Leaf.Subject.CommonName)
	assert.False(t, CertNeedsRotation(cert.Leaf))
	assert.Greater(t, CertTimeRemaining(cert.Leaf), 300*24*time.Hour)

	ca, err := LoadCACert(certPath)
	require.NoError(t, err)
	assert.Equal(t, "client", ca.Subject.CommonName)

	_, err = LoadCACert(keyPath)
	assert.Error(t, err)

	_, err = LoadClientCert(certPath, filepath.Join(dir, "missing.key"))
	assert.Error(t, err)
}

func TestCertNeedsRotation(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeCertPair(t, dir, "short", 24*time.Hour)

	cert, err := LoadClientCert(certPath, keyPath)
	require.NoError(t, err)
	assert.True(t, CertNeedsRotation(cert.Leaf))
	assert.True(t, CertNeedsRotation(nil))
	assert.Zero(t, CertTimeRemaining(nil))
}

func TestClientTransport(t *testing.T) {
	dir := t.TempDir()
	caPath, _ := writeCertPair(t, dir, "ca", 365*24*time.Hour)
	certPath, keyPath := writeCertPair(t, dir, "client", 365*24*time.Hour)

	t.Run("plain", func(t *testing.T) {
		tr, err := ClientTransport(TLSFiles{}, 0)
		require.NoError(t, err)
		assert.NotNil(t, tr)
	})

	t.Run("ca only", func(t *testing.T) {
		tr, err := ClientTransport(TLSFiles{CAFile: caPath}, time.Second)
		require.NoError(t, err)
		require.NotNil(t, tr.TLSClientConfig)
		assert.NotNil(t, tr.TLSClientConfig.RootCAs)
	})

	t.Run("mutual", func(t *testing.T) {
		tr, err := ClientTransport(TLSFiles{CertFile: certPath, KeyFile: keyPath, CAFile: caPath}, time.Second)
		require.NoError(t, err)
		require.NotNil(t, tr.TLSClientConfig)
		assert.NotNil(t, tr.TLSClientConfig.RootCAs)
	})

	t.Run("bad ca", func(t *testing.T) {
		_, err := ClientTransport(TLSFiles{CAFile: keyPath}, time.Second)
		assert.Error(t, err)
	})

	t.Run("mismatched pair", func(t *testing.T) {
		_, err := ClientTransport(TLSFiles{CertFile: certPath, KeyFile: filepath.Join(dir, "ca.key"), CAFile: caPath}, time.Second)
		assert.Error(t, err)
	})
}

func TestTLSFilesEmpty(t *testing.T) {
	assert.True(t, TLSFiles{}.Empty())
	assert.False(t, TLSFiles{CAFile: "ca.crt"}.Empty())
}
