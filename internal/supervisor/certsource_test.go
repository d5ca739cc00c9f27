package supervisor

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"encoding/pem"

	"github.com/Goliworks/Quark/internal/config"
)

func generateCert(t *testing.T, dnsNames []string) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: dnsNames[0]},
		DNSNames:     dnsNames,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func writeCertFiles(t *testing.T, dir string, dnsNames []string) (certPath, keyPath string) {
	t.Helper()
	certPEM, keyPEM := generateCert(t, dnsNames)
	certPath = filepath.Join(dir, "tls.crt")
	keyPath = filepath.Join(dir, "tls.key")
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}

func TestCollectCertSourcesGroupsByPort(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeCertFiles(t, dir, []string{"a.test"})

	cfg := &config.ServiceConfig{
		Servers: map[string]*config.Server{
			"main": {
				HTTPSPort: 443,
				TLS:       []config.TLSCertificate{{CertPath: certPath, KeyPath: keyPath}},
			},
			"plain": {
				HTTPPort: 80,
			},
		},
	}

	sources, watchDirPorts := collectCertSources(cfg)
	if len(sources) != 1 {
		t.Fatalf("expected 1 cert source, got %d", len(sources))
	}
	if sources[0].port != 443 {
		t.Fatalf("port = %d, want 443", sources[0].port)
	}
	if !watchDirPorts[dir][443] {
		t.Fatalf("expected %s to be registered for port 443, got %v", dir, watchDirPorts)
	}
}

func TestReadAllCertsReadsAndGroupsBytes(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeCertFiles(t, dir, []string{"a.test"})

	sources := []certSource{{port: 443, certPath: certPath, keyPath: keyPath, watchDir: dir}}
	byPort, err := readAllCerts(sources)
	if err != nil {
		t.Fatalf("readAllCerts: %v", err)
	}
	pairs, ok := byPort[443]
	if !ok || len(pairs) != 1 {
		t.Fatalf("expected one pair for port 443, got %v", byPort)
	}
	if len(pairs[0].CertBytes) == 0 || len(pairs[0].KeyBytes) == 0 {
		t.Fatal("expected non-empty cert/key bytes")
	}
}

func TestReadCertPairRejectsBadPair(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	certPath, _ := writeCertFiles(t, dirA, []string{"a.test"})
	_, otherKeyPath := writeCertFiles(t, dirB, []string{"b.test"})

	_, err := readCertPair(certSource{certPath: certPath, keyPath: otherKeyPath})
	if err == nil {
		t.Fatal("expected error for mismatched cert/key pair")
	}
}
