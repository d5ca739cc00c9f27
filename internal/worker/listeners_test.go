package worker

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Goliworks/Quark/internal/ipc"
	"github.com/Goliworks/Quark/internal/tlsstore"
)

func newTestStore() *tlsstore.Store {
	return tlsstore.New()
}

func reloadMessage(t *testing.T, port int, pairs []ipc.CertPair) (ipc.Message, error) {
	t.Helper()
	body, err := cbor.Marshal(pairs)
	if err != nil {
		return ipc.Message{}, err
	}
	return ipc.Message{Kind: ipc.KindReload, Key: strconv.Itoa(port), Body: body}, nil
}

func generateCertBytes(t *testing.T, dnsName string) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
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

func TestBuildStoresIndexesByPort(t *testing.T) {
	certPEM, keyPEM := generateCertBytes(t, "a.test")
	byPort := ipc.CertsByPort{
		443: {{CertBytes: certPEM, KeyBytes: keyPEM}},
	}

	stores, err := buildStores(byPort)
	if err != nil {
		t.Fatalf("buildStores: %v", err)
	}
	store, ok := stores[443]
	if !ok {
		t.Fatal("expected a store for port 443")
	}
	if store.Resolve("a.test") == nil {
		t.Fatal("expected certificate to resolve by its DNS name")
	}
}

func TestBuildStoresRejectsBadCertificate(t *testing.T) {
	byPort := ipc.CertsByPort{
		443: {{CertBytes: []byte("garbage"), KeyBytes: []byte("garbage")}},
	}
	if _, err := buildStores(byPort); err == nil {
		t.Fatal("expected an error for an unparseable certificate")
	}
}

func TestConsumeReloadsUpdatesStoreAndSkipsBadPairs(t *testing.T) {
	certPEM, keyPEM := generateCertBytes(t, "reload.test")
	stores, err := buildStores(ipc.CertsByPort{})
	if err != nil {
		t.Fatalf("buildStores: %v", err)
	}
	stores[8443] = newTestStore()

	msg, err := reloadMessage(t, 8443, []ipc.CertPair{
		{CertBytes: certPEM, KeyBytes: keyPEM},
		{CertBytes: []byte("garbage"), KeyBytes: []byte("garbage")},
	})
	if err != nil {
		t.Fatalf("build reload message: %v", err)
	}

	ch := make(chan ipc.Message, 1)
	ch <- msg
	close(ch)
	consumeReloads(ch, stores)

	if stores[8443].Resolve("reload.test") == nil {
		t.Fatal("expected the valid certificate to be applied despite the bad one")
	}
}
