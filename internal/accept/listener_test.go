package accept

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/Goliworks/Quark/internal/semutil"
)

// chanListener hands out pre-made net.Conn pairs, one per Accept call, so
// tests can control exactly when and how each connection arrives.
type chanListener struct {
	conns  chan net.Conn
	closed chan struct{}
}

func newChanListener() *chanListener {
	return &chanListener{conns: make(chan net.Conn, 4), closed: make(chan struct{})}
}

func (l *chanListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *chanListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func (l *chanListener) Addr() net.Addr { return &net.TCPAddr{} }

func testTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "quark-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

// TestGatedListenerHandshakesDoNotSerializeAccept reproduces spec.md §4.7
// step 4's requirement: a slow ClientHello on one connection must not
// block Accept from returning a connection that handshakes promptly.
func TestGatedListenerHandshakesDoNotSerializeAccept(t *testing.T) {
	raw := newChanListener()
	g := &GatedListener{
		Listener:         raw,
		Conns:            semutil.New(0),
		TLSConfig:        testTLSConfig(t),
		HandshakeTimeout: 2 * time.Second,
		Name:             "test",
	}

	slowServer, slowClient := net.Pipe()
	fastServer, fastClient := net.Pipe()

	raw.conns <- slowServer
	raw.conns <- fastServer

	fastDone := make(chan error, 1)
	go func() {
		conn := tls.Client(fastClient, &tls.Config{InsecureSkipVerify: true})
		fastDone <- conn.Handshake()
	}()

	// slowClient deliberately never sends a ClientHello: its handshake
	// goroutine blocks reading from the pipe until the test closes it.
	defer slowClient.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := g.Accept()
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		accepted <- conn
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("fast client handshake: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fast client handshake never completed: slow handshake blocked the accept loop")
	}

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("Accept never returned the fast connection")
	}
}

func TestGatedListenerDropsConnectionsOverCapacity(t *testing.T) {
	raw := newChanListener()
	g := &GatedListener{Listener: raw, Conns: semutil.New(1), Name: "test"}

	a, aPeer := net.Pipe()
	b, bPeer := net.Pipe()
	defer aPeer.Close()
	defer bPeer.Close()

	raw.conns <- a
	raw.conns <- b

	first, err := g.Accept()
	if err != nil {
		t.Fatalf("first Accept: %v", err)
	}

	// The second connection exceeds capacity while first holds the only
	// permit, so it is closed rather than returned.
	buf := make([]byte, 1)
	bPeer.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := bPeer.Read(buf); err == nil {
		t.Fatal("expected the over-capacity connection to be closed, not left open")
	}

	// Closing first releases its permit; a third connection fed after
	// that is acceptable, so Accept has something to return.
	first.Close()
	c, cPeer := net.Pipe()
	defer cPeer.Close()
	raw.conns <- c

	second, err := g.Accept()
	if err != nil {
		t.Fatalf("second Accept: %v", err)
	}
	defer second.Close()
}

func TestGatedListenerCloseUnblocksAccept(t *testing.T) {
	raw := newChanListener()
	g := &GatedListener{Listener: raw, Conns: semutil.New(0), Name: "test"}

	done := make(chan error, 1)
	go func() {
		_, err := g.Accept()
		done <- err
	}()

	raw.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from Accept after the listener closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Accept did not unblock after the raw listener closed")
	}
}
