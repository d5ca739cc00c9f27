package tlsstore_test

import (
	"crypto/tls"
	"sync"
	"testing"

	"github.com/Goliworks/Quark/internal/certs"
	"github.com/Goliworks/Quark/internal/tlsstore"
)

func fakePair(names ...string) certs.Pair {
	return certs.Pair{Certificate: tls.Certificate{}, Names: names}
}

func TestResolveExactMatch(t *testing.T) {
	s := tlsstore.New()
	p := fakePair("s.test")
	s.Add(p)

	if got := s.Resolve("s.test"); got == nil {
		t.Fatal("expected exact match to resolve")
	}
	if got := s.Resolve("other.test"); got != nil {
		t.Fatal("expected no match for unrelated name")
	}
}

func TestResolveWildcardFallback(t *testing.T) {
	s := tlsstore.New()
	s.Add(fakePair("*.example.com"))

	if got := s.Resolve("api.example.com"); got == nil {
		t.Fatal("expected wildcard to resolve sub.example.com")
	}
	// only the first label is substituted
	if got := s.Resolve("deep.sub.example.com"); got != nil {
		t.Fatal("wildcard should not match more than one label")
	}
}

func TestResolveEmptyServerName(t *testing.T) {
	s := tlsstore.New()
	s.Add(fakePair("s.test"))
	if got := s.Resolve(""); got != nil {
		t.Fatal("expected nil for empty SNI")
	}
}

func TestReloadNeverObservesTornCertificate(t *testing.T) {
	s := tlsstore.New()
	v1 := tls.Certificate{Certificate: [][]byte{[]byte("v1")}}
	v2 := tls.Certificate{Certificate: [][]byte{[]byte("v2")}}

	s.Add(certs.Pair{Certificate: v1, Names: []string{"s.test"}})

	var wg sync.WaitGroup
	results := make(chan string, 2000)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c := s.Resolve("s.test")
			if c == nil {
				continue
			}
			results <- string(c.Certificate[0])
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Add(certs.Pair{Certificate: v2, Names: []string{"s.test"}})
			s.Add(certs.Pair{Certificate: v1, Names: []string{"s.test"}})
		}
	}()
	wg.Wait()
	close(results)

	for r := range results {
		if r != "v1" && r != "v2" {
			t.Fatalf("observed torn certificate value %q", r)
		}
	}
}

func TestGetCertificateAdapter(t *testing.T) {
	s := tlsstore.New()
	s.Add(fakePair("s.test"))

	c, err := s.GetCertificate(&tls.ClientHelloInfo{ServerName: "s.test"})
	if err != nil || c == nil {
		t.Fatalf("expected a certificate, got %v, %v", c, err)
	}

	_, err = s.GetCertificate(&tls.ClientHelloInfo{ServerName: "nope.test"})
	if err == nil {
		t.Fatal("expected error for unresolved SNI")
	}
}
