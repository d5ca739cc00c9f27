package lb_test

import (
	"testing"

	"github.com/Goliworks/Quark/internal/lb"
)

func TestBalanceSingleBackendShortCircuits(t *testing.T) {
	b := lb.New()
	if got := b.Balance(1, []string{"only"}, lb.RoundRobin, "1.1.1.1"); got != "only" {
		t.Fatalf("got %q, want %q", got, "only")
	}
}

func TestWeightedRoundRobinSequence(t *testing.T) {
	// weights [4,2,1] over 8 calls yields A,A,A,A,B,B,C,A.
	b := lb.New()
	backends := []string{"A", "B", "C"}
	b.Register(1, len(backends), []uint32{4, 2, 1})

	want := []string{"A", "A", "A", "A", "B", "B", "C", "A"}
	for i, w := range want {
		got := b.Balance(1, backends, lb.RoundRobin, "1.1.1.1")
		if got != w {
			t.Fatalf("call %d: got %q, want %q", i, got, w)
		}
	}
}

func TestUnweightedRoundRobinFairness(t *testing.T) {
	b := lb.New()
	backends := []string{"b0", "b1", "b2"}
	b.Register(2, len(backends), nil)

	counts := map[string]int{}
	const k = 100
	for i := 0; i < k; i++ {
		counts[b.Balance(2, backends, lb.RoundRobin, "1.1.1.1")]++
	}

	lo := k / len(backends)
	hi := (k + len(backends) - 1) / len(backends)
	for _, name := range backends {
		c := counts[name]
		if c != lo && c != hi {
			t.Errorf("backend %s got %d calls, want %d or %d", name, c, lo, hi)
		}
	}
}

func TestIPHashDeterministic(t *testing.T) {
	b := lb.New()
	backends := []string{"b0", "b1", "b2", "b3"}

	first := b.Balance(3, backends, lb.IPHash, "203.0.113.7")
	for i := 0; i < 20; i++ {
		if got := b.Balance(3, backends, lb.IPHash, "203.0.113.7"); got != first {
			t.Fatalf("ip_hash not deterministic: got %q, want %q", got, first)
		}
	}

	// Different client IPs are not required to differ, but the function
	// must not touch round-robin state (no shared counters between algos).
	_ = b.Balance(3, backends, lb.IPHash, "198.51.100.9")
}

func TestRoundRobinStaysWithinBackends(t *testing.T) {
	b := lb.New()
	backends := []string{"x", "y"}
	b.Register(4, len(backends), nil)

	for i := 0; i < 10; i++ {
		got := b.Balance(4, backends, lb.RoundRobin, "")
		if got != "x" && got != "y" {
			t.Fatalf("unexpected backend %q", got)
		}
	}
}
