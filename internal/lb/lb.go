/*
 * MIT License
 *
 * Copyright (c) 2026 Quark Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package lb is the load-balancer core: per-route round-robin counters
// and pre-expanded weight tables, plus deterministic IP-hash routing.
//
// Routes are identified by a flat uint32 id, not a pointer into the
// routing tree, so this package's state is independent of who owns the
// tree; the load balancer's state lives for the life of the process.
package lb

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Algo selects the balancing strategy for a route.
type Algo string

const (
	RoundRobin Algo = "round_robin"
	IPHash     Algo = "ip_hash"
)

type route struct {
	counter atomic.Uint64
	indices []int // pre-expanded weights; nil when unweighted
}

// Balancer holds per-route state for every route that needs it
// (round-robin counters and expanded weight tables). Routes are
// registered at startup from the compiled configuration; a round-robin
// route that was never registered gets its state added on first use.
// mu guards the map in both cases.
type Balancer struct {
	mu     sync.RWMutex
	routes map[uint32]*route
}

// New returns an empty Balancer.
func New() *Balancer {
	return &Balancer{routes: make(map[uint32]*route)}
}

// Register allocates the round-robin state for route id, pre-expanding
// weights (if any) into a repeated-index table: backend i repeated
// weights[i] times. weights may be nil or shorter than backendCount;
// missing entries are treated as weight 1, matching the config
// compiler's right-padding rule.
func (b *Balancer) Register(id uint32, backendCount int, weights []uint32) {
	var indices []int

	if len(weights) > 0 {
		indices = make([]int, 0, backendCount)
		for i := 0; i < backendCount; i++ {
			w := uint32(1)
			if i < len(weights) && weights[i] > 0 {
				w = weights[i]
			}
			for j := uint32(0); j < w; j++ {
				indices = append(indices, i)
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[id] = &route{indices: indices}
}

// Balance resolves a backend URL for route id among backends, using algo
// and, for ip_hash, clientIP. Per spec: a single backend short-circuits
// without touching any state.
func (b *Balancer) Balance(id uint32, backends []string, algo Algo, clientIP string) string {
	if len(backends) == 1 {
		return backends[0]
	}
	if len(backends) == 0 {
		return ""
	}

	switch algo {
	case RoundRobin:
		return b.balanceRoundRobin(id, backends)
	case IPHash:
		return backends[hashIP(clientIP)%uint64(len(backends))]
	default:
		return backends[0]
	}
}

func (b *Balancer) balanceRoundRobin(id uint32, backends []string) string {
	b.mu.RLock()
	r, ok := b.routes[id]
	b.mu.RUnlock()
	if !ok {
		// Defensive: a route that was never Register'd still round-robins
		// correctly, it just allocates its counter lazily.
		b.mu.Lock()
		r, ok = b.routes[id]
		if !ok {
			r = &route{}
			b.routes[id] = r
		}
		b.mu.Unlock()
	}

	n := r.counter.Add(1) - 1 // fetch_add semantics: use pre-increment value

	if len(r.indices) > 0 {
		return backends[r.indices[n%uint64(len(r.indices))]]
	}
	return backends[n%uint64(len(backends))]
}

// hashIP computes a 64-bit non-cryptographic hash of the client IP's
// bytes using XXH64 (via cespare/xxhash; this is not XXH3) so the same client
// consistently maps to the same backend. Unparseable strings
// (e.g. IP:port not yet split, or a bogus value) still hash
// deterministically over their raw bytes so two identical inputs always
// land on the same backend.
func hashIP(clientIP string) uint64 {
	if ip := net.ParseIP(clientIP); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return xxhash.Sum64(v4)
		}
		return xxhash.Sum64(ip.To16())
	}
	return xxhash.Sum64String(clientIP)
}
