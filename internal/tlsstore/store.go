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

// Package tlsstore is the worker-side certificate store: an SNI-name
// indexed map of atomically swappable certificates, driven by reload
// messages from the supervisor over internal/ipc.
//
// Every entry is a *atomic.Pointer[tls.Certificate], never a mutex-guarded
// struct — handshakes read a snapshot without ever blocking on a reload in
// progress, and a reload in progress never observes a torn certificate.
package tlsstore

import (
	"crypto/tls"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Goliworks/Quark/internal/certs"
)

// Store indexes certificates by exact DNS name and wildcard name
// (first label replaced by "*"), one atomic cell per name. The set of
// keys is append-only for the worker's lifetime; only the pointed-to
// certificate is ever replaced.
type Store struct {
	mu      sync.Mutex // guards insertion of brand-new keys only
	entries sync.Map   // name -> *atomic.Pointer[tls.Certificate]
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Add indexes the given pair under every one of its SAN names, creating
// new cells as needed and replacing the value of existing ones. Safe to
// call concurrently with GetCertificate.
func (s *Store) Add(pair certs.Pair) {
	cert := pair.Certificate
	for _, name := range pair.Names {
		s.set(name, &cert)
	}
}

// AddAll indexes every pair in pairs.
func (s *Store) AddAll(pairs []certs.Pair) {
	for _, p := range pairs {
		s.Add(p)
	}
}

func (s *Store) set(name string, cert *tls.Certificate) {
	if v, ok := s.entries.Load(name); ok {
		v.(*atomic.Pointer[tls.Certificate]).Store(cert)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries.Load(name); ok {
		v.(*atomic.Pointer[tls.Certificate]).Store(cert)
		return
	}

	p := &atomic.Pointer[tls.Certificate]{}
	p.Store(cert)
	s.entries.Store(name, p)
}

func (s *Store) lookup(name string) *tls.Certificate {
	v, ok := s.entries.Load(name)
	if !ok {
		return nil
	}
	return v.(*atomic.Pointer[tls.Certificate]).Load()
}

// Resolve implements the SNI resolution algorithm from the certificate
// store spec: exact match first, then the single-label wildcard, else
// nil (the TLS layer aborts the handshake).
func (s *Store) Resolve(serverName string) *tls.Certificate {
	if serverName == "" {
		return nil
	}

	if c := s.lookup(serverName); c != nil {
		return c
	}

	if w := wildcardOf(serverName); w != "" {
		if c := s.lookup(w); c != nil {
			return c
		}
	}

	return nil
}

// GetCertificate adapts Resolve to the signature tls.Config.GetCertificate
// expects, for direct use as the TLS acceptor's certificate callback.
func (s *Store) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if c := s.Resolve(hello.ServerName); c != nil {
		return c, nil
	}
	return nil, errNoCertificate
}

func wildcardOf(name string) string {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return "*" + name[i:]
}
