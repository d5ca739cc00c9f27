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

// Package config turns a declarative virtual-host description into a
// frozen, fast-lookup routing table: ServiceConfig.
//
// Nothing in ServiceConfig is mutated after Compile returns. Handlers
// across every connection share it by reference; replacing it requires a
// process restart (or, in the privilege-separated deployment, a full
// supervisor -> worker resend over internal/ipc).
package config

import (
	"time"

	"github.com/Goliworks/Quark/internal/lb"
)

// ServiceConfig is the compiled, immutable routing table produced once by
// Compile and shared read-only by every request handler.
type ServiceConfig struct {
	Empty   bool
	Global  Global
	Servers map[string]*Server

	// pools holds the compiled loadbalancer pools referenced by
	// locations via "${name}" targets. Populated by Compile, consumed
	// only during compilation; not part of the public routing surface.
	pools map[string]compiledPool
}

type compiledPool struct {
	Algo     lb.Algo
	Backends []string
	Weights  []uint32
}

// Global holds process-wide tunables with the defaults from spec §3.
type Global struct {
	Backlog             int
	MaxConn             int
	MaxReq              int
	Keepalive           bool
	KeepaliveTimeout    time.Duration
	KeepaliveInterval   time.Duration
	HTTPHeaderTimeout   time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultGlobal returns the Global defaults named in spec §3.
func DefaultGlobal() Global {
	return Global{
		Backlog:             4096,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// TLSCertificate is a single certificate/key pair as configured on the
// supervisor side (file paths). The worker never sees the paths — only
// the decoded bytes shipped over IPC (see internal/ipc).
type TLSCertificate struct {
	CertPath string
	KeyPath  string
}

// Server is one configured virtual server: a port pair, its certificate
// list, and its compiled route tables.
type Server struct {
	Name         string
	HTTPPort     int
	HTTPSPort    int
	TLS          []TLSCertificate
	ProxyTimeout time.Duration
	AutoTLS      []string

	StrictTargets map[string]TargetType
	PrefixTargets map[string]TargetType

	// headersLocations / headersFileServers are the server-level header
	// policies from spec §6 (`[servers.<name>].headers.*`), merged
	// bottom-up into each service's and each route's own policy during
	// compilation.
	headersLocations   HeaderPolicy
	headersFileServers HeaderOps
	// prefixKeysDesc is PrefixTargets' keys sorted in descending
	// lexicographic order, precomputed once at compile time so matching
	// (spec §4.5 step 7) never sorts on the request path.
	prefixKeysDesc []string
}

// PrefixKeysDescending returns PrefixTargets' keys sorted from greatest
// to least, the iteration order spec §4.1 and §4.5 require for
// longest-prefix-first matching.
func (s *Server) PrefixKeysDescending() []string {
	return s.prefixKeysDesc
}

// TargetKind tags which concrete type a TargetType value holds.
type TargetKind int

const (
	KindLocation TargetKind = iota
	KindFileServer
	KindRedirection
)

// TargetType is the closed sum Location | FileServer | Redirection from
// spec §3, expressed as a small interface so dispatch is a type switch
// on Kind(), not a hand-rolled tag+union struct.
type TargetType interface {
	Kind() TargetKind
}

// LocationTarget proxies to one or more upstream backends, optionally
// load balanced.
type LocationTarget struct {
	ID       uint32
	Backends []string
	Algo     lb.Algo
	Weights  []uint32
	Headers  HeaderPolicy
}

func (LocationTarget) Kind() TargetKind { return KindLocation }

// FileServerTarget serves a local filesystem tree.
type FileServerTarget struct {
	Root          string
	SourceURL     string
	FallbackFile  string
	IsFallback404 bool
	ForbiddenDir  bool
	// Forbidden holds root-relative directory paths that authorized_dirs
	// named with a "!" prefix: always 403, regardless of ForbiddenDir.
	Forbidden []string
	Headers   HeaderPolicy
}

func (FileServerTarget) Kind() TargetKind { return KindFileServer }

// RedirectionTarget replies with an HTTP redirect.
type RedirectionTarget struct {
	Target  string
	Code    int
	Headers HeaderPolicy
}

func (RedirectionTarget) Kind() TargetKind { return KindRedirection }
