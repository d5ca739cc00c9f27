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

package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Goliworks/Quark/internal/errs"
	"github.com/Goliworks/Quark/internal/lb"
)

var poolRef = regexp.MustCompile(`^\$\{([A-Za-z0-9_.-]+)\}$`)

const defaultServerName = "main"

// Compile turns a parsed rawDocument into a frozen ServiceConfig,
// applying route precedence, header merging, and validation. Compiling the same document
// twice yields byte-equivalent ServiceConfigs except for Location.ID,
// which is allocated from a monotonic counter in deterministic
// (sorted-key) processing order.
func Compile(doc *rawDocument) (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Empty:   len(doc.Services) == 0,
		Global:  compileGlobal(doc.Global),
		Servers: map[string]*Server{},
		pools:   compilePools(doc.LoadBalancers),
	}

	for name, rs := range doc.Servers {
		cfg.Servers[name] = newServer(name, rs)
	}
	if _, ok := cfg.Servers[defaultServerName]; !ok {
		cfg.Servers[defaultServerName] = &Server{
			Name:         defaultServerName,
			HTTPPort:     80,
			HTTPSPort:    443,
			ProxyTimeout: 60 * time.Second,
		}
	}
	for _, s := range cfg.Servers {
		s.StrictTargets = map[string]TargetType{}
		s.PrefixTargets = map[string]TargetType{}
	}

	var nextID uint32
	for _, id := range sortedKeys(doc.Services) {
		svc := doc.Services[id]
		if err := compileService(cfg, id, svc, &nextID); err != nil {
			return nil, err
		}
	}

	// www redirects are installed only after every service's own routes,
	// so an explicit service for the other form always takes precedence.
	for _, id := range sortedKeys(doc.Services) {
		svc := doc.Services[id]
		name := svc.Server
		if name == "" {
			name = defaultServerName
		}
		installWWWRedirect(cfg.Servers[name], svc, svc.TLS.Certificate != "" || svc.TLS.Key != "")
	}

	for _, s := range cfg.Servers {
		keys := make([]string, 0, len(s.PrefixTargets))
		for k := range s.PrefixTargets {
			keys = append(keys, k)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
		s.prefixKeysDesc = keys
	}

	return cfg, nil
}

func compileGlobal(g rawGlobal) Global {
	out := Global{
		Backlog:             g.Backlog,
		MaxConn:             g.MaxConnections,
		MaxReq:              g.MaxRequests,
		Keepalive:           g.Keepalive,
		KeepaliveTimeout:    time.Duration(g.KeepaliveTimeout) * time.Second,
		KeepaliveInterval:   time.Duration(g.KeepaliveInterval) * time.Second,
		HTTPHeaderTimeout:   time.Duration(g.HTTPHeaderTimeout) * time.Second,
		TLSHandshakeTimeout: time.Duration(g.TLSHandshakeTimeout) * time.Second,
	}
	if out.Backlog <= 0 {
		out.Backlog = 4096
	}
	if out.TLSHandshakeTimeout <= 0 {
		out.TLSHandshakeTimeout = 10 * time.Second
	}
	return out
}

func newServer(name string, rs rawServer) *Server {
	s := &Server{
		Name:               name,
		HTTPPort:           rs.Port,
		HTTPSPort:          rs.HTTPSPort,
		ProxyTimeout:       time.Duration(rs.ProxyTimeout) * time.Second,
		headersLocations:   rs.Headers.Locations.compile(),
		headersFileServers: rs.Headers.FileServers.compile(),
	}
	if s.HTTPPort == 0 {
		s.HTTPPort = 80
	}
	if s.HTTPSPort == 0 {
		s.HTTPSPort = 443
	}
	if s.ProxyTimeout <= 0 {
		s.ProxyTimeout = 60 * time.Second
	}
	return s
}

// compilePools compiles the [loadbalancers.<name>] blocks into the
// lookup table resolveTarget consults for "${name}" location targets.
// An unrecognized algo name falls back to round robin.
func compilePools(raw map[string]rawLoadBalancer) map[string]compiledPool {
	pools := make(map[string]compiledPool, len(raw))
	for name, p := range raw {
		algo := lb.RoundRobin
		if p.Algo == "ip_hash" {
			algo = lb.IPHash
		}
		pools[name] = compiledPool{
			Algo:     algo,
			Backends: append([]string(nil), p.Backends...),
			Weights:  append([]uint32(nil), p.Weights...),
		}
	}
	return pools
}

func compileService(cfg *ServiceConfig, id string, svc rawService, nextID *uint32) error {
	serverName := svc.Server
	if serverName == "" {
		serverName = defaultServerName
	}
	srv, ok := cfg.Servers[serverName]
	if !ok {
		return errs.New(errs.ConfigCompile, fmt.Sprintf("service %q references unknown server %q", id, serverName))
	}

	locHeaders := srv.headersLocations.Merge(svc.Headers.Locations.compile())
	fileHeaders := HeaderPolicy{Response: srv.headersFileServers}.
		Merge(HeaderPolicy{Response: svc.Headers.FileServers.compile()})

	hasTLS := svc.TLS.Certificate != "" || svc.TLS.Key != ""
	if hasTLS {
		addCertificate(srv, svc.TLS.Certificate, svc.TLS.Key)
		if svc.TLS.redirects() {
			addAutoTLS(srv, svc.Domain)
		}
	}

	for _, loc := range svc.Locations {
		if err := compileLocation(cfg, srv, svc, loc, locHeaders, nextID); err != nil {
			return err
		}
	}
	for _, fs := range svc.FileServers {
		if err := compileFileServer(srv, svc, fs, fileHeaders); err != nil {
			return err
		}
	}
	for _, rd := range svc.Redirections {
		if err := compileRedirection(srv, svc, rd, locHeaders); err != nil {
			return err
		}
	}

	return nil
}

func addCertificate(s *Server, certPath, keyPath string) {
	for _, c := range s.TLS {
		if c.CertPath == certPath && c.KeyPath == keyPath {
			return
		}
	}
	s.TLS = append(s.TLS, TLSCertificate{CertPath: certPath, KeyPath: keyPath})
}

// addAutoTLS registers a bare hostname (no scheme, no port) that the
// router's matchAutoTLS compares incoming request hosts against; the
// https:// scheme and, if non-default, the port are added back at
// redirect time from the server's own HTTPSPort.
func addAutoTLS(s *Server, domain string) {
	for _, d := range s.AutoTLS {
		if d == domain {
			return
		}
	}
	s.AutoTLS = append(s.AutoTLS, domain)
}

// canonicalURL builds "scheme://host[:port]", appending the port only
// when it differs from the scheme's default, per spec §4.1.
func canonicalURL(scheme, host string, port, defaultPort int) string {
	if port == defaultPort || port == 0 {
		return scheme + "://" + host
	}
	return scheme + "://" + host + ":" + strconv.Itoa(port)
}

// normalizeSource implements the §4.1 source-normalization rule: a
// trailing "/*" marks a prefix match and is stripped; otherwise any
// trailing "/" is stripped and the route is a strict match.
func normalizeSource(source string) (normalized string, isPrefix bool) {
	if strings.HasSuffix(source, "/*") {
		return strings.TrimSuffix(source, "/*"), true
	}
	return strings.TrimSuffix(source, "/"), false
}

func routeKey(domain, normalizedSource string) string {
	return domain + normalizedSource
}

func insertTarget(s *Server, key string, isPrefix bool, t TargetType) error {
	if _, exists := s.StrictTargets[key]; exists {
		return errs.New(errs.ConfigCompile, "duplicate route key "+key)
	}
	if _, exists := s.PrefixTargets[key]; exists {
		return errs.New(errs.ConfigCompile, "duplicate route key "+key)
	}
	if isPrefix {
		s.PrefixTargets[key] = t
	} else {
		s.StrictTargets[key] = t
	}
	return nil
}

func compileLocation(cfg *ServiceConfig, srv *Server, svc rawService, loc rawLocation, serviceHeaders HeaderPolicy, nextID *uint32) error {
	normalized, isPrefix := normalizeSource(loc.Source)
	key := routeKey(svc.Domain, normalized)

	backends, algo, weights := resolveTarget(cfg, loc.Target)

	id := *nextID
	*nextID++

	headers := serviceHeaders.Merge(loc.Headers.compile())

	return insertTarget(srv, key, isPrefix, LocationTarget{
		ID:       id,
		Backends: backends,
		Algo:     algo,
		Weights:  weights,
		Headers:  headers,
	})
}

func resolveTarget(cfg *ServiceConfig, target string) (backends []string, algo lb.Algo, weights []uint32) {
	if m := poolRef.FindStringSubmatch(target); m != nil {
		if pool, ok := cfg.pools[m[1]]; ok {
			backends = append([]string(nil), pool.Backends...)
			algo = pool.Algo
			weights = padWeights(pool.Weights, len(backends))
			return
		}
	}
	return []string{target}, "", nil
}

func padWeights(weights []uint32, n int) []uint32 {
	if len(weights) == 0 {
		return nil
	}
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		if i < len(weights) && weights[i] > 0 {
			out[i] = weights[i]
		} else {
			out[i] = 1
		}
	}
	return out
}

func compileFileServer(srv *Server, svc rawService, fs rawFileServer, fileHeaders HeaderPolicy) error {
	normalized, isPrefix := normalizeSource(fs.Source)
	key := routeKey(svc.Domain, normalized)

	// authorized_dirs entries are a deny-list: a "!" prefix marks a
	// root-relative directory forbidden (an undefended design choice,
	// see DESIGN.md). Entries without the prefix have no effect.
	var forbidden []string
	for _, d := range fs.AuthorizedDirs {
		if strings.HasPrefix(d, "!") {
			forbidden = append(forbidden, strings.TrimPrefix(d, "!"))
		}
	}

	headers := fileHeaders.Merge(HeaderPolicy{Response: fs.Headers.compile()})

	target := FileServerTarget{
		Root:         fs.Target,
		SourceURL:    fs.Source,
		Headers:      headers,
		ForbiddenDir: fs.ForbiddenDir,
		Forbidden:    forbidden,
	}
	if fs.Custom404 != "" {
		target.FallbackFile = fs.Custom404
		target.IsFallback404 = true
	}

	return insertTarget(srv, key, isPrefix, target)
}

var validRedirectCodes = map[int]bool{301: true, 302: true, 307: true, 308: true}

func compileRedirection(srv *Server, svc rawService, rd rawRedirection, locHeaders HeaderPolicy) error {
	normalized, isPrefix := normalizeSource(rd.Source)
	key := routeKey(svc.Domain, normalized)

	code := rd.Code
	if !validRedirectCodes[code] {
		code = 301
	}

	return insertTarget(srv, key, isPrefix, RedirectionTarget{
		Target:  rd.Target,
		Code:    code,
		Headers: locHeaders,
	})
}

// installWWWRedirect implements spec §4.1's symmetric www canonicalization:
// a bare domain gets a 301 redirect installed from its www-prefixed form,
// and a www-prefixed domain gets one installed from its bare form.
func installWWWRedirect(srv *Server, svc rawService, hasTLS bool) {
	scheme, port, defaultPort := "http", srv.HTTPPort, 80
	if hasTLS {
		scheme, port, defaultPort = "https", srv.HTTPSPort, 443
	}

	domain := svc.Domain
	var other string
	if strings.HasPrefix(domain, "www.") {
		other = strings.TrimPrefix(domain, "www.")
	} else {
		other = "www." + domain
	}

	key := routeKey(other, "")
	if _, exists := srv.StrictTargets[key]; exists {
		return
	}
	if _, exists := srv.PrefixTargets[key]; exists {
		return
	}

	srv.StrictTargets[key] = RedirectionTarget{
		Target: canonicalURL(scheme, domain, port, defaultPort),
		Code:   301,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
