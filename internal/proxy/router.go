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

// Package proxy is the per-request dispatcher: route matching, the
// reverse-proxy and redirection handlers, and the self-contained error
// pages.
package proxy

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/fileserver"
	"github.com/Goliworks/Quark/internal/lb"
	"github.com/Goliworks/Quark/internal/logger"
	"github.com/Goliworks/Quark/internal/semutil"
)

// Router dispatches every request accepted for one config.Server.
type Router struct {
	srv       *config.Server
	scheme    string
	balancer  *lb.Balancer
	maxReq    *semutil.Semaphore
	fileSrvs  map[string]*fileserver.Server
	proxyDial *Dialer
}

// New builds a Router for srv. scheme is "http" or "https", fixed per
// listener (the plaintext and TLS listeners for the same server each
// get their own Router so auto-HTTPS redirects only fire on the
// plaintext side).
func New(srv *config.Server, global config.Global, scheme string, balancer *lb.Balancer) *Router {
	rt := &Router{
		srv:       srv,
		scheme:    scheme,
		balancer:  balancer,
		maxReq:    semutil.New(global.MaxReq),
		fileSrvs:  map[string]*fileserver.Server{},
		proxyDial: NewDialer(srv.ProxyTimeout),
	}

	// File servers are built once, up front, rather than lazily on the
	// request path: srv's route tables are never mutated after Compile,
	// so there is no benefit to deferring this, and a lazy map write
	// here would race across concurrent request goroutines.
	for key, target := range srv.StrictTargets {
		if fs, ok := target.(config.FileServerTarget); ok {
			rt.fileSrvs[key] = fileserver.New(fs)
		}
	}
	for key, target := range srv.PrefixTargets {
		if fs, ok := target.(config.FileServerTarget); ok {
			rt.fileSrvs[key] = fileserver.New(fs)
		}
	}

	return rt
}

// ServeHTTP resolves the matching target for r and dispatches to the
// reverse proxy, file server, or redirect handler. It is invoked with
// the client's IP already resolved by the acceptor layer.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request, clientIP string) {
	if !rt.maxReq.TryAcquire() {
		writeErrorPage(w, http.StatusServiceUnavailable)
		return
	}
	defer rt.maxReq.Release()

	authority := r.Host
	if r.URL.Host != "" {
		authority = r.URL.Host
	}
	host, err := splitHost(authority)
	if err != nil {
		writeErrorPage(w, http.StatusBadRequest)
		return
	}

	reqPath := r.URL.Path
	if reqPath == "" {
		reqPath = "/"
	}

	if rt.scheme == "http" {
		if matched, ok := matchAutoTLS(host, rt.srv.AutoTLS); ok {
			target := "https://" + matched
			if rt.srv.HTTPSPort != 443 {
				target += ":" + strconv.Itoa(rt.srv.HTTPSPort)
			}
			location := target + reqPath
			if r.URL.RawQuery != "" {
				location += "?" + r.URL.RawQuery
			}
			w.Header().Set("Location", location)
			w.WriteHeader(http.StatusPermanentRedirect)
			return
		}
	}

	matchKey := host + strings.TrimSuffix(reqPath, "/")

	if target, ok := rt.srv.StrictTargets[matchKey]; ok {
		rt.dispatch(w, r, target, matchKey, "", clientIP)
		return
	}

	for _, k := range rt.srv.PrefixKeysDescending() {
		if strings.HasPrefix(matchKey, k) {
			target := rt.srv.PrefixTargets[k]
			rt.dispatch(w, r, target, k, matchKey[len(k):], clientIP)
			return
		}
	}

	logger.Debugf("server %s: no route matched %q", rt.srv.Name, matchKey)
	writeErrorPage(w, http.StatusInternalServerError)
}

// dispatch serves one already-matched route. routeKey is the route's
// own key (strict or prefix) as registered in StrictTargets/
// PrefixTargets, used to look up its pre-built file server, if any:
// config.TargetType values hold slice fields and so cannot themselves
// be used as map keys.
func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request, target config.TargetType, routeKey, suffix, clientIP string) {
	switch t := target.(type) {
	case config.RedirectionTarget:
		t.Headers.Response.Apply(w.Header())
		location := t.Target
		if suffix != "" {
			location = strings.TrimSuffix(t.Target, "/") + suffix
		}
		w.Header().Set("Location", location)
		w.WriteHeader(t.Code)

	case config.FileServerTarget:
		fs, ok := rt.fileSrvs[routeKey]
		if !ok {
			// Built lazily only as a defensive fallback; New pre-builds
			// every file-server route from srv's route tables.
			fs = fileserver.New(t)
		}
		fs.ServeHTTP(w, r, suffix)

	case config.LocationTarget:
		rt.proxyDial.ServeProxy(w, r, t, rt.balancer, suffix, clientIP, rt.scheme)

	default:
		writeErrorPage(w, http.StatusInternalServerError)
	}
}

// matchAutoTLS reports whether host exactly matches a bare hostname in
// autoTLS, returning the matched entry (§4.5 step 4 uses the matched
// entry, not host, in the redirect Location).
func matchAutoTLS(host string, autoTLS []string) (string, bool) {
	for _, d := range autoTLS {
		if host == d {
			return d, true
		}
	}
	return "", false
}

// splitHost strips an optional ":port" suffix from authority and
// rejects empty or non-ASCII hosts, per §4.5 step 2.
func splitHost(authority string) (string, error) {
	if authority == "" {
		return "", errBadHost
	}
	host := authority
	if h, _, err := net.SplitHostPort(authority); err == nil {
		host = h
	}
	for _, r := range host {
		if r > unicode.MaxASCII {
			return "", errBadHost
		}
	}
	return host, nil
}

var errBadHost = &hostError{}

type hostError struct{}

func (*hostError) Error() string { return "bad host" }

// ClientIP extracts the request's remote IP (without port) for
// X-Forwarded-For / ip_hash purposes.
func ClientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
