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

package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/lb"
	"github.com/Goliworks/Quark/internal/logger"
)

// hopByHop lists the headers RFC 7230 §6.1 says a proxy must not forward
// verbatim. Any header additionally named by an inbound Connection header
// joins this set for that one request.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Dialer proxies one Location target's requests to its balanced
// upstream.
type Dialer struct {
	timeout   time.Duration
	transport *http.Transport
}

// NewDialer builds a Dialer whose round trips are capped at timeout
// (the server's proxy_timeout, 60s when unset).
func NewDialer(timeout time.Duration) *Dialer {
	return &Dialer{
		timeout: timeout,
		transport: &http.Transport{
			ForceAttemptHTTP2:     false,
			MaxIdleConnsPerHost:   64,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// ServeProxy resolves target's upstream via balancer and relays req to
// it, streaming both directions without buffering. suffix is the
// request path beyond the matched route key (empty for a strict
// match); clientIP and scheme feed X-Forwarded-*.
func (d *Dialer) ServeProxy(w http.ResponseWriter, r *http.Request, target config.LocationTarget, balancer *lb.Balancer, suffix, clientIP, scheme string) {
	upstream := balancer.Balance(target.ID, target.Backends, target.Algo, clientIP)
	if upstream == "" {
		writeErrorPage(w, http.StatusInternalServerError)
		return
	}

	if isWebSocketUpgrade(r) {
		d.serveWebSocket(w, r, upstream, suffix)
		return
	}

	outURL := strings.TrimSuffix(upstream, "/") + suffix
	if r.URL.RawQuery != "" {
		outURL += "?" + r.URL.RawQuery
	}
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, outURL, r.Body)
	if err != nil {
		writeErrorPage(w, http.StatusInternalServerError)
		return
	}

	outReq.Header = r.Header.Clone()
	outReq.ContentLength = r.ContentLength
	outReq.Proto = "HTTP/1.1"
	outReq.ProtoMajor = 1
	outReq.ProtoMinor = 1

	stripHopByHop(outReq.Header)

	// Header policy applies first, then the forwarded-for chain: these
	// must always reach upstream regardless of what the policy does.
	target.Headers.Request.Apply(outReq.Header)

	outReq.Header.Set("Host", outReq.URL.Host)
	outReq.Host = outReq.URL.Host
	outReq.Header.Set("X-Forwarded-For", clientIP)
	outReq.Header.Set("X-Forwarded-Host", r.Host)
	outReq.Header.Set("X-Forwarded-Proto", scheme)

	ctx := r.Context()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
		outReq = outReq.WithContext(ctx)
	}

	resp, err := d.transport.RoundTrip(outReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			writeErrorPage(w, http.StatusGatewayTimeout)
			return
		}
		logger.Warnf("proxy: upstream %s: %v", upstream, err)
		writeErrorPage(w, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	stripHopByHop(resp.Header)
	target.Headers.Response.Apply(resp.Header)

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// stripHopByHop removes the fixed hop-by-hop set plus any header the
// Connection header itself names, from h in place.
func stripHopByHop(h http.Header) {
	if conn := h.Get("Connection"); conn != "" {
		for _, name := range strings.Split(conn, ",") {
			h.Del(strings.TrimSpace(name))
		}
	}
	for _, name := range hopByHop {
		h.Del(name)
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		headerContainsToken(r.Header.Get("Connection"), "upgrade")
}

func headerContainsToken(header, token string) bool {
	for _, p := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(p), token) {
			return true
		}
	}
	return false
}

// serveWebSocket hijacks the client connection and dials upstream
// directly, replaying the original request line and headers, then
// pipes bytes bidirectionally until either side closes. No proxy
// timeout applies once the tunnel is established.
func (d *Dialer) serveWebSocket(w http.ResponseWriter, r *http.Request, upstream, suffix string) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		writeErrorPage(w, http.StatusInternalServerError)
		return
	}

	host := strings.TrimPrefix(strings.TrimPrefix(upstream, "https://"), "http://")
	dialTimeout := d.timeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	upConn, err := net.DialTimeout("tcp", host, dialTimeout)
	if err != nil {
		logger.Warnf("proxy: websocket dial %s: %v", host, err)
		writeErrorPage(w, http.StatusBadGateway)
		return
	}

	clientConn, rw, err := hj.Hijack()
	if err != nil {
		upConn.Close()
		return
	}

	outPath := r.URL.Path
	if suffix != "" {
		outPath = suffix
	}
	if r.URL.RawQuery != "" {
		outPath += "?" + r.URL.RawQuery
	}

	if _, err := io.WriteString(upConn, r.Method+" "+outPath+" HTTP/1.1\r\n"); err != nil {
		clientConn.Close()
		upConn.Close()
		return
	}
	if _, err := io.WriteString(upConn, "Host: "+r.Host+"\r\n"); err != nil {
		clientConn.Close()
		upConn.Close()
		return
	}
	if err := r.Header.Write(upConn); err != nil {
		clientConn.Close()
		upConn.Close()
		return
	}
	if _, err := io.WriteString(upConn, "\r\n"); err != nil {
		clientConn.Close()
		upConn.Close()
		return
	}
	if rw.Reader.Buffered() > 0 {
		if _, err := io.CopyN(upConn, rw.Reader, int64(rw.Reader.Buffered())); err != nil {
			clientConn.Close()
			upConn.Close()
			return
		}
	}

	done := make(chan struct{}, 2)
	go pipe(upConn, clientConn, done)
	go pipe(clientConn, upConn, done)
	<-done
	clientConn.Close()
	upConn.Close()
}

func pipe(dst io.Writer, src io.Reader, done chan<- struct{}) {
	_, _ = io.Copy(dst, src)
	done <- struct{}{}
}
