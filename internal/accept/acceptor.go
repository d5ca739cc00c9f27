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

package accept

import (
	"crypto/tls"
	"net/http"

	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/httpserver"
	"github.com/Goliworks/Quark/internal/logger"
	"github.com/Goliworks/Quark/internal/semutil"
	"github.com/Goliworks/Quark/internal/tlsstore"
)

// Listener is one bound, running HTTP or HTTPS listener. Close stops
// accepting and shuts the underlying *http.Server down.
type Listener struct {
	srv *http.Server
	ln  *GatedListener
}

// Close stops the listener immediately, closing its listening socket and
// every open connection (http.Server.Close; in-flight requests are not
// drained).
func (l *Listener) Close() error {
	return l.srv.Close()
}

// StartHTTP builds and starts a plain-HTTP listener on port.
func StartHTTP(name string, port int, g config.Global, handler http.Handler) (*Listener, error) {
	raw, err := ListenTCP(port, g.Backlog)
	if err != nil {
		return nil, err
	}

	gated := &GatedListener{
		Listener: raw,
		Conns:    semutil.New(g.MaxConn),
		Name:     name,
	}

	srv, err := httpserver.New(httpserver.Options{
		Name:              name,
		Handler:           handler,
		ErrorLog:          logger.StdLogger(logger.ErrorLevel, "http:"+name),
		ReadHeaderTimeout: g.HTTPHeaderTimeout,
		Keepalive:         g.Keepalive,
		KeepaliveInterval: g.KeepaliveInterval,
		KeepaliveTimeout:  g.KeepaliveTimeout,
	})
	if err != nil {
		raw.Close()
		return nil, err
	}

	l := &Listener{srv: srv, ln: gated}
	go func() {
		if err := srv.Serve(gated); err != nil && err != http.ErrServerClosed {
			logger.Errorf("listener %s: %v", name, err)
		}
	}()
	return l, nil
}

// StartHTTPS builds and starts a TLS-terminating listener on port,
// resolving certificates per-SNI from store.
func StartHTTPS(name string, port int, g config.Global, store *tlsstore.Store, handler http.Handler) (*Listener, error) {
	raw, err := ListenTCP(port, g.Backlog)
	if err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{
		GetCertificate: store.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
	}

	gated := &GatedListener{
		Listener:         raw,
		Conns:            semutil.New(g.MaxConn),
		TLSConfig:        tlsCfg,
		HandshakeTimeout: g.TLSHandshakeTimeout,
		Name:             name,
	}

	srv, err := httpserver.New(httpserver.Options{
		Name:              name,
		Handler:           handler,
		ErrorLog:          logger.StdLogger(logger.ErrorLevel, "https:"+name),
		ReadHeaderTimeout: g.HTTPHeaderTimeout,
		Keepalive:         g.Keepalive,
		KeepaliveInterval: g.KeepaliveInterval,
		KeepaliveTimeout:  g.KeepaliveTimeout,
	})
	if err != nil {
		raw.Close()
		return nil, err
	}

	l := &Listener{srv: srv, ln: gated}
	go func() {
		if err := srv.Serve(gated); err != nil && err != http.ErrServerClosed {
			logger.Errorf("listener %s: %v", name, err)
		}
	}()
	return l, nil
}
