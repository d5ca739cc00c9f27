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

// Package httpserver assembles a *http.Server configured for HTTP/1.1
// and HTTP/2 (via golang.org/x/net/http2). It does not bind or accept;
// internal/accept hands it an already-gated net.Listener to Serve.
package httpserver

import (
	"log"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/Goliworks/Quark/internal/errs"
)

// Options drives New. Zero-valued durations mean "use net/http's own
// default" for that knob.
type Options struct {
	Name              string
	Handler           http.Handler
	ErrorLog          *log.Logger
	ReadHeaderTimeout time.Duration // Global.HTTPHeaderTimeout
	Keepalive         bool
	KeepaliveInterval time.Duration // HTTP/2 PING interval when Keepalive
	KeepaliveTimeout  time.Duration // HTTP/2 PING ack timeout
}

// New builds a *http.Server with HTTP/2 support configured per Options.
func New(opts Options) (*http.Server, error) {
	srv := &http.Server{
		Handler:           opts.Handler,
		ErrorLog:          opts.ErrorLog,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}

	srv.SetKeepAlivesEnabled(opts.Keepalive)

	h2 := &http2.Server{}
	if opts.Keepalive && opts.KeepaliveInterval > 0 {
		h2.ReadIdleTimeout = opts.KeepaliveInterval
		h2.PingTimeout = opts.KeepaliveTimeout
	}

	if err := http2.ConfigureServer(srv, h2); err != nil {
		return nil, errs.Wrap(errs.ListenBind, "configure http2 for server "+opts.Name, err)
	}

	return srv, nil
}
