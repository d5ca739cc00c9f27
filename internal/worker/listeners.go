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

package worker

import (
	"github.com/Goliworks/Quark/internal/accept"
	"github.com/Goliworks/Quark/internal/certs"
	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/errs"
	"github.com/Goliworks/Quark/internal/ipc"
	"github.com/Goliworks/Quark/internal/lb"
	"github.com/Goliworks/Quark/internal/logger"
	"github.com/Goliworks/Quark/internal/proxy"
	"github.com/Goliworks/Quark/internal/tlsstore"
)

// buildStores parses the initial certificate handoff into one
// tlsstore.Store per https_port. A parse failure here is fatal: unlike
// a reload, there is no "old certificate" to fall back to.
func buildStores(certsByPort ipc.CertsByPort) (map[int]*tlsstore.Store, error) {
	stores := make(map[int]*tlsstore.Store, len(certsByPort))
	for port, pairs := range certsByPort {
		store := tlsstore.New()
		for _, p := range pairs {
			pair, err := certs.ParsePair(p.CertBytes, p.KeyBytes)
			if err != nil {
				return nil, err
			}
			store.Add(pair)
		}
		stores[port] = store
	}
	return stores, nil
}

// buildListeners starts every configured HTTP and HTTPS listener. If any
// one fails to bind, the listeners already started are closed before
// returning, so a partial worker never lingers.
func buildListeners(cfg *config.ServiceConfig, balancer *lb.Balancer, stores map[int]*tlsstore.Store) ([]*accept.Listener, error) {
	var listeners []*accept.Listener

	fail := func(err error) ([]*accept.Listener, error) {
		for _, l := range listeners {
			l.Close()
		}
		return nil, err
	}

	for _, srv := range cfg.Servers {
		if srv.HTTPPort > 0 {
			rt := proxy.New(srv, cfg.Global, "http", balancer)
			l, err := accept.StartHTTP(srv.Name, srv.HTTPPort, cfg.Global, adaptRouter(rt))
			if err != nil {
				return fail(err)
			}
			listeners = append(listeners, l)
		}

		if srv.HTTPSPort > 0 && len(srv.TLS) > 0 {
			store, ok := stores[srv.HTTPSPort]
			if !ok {
				return fail(errs.New(errs.CertParse, "no certificates received for https_port on server "+srv.Name))
			}
			rt := proxy.New(srv, cfg.Global, "https", balancer)
			l, err := accept.StartHTTPS(srv.Name, srv.HTTPSPort, cfg.Global, store, adaptRouter(rt))
			if err != nil {
				return fail(err)
			}
			listeners = append(listeners, l)
		}
	}

	return listeners, nil
}

// consumeReloads applies every "reload" message to its listener's
// certificate store for the remaining life of the process. A malformed
// message or a certificate that fails to parse is logged and skipped;
// the store keeps whatever it already had.
func consumeReloads(ch <-chan ipc.Message, stores map[int]*tlsstore.Store) {
	for msg := range ch {
		if msg.Kind != ipc.KindReload {
			continue
		}
		port, pairs, err := ipc.DecodeReload(msg)
		if err != nil {
			logger.Warnf("worker: decode reload message: %v", err)
			continue
		}
		store, ok := stores[port]
		if !ok {
			logger.Warnf("worker: reload for unknown port %d", port)
			continue
		}

		parsed := make([]certs.Pair, 0, len(pairs))
		for _, p := range pairs {
			pair, err := certs.ParsePair(p.CertBytes, p.KeyBytes)
			if err != nil {
				logger.Warnf("worker: reload parse error for port %d: %v (retaining old certificate)", port, err)
				continue
			}
			parsed = append(parsed, pair)
		}
		if len(parsed) == 0 {
			continue
		}
		store.AddAll(parsed)
		logger.Infof("worker: reloaded %d certificate(s) for port %d", len(parsed), port)
	}
}
