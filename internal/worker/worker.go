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

// Package worker is the unprivileged child process: it never opens a
// config file or certificate file itself, receiving both as bytes from
// the supervisor over internal/ipc, builds the listeners, drops
// privileges once every listener is bound, and serves requests for the
// rest of the process lifetime.
package worker

import (
	"io"
	"net/http"

	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/errs"
	"github.com/Goliworks/Quark/internal/ipc"
	"github.com/Goliworks/Quark/internal/lb"
	"github.com/Goliworks/Quark/internal/logger"
	"github.com/Goliworks/Quark/internal/proxy"
)

// Options configures one worker run.
type Options struct {
	SocketPath    string
	LogsPath      string // directory for log output; empty keeps stderr
	LogLevel      string
	MetricsListen string // empty disables the metrics endpoint
	DropUser      string // defaults to "quark"
}

// Run connects to the supervisor, receives the initial handoff, serves
// traffic, and applies certificate reloads for the life of the process.
// It returns an error, without logging it, when the IPC handoff, the
// initial certificate parse, a listener bind or the privilege drop
// fails. An IPC framing error after startup ends the process through
// logger.Fatalf in readLoop.
func Run(opts Options) error {
	conn, err := ipc.Dial(opts.SocketPath)
	if err != nil {
		return err
	}

	cfg, err := receiveConfig(conn)
	if err != nil {
		return err
	}
	certsByPort, err := receiveCerts(conn)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{Level: logger.ParseLevel(opts.LogLevel), Output: openLogOutput(opts.LogsPath)})
	logger.Infof("worker: received configuration for %d server(s)", len(cfg.Servers))

	reloadCh := make(chan ipc.Message, 16)
	go readLoop(conn, reloadCh)

	stores, err := buildStores(certsByPort)
	if err != nil {
		return err
	}

	balancer := lb.New()
	registerRoutes(balancer, cfg)

	listeners, err := buildListeners(cfg, balancer, stores)
	if err != nil {
		return err
	}

	dropUser := opts.DropUser
	if dropUser == "" {
		dropUser = "quark"
	}
	if err := dropPrivileges(dropUser); err != nil {
		for _, l := range listeners {
			l.Close()
		}
		return err
	}
	logger.Infof("worker: %d listener(s) bound, privileges dropped", len(listeners))

	if opts.MetricsListen != "" {
		startMetrics(opts.MetricsListen)
	}

	consumeReloads(reloadCh, stores)
	return nil
}

func receiveConfig(conn *ipc.Conn) (*config.ServiceConfig, error) {
	msg, err := conn.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Kind != ipc.KindConfig {
		return nil, errs.New(errs.IPCDecode, "expected config message first")
	}
	return ipc.DecodeConfig(msg)
}

func receiveCerts(conn *ipc.Conn) (ipc.CertsByPort, error) {
	msg, err := conn.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Kind != ipc.KindCerts {
		return nil, errs.New(errs.IPCDecode, "expected certs message second")
	}
	return ipc.DecodeCerts(msg)
}

// readLoop drains the IPC connection for the life of the process.
// Per §4.8's fatal-error policy, any framing error here is fatal to
// the worker.
func readLoop(conn *ipc.Conn, out chan<- ipc.Message) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			logger.Fatalf("worker: ipc connection lost: %v", err)
			return
		}
		select {
		case out <- msg:
		default:
			logger.Warnf("worker: message channel full, dropping %s message", msg.Kind)
		}
	}
}

func registerRoutes(balancer *lb.Balancer, cfg *config.ServiceConfig) {
	for _, srv := range cfg.Servers {
		registerTargets(balancer, srv.StrictTargets)
		registerTargets(balancer, srv.PrefixTargets)
	}
}

func registerTargets(balancer *lb.Balancer, targets map[string]config.TargetType) {
	for _, target := range targets {
		if loc, ok := target.(config.LocationTarget); ok {
			balancer.Register(loc.ID, len(loc.Backends), loc.Weights)
		}
	}
}

// adaptRouter turns a *proxy.Router (whose ServeHTTP needs a pre-split
// client IP) into a plain http.Handler for internal/accept.
func adaptRouter(rt *proxy.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.ServeHTTP(w, r, proxy.ClientIP(r.RemoteAddr))
	})
}

// openLogOutput opens the worker's log file under dir, falling back to
// logger's own stderr default if dir is empty or cannot be opened.
func openLogOutput(dir string) io.Writer {
	if dir == "" {
		return nil
	}
	w, err := logger.OpenFile(dir)
	if err != nil {
		return nil
	}
	return w
}
