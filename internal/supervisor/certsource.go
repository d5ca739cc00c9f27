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

package supervisor

import (
	"os"

	"github.com/Goliworks/Quark/internal/certs"
	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/errs"
	"github.com/Goliworks/Quark/internal/ipc"
)

// certSource is one certificate/key pair as configured, annotated with
// the https_port it serves and the directory fsnotify should watch for
// its rotation.
type certSource struct {
	port     int
	certPath string
	keyPath  string
	watchDir string
}

// collectCertSources walks every TLS-enabled server in cfg, resolving
// each certificate's watch directory (with every symlink level resolved,
// the certbot/cert-manager rotation pattern) without touching the path
// used for reads itself.
func collectCertSources(cfg *config.ServiceConfig) (sources []certSource, watchDirPorts map[string]map[int]bool) {
	watchDirPorts = map[string]map[int]bool{}

	for _, srv := range cfg.Servers {
		if srv.HTTPSPort == 0 || len(srv.TLS) == 0 {
			continue
		}
		for _, pair := range srv.TLS {
			dir := certs.WatchDir(pair.CertPath)
			sources = append(sources, certSource{
				port:     srv.HTTPSPort,
				certPath: pair.CertPath,
				keyPath:  pair.KeyPath,
				watchDir: dir,
			})
			if watchDirPorts[dir] == nil {
				watchDirPorts[dir] = map[int]bool{}
			}
			watchDirPorts[dir][srv.HTTPSPort] = true
		}
	}

	return sources, watchDirPorts
}

// readAllCerts reads every source's raw PEM bytes, validating each pair
// parses before it is allowed onto the wire, and groups the result by
// port for the initial "certs" message.
func readAllCerts(sources []certSource) (ipc.CertsByPort, error) {
	out := make(ipc.CertsByPort, len(sources))
	for _, src := range sources {
		pair, err := readCertPair(src)
		if err != nil {
			return nil, err
		}
		out[src.port] = append(out[src.port], pair)
	}
	return out, nil
}

// readCertPair reads and validates one certificate/key pair, returning
// the raw bytes the worker will parse for itself. Validating here, in
// the supervisor, means a broken certificate fails fast at startup
// instead of surfacing as a mysterious worker-side parse error.
func readCertPair(src certSource) (ipc.CertPair, error) {
	certPEM, err := os.ReadFile(src.certPath)
	if err != nil {
		return ipc.CertPair{}, errs.Wrap(errs.CertRead, "read certificate file "+src.certPath, err)
	}
	keyPEM, err := os.ReadFile(src.keyPath)
	if err != nil {
		return ipc.CertPair{}, errs.Wrap(errs.CertRead, "read key file "+src.keyPath, err)
	}
	if _, err := certs.ParsePair(certPEM, keyPEM); err != nil {
		return ipc.CertPair{}, err
	}
	return ipc.CertPair{CertBytes: certPEM, KeyBytes: keyPEM}, nil
}
