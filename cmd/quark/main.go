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

// Command quark is a TLS-terminating reverse proxy and static file
// server. It re-executes itself as a privilege-separated pair: the
// first invocation is the supervisor (owns the config file and
// certificates on disk), which spawns a second, --child-process
// invocation as the unprivileged worker that actually serves traffic.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Goliworks/Quark/internal/proxy"
	"github.com/Goliworks/Quark/internal/supervisor"
	"github.com/Goliworks/Quark/internal/worker"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	proxy.Version = version

	var (
		configPath    string
		logsPath      string
		logLevel      string
		childProcess  bool
		ipcSocket     string
		metricsListen string
	)

	root := &cobra.Command{
		Use:           "quark",
		Short:         "TLS-terminating reverse proxy and static file server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if childProcess {
				return worker.Run(worker.Options{
					SocketPath:    ipcSocket,
					LogsPath:      logsPath,
					LogLevel:      logLevel,
					MetricsListen: metricsListen,
				})
			}
			return supervisor.Run(supervisor.Options{
				ConfigPath: configPath,
				LogsPath:   logsPath,
				LogLevel:   logLevel,
				SocketPath: ipcSocket,
			})
		},
	}

	flags := root.Flags()
	flags.StringVarP(&configPath, "config", "c", "/etc/quark/config.toml", "path to the configuration file")
	flags.StringVarP(&logsPath, "logs", "l", "/var/log/quark", "directory for log output")
	flags.StringVar(&logLevel, "log-level", "info", "log level: panic, fatal, error, warn, info, debug")
	flags.BoolVar(&childProcess, "child-process", false, "internal: run as the unprivileged worker")
	flags.StringVar(&ipcSocket, "ipc-socket", "", "internal: supervisor/worker IPC socket path (defaults per platform)")
	flags.StringVar(&metricsListen, "metrics-listen", "", "loopback address to serve Prometheus metrics on (disabled by default)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
