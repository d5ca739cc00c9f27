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

// Package supervisor is the privilege-retaining parent process: it owns
// the config file and every certificate file on disk, spawns the
// unprivileged worker, and hands it the compiled routing table plus raw
// certificate bytes over internal/ipc.
//
// The worker never opens a certificate file itself; everything it needs
// arrives as bytes on the wire, here or on a later "reload" message.
package supervisor

import (
	"io"
	"os"
	"os/exec"

	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/errs"
	"github.com/Goliworks/Quark/internal/ipc"
	"github.com/Goliworks/Quark/internal/logger"
)

// Options configures one supervisor run.
type Options struct {
	ConfigPath string
	LogsPath   string // directory for log output; empty keeps stderr
	LogLevel   string
	SocketPath string // empty uses ipc.DefaultPath()
}

// Run implements the supervisor side of §4.8: spawn the worker, hand it
// the compiled config and certificates, then watch certificate
// directories for the life of the process.
func Run(opts Options) error {
	logger.Init(logger.Config{Level: logger.ParseLevel(opts.LogLevel), Output: openLogOutput(opts.LogsPath)})

	sockPath := opts.SocketPath
	if sockPath == "" {
		sockPath = ipc.DefaultPath()
	}

	ln, err := ipc.Listen(sockPath)
	if err != nil {
		return err
	}
	defer ln.Close()

	child, err := spawnWorker(opts, sockPath)
	if err != nil {
		return err
	}

	childDone := make(chan error, 1)
	go func() { childDone <- child.Wait() }()

	nc, err := ln.Accept()
	if err != nil {
		return errs.Wrap(errs.IPCConnect, "accept worker connection", err)
	}
	conn := ipc.NewConn(nc)
	defer conn.Close()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	sources, watchDirPorts := collectCertSources(cfg)

	certsByPort, err := readAllCerts(sources)
	if err != nil {
		return err
	}

	if err := conn.SendConfig(cfg); err != nil {
		return err
	}
	if err := conn.SendCerts(certsByPort); err != nil {
		return err
	}
	logger.Infof("supervisor: sent config and %d certificate bundle(s) to worker", len(certsByPort))

	w, err := newCertWatcher(sources, watchDirPorts, conn)
	if err != nil {
		return err
	}
	defer w.Close()
	go w.Run()

	return <-childDone
}

// spawnWorker re-executes the current binary with --child-process
// appended, inheriting stdio so worker logs flow to the same terminal
// or log file as the supervisor's own.
func spawnWorker(opts Options, sockPath string) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	args := []string{
		"--child-process",
		"--config", opts.ConfigPath,
		"--ipc-socket", sockPath,
	}
	if opts.LogLevel != "" {
		args = append(args, "--log-level", opts.LogLevel)
	}
	if opts.LogsPath != "" {
		args = append(args, "--logs", opts.LogsPath)
	}

	cmd := exec.Command(self, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.Unknown, "spawn worker process", err)
	}
	return cmd, nil
}

// openLogOutput opens the supervisor's log file under dir, falling
// back to logger's own stderr default if dir is empty or cannot be
// opened (e.g. a non-writable path before privileges are available).
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
