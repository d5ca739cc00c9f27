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

// Package accept builds the raw listeners: a dual-stack, SO_REUSEADDR
// TCP socket bound with an explicit listen backlog, gated by a
// try-acquire connection semaphore, with its TLS handshake (when
// configured) capped by a timeout.
package accept

import (
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/Goliworks/Quark/internal/errs"
)

// ListenTCP opens an IPv6 dual-stack ("::", so both v4 and v6 clients
// connect), SO_REUSEADDR, non-blocking TCP socket bound to port and
// listening with the given backlog.
//
// net.Listen does not expose backlog control, so the socket is built
// directly with golang.org/x/sys/unix (the raw-syscall companion to
// golang.org/x/net already in this module's dependency graph) and
// handed back to the standard library as a *net.TCPListener via
// net.FileListener.
func ListenTCP(port, backlog int) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, errs.Wrap(errs.ListenBind, "create socket for port "+strconv.Itoa(port), err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errs.Wrap(errs.ListenBind, "set SO_REUSEADDR", err)
	}
	// V6ONLY=0 makes this socket dual-stack: IPv4 clients arrive as
	// IPv4-mapped IPv6 addresses on a "::" listener.
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errs.Wrap(errs.ListenBind, "set non-blocking", err)
	}

	addr := unix.SockaddrInet6{Port: port}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, errs.Wrap(errs.ListenBind, "bind port "+strconv.Itoa(port), err)
	}

	if backlog <= 0 {
		backlog = 4096
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, errs.Wrap(errs.ListenBind, "listen on port "+strconv.Itoa(port), err)
	}

	f := os.NewFile(uintptr(fd), "quark-listener-"+strconv.Itoa(port))
	ln, err := net.FileListener(f)
	_ = f.Close()
	if err != nil {
		return nil, errs.Wrap(errs.ListenBind, "wrap listener for port "+strconv.Itoa(port), err)
	}
	return ln, nil
}
