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
	"net"
	"sync"
	"time"

	"github.com/Goliworks/Quark/internal/logger"
	"github.com/Goliworks/Quark/internal/semutil"
)

// GatedListener wraps a net.Listener so every accepted connection must
// first acquire a permit from Conns (the max_conn semaphore, §5); a
// connection that cannot acquire one is logged and dropped rather than
// returned to the caller. When TLSConfig is non-nil, each connection's
// TLS handshake, capped by HandshakeTimeout, runs in its own goroutine
// rather than inline in Accept(): a stalled ClientHello only blocks that
// one connection's goroutine, never the shared accept loop that
// http.Server.Serve drives sequentially.
type GatedListener struct {
	net.Listener
	Conns            *semutil.Semaphore
	TLSConfig        *tls.Config
	HandshakeTimeout time.Duration
	Name             string

	once   sync.Once
	ready  chan acceptResult
	closed chan struct{}
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// Accept blocks until a connection is gated and, for TLS listeners,
// already handshaked. The raw accept loop and every handshake run in
// their own goroutines, started lazily on the first call; Accept itself
// only ever waits on a channel, so it never stalls behind one slow peer.
func (g *GatedListener) Accept() (net.Conn, error) {
	g.once.Do(g.start)
	select {
	case r := <-g.ready:
		return r.conn, r.err
	case <-g.closed:
		return nil, net.ErrClosed
	}
}

func (g *GatedListener) start() {
	g.ready = make(chan acceptResult)
	g.closed = make(chan struct{})
	go g.pump()
}

// pump runs the raw accept loop: it gates each connection on the
// semaphore and, for plain HTTP, delivers it directly; for TLS it hands
// the connection off to handshakeAsync and keeps accepting immediately.
func (g *GatedListener) pump() {
	for {
		conn, err := g.Listener.Accept()
		if err != nil {
			close(g.closed)
			select {
			case g.ready <- acceptResult{err: err}:
			default:
			}
			return
		}

		if !g.Conns.TryAcquire() {
			logger.Warnf("listener %s: max_conn reached, dropping connection from %s", g.Name, conn.RemoteAddr())
			conn.Close()
			continue
		}

		gc := &gatedConn{Conn: conn, release: g.Conns.Release}

		if g.TLSConfig == nil {
			g.deliver(gc)
			continue
		}

		go g.handshakeAsync(gc)
	}
}

// handshakeAsync runs one connection's TLS handshake off the accept
// loop and delivers the result whenever it completes, in whatever order
// handshakes finish in.
func (g *GatedListener) handshakeAsync(gc *gatedConn) {
	tlsConn, err := g.handshake(gc)
	if err != nil {
		logger.Warnf("listener %s: TLS handshake with %s failed: %v", g.Name, gc.Conn.RemoteAddr(), err)
		gc.Close()
		return
	}
	g.deliver(tlsConn)
}

// deliver hands a ready connection to whichever goroutine is blocked in
// Accept, or closes it if the listener has since shut down.
func (g *GatedListener) deliver(c net.Conn) {
	select {
	case g.ready <- acceptResult{conn: c}:
	case <-g.closed:
		c.Close()
	}
}

func (g *GatedListener) handshake(gc *gatedConn) (net.Conn, error) {
	if g.HandshakeTimeout > 0 {
		_ = gc.Conn.SetDeadline(time.Now().Add(g.HandshakeTimeout))
	}

	tlsConn := tls.Server(gc, g.TLSConfig)
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}

	if g.HandshakeTimeout > 0 {
		_ = gc.Conn.SetDeadline(time.Time{})
	}
	return tlsConn, nil
}

// gatedConn releases its semaphore permit exactly once, on Close, no
// matter how many times Close is called (http.Server may call it more
// than once on some error paths).
type gatedConn struct {
	net.Conn
	release  func()
	released bool
}

func (c *gatedConn) Close() error {
	if !c.released {
		c.released = true
		c.release()
	}
	return c.Conn.Close()
}
