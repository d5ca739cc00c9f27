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

package ipc

import (
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Goliworks/Quark/internal/errs"
)

// lookupQuarkUser resolves the "quark" system user's uid/gid, used to
// chown the IPC socket when the supervisor runs as root. ok is false
// when no such user exists, in which case the socket keeps root
// ownership (mode 0600 still blocks other users).
func lookupQuarkUser() (uid, gid int, ok bool) {
	u, err := user.Lookup("quark")
	if err != nil {
		return 0, 0, false
	}
	uid, errU := strconv.Atoi(u.Uid)
	gid, errG := strconv.Atoi(u.Gid)
	if errU != nil || errG != nil {
		return 0, 0, false
	}
	return uid, gid, true
}

// DefaultPath returns the IPC socket path: under /run/quark when
// running as root, otherwise under the system temp dir.
func DefaultPath() string {
	if os.Geteuid() == 0 {
		return "/run/quark/quark.sock"
	}
	return filepath.Join(os.TempDir(), "quark.sock")
}

// Listen removes any stale socket file at path, creates the listening
// Unix socket, and — when running as root — chowns it to the quark
// user and restricts its mode to 0600.
func Listen(path string) (net.Listener, error) {
	_ = os.Remove(path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.ListenBind, "create ipc socket directory", err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errs.Wrap(errs.ListenBind, "bind ipc socket "+path, err)
	}

	if os.Geteuid() == 0 {
		if err := os.Chmod(path, 0o600); err != nil {
			_ = ln.Close()
			return nil, errs.Wrap(errs.ListenBind, "chmod ipc socket", err)
		}
		if uid, gid, ok := lookupQuarkUser(); ok {
			_ = os.Chown(path, uid, gid)
		}
	}

	return ln, nil
}

// Dial connects to the IPC socket at path, retrying with a 100ms
// backoff for up to 5 seconds before giving up.
func Dial(path string) (*Conn, error) {
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for {
		nc, err := net.Dial("unix", path)
		if err == nil {
			return NewConn(nc), nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, errs.Wrap(errs.IPCConnect, "connect to ipc socket "+path, lastErr)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
