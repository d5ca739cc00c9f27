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
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/Goliworks/Quark/internal/errs"
)

// dropPrivileges switches the process to username's uid/gid, called
// only after every listener is bound. A no-op when already running as
// a non-root user, matching §4.8 step 4.
//
// Go's runtime applies Setuid/Setgid to every OS thread on Linux (since
// Go 1.16), so unlike raw libc setuid this is safe to call from a
// goroutine without first locking to one thread.
func dropPrivileges(username string) error {
	if os.Geteuid() != 0 {
		return nil
	}

	u, err := user.Lookup(username)
	if err != nil {
		return errs.Wrap(errs.PrivDrop, "lookup user "+username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return errs.Wrap(errs.PrivDrop, "parse gid for "+username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return errs.Wrap(errs.PrivDrop, "parse uid for "+username, err)
	}

	if err := unix.Setgroups([]int{gid}); err != nil {
		return errs.Wrap(errs.PrivDrop, "clear supplementary groups", err)
	}
	if err := unix.Setgid(gid); err != nil {
		return errs.Wrap(errs.PrivDrop, "setgid", err)
	}
	if err := unix.Setuid(uid); err != nil {
		return errs.Wrap(errs.PrivDrop, "setuid", err)
	}
	return nil
}
