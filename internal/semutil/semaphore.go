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

// Package semutil is a try-acquire-only counting semaphore, used to cap
// concurrent accepted connections (max_conn) and concurrent in-flight
// upstream requests (max_req). Unlike golang.org/x/sync/semaphore, there
// is deliberately no blocking Acquire: overflow is a caller-visible
// decision (drop the connection, or reply 503), never a wait.
package semutil

// Semaphore is a fixed-capacity, non-blocking counting semaphore. A zero
// or negative capacity means unlimited: TryAcquire always succeeds and
// Release is a no-op.
type Semaphore struct {
	slots chan struct{}
}

// New returns a Semaphore with the given capacity. capacity <= 0 means
// unbounded.
func New(capacity int) *Semaphore {
	if capacity <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire attempts to take one permit without blocking. It reports
// whether the permit was obtained.
func (s *Semaphore) TryAcquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns one permit. Calling Release without a matching,
// successful TryAcquire over-releases capacity and is a caller bug.
func (s *Semaphore) Release() {
	if s.slots == nil {
		return
	}
	select {
	case <-s.slots:
	default:
	}
}

// InUse returns the number of permits currently held, for metrics.
func (s *Semaphore) InUse() int {
	if s.slots == nil {
		return 0
	}
	return len(s.slots)
}
