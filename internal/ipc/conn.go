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
	"encoding/binary"
	"io"
	"net"

	"github.com/fxamacker/cbor/v2"

	"github.com/Goliworks/Quark/internal/errs"
)

// MaxFrameSize bounds a single message so a corrupt length prefix can
// never make a reader block trying to allocate a huge buffer.
const MaxFrameSize = 64 << 20 // 64 MiB, comfortably above a bundle of certificates.

// Conn wraps a net.Conn (always a Unix domain socket in practice) with
// synchronous length-prefixed framing: read exactly 4 bytes, then
// exactly that many more, then decode. Both the supervisor and the
// worker use the same Conn.
type Conn struct {
	nc net.Conn
}

// NewConn wraps an already-established connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// Send encodes msg as CBOR and writes it as one length-prefixed frame.
func (c *Conn) Send(msg Message) error {
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return errs.Wrap(errs.IPCEncode, "encode ipc message", err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := c.nc.Write(header[:]); err != nil {
		return errs.Wrap(errs.IPCFrame, "write ipc frame header", err)
	}
	if _, err := c.nc.Write(payload); err != nil {
		return errs.Wrap(errs.IPCFrame, "write ipc frame payload", err)
	}
	return nil
}

// Receive reads exactly one length-prefixed frame and decodes it. Per
// spec, any framing error is fatal to the receiver: callers should treat
// a non-nil error here as cause to terminate, not retry.
func (c *Conn) Receive() (Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.nc, header[:]); err != nil {
		return Message{}, errs.Wrap(errs.IPCFrame, "read ipc frame header", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return Message{}, errs.New(errs.IPCFrame, "ipc frame exceeds maximum size")
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.nc, payload); err != nil {
		return Message{}, errs.Wrap(errs.IPCFrame, "read ipc frame payload", err)
	}

	var msg Message
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return Message{}, errs.Wrap(errs.IPCDecode, "decode ipc message", err)
	}
	return msg, nil
}
