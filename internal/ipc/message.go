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

// Package ipc carries the supervisor -> worker handoff: the compiled
// routing table and certificate bytes, plus later reload notifications,
// over a length-prefixed framed Unix domain socket.
package ipc

// Kind tags a Message's body, mirroring the three payload shapes the
// supervisor ever sends.
type Kind string

const (
	KindConfig Kind = "config"
	KindCerts  Kind = "certs"
	KindReload Kind = "reload"
)

// CertPair is one certificate/key pair as shipped over the wire: the
// worker never reads a certificate file itself, only these bytes.
type CertPair struct {
	CertBytes []byte `cbor:"cert_bytes"`
	KeyBytes  []byte `cbor:"key_bytes"`
}

// Message is the envelope framed onto the wire by Conn.Send /
// Conn.Receive: a big-endian u32 length prefix followed by the CBOR
// encoding of this struct.
//
// Key is populated only for "reload" messages, where it carries the
// target https_port as a decimal string.
type Message struct {
	Kind Kind   `cbor:"kind"`
	Key  string `cbor:"key,omitempty"`
	Body []byte `cbor:"body"`
}
