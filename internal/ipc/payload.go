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
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"github.com/Goliworks/Quark/internal/config"
	"github.com/Goliworks/Quark/internal/errs"
)

// CertsByPort is the "certs" message body: every https_port's
// certificate bundle, keyed as in the wire spec by the port number.
type CertsByPort map[int][]CertPair

// SendConfig frames and sends the compiled ServiceConfig as a "config"
// message.
func (c *Conn) SendConfig(cfg *config.ServiceConfig) error {
	body, err := cbor.Marshal(cfg)
	if err != nil {
		return errs.Wrap(errs.IPCEncode, "encode config payload", err)
	}
	return c.Send(Message{Kind: KindConfig, Body: body})
}

// DecodeConfig decodes a "config" message's body.
func DecodeConfig(msg Message) (*config.ServiceConfig, error) {
	var cfg config.ServiceConfig
	if err := cbor.Unmarshal(msg.Body, &cfg); err != nil {
		return nil, errs.Wrap(errs.IPCDecode, "decode config payload", err)
	}
	return &cfg, nil
}

// SendCerts frames and sends the initial certificate bundle as a
// "certs" message.
func (c *Conn) SendCerts(certs CertsByPort) error {
	body, err := cbor.Marshal(certs)
	if err != nil {
		return errs.Wrap(errs.IPCEncode, "encode certs payload", err)
	}
	return c.Send(Message{Kind: KindCerts, Body: body})
}

// DecodeCerts decodes a "certs" message's body.
func DecodeCerts(msg Message) (CertsByPort, error) {
	var certs CertsByPort
	if err := cbor.Unmarshal(msg.Body, &certs); err != nil {
		return nil, errs.Wrap(errs.IPCDecode, "decode certs payload", err)
	}
	return certs, nil
}

// SendReload frames and sends a certificate reload for one https_port.
func (c *Conn) SendReload(port int, pairs []CertPair) error {
	body, err := cbor.Marshal(pairs)
	if err != nil {
		return errs.Wrap(errs.IPCEncode, "encode reload payload", err)
	}
	return c.Send(Message{Kind: KindReload, Key: strconv.Itoa(port), Body: body})
}

// DecodeReload decodes a "reload" message's key (the target port) and
// body (the replacement certificate list for that port).
func DecodeReload(msg Message) (port int, pairs []CertPair, err error) {
	port, err = strconv.Atoi(msg.Key)
	if err != nil {
		return 0, nil, errs.Wrap(errs.IPCDecode, "decode reload key", err)
	}
	if err := cbor.Unmarshal(msg.Body, &pairs); err != nil {
		return 0, nil, errs.Wrap(errs.IPCDecode, "decode reload payload", err)
	}
	return port, pairs, nil
}
