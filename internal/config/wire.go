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

package config

import (
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// TargetType is a closed interface, so neither cbor nor any other
// reflection-based codec can decode into it directly: there is no
// concrete type to instantiate for an interface-valued map entry.
// Server implements cbor.Marshaler/Unmarshaler itself, transcoding its
// route tables through targetWire (a plain tagged union) so
// internal/ipc can ship a *ServiceConfig across the supervisor/worker
// socket unchanged, using the same MarshalCBOR/UnmarshalCBOR tagged-union
// pattern as a closed-sum type over the wire.
type targetWire struct {
	Kind        TargetKind         `cbor:"kind"`
	Location    *LocationTarget    `cbor:"location,omitempty"`
	FileServer  *FileServerTarget  `cbor:"file_server,omitempty"`
	Redirection *RedirectionTarget `cbor:"redirection,omitempty"`
}

func toTargetWire(t TargetType) targetWire {
	switch v := t.(type) {
	case LocationTarget:
		return targetWire{Kind: KindLocation, Location: &v}
	case FileServerTarget:
		return targetWire{Kind: KindFileServer, FileServer: &v}
	case RedirectionTarget:
		return targetWire{Kind: KindRedirection, Redirection: &v}
	default:
		return targetWire{}
	}
}

func (w targetWire) toTargetType() TargetType {
	switch w.Kind {
	case KindLocation:
		if w.Location != nil {
			return *w.Location
		}
	case KindFileServer:
		if w.FileServer != nil {
			return *w.FileServer
		}
	case KindRedirection:
		if w.Redirection != nil {
			return *w.Redirection
		}
	}
	return nil
}

// serverWire mirrors Server field-for-field except its two route
// tables, which go through targetWire, and omits the unexported
// headersLocations/headersFileServers/prefixKeysDesc fields: the first
// two are fully absorbed into each route's own HeaderPolicy by Compile,
// and prefixKeysDesc is recomputed on decode.
type serverWire struct {
	Name          string                `cbor:"name"`
	HTTPPort      int                   `cbor:"http_port"`
	HTTPSPort     int                   `cbor:"https_port"`
	TLS           []TLSCertificate      `cbor:"tls"`
	ProxyTimeout  int64                 `cbor:"proxy_timeout_ns"`
	AutoTLS       []string              `cbor:"auto_tls"`
	StrictTargets map[string]targetWire `cbor:"strict_targets"`
	PrefixTargets map[string]targetWire `cbor:"prefix_targets"`
}

// MarshalCBOR implements cbor.Marshaler.
func (s Server) MarshalCBOR() ([]byte, error) {
	w := serverWire{
		Name:          s.Name,
		HTTPPort:      s.HTTPPort,
		HTTPSPort:     s.HTTPSPort,
		TLS:           s.TLS,
		ProxyTimeout:  int64(s.ProxyTimeout),
		AutoTLS:       s.AutoTLS,
		StrictTargets: make(map[string]targetWire, len(s.StrictTargets)),
		PrefixTargets: make(map[string]targetWire, len(s.PrefixTargets)),
	}
	for k, v := range s.StrictTargets {
		w.StrictTargets[k] = toTargetWire(v)
	}
	for k, v := range s.PrefixTargets {
		w.PrefixTargets[k] = toTargetWire(v)
	}
	return cbor.Marshal(w)
}

// UnmarshalCBOR implements cbor.Unmarshaler, restoring the route tables
// and recomputing prefixKeysDesc, which never travels on the wire.
func (s *Server) UnmarshalCBOR(data []byte) error {
	var w serverWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}

	s.Name = w.Name
	s.HTTPPort = w.HTTPPort
	s.HTTPSPort = w.HTTPSPort
	s.TLS = w.TLS
	s.ProxyTimeout = time.Duration(w.ProxyTimeout)
	s.AutoTLS = w.AutoTLS

	s.StrictTargets = make(map[string]TargetType, len(w.StrictTargets))
	for k, v := range w.StrictTargets {
		s.StrictTargets[k] = v.toTargetType()
	}
	s.PrefixTargets = make(map[string]TargetType, len(w.PrefixTargets))
	for k, v := range w.PrefixTargets {
		s.PrefixTargets[k] = v.toTargetType()
	}

	keys := make([]string, 0, len(s.PrefixTargets))
	for k := range s.PrefixTargets {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	s.prefixKeysDesc = keys

	return nil
}
