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

// HeaderOps is a single set/del header transformation. Set overwrites;
// Del removes after Set is applied.
type HeaderOps struct {
	Set map[string]string
	Del []string
}

// Merge combines base and child, with child's Set entries winning on
// key collision and Del lists concatenated (base's deletions first).
// Merging an empty HeaderOps into any HeaderOps is the identity.
func (base HeaderOps) Merge(child HeaderOps) HeaderOps {
	out := HeaderOps{
		Set: make(map[string]string, len(base.Set)+len(child.Set)),
		Del: make([]string, 0, len(base.Del)+len(child.Del)),
	}
	for k, v := range base.Set {
		out.Set[k] = v
	}
	for k, v := range child.Set {
		out.Set[k] = v
	}
	out.Del = append(out.Del, base.Del...)
	out.Del = append(out.Del, child.Del...)
	return out
}

// HeaderPolicy is the request/response header transformation applied at
// proxy or file-server dispatch time.
type HeaderPolicy struct {
	Request  HeaderOps
	Response HeaderOps
}

// Merge combines base (e.g. server-level) with child (e.g. route-level)
// following spec §4.1's bottom-up rule: server -> service -> route.
// Merging an empty HeaderPolicy into any HeaderPolicy is the identity.
func (base HeaderPolicy) Merge(child HeaderPolicy) HeaderPolicy {
	return HeaderPolicy{
		Request:  base.Request.Merge(child.Request),
		Response: base.Response.Merge(child.Response),
	}
}

// Apply mutates h (an http.Header-shaped map) in place: every Set entry
// overwrites, then every Del entry is removed.
func (ops HeaderOps) Apply(h HeaderSetter) {
	for k, v := range ops.Set {
		h.Set(k, v)
	}
	for _, k := range ops.Del {
		h.Del(k)
	}
}

// HeaderSetter is the subset of http.Header's behavior HeaderOps.Apply
// needs, satisfied directly by http.Header.
type HeaderSetter interface {
	Set(key, value string)
	Del(key string)
}
