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

package tlsstore_test

import (
	"crypto/tls"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goliworks/Quark/internal/certs"
	"github.com/Goliworks/Quark/internal/tlsstore"
)

func TestQuarkTLSStoreSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TLS Store Suite")
}

var _ = Describe("Store", func() {
	It("indexes every pair passed to AddAll", func() {
		s := tlsstore.New()
		s.AddAll([]certs.Pair{
			{Certificate: tls.Certificate{}, Names: []string{"a.test"}},
			{Certificate: tls.Certificate{}, Names: []string{"b.test", "*.b.test"}},
		})

		Expect(s.Resolve("a.test")).ToNot(BeNil())
		Expect(s.Resolve("b.test")).ToNot(BeNil())
		Expect(s.Resolve("sub.b.test")).ToNot(BeNil())
		Expect(s.Resolve("c.test")).To(BeNil())
	})

	It("replaces an existing name's certificate rather than duplicating it", func() {
		s := tlsstore.New()
		v1 := tls.Certificate{Certificate: [][]byte{[]byte("v1")}}
		v2 := tls.Certificate{Certificate: [][]byte{[]byte("v2")}}

		s.Add(certs.Pair{Certificate: v1, Names: []string{"s.test"}})
		s.Add(certs.Pair{Certificate: v2, Names: []string{"s.test"}})

		got := s.Resolve("s.test")
		Expect(got).ToNot(BeNil())
		Expect(got.Certificate[0]).To(Equal([]byte("v2")))
	})

	It("GetCertificate reports an error for an unresolved SNI name", func() {
		s := tlsstore.New()
		_, err := s.GetCertificate(&tls.ClientHelloInfo{ServerName: "missing.test"})
		Expect(err).To(HaveOccurred())
	})
})
