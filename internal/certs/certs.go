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

// Package certs parses PEM certificate+key pairs into tls.Certificate
// values and extracts the DNS names a certificate is valid for, so the
// SNI store (internal/tlsstore) knows which names to index it under.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"

	"github.com/Goliworks/Quark/internal/errs"
)

// Pair is a parsed certificate chain + private key, annotated with the
// DNS names pulled from the leaf certificate's Subject Alternative Name
// extension, plus its CommonName when that looks like a hostname and is
// not already among the SAN names.
type Pair struct {
	Certificate tls.Certificate
	Names       []string // SAN DNS names verbatim (wildcards kept as "*.example.com"), then the CommonName if added
}

// ParsePair parses a PEM-encoded certificate chain and private key,
// returning the resulting Pair. certPEM may contain more than one
// certificate (a chain); keyPEM must contain exactly one private key.
func ParsePair(certPEM, keyPEM []byte) (Pair, error) {
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return Pair{}, errs.Wrap(errs.CertParse, "parse certificate pair", err)
	}

	leaf := tlsCert.Leaf
	if leaf == nil {
		leaf, err = x509.ParseCertificate(tlsCert.Certificate[0])
		if err != nil {
			return Pair{}, errs.Wrap(errs.CertParse, "parse leaf certificate", err)
		}
		tlsCert.Leaf = leaf
	}

	names := make([]string, 0, len(leaf.DNSNames)+1)
	seen := make(map[string]bool, len(leaf.DNSNames)+1)
	for _, n := range leaf.DNSNames {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	if leaf.Subject.CommonName != "" && !seen[leaf.Subject.CommonName] && looksLikeHostname(leaf.Subject.CommonName) {
		seen[leaf.Subject.CommonName] = true
		names = append(names, leaf.Subject.CommonName)
	}

	return Pair{Certificate: tlsCert, Names: names}, nil
}

func looksLikeHostname(s string) bool {
	for _, r := range s {
		if r == ' ' || r == '=' || r == ',' {
			return false
		}
	}
	return s != ""
}

// ReadPairFiles reads the certificate and key PEM files at the given
// paths and parses them. It is the only place in the supervisor that
// opens certificate files directly — the worker never does.
func ReadPairFiles(certFile, keyFile string) (Pair, error) {
	certPEM, err := readFile(certFile)
	if err != nil {
		return Pair{}, errs.Wrap(errs.CertRead, "read certificate file "+certFile, err)
	}
	keyPEM, err := readFile(keyFile)
	if err != nil {
		return Pair{}, errs.Wrap(errs.CertRead, "read key file "+keyFile, err)
	}
	return ParsePair(certPEM, keyPEM)
}

// decodeBlocks counts the PEM blocks in data.
func decodeBlocks(data []byte) int {
	n := 0
	rest := data
	for {
		var blk *pem.Block
		blk, rest = pem.Decode(rest)
		if blk == nil {
			break
		}
		n++
	}
	return n
}
