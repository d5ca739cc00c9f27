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

// Package errs provides coded, parent-chaining errors for the quark proxy.
//
// An Error carries a numeric Code (in the spirit of HTTP status codes),
// an optional parent error, and the call site where it was created. Codes
// let callers branch on error kind without string matching; the parent
// chain preserves the original cause for logging.
package errs

import (
	"fmt"
	"runtime"
)

// Code classifies an Error the way an HTTP status code classifies a
// response. Zero is reserved for "no specific code".
type Code uint16

const (
	Unknown Code = iota

	// Config / startup
	ConfigParse
	ConfigValidate
	ConfigCompile

	// IPC
	IPCFrame
	IPCConnect
	IPCEncode
	IPCDecode

	// Certificates
	CertParse
	CertRead
	CertWatch

	// Listeners / acceptor
	ListenBind
	TLSHandshake

	// Privilege drop
	PrivDrop

	// Router / proxy
	UpstreamConnect
	UpstreamTimeout
	RouteUnmatched
	BadHost
	Overload
)

// Error is a coded error with an optional parent cause.
type Error interface {
	error
	Code() Code
	Parent() error
	Unwrap() error
}

type coded struct {
	code   Code
	msg    string
	parent error
	file   string
	line   int
}

// New creates an Error with the given code and message, capturing the
// caller's file/line for diagnostics.
func New(code Code, msg string) Error {
	return wrap(code, msg, nil, 2)
}

// Wrap creates an Error with the given code and message, chaining parent
// as the underlying cause. Wrap(code, msg, nil) behaves like New.
func Wrap(code Code, msg string, parent error) Error {
	return wrap(code, msg, parent, 2)
}

func wrap(code Code, msg string, parent error, skip int) Error {
	_, file, line, _ := runtime.Caller(skip)
	return &coded{code: code, msg: msg, parent: parent, file: file, line: line}
}

func (e *coded) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.parent)
	}
	return e.msg
}

func (e *coded) Code() Code { return e.code }

func (e *coded) Parent() error { return e.parent }

func (e *coded) Unwrap() error { return e.parent }

// Site returns "file:line" of where the error was created, for log lines
// that want source location without a full stack trace.
func (e *coded) Site() string {
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

// Is reports whether err is an Error with the given code.
func Is(err error, code Code) bool {
	if e, ok := err.(Error); ok {
		return e.Code() == code
	}
	return false
}
