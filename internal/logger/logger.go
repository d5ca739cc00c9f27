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

// Package logger is a small logrus-backed leveled logging facade shared by
// the supervisor and worker processes.
//
// Call Init once at process startup; every other function reads the
// package-level logger set by Init, the same "configure once, call as
// package functions" shape the rest of quark uses for error codes.
package logger

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

// Config drives Init.
type Config struct {
	Level  Level
	JSON   bool
	Output io.Writer // defaults to os.Stderr when nil
}

// Init configures the package-level logger. Safe to call again to
// reconfigure (e.g. after re-reading a config file).
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	base.SetOutput(out)
	base.SetLevel(cfg.Level.logrus())

	if cfg.JSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// With returns an entry pre-populated with the given fields, for
// structured, per-request logging (e.g. route id, client IP).
func With(fields map[string]interface{}) *logrus.Entry {
	return base.WithFields(logrus.Fields(fields))
}

func Debugf(format string, args ...interface{}) { base.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { base.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { base.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { base.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { base.Fatalf(format, args...) }

// writerAt adapts a logrus entry to io.Writer at a fixed level, so stdlib
// APIs that only accept *log.Logger (http.Server.ErrorLog, http2.Server)
// can still log through the package logger.
type writerAt struct {
	entry *logrus.Entry
	level Level
}

func (w *writerAt) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case ErrorLevel:
		w.entry.Error(msg)
	case WarnLevel:
		w.entry.Warn(msg)
	default:
		w.entry.Info(msg)
	}
	return len(p), nil
}

// StdLogger returns a *log.Logger view onto the package logger at the
// given level, for handing to stdlib APIs such as http.Server.ErrorLog.
func StdLogger(lvl Level, component string) *log.Logger {
	w := &writerAt{entry: base.WithField("component", component), level: lvl}
	return log.New(w, "", 0)
}
