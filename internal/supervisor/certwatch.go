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

package supervisor

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Goliworks/Quark/internal/errs"
	"github.com/Goliworks/Quark/internal/ipc"
	"github.com/Goliworks/Quark/internal/logger"
)

// debounce is how long a certWatcher waits after the last event in a
// directory before re-reading and resending, per §4.8 step 5.
const debounce = 5 * time.Second

// certWatcher watches every directory holding a configured certificate
// and, on a write or rename under one, re-reads every certificate for
// the ports that directory serves and ships a "reload" message.
type certWatcher struct {
	fsw           *fsnotify.Watcher
	portSources   map[int][]certSource
	watchDirPorts map[string]map[int]bool
	conn          *ipc.Conn

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newCertWatcher(sources []certSource, watchDirPorts map[string]map[int]bool, conn *ipc.Conn) (*certWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(errs.CertWatch, "create certificate watcher", err)
	}

	portSources := map[int][]certSource{}
	for _, s := range sources {
		portSources[s.port] = append(portSources[s.port], s)
	}

	for dir := range watchDirPorts {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errs.Wrap(errs.CertWatch, "watch certificate directory "+dir, err)
		}
	}

	return &certWatcher{
		fsw:           fsw,
		portSources:   portSources,
		watchDirPorts: watchDirPorts,
		conn:          conn,
		timers:        map[string]*time.Timer{},
	}, nil
}

func (w *certWatcher) Close() error {
	return w.fsw.Close()
}

// Run drains fsnotify events until the watcher is closed, debouncing
// per directory before triggering a reload.
func (w *certWatcher) Run() {
	for {
		select {
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warnf("supervisor: certificate watcher error: %v", err)
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isRotationEvent(event.Op) {
				continue
			}
			w.scheduleReload(dirOf(event.Name, w.watchDirPorts))
		}
	}
}

func isRotationEvent(op fsnotify.Op) bool {
	return op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// dirOf maps an event's file path back to one of the watched
// directories, since fsnotify reports the changed file, not the
// directory it was registered under.
func dirOf(name string, watchDirPorts map[string]map[int]bool) string {
	changed := filepath.Dir(name)
	for dir := range watchDirPorts {
		if dir == changed {
			return dir
		}
	}
	return ""
}

func (w *certWatcher) scheduleReload(dir string) {
	if dir == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[dir]; ok {
		t.Reset(debounce)
		return
	}
	w.timers[dir] = time.AfterFunc(debounce, func() {
		w.mu.Lock()
		delete(w.timers, dir)
		w.mu.Unlock()
		w.reloadDir(dir)
	})
}

func (w *certWatcher) reloadDir(dir string) {
	for port := range w.watchDirPorts[dir] {
		pairs := make([]ipc.CertPair, 0, len(w.portSources[port]))
		for _, src := range w.portSources[port] {
			pair, err := readCertPair(src)
			if err != nil {
				logger.Warnf("supervisor: reload %s (port %d): %v", src.certPath, port, err)
				continue
			}
			pairs = append(pairs, pair)
		}
		if len(pairs) == 0 {
			continue
		}
		if err := w.conn.SendReload(port, pairs); err != nil {
			logger.Errorf("supervisor: send reload for port %d: %v", port, err)
			continue
		}
		logger.Infof("supervisor: sent certificate reload for port %d (%d bundle(s))", port, len(pairs))
	}
}
