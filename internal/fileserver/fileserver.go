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

// Package fileserver serves a local filesystem tree: path-traversal-safe
// resolution, SPA fallback, 404 fallback, and directory listing.
package fileserver

import (
	"html/template"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Goliworks/Quark/internal/config"
)

// Server serves one FileServerTarget.
type Server struct {
	target config.FileServerTarget
}

// New builds a Server for the given compiled target.
func New(target config.FileServerTarget) *Server {
	return &Server{target: target}
}

// ServeHTTP implements the §4.6 resolution algorithm for suffix, the
// portion of the request path remaining after the route's prefix was
// stripped by the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request, suffix string) {
	s.target.Headers.Response.Apply(w.Header())

	clean, ok := SanitizeJoin(s.target.Root, suffix)
	if !ok {
		http.Error(w, "403 Forbidden", http.StatusForbidden)
		return
	}

	if dir := s.forbiddenDir(clean); dir {
		http.Error(w, "403 Forbidden", http.StatusForbidden)
		return
	}

	if s.target.FallbackFile != "" {
		s.serveSPA(w, r, clean)
		return
	}

	info, err := os.Stat(clean)
	if err != nil {
		http.Error(w, "404 Not Found", http.StatusNotFound)
		return
	}

	if info.IsDir() {
		s.serveDir(w, r, clean)
		return
	}

	s.serveFile(w, r, clean)
}

// serveSPA implements step 1 of §4.6: a single-page-application mode
// that serves the fallback file for anything that isn't a real file.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request, clean string) {
	if info, err := os.Stat(clean); err == nil && !info.IsDir() {
		s.serveFile(w, r, clean)
		return
	}

	fallback := filepath.Join(s.target.Root, s.target.FallbackFile)
	status := http.StatusOK
	if s.target.IsFallback404 {
		status = http.StatusNotFound
	}

	f, err := os.Open(fallback)
	if err != nil {
		http.Error(w, "404 Not Found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(fallback))
	w.WriteHeader(status)
	io.Copy(w, f)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, clean string) {
	f, err := os.Open(clean)
	if err != nil {
		http.Error(w, "404 Not Found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(clean))
	io.Copy(w, f)
}

// serveDir implements §4.6 step 2: index.html, trailing-slash redirect,
// directory listing, or 403, in that order.
func (s *Server) serveDir(w http.ResponseWriter, r *http.Request, clean string) {
	index := filepath.Join(clean, "index.html")
	if f, err := os.Open(index); err == nil {
		defer f.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.Copy(w, f)
		return
	}

	if !strings.HasSuffix(s.target.SourceURL, "/") {
		http.Redirect(w, r, s.target.SourceURL+"/", http.StatusPermanentRedirect)
		return
	}

	if s.target.ForbiddenDir {
		http.Error(w, "403 Forbidden", http.StatusForbidden)
		return
	}

	entries, err := os.ReadDir(clean)
	if err != nil {
		http.Error(w, "404 Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderListing(w, r.URL.Path, entries)
}

// forbiddenDir reports whether clean falls under one of the target's
// "!"-prefixed authorized_dirs entries, which are always 403 regardless
// of ForbiddenDir.
func (s *Server) forbiddenDir(clean string) bool {
	rel, err := filepath.Rel(s.target.Root, clean)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, d := range s.target.Forbidden {
		d = strings.Trim(d, "/")
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	return false
}

// SanitizeJoin resolves root+suffix per §4.6: drop ".."/"." components,
// keep only Normal path segments, and reject anything that would escape
// root.
func SanitizeJoin(root, suffix string) (string, bool) {
	cleaned := path.Clean("/" + suffix)
	if cleaned == "/" {
		return root, true
	}

	var segments []string
	for _, seg := range strings.Split(cleaned, "/") {
		switch seg {
		case "", ".", "..":
			continue
		default:
			segments = append(segments, seg)
		}
	}

	full := filepath.Join(append([]string{root}, segments...)...)
	rootAbs, err1 := filepath.Abs(root)
	fullAbs, err2 := filepath.Abs(full)
	if err1 != nil || err2 != nil {
		return "", false
	}
	if fullAbs != rootAbs && !strings.HasPrefix(fullAbs, rootAbs+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func contentType(name string) string {
	ext := filepath.Ext(name)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var listingTmpl = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html><head><title>Index of {{.Path}}</title></head>
<body>
<h1>Index of {{.Path}}</h1>
<table>
{{if .HasParent}}<tr><td><a href="../">..</a></td><td></td><td></td></tr>{{end}}
{{range .Entries}}<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.ModTime}}</td><td>{{.Size}}</td></tr>
{{end}}</table>
</body></html>
`))

type listingEntry struct {
	Name    string
	Href    string
	ModTime string
	Size    string
}

type listingData struct {
	Path      string
	HasParent bool
	Entries   []listingEntry
}

// renderListing writes the §4.6.2.c HTML directory listing: name,
// last-modified (DD-Mon-YYYY HH:MM:SS), and human-readable size, plus a
// ".." link when not at the top.
func renderListing(w io.Writer, urlPath string, entries []os.DirEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	data := listingData{
		Path:      urlPath,
		HasParent: urlPath != "/" && urlPath != "",
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		href := name
		size := humanSize(info.Size())
		if e.IsDir() {
			href += "/"
			size = ""
		}
		data.Entries = append(data.Entries, listingEntry{
			Name:    name,
			Href:    href,
			ModTime: info.ModTime().Format("02-Jan-2006 15:04:05"),
			Size:    size,
		})
	}

	_ = listingTmpl.Execute(w, data)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + "B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	if exp >= len(units) {
		exp = len(units) - 1
	}
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 1, 64) + units[exp]
}
