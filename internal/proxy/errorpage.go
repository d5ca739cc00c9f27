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

package proxy

import (
	"html/template"
	"net/http"

	"github.com/Goliworks/Quark/internal/logger"
)

// Version is the build version shown in the error page footer. main
// overwrites it at startup; it defaults to "dev" for tests and any
// caller that never sets it.
var Version = "dev"

// errorPageTmpl renders a minimal, self-contained error page: no
// external stylesheet or script references, so it can never itself
// trigger another proxied request.
var errorPageTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Code}} {{.Text}}</title></head>
<body>
<h1>{{.Code}} {{.Text}}</h1>
<hr>
<p>quark/{{.Version}}</p>
</body>
</html>
`))

type errorPageData struct {
	Code    int
	Text    string
	Version string
}

// writeErrorPage replies to w with status and a self-contained HTML
// body.
func writeErrorPage(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data := errorPageData{Code: status, Text: http.StatusText(status), Version: Version}
	if err := errorPageTmpl.Execute(w, data); err != nil {
		logger.Warnf("proxy: render error page for %d: %v", status, err)
	}
}
