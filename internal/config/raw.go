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

// rawDocument mirrors the declarative configuration file's recognized
// sections and keys before any compilation rule runs. Parsing this
// struct out of TOML/YAML/JSON is a pure deserialization step;
// everything downstream, in compile.go, applies the actual rules.
type rawDocument struct {
	Global        rawGlobal                  `mapstructure:"global"`
	Servers       map[string]rawServer       `mapstructure:"servers"`
	Services      map[string]rawService      `mapstructure:"services"`
	LoadBalancers map[string]rawLoadBalancer `mapstructure:"loadbalancers"`
	Import        []string                   `mapstructure:"import"`
}

type rawGlobal struct {
	Backlog             int  `mapstructure:"backlog"`
	MaxConnections      int  `mapstructure:"max_connections"`
	MaxRequests         int  `mapstructure:"max_requests"`
	Keepalive           bool `mapstructure:"keepalive"`
	KeepaliveTimeout    int  `mapstructure:"keepalive_timeout"`
	KeepaliveInterval   int  `mapstructure:"keepalive_interval"`
	HTTPHeaderTimeout   int  `mapstructure:"http_header_timeout"`
	TLSHandshakeTimeout int  `mapstructure:"tls_handshake_timeout"`
}

type rawHeaderOps struct {
	Set map[string]string `mapstructure:"set"`
	Del []string          `mapstructure:"del"`
}

func (r rawHeaderOps) compile() HeaderOps {
	return HeaderOps{Set: r.Set, Del: r.Del}
}

type rawHeaderReqResp struct {
	Request  rawHeaderOps `mapstructure:"request"`
	Response rawHeaderOps `mapstructure:"response"`
}

func (r rawHeaderReqResp) compile() HeaderPolicy {
	return HeaderPolicy{Request: r.Request.compile(), Response: r.Response.compile()}
}

type rawServerHeaders struct {
	Locations   rawHeaderReqResp `mapstructure:"locations"`
	FileServers rawHeaderOps     `mapstructure:"file_servers"`
}

type rawServer struct {
	Port         int              `mapstructure:"port"`
	HTTPSPort    int              `mapstructure:"https_port"`
	ProxyTimeout int              `mapstructure:"proxy_timeout"`
	Headers      rawServerHeaders `mapstructure:"headers"`
}

type rawTLS struct {
	Certificate string `mapstructure:"certificate"`
	Key         string `mapstructure:"key"`
	Redirection *bool  `mapstructure:"redirection"`
}

func (t rawTLS) redirects() bool {
	return t.Redirection == nil || *t.Redirection
}

type rawLocation struct {
	Source  string           `mapstructure:"source"`
	Target  string           `mapstructure:"target"`
	Headers rawHeaderReqResp `mapstructure:"headers"`
}

type rawFileServer struct {
	Source         string       `mapstructure:"source"`
	Target         string       `mapstructure:"target"`
	Custom404      string       `mapstructure:"custom_404"`
	ForbiddenDir   bool         `mapstructure:"forbidden_dir"`
	AuthorizedDirs []string     `mapstructure:"authorized_dirs"`
	Headers        rawHeaderOps `mapstructure:"headers"`
}

type rawRedirection struct {
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target"`
	Code   int    `mapstructure:"code"`
}

type rawService struct {
	Domain       string           `mapstructure:"domain" validate:"required"`
	Server       string           `mapstructure:"server"`
	TLS          rawTLS           `mapstructure:"tls"`
	Locations    []rawLocation    `mapstructure:"locations"`
	FileServers  []rawFileServer  `mapstructure:"file_servers"`
	Redirections []rawRedirection `mapstructure:"redirections"`
	Headers      rawServerHeaders `mapstructure:"headers"`
}

type rawLoadBalancer struct {
	Algo     string   `mapstructure:"algo"`
	Backends []string `mapstructure:"backends"`
	Weights  []uint32 `mapstructure:"weights"`
}
