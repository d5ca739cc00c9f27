package config

import (
	"testing"

	"github.com/Goliworks/Quark/internal/lb"
)

func mustCompile(t *testing.T, doc *rawDocument) *ServiceConfig {
	t.Helper()
	cfg, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return cfg
}

func TestCompileAssignsIncreasingLocationIDs(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {Domain: "a.test", Locations: []rawLocation{{Source: "/", Target: "127.0.0.1:9001"}}},
			"b": {Domain: "b.test", Locations: []rawLocation{{Source: "/", Target: "127.0.0.1:9002"}}},
		},
	}
	cfg := mustCompile(t, doc)

	srv := cfg.Servers[defaultServerName]
	ta := srv.StrictTargets["a.test"].(LocationTarget)
	tb := srv.StrictTargets["b.test"].(LocationTarget)
	if ta.ID == tb.ID {
		t.Fatalf("expected distinct IDs, got %d and %d", ta.ID, tb.ID)
	}
	if ta.ID != 0 || tb.ID != 1 {
		t.Fatalf("expected deterministic sorted-key order 0,1; got %d,%d", ta.ID, tb.ID)
	}
}

func TestCompileStrictVsPrefixSeparation(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {
				Domain: "a.test",
				Locations: []rawLocation{
					{Source: "/api", Target: "127.0.0.1:9001"},
					{Source: "/api/v1/*", Target: "127.0.0.1:9002"},
				},
			},
		},
	}
	cfg := mustCompile(t, doc)
	srv := cfg.Servers[defaultServerName]

	if _, ok := srv.StrictTargets["a.test/api"]; !ok {
		t.Fatal("expected a strict target for /api")
	}
	if _, ok := srv.PrefixTargets["a.test/api/v1"]; !ok {
		t.Fatal("expected a prefix target for /api/v1/*")
	}

	keys := srv.PrefixKeysDescending()
	if len(keys) != 1 || keys[0] != "a.test/api/v1" {
		t.Fatalf("unexpected prefix key order: %v", keys)
	}
}

func TestCompileRejectsDuplicateRouteKey(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {
				Domain: "a.test",
				Locations: []rawLocation{
					{Source: "/x", Target: "127.0.0.1:9001"},
					{Source: "/x", Target: "127.0.0.1:9002"},
				},
			},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected an error for duplicate route key")
	}
}

func TestCompileHeaderPolicyMergeIdentity(t *testing.T) {
	doc := &rawDocument{
		Servers: map[string]rawServer{
			defaultServerName: {
				Headers: rawServerHeaders{
					Locations: rawHeaderReqResp{
						Request: rawHeaderOps{Set: map[string]string{"X-Server": "1"}},
					},
				},
			},
		},
		Services: map[string]rawService{
			"a": {Domain: "a.test", Locations: []rawLocation{{Source: "/", Target: "127.0.0.1:9001"}}},
		},
	}
	cfg := mustCompile(t, doc)
	srv := cfg.Servers[defaultServerName]
	loc := srv.StrictTargets["a.test"].(LocationTarget)

	if loc.Headers.Request.Set["X-Server"] != "1" {
		t.Fatalf("expected server-level header to survive an empty service/route merge, got %+v", loc.Headers)
	}
}

func TestCompileHeaderPolicyBottomUpOverride(t *testing.T) {
	doc := &rawDocument{
		Servers: map[string]rawServer{
			defaultServerName: {
				Headers: rawServerHeaders{
					Locations: rawHeaderReqResp{
						Request: rawHeaderOps{Set: map[string]string{"X-Level": "server"}},
					},
				},
			},
		},
		Services: map[string]rawService{
			"a": {
				Domain: "a.test",
				Headers: rawServerHeaders{
					Locations: rawHeaderReqResp{
						Request: rawHeaderOps{Set: map[string]string{"X-Level": "service"}},
					},
				},
				Locations: []rawLocation{
					{
						Source: "/",
						Target: "127.0.0.1:9001",
						Headers: rawHeaderReqResp{
							Request: rawHeaderOps{Set: map[string]string{"X-Level": "route"}},
						},
					},
				},
			},
		},
	}
	cfg := mustCompile(t, doc)
	loc := cfg.Servers[defaultServerName].StrictTargets["a.test"].(LocationTarget)

	if got := loc.Headers.Request.Set["X-Level"]; got != "route" {
		t.Fatalf("expected route-level override to win, got %q", got)
	}
}

func TestCompilePoolWeightPadding(t *testing.T) {
	doc := &rawDocument{
		LoadBalancers: map[string]rawLoadBalancer{
			"pool1": {
				Algo:     "round_robin",
				Backends: []string{"127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003"},
				Weights:  []uint32{4, 2},
			},
		},
		Services: map[string]rawService{
			"a": {Domain: "a.test", Locations: []rawLocation{{Source: "/", Target: "${pool1}"}}},
		},
	}
	cfg := mustCompile(t, doc)
	loc := cfg.Servers[defaultServerName].StrictTargets["a.test"].(LocationTarget)

	if len(loc.Backends) != 3 {
		t.Fatalf("expected 3 backends, got %v", loc.Backends)
	}
	if loc.Algo != lb.RoundRobin {
		t.Fatalf("expected round_robin, got %q", loc.Algo)
	}
	want := []uint32{4, 2, 1}
	for i, w := range want {
		if loc.Weights[i] != w {
			t.Fatalf("weight[%d] = %d, want %d (padded weights: %v)", i, loc.Weights[i], w, loc.Weights)
		}
	}
}

func TestCompileRedirectionCodeDefaultsAndValidates(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {
				Domain: "a.test",
				Redirections: []rawRedirection{
					{Source: "/old", Target: "https://a.test/new", Code: 0},
					{Source: "/old2", Target: "https://a.test/new2", Code: 999},
					{Source: "/old3", Target: "https://a.test/new3", Code: 307},
				},
			},
		},
	}
	cfg := mustCompile(t, doc)
	srv := cfg.Servers[defaultServerName]

	if got := srv.StrictTargets["a.test/old"].(RedirectionTarget).Code; got != 301 {
		t.Fatalf("expected default redirect code 301, got %d", got)
	}
	if got := srv.StrictTargets["a.test/old2"].(RedirectionTarget).Code; got != 301 {
		t.Fatalf("expected invalid code 999 to fall back to 301, got %d", got)
	}
	if got := srv.StrictTargets["a.test/old3"].(RedirectionTarget).Code; got != 307 {
		t.Fatalf("expected an explicit valid code 307 to be preserved, got %d", got)
	}
}

func TestCompileWWWRedirectSymmetric(t *testing.T) {
	t.Run("bare domain gets a www redirect installed", func(t *testing.T) {
		doc := &rawDocument{
			Services: map[string]rawService{
				"a": {Domain: "a.test", Locations: []rawLocation{{Source: "/", Target: "127.0.0.1:9001"}}},
			},
		}
		cfg := mustCompile(t, doc)
		srv := cfg.Servers[defaultServerName]

		rt, ok := srv.StrictTargets["www.a.test"].(RedirectionTarget)
		if !ok {
			t.Fatal("expected a www.a.test redirect target")
		}
		if rt.Target != "http://a.test" {
			t.Fatalf("expected redirect to http://a.test, got %q", rt.Target)
		}
	})

	t.Run("www domain gets a bare redirect installed", func(t *testing.T) {
		doc := &rawDocument{
			Services: map[string]rawService{
				"a": {Domain: "www.a.test", Locations: []rawLocation{{Source: "/", Target: "127.0.0.1:9001"}}},
			},
		}
		cfg := mustCompile(t, doc)
		srv := cfg.Servers[defaultServerName]

		rt, ok := srv.StrictTargets["a.test"].(RedirectionTarget)
		if !ok {
			t.Fatal("expected an a.test redirect target")
		}
		if rt.Target != "http://www.a.test" {
			t.Fatalf("expected redirect to http://www.a.test, got %q", rt.Target)
		}
	})

	t.Run("an explicit service for the other form suppresses the synthesized redirect", func(t *testing.T) {
		doc := &rawDocument{
			Services: map[string]rawService{
				"bare": {Domain: "a.test", Locations: []rawLocation{{Source: "/", Target: "127.0.0.1:9001"}}},
				"www":  {Domain: "www.a.test", Locations: []rawLocation{{Source: "/", Target: "127.0.0.1:9002"}}},
			},
		}
		cfg := mustCompile(t, doc)
		srv := cfg.Servers[defaultServerName]

		if _, ok := srv.StrictTargets["a.test"].(LocationTarget); !ok {
			t.Fatal("expected a.test's own location to survive, not be overwritten by a redirect")
		}
		if _, ok := srv.StrictTargets["www.a.test"].(LocationTarget); !ok {
			t.Fatal("expected www.a.test's own location to survive, not be overwritten by a redirect")
		}
	})
}

func TestCompileAuthorizedDirsDenyListOnly(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {
				Domain: "a.test",
				FileServers: []rawFileServer{
					{
						Source:         "/*",
						Target:         "/var/www",
						AuthorizedDirs: []string{"public", "!secret", "!internal"},
					},
				},
			},
		},
	}
	cfg := mustCompile(t, doc)
	srv := cfg.Servers[defaultServerName]

	fs, ok := srv.PrefixTargets["a.test"].(FileServerTarget)
	if !ok {
		t.Fatal("expected a file server prefix target at a.test")
	}
	if len(fs.Forbidden) != 2 {
		t.Fatalf("expected 2 forbidden dirs, got %v", fs.Forbidden)
	}
	for _, d := range fs.Forbidden {
		if d == "public" {
			t.Fatal("expected the un-prefixed entry to be dropped, not treated as an allow-list")
		}
	}
}

func TestCompileForbiddenDirFlagIsWired(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {
				Domain: "a.test",
				FileServers: []rawFileServer{
					{Source: "/*", Target: "/var/www", ForbiddenDir: true},
				},
			},
		},
	}
	cfg := mustCompile(t, doc)
	srv := cfg.Servers[defaultServerName]

	fs, ok := srv.PrefixTargets["a.test"].(FileServerTarget)
	if !ok {
		t.Fatal("expected a file server prefix target at a.test")
	}
	if !fs.ForbiddenDir {
		t.Fatal("expected forbidden_dir: true in the raw config to reach FileServerTarget.ForbiddenDir")
	}
}

func TestCompileAutoTLSStoresBareHostMatchingRouterExactly(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {
				Domain: "a.test",
				TLS:    rawTLS{Certificate: "cert.pem", Key: "key.pem"},
				Locations: []rawLocation{
					{Source: "/", Target: "127.0.0.1:9001"},
				},
			},
		},
	}
	cfg := mustCompile(t, doc)
	srv := cfg.Servers[defaultServerName]

	if len(srv.AutoTLS) != 1 || srv.AutoTLS[0] != "a.test" {
		t.Fatalf("expected AutoTLS to hold the bare domain %q, got %v", "a.test", srv.AutoTLS)
	}
}

func TestCompileUnknownServerReferenceFails(t *testing.T) {
	doc := &rawDocument{
		Services: map[string]rawService{
			"a": {Domain: "a.test", Server: "ghost"},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected an error for a service referencing an unknown server")
	}
}

func TestCompileDefaultServerIsSynthesized(t *testing.T) {
	cfg := mustCompile(t, &rawDocument{})
	srv, ok := cfg.Servers[defaultServerName]
	if !ok {
		t.Fatal("expected a synthesized default server")
	}
	if srv.HTTPPort != 80 || srv.HTTPSPort != 443 {
		t.Fatalf("expected default ports 80/443, got %d/%d", srv.HTTPPort, srv.HTTPSPort)
	}
	if !cfg.Empty {
		t.Fatal("expected Empty=true for a document with no services")
	}
}
