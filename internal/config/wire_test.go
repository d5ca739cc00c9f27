package config_test

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Goliworks/Quark/internal/config"
)

func TestServerCBORRoundTripPreservesRouteTables(t *testing.T) {
	srv := &config.Server{
		Name:         "main",
		HTTPPort:     80,
		HTTPSPort:    443,
		ProxyTimeout: 30 * time.Second,
		AutoTLS:      []string{"example.com"},
		StrictTargets: map[string]config.TargetType{
			"example.com":    config.RedirectionTarget{Target: "https://example.com", Code: 301},
			"example.com/fs": config.FileServerTarget{Root: "/srv/www", SourceURL: "/fs", Forbidden: []string{"secret"}},
		},
		PrefixTargets: map[string]config.TargetType{
			"example.com/api": config.LocationTarget{ID: 7, Backends: []string{"http://10.0.0.1:8080"}},
		},
	}

	data, err := cbor.Marshal(srv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got config.Server
	if err := cbor.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Name != "main" || got.HTTPPort != 80 || got.HTTPSPort != 443 {
		t.Fatalf("scalar fields mismatch: %+v", got)
	}
	if got.ProxyTimeout != 30*time.Second {
		t.Fatalf("ProxyTimeout = %v", got.ProxyTimeout)
	}

	redir, ok := got.StrictTargets["example.com"].(config.RedirectionTarget)
	if !ok || redir.Target != "https://example.com" || redir.Code != 301 {
		t.Fatalf("redirection target not preserved: %+v", got.StrictTargets["example.com"])
	}

	fs, ok := got.StrictTargets["example.com/fs"].(config.FileServerTarget)
	if !ok || fs.Root != "/srv/www" || len(fs.Forbidden) != 1 || fs.Forbidden[0] != "secret" {
		t.Fatalf("file server target not preserved: %+v", got.StrictTargets["example.com/fs"])
	}

	loc, ok := got.PrefixTargets["example.com/api"].(config.LocationTarget)
	if !ok || loc.ID != 7 || len(loc.Backends) != 1 || loc.Backends[0] != "http://10.0.0.1:8080" {
		t.Fatalf("location target not preserved: %+v", got.PrefixTargets["example.com/api"])
	}

	// prefixKeysDesc is unexported and derived; confirm it was rebuilt
	// from PrefixTargets by checking PrefixKeysDescending is non-empty.
	if keys := got.PrefixKeysDescending(); len(keys) != 1 || keys[0] != "example.com/api" {
		t.Fatalf("PrefixKeysDescending = %v", keys)
	}
}

func TestServiceConfigCBORRoundTrip(t *testing.T) {
	cfg := &config.ServiceConfig{
		Global: config.Global{MaxConn: 100, Backlog: 4096},
		Servers: map[string]*config.Server{
			"main": {
				Name:      "main",
				HTTPPort:  80,
				HTTPSPort: 443,
				StrictTargets: map[string]config.TargetType{
					"a.example.com": config.RedirectionTarget{Target: "https://a.example.com", Code: 301},
				},
				PrefixTargets: map[string]config.TargetType{},
			},
		},
	}

	data, err := cbor.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got config.ServiceConfig
	if err := cbor.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	srv, ok := got.Servers["main"]
	if !ok {
		t.Fatal("expected main server to survive round trip")
	}
	if _, ok := srv.StrictTargets["a.example.com"]; !ok {
		t.Fatal("expected route to survive round trip")
	}
}
