package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/server"
	"github.com/alfredjeanlab/podium/internal/store/memory"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

// podiumURL starts a podium HTTP server backed by the memory store.
func podiumURL(t *testing.T) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := workflow.New(memory.New(), workflow.WithLogger(logger))
	ts := httptest.NewServer(server.New(svc, server.WithLogger(logger)).NewHTTPHandler(cliToken))
	t.Cleanup(ts.Close)
	return ts.URL
}

// downURL starts a server whose health endpoint reports 503.
func downURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"store unavailable"}`))
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func runRemote(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	defer cmd.SetOut(nil)
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

func setAddFlags(t *testing.T, flags map[string]string) {
	t.Helper()
	setFlags(t, flags, remoteAddCmd.Flags().Set)
	t.Cleanup(func() {
		for k := range flags {
			def := remoteAddCmd.Flags().Lookup(k).DefValue
			_ = remoteAddCmd.Flags().Set(k, def)
		}
	})
}

func TestRemotesConfig_SaveLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if cfg, err := loadRemotesConfig(); err != nil || cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Fatalf("empty load = %+v, %v", cfg, err)
	}

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod": {URL: "https://podium.example.com", GRPCAddr: "podium.example.com:9090", Token: "tok_abc", NATSURL: "nats://prod:4222"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" || got.Remotes["prod"] != in.Remotes["prod"] {
		t.Errorf("loaded %+v, want %+v", got, in)
	}

	path, _ := remoteConfigPath()
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Mode().Perm() != want {
			t.Errorf("%s permissions = %04o, want %04o", p, info.Mode().Perm(), want)
		}
	}
}

func TestNormalizeRemoteURL(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080", want: "http://localhost:8080"},
		{in: " https://podium.example.com/ ", want: "https://podium.example.com"},
		{in: "https://example.com/bureau/", want: "https://example.com/bureau"},
		{in: "localhost:8080", wantErr: true},
		{in: "ftp://podium.example.com", wantErr: true},
		{in: "https://", wantErr: true},
		{in: "https://podium.example.com?x=1", wantErr: true},
	} {
		got, err := normalizeRemoteURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("normalizeRemoteURL(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("normalizeRemoteURL(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestRemoteAdd_HealthCheck(t *testing.T) {
	up, down := podiumURL(t), downURL(t)
	for _, tc := range []struct {
		name      string
		url       string
		noVerify  bool
		wantSaved bool
	}{
		{"Healthy", up, false, true},
		{"Unhealthy", down, false, false},
		{"UnhealthyNoVerify", down, true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if tc.noVerify {
				setAddFlags(t, map[string]string{"no-verify": "true"})
			}

			_, err := runRemote(remoteAddCmd, "bureau", tc.url+"/")
			if tc.wantSaved && err != nil {
				t.Fatalf("add: %v", err)
			}
			if !tc.wantSaved && (err == nil || !strings.Contains(err.Error(), "--no-verify")) {
				t.Fatalf("add err = %v, want health check failure", err)
			}

			cfg, _ := loadRemotesConfig()
			r, ok := cfg.Remotes["bureau"]
			if ok != tc.wantSaved {
				t.Fatalf("saved = %v, want %v", ok, tc.wantSaved)
			}
			if ok && r.URL != tc.url {
				t.Errorf("URL = %q, want %q without trailing slash", r.URL, tc.url)
			}
		})
	}
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	url := podiumURL(t)
	setAddFlags(t, map[string]string{"token": "tok_verylongsecret"})

	if _, err := runRemote(remoteAddCmd, "prod", url); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := runRemote(remoteUseCmd, "prod"); err != nil {
		t.Fatalf("use: %v", err)
	}

	out, err := runRemote(remoteListCmd)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "* prod") || !strings.Contains(out, "tok_very**") || strings.Contains(out, "tok_verylongsecret") {
		t.Errorf("list output:\n%s", out)
	}

	out, err = runRemote(remoteShowCmd)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"(active)", url + "/v1/sign/<token>", "tok_very"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "tok_verylongsecret") {
		t.Errorf("show leaked the token:\n%s", out)
	}

	out, err = runRemote(remoteCheckCmd)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "http") || !strings.Contains(out, "ok") {
		t.Errorf("check output:\n%s", out)
	}

	if _, err := runRemote(remoteRemoveCmd, "prod"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	cfg, _ := loadRemotesConfig()
	if _, ok := cfg.Remotes["prod"]; ok || cfg.Active != "" {
		t.Errorf("after remove: %+v", cfg)
	}
}

func TestRemoteCheck_Unhealthy(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{"down": {URL: downURL(t)}}}); err != nil {
		t.Fatal(err)
	}

	out, err := runRemote(remoteCheckCmd, "down")
	if err == nil || !strings.Contains(err.Error(), "unhealthy over http") {
		t.Fatalf("check err = %v", err)
	}
	if !strings.Contains(out, "store unavailable") {
		t.Errorf("check output:\n%s", out)
	}
}

func TestRemoteErrorCases(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  *cobra.Command
		args []string
	}{
		{"UseUnknown", remoteUseCmd, []string{"ghost"}},
		{"RemoveUnknown", remoteRemoveCmd, []string{"ghost"}},
		{"ShowNoActive", remoteShowCmd, nil},
		{"CheckNoActive", remoteCheckCmd, nil},
		{"AddBadURL", remoteAddCmd, []string{"x", "not a url"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if _, err := runRemote(tc.cmd, tc.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
