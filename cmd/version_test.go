package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/taskora/taskora/internal/config"
)

func TestVersionCmd(t *testing.T) {
	origVersion, origBuild, origCommit := Version, BuildTime, GitCommit
	defer func() {
		Version, BuildTime, GitCommit = origVersion, origBuild, origCommit
	}()

	Version = "1.2.3"
	BuildTime = "2026-01-01T00:00:00Z"
	GitCommit = "abc123"

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("RunE() = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"taskora 1.2.3", "Build Time: 2026-01-01T00:00:00Z", "Git Commit: abc123"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot: %s", want, out)
		}
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		host    string
		port    int
		want    string
		wantErr bool
	}{
		{name: "from config", host: "0.0.0.0", port: 8000, want: "0.0.0.0:8000"},
		{name: "flag overrides config", flag: "127.0.0.1:9000", host: "0.0.0.0", port: 8000, want: "127.0.0.1:9000"},
		{name: "port only flag", flag: ":8080", want: ":8080"},
		{name: "missing port", flag: "localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := serveAddr
			defer func() { serveAddr = orig }()
			serveAddr = tt.flag

			cfg := &config.Config{Host: tt.host, Port: tt.port}

			got, err := listenAddr(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("listenAddr() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("listenAddr() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("listenAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRateBurst(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{name: "unset", env: "", want: 0},
		{name: "valid", env: "120", want: 120},
		{name: "not a number", env: "lots", want: 0},
		{name: "negative", env: "-5", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TASKORA_RATE_BURST", tt.env)
			if got := parseRateBurst(); got != tt.want {
				t.Errorf("parseRateBurst() = %d, want %d", got, tt.want)
			}
		})
	}
}
