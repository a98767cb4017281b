// Package main provides tests for the siteprobe CLI
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/commjoen/siteprobe/internal/config"
	"github.com/commjoen/siteprobe/internal/output"
	"github.com/commjoen/siteprobe/internal/reachability"
	"github.com/commjoen/siteprobe/pkg/models"
)

func TestCommandFlags(t *testing.T) {
	flags := []struct {
		cmdName string
		name    string
		short   string
	}{
		{"root", "verbose", "v"},
		{"root", "timeout", "t"},
		{"root", "env-file", ""},
		{"check", "format", "f"},
		{"check", "out", "o"},
		{"check", "dns", ""},
		{"check", "whois", ""},
		{"check", "timing", ""},
		{"check", "fail-on-down", ""},
		{"serve", "addr", ""},
	}

	for _, flag := range flags {
		t.Run(flag.cmdName+"/"+flag.name, func(t *testing.T) {
			var f = rootCmd.PersistentFlags().Lookup(flag.name)
			switch flag.cmdName {
			case "check":
				f = checkCmd.Flags().Lookup(flag.name)
			case "serve":
				f = serveCmd.Flags().Lookup(flag.name)
			}
			if f == nil {
				t.Errorf("Flag --%s should exist on %s", flag.name, flag.cmdName)
				return
			}
			if f.Shorthand != flag.short {
				t.Errorf("Flag --%s should have short form -%s, got -%s", flag.name, flag.short, f.Shorthand)
			}
		})
	}
}

// executeRoot runs the root command with args after restoring every flag to
// its default, so flags parsed by earlier tests do not leak into this one
func executeRoot(t *testing.T, stdout, stderr io.Writer, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	return rootCmd.Execute()
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestRootCmdUsage(t *testing.T) {
	var buf bytes.Buffer
	if err := executeRoot(t, &buf, &buf, "--help"); err != nil {
		t.Errorf("Help command failed: %v", err)
	}

	out := buf.String()
	for _, expected := range []string{"siteprobe", "check", "serve", "--timeout", "synthetic"} {
		if !strings.Contains(out, expected) {
			t.Errorf("Help output should contain %q", expected)
		}
	}
}

func TestRootCmdVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := executeRoot(t, &buf, &buf, "--version"); err != nil {
		t.Errorf("Version command failed: %v", err)
	}

	if !strings.Contains(buf.String(), "siteprobe version") {
		t.Errorf("Version output should contain 'siteprobe version', got %q", buf.String())
	}
}

func TestRootCmdVersionAfterHelp(t *testing.T) {
	var help bytes.Buffer
	if err := executeRoot(t, &help, &help, "--help"); err != nil {
		t.Fatalf("Help command failed: %v", err)
	}

	var buf bytes.Buffer
	if err := executeRoot(t, &buf, &buf, "--version"); err != nil {
		t.Fatalf("Version command failed: %v", err)
	}
	if !strings.Contains(buf.String(), "siteprobe version") {
		t.Errorf("Version output should not be help text, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "Usage:") {
		t.Errorf("Help flag leaked into the version run: %q", buf.String())
	}
}

func TestInitVersionPreservesLDFLAGS(t *testing.T) {
	originalVersion := version
	defer func() { version = originalVersion }()

	// When version is set via LDFLAGS (not "dev"), initVersion should not change it
	version = "v1.2.3"
	initVersion()

	if version != "v1.2.3" {
		t.Errorf("initVersion should preserve LDFLAGS version, got %q, want %q", version, "v1.2.3")
	}
}

func TestCheckLatestVersion(t *testing.T) {
	originalVersion, originalURL := version, releasesURL
	defer func() { version, releasesURL = originalVersion, originalURL }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "siteprobe/") {
			t.Errorf("Unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0","name":"v1.4.0"}`))
	}))
	defer server.Close()
	releasesURL = server.URL

	version = "dev"
	if _, err := checkLatestVersion(context.Background()); err == nil {
		t.Error("Expected an error for development builds")
	}

	version = "v1.3.0"
	latest, err := checkLatestVersion(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if latest != "1.4.0" {
		t.Errorf("Expected latest 1.4.0, got %q", latest)
	}

	if tmpl := getVersionTemplate(); !strings.Contains(tmpl, "A newer version is available: 1.4.0") {
		t.Errorf("Version template should announce the update, got %q", tmpl)
	}
}

func TestCheckLatestVersionHTTPError(t *testing.T) {
	originalVersion, originalURL := version, releasesURL
	defer func() { version, releasesURL = originalVersion, originalURL }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	releasesURL = server.URL
	version = "v1.0.0"

	if _, err := checkLatestVersion(context.Background()); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			cfg := config.Default()
			cfg.LogFormat = format
			logger, err := newLogger(cfg)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("Expected a logger")
			}
		})
	}

	cfg := config.Default()
	cfg.LogLevel = "loud"
	if _, err := newLogger(cfg); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestCheckCommandJSON(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><head><title>Probe target</title></head><body><h1>Hi</h1></body></html>`))
	}))
	defer site.Close()

	var stdout, stderr bytes.Buffer
	if err := executeRoot(t, &stdout, &stderr, "check", site.URL, "--format", "json", "--dns=false", "--timeout", "5s"); err != nil {
		t.Fatalf("check failed: %v (stderr: %s)", err, stderr.String())
	}

	var result models.ProbeResponse
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("Output should be JSON: %v\n%s", err, stdout.String())
	}
	if result.Website.Status != models.StatusUp {
		t.Errorf("Expected status up, got %s", result.Website.Status)
	}
	if result.SEO.TitleTag.Content == nil || *result.SEO.TitleTag.Content != "Probe target" {
		t.Errorf("Unexpected title %v", result.SEO.TitleTag.Content)
	}
	if result.Website.DNS != nil {
		t.Error("DNS inspection should be disabled")
	}
}

func TestCheckCommandFailOnDown(t *testing.T) {
	site := httptest.NewServer(http.NotFoundHandler())
	target := site.URL
	site.Close()

	var stdout bytes.Buffer
	err := executeRoot(t, &stdout, &stdout, "check", target, "--format", "csv", "--dns=false", "--fail-on-down")

	if err == nil || !strings.Contains(err.Error(), "is down") {
		t.Errorf("Expected a down error, got %v", err)
	}
	if !strings.Contains(stdout.String(), ",down,") {
		t.Errorf("Result should still be printed, got %q", stdout.String())
	}
}

func TestCheckCommandRequiresURL(t *testing.T) {
	var buf bytes.Buffer
	if err := executeRoot(t, &buf, &buf, "check"); err == nil {
		t.Error("Expected an error without a URL")
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("SITEPROBE_TIMING_MODE", "estimated")

	if err := checkCmd.ParseFlags([]string{"--timeout", "4s", "--whois", "--timing", "traced"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	t.Cleanup(func() { resetFlags(rootCmd) })

	cfg, err := loadConfig(checkCmd)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Timeout != 4*time.Second {
		t.Errorf("Expected timeout 4s, got %s", cfg.Timeout)
	}
	if !cfg.WHOISEnabled {
		t.Error("Expected WHOIS to be enabled by flag")
	}
	if cfg.TimingMode != reachability.TimingTraced {
		t.Errorf("Expected traced timing, got %s", cfg.TimingMode)
	}
}

func TestOutputResultsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	outputFile = path
	defer func() { outputFile = "" }()

	formatter := &output.JSONFormatter{}
	result := &models.ProbeResponse{Website: models.WebsiteMetrics{URL: "https://example.com", Status: models.StatusUp}}
	if err := outputResults(&bytes.Buffer{}, formatter, result); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if !strings.Contains(string(data), "https://example.com") {
		t.Errorf("Output file should contain the URL, got %q", data)
	}
}

func TestValidateOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty path", "", false},
		{"simple filename", "results.json", false},
		{"relative path", "./output/results.json", false},
		{"parent directory", "../results.json", false},
		{"absolute path home", "/home/user/results.json", false},
		{"sensitive etc", "/etc/passwd", true},
		{"sensitive var", "/var/log/test.log", true},
		{"sensitive usr", "/usr/bin/test", true},
		{"sensitive root", "/root/test", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutputPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateOutputPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
