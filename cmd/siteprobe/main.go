// siteprobe checks the health, performance and SEO signals of a website
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/commjoen/siteprobe/internal/config"
	"github.com/commjoen/siteprobe/internal/metrics"
	"github.com/commjoen/siteprobe/internal/output"
	"github.com/commjoen/siteprobe/internal/probe"
	"github.com/commjoen/siteprobe/internal/reachability"
	"github.com/commjoen/siteprobe/internal/server"
	"github.com/commjoen/siteprobe/pkg/models"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration
	envFile string

	// check flags
	format      string
	outputFile  string
	enableDNS   bool
	enableWhois bool
	timingMode  string
	failOnDown  bool

	// serve flags
	addr string

	// Version information (set during build)
	version = "dev"
	// GitHub repository for version checks
	githubRepo = "commjoen/siteprobe"
	// releasesURL is the endpoint queried for the latest release
	releasesURL = fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", githubRepo)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "siteprobe",
	Short:   "Website health, performance and SEO probe",
	Version: version,
	Long: `siteprobe fetches a website once and reports whether it is up, how long
each phase of the request took, the state of its TLS certificate, and the SEO
signals found in its markup.

Performance, accessibility and best-practices scores and the Core Web Vitals
are synthetic estimates derived from the measured load time, not browser
measurements.

Configuration is read from SITEPROBE_* environment variables and an optional
.env file; flags override both.`,
	Example: `  # Probe a site and print a report
  siteprobe check example.com

  # JSON output with WHOIS data
  siteprobe check https://example.com --format json --whois

  # Run the HTTP API
  siteprobe serve --addr :8080`,
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Probe a single URL and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the probe HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	initVersion()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Timeout for each individual check")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file")

	checkCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, or csv")
	checkCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Write output to file (default: stdout)")
	checkCmd.Flags().BoolVar(&enableDNS, "dns", true, "Inspect A/AAAA/CNAME records of the target host")
	checkCmd.Flags().BoolVar(&enableWhois, "whois", false, "Enable WHOIS lookups for registration data")
	checkCmd.Flags().StringVar(&timingMode, "timing", "", "Timing mode: estimated or traced")
	checkCmd.Flags().BoolVar(&failOnDown, "fail-on-down", false, "Exit non-zero when the site is down")

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from SITEPROBE_ADDR or :8080)")

	rootCmd.AddCommand(checkCmd, serveCmd)

	// Override the default version template to include update check
	rootCmd.SetVersionTemplate(getVersionTemplate())
}

// initVersion falls back to the module version recorded in the build info
// when no version was injected through ldflags
func initVersion() {
	if version != "dev" && version != "" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
		rootCmd.Version = version
	}
}

// getVersionTemplate returns a custom version template with update checking
func getVersionTemplate() string {
	versionInfo := fmt.Sprintf("siteprobe version %s\n", version)

	// Check for updates (with timeout to avoid hanging)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	latestVersion, err := checkLatestVersion(ctx)
	if err != nil {
		if verbose {
			versionInfo += fmt.Sprintf("(unable to check for updates: %v)\n", err)
		}
	} else if latestVersion != "" && latestVersion != strings.TrimPrefix(version, "v") {
		versionInfo += fmt.Sprintf("\n⚠️  A newer version is available: %s\n", latestVersion)
		versionInfo += fmt.Sprintf("Download: https://github.com/%s/releases/latest\n", githubRepo)
		versionInfo += fmt.Sprintf("Update:   go install github.com/%s/cmd/siteprobe@latest\n", githubRepo)
	} else {
		versionInfo += "✓ You are running the latest version\n"
	}

	return versionInfo
}

// GitHubRelease represents a GitHub release API response
type GitHubRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	URL     string `json:"html_url"`
}

// checkLatestVersion queries GitHub API for the latest release
func checkLatestVersion(ctx context.Context) (string, error) {
	if version == "dev" || version == "" {
		return "", fmt.Errorf("development build")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releasesURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Set User-Agent to avoid rate limiting
	req.Header.Set("User-Agent", fmt.Sprintf("siteprobe/%s", version))
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	client := &http.Client{
		Timeout: 3 * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("failed to parse release info: %w", err)
	}

	// Normalize version tags (remove 'v' prefix if present)
	return strings.TrimPrefix(release.TagName, "v"), nil
}

// loadConfig reads the environment and applies flags that were set explicitly
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("dns") {
		cfg.DNSEnabled = enableDNS
	}
	if flags.Changed("whois") {
		cfg.WHOISEnabled = enableWhois
	}
	if flags.Changed("timing") {
		cfg.TimingMode = reachability.TimingMode(strings.ToLower(timingMode))
	}
	if flags.Changed("addr") {
		cfg.Addr = addr
	}
	if verbose {
		cfg.LogLevel = "debug"
		cfg.LogFormat = "console"
	}

	return cfg, cfg.Validate()
}

// newLogger builds a zap logger writing to stderr
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zc zap.Config
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Received interrupt, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Create output formatter
	formatter, err := output.NewFormatter(format)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext(logger)
	defer cancel()

	prober := probe.FromConfig(cfg, logger, nil)
	result, err := prober.Probe(ctx, args[0])
	if err != nil {
		return err
	}

	if err := outputResults(cmd.OutOrStdout(), formatter, result); err != nil {
		return err
	}

	if failOnDown && result.Website.Status == models.StatusDown {
		return fmt.Errorf("%s is down", result.Website.URL)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.GinMode)

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder()
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	prober := probe.FromConfig(cfg, logger, recorder)
	logger.Info("Probe service configured",
		zap.Duration("timeout", cfg.Timeout),
		zap.String("timing_mode", string(cfg.TimingMode)),
		zap.Bool("dns", cfg.DNSEnabled),
		zap.Bool("whois", cfg.WHOISEnabled),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)

	return server.New(prober, recorder, logger).Run(ctx, cfg.Addr)
}

// validateOutputPath performs security validation on the output file path
func validateOutputPath(path string) error {
	if path == "" {
		return nil
	}

	// Clean the path to resolve any . or .. components
	cleanPath := filepath.Clean(path)

	if filepath.IsAbs(cleanPath) {
		sensitivePatterns := []string{"/etc/", "/var/", "/usr/", "/bin/", "/sbin/", "/root/"}
		for _, pattern := range sensitivePatterns {
			if strings.HasPrefix(cleanPath, pattern) {
				return fmt.Errorf("refusing to write to sensitive system location: %s", cleanPath)
			}
		}
	}

	return nil
}

func outputResults(stdout io.Writer, formatter output.Formatter, result *models.ProbeResponse) error {
	if outputFile == "" {
		return formatter.Write(stdout, result)
	}

	// Validate the output path for security
	if err := validateOutputPath(outputFile); err != nil {
		return err
	}

	// #nosec G304 -- User-provided output file path is intentional for CLI tool
	f, err := os.Create(filepath.Clean(outputFile))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return formatter.Write(f, result)
}
