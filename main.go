package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	webview "github.com/webview/webview_go"

	"github.com/kartoza/exoplanet-portal/internal/config"
	"github.com/kartoza/exoplanet-portal/internal/gateway"
	"github.com/kartoza/exoplanet-portal/internal/logging"
	"github.com/kartoza/exoplanet-portal/internal/server"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	apiURL    string
	logLevel  string
	logFormat string
	envFile   string
}

var serveFlags struct {
	port     int
	dataDir  string
	headless bool
}

// cfg is resolved once in PersistentPreRunE from .env, environment and flags
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "exoplanet-portal",
	Short: "Exoplanet detection portal",
	Long: "Serves a form-driven portal that submits transit observations to the\n" +
		"exoplanet prediction API and presents the detection result.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.apiURL, "api-url", "", "Prediction API base URL (overrides EXO_API_URL)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&rootFlags.envFile, "env-file", ".env", "Optional .env file to load")

	f := rootCmd.Flags()
	f.IntVar(&serveFlags.port, "port", 8080, "HTTP server port")
	f.StringVar(&serveFlags.dataDir, "data-dir", "", "Directory for the detection archive")
	f.BoolVar(&serveFlags.headless, "headless", false, "Run in headless mode (no GUI window)")

	rootCmd.AddCommand(predictCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig merges .env, the environment and explicit flags, then sets up logging
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(rootFlags.envFile)
	if err != nil {
		return err
	}
	loaded.Version = version

	if rootFlags.apiURL != "" {
		loaded.APIBaseURL = rootFlags.apiURL
	}
	if rootFlags.logLevel != "" {
		loaded.LogLevel = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		loaded.LogFormat = rootFlags.logFormat
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		loaded.Port = serveFlags.port
	}
	if serveFlags.dataDir != "" {
		loaded.DataDir = serveFlags.dataDir
	}
	if loaded.DataDir == "" {
		dir, err := config.DataStoreDir()
		if err != nil {
			slog.Warn("falling back to ./data", "error", err)
			dir = "./data"
		}
		loaded.DataDir = dir
	}

	logging.Init(logging.ParseLevel(loaded.LogLevel), loaded.LogFormat, cmd.ErrOrStderr())
	cfg = loaded
	return cfg.Validate()
}

// newGateway builds the prediction API client for the resolved config
func newGateway() (*gateway.Client, error) {
	return gateway.New(cfg.APIBaseURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(logging.New("gateway")),
		gateway.WithUserAgent("exoplanet-portal/"+cfg.Version),
	)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.New("main")

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Port, 10)
	if err != nil {
		return fmt.Errorf("failed to find available port: %w", err)
	}
	if availablePort != cfg.Port {
		logger.Info("port in use, using another", "requested", cfg.Port, "port", availablePort)
	}
	cfg.Port = availablePort

	logger.Info("exoplanet portal starting", "version", version, "port", cfg.Port, "data_dir", cfg.DataDir)

	client, err := newGateway()
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	// Create and start the server
	srv, err := server.New(cfg, client)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(serverURL, 10*time.Second)

	if serveFlags.headless {
		// Headless mode: wait for signal or error
		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			logger.Info("shutting down", "signal", sig)
			return srv.Stop()
		}
	}

	// GUI mode: open embedded WebView window
	logger.Info("opening application window")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Exoplanet Detection Portal")
	w.SetSize(1280, 800, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", "error", err)
			}
		case sig := <-stop:
			logger.Info("shutting down", "signal", sig)
			w.Terminate()
		}
	}()

	// Run blocks until the window is closed
	w.Run()

	logger.Info("window closed, shutting down server")
	return srv.Stop()
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	slog.Warn("server may not be ready", "url", url)
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
