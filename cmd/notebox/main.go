// ABOUTME: Entry point for the notebox notes server
// ABOUTME: Dispatches serve, migrate, secret, and health subcommands

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/notebox/internal/config"
	"github.com/2389/notebox/internal/server"
	"github.com/2389/notebox/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
             _       _
 _ __   ___ | |_ ___| |__   _____  __
| '_ \ / _ \| __/ _ \ '_ \ / _ \ \/ /
| | | | (_) | ||  __/ |_) | (_) >  <
|_| |_|\___/ \__\___|_.__/ \___/_/\_\
`

const defaultConfigPath = "notebox.yaml"

// getConfigPath returns the config file path and whether it was set
// explicitly. Priority: NOTEBOX_CONFIG env var > ./notebox.yaml
func getConfigPath() (string, bool) {
	if envPath := os.Getenv("NOTEBOX_CONFIG"); envPath != "" {
		return envPath, true
	}
	return defaultConfigPath, false
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; a missing explicit file is an error.
func loadConfig() (*config.Config, string, error) {
	path, explicit := getConfigPath()

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, "(defaults)", fmt.Errorf("validating default config: %w", err)
	}
	return cfg, "(defaults)", nil
}

func usage() {
	fmt.Println("Usage: notebox <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the HTTP server (default)")
	fmt.Println("  migrate   Apply database migrations and exit")
	fmt.Println("  secret    Print a new random JWT signing secret")
	fmt.Println("  health    Check a running server's health")
	fmt.Println("  help      Show this message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  NOTEBOX_CONFIG      config file path (default ./notebox.yaml)")
	fmt.Println("  NOTEBOX_JWT_SECRET  signing secret when auth.jwt_secret is empty")
}

func main() {
	// A .env file is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx)
	case "migrate":
		err = runMigrate()
	case "secret":
		err = runSecret()
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Images:    %s\n", cfg.Storage.ImagesDir)
	green.Print("    ▶ ")
	if cfg.Tailscale.Enabled {
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	fmt.Println()

	logger.Info("starting notebox",
		"version", version,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

func runMigrate() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if err := store.MigrateConfig(cfg.Database); err != nil {
		return err
	}
	color.Green("migrations applied (%s)", cfg.Database.Driver)
	return nil
}

// generateSecret returns 32 random bytes encoded as unpadded base64url.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func runSecret() error {
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	fmt.Println(secret)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
