// ABOUTME: Entry point for vibecode-gateway, the auth and API gateway for the vibecode web IDE
// ABOUTME: Cobra commands for serving, config setup, token minting, and health checks

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gigahard/vibecode-gateway/internal/auth"
	"github.com/gigahard/vibecode-gateway/internal/config"
	"github.com/gigahard/vibecode-gateway/internal/gateway"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
       _ _                        _
__   _(_) |__   ___  ___ ___   __| | ___
\ \ / / | '_ \ / _ \/ __/ _ \ / _' |/ _ \
 \ V /| | |_) |  __/ (_| (_) | (_| |  __/
  \_/ |_|_.__/ \___|\___\___/ \__,_|\___|
`

// getConfigPath returns the path to the gateway config file.
// Priority: --config flag > VIBECODE_CONFIG env var > XDG_CONFIG_HOME/vibecode/gateway.yaml > ~/.config/vibecode/gateway.yaml
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("VIBECODE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "vibecode", "gateway.yaml")
}

// getDataPath returns the path to the vibecode data directory.
// Priority: XDG_DATA_HOME/vibecode > ~/.local/share/vibecode
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "vibecode")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "vibecode-gateway",
		Short:         "Auth and API gateway for the vibecode web IDE",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default $VIBECODE_CONFIG or ~/.config/vibecode/gateway.yaml)")

	configPath := func() string { return getConfigPath(configFlag) }

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the gateway server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), configPath())
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a new config file interactively",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runInit(bufio.NewReader(cmd.InOrStdin()), configPath())
			},
		},
		newTokenCmd(configPath),
		newHashPasswordCmd(),
		&cobra.Command{
			Use:   "health",
			Short: "Check gateway health",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runHealth(cmd.Context(), configPath())
			},
		},
	)
	return root
}

func runServe(ctx context.Context, configPath string) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Upstream:  ")
	if cfg.Proxy.UpstreamURL != "" {
		cyan.Println(cfg.Proxy.UpstreamURL)
	} else {
		gray.Println("(none)")
	}

	var providers []string
	if cfg.OAuth.GitHub.Enabled() {
		providers = append(providers, "github")
	}
	if cfg.OAuth.Google.Enabled() {
		providers = append(providers, "google")
	}
	green.Print("    ▶ ")
	fmt.Printf("OAuth:     %s\n", strings.Join(providers, ", "))
	if cfg.Auth.DevLogin {
		yellow.Println("    ! dev_login is on: any username/password signs in")
	}
	fmt.Println()

	logger.Info("starting vibecode-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func newTokenCmd(configPath func() string) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a token for a local user (for scripts and testing)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(username) == "" {
				return errors.New("--user is required")
			}
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			issuer, err := auth.NewIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
			if err != nil {
				return fmt.Errorf("creating token issuer: %w", err)
			}
			token, err := issuer.Issue(auth.LocalUser(strings.TrimSpace(username)))
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "local username to issue the token for")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.local_users",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func runHealth(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.HTTPAddr
	if host, port, ok := strings.Cut(addr, ":"); ok && (host == "" || host == "0.0.0.0") {
		addr = "localhost:" + port
	}

	url := fmt.Sprintf("http://%s/health", addr)
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
