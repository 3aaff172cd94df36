// ABOUTME: Interactive `init` command that writes a starter gateway config
// ABOUTME: Generates a random JWT secret and prompts for addresses and OAuth credentials

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gigahard/vibecode-gateway/internal/config"
)

// initAnswers holds everything runInit collects before rendering the file.
type initAnswers struct {
	HTTPAddr     string
	DBPath       string
	JWTSecret    string
	FrontendURL  string
	UpstreamURL  string
	GitHubID     string
	GitHubSecret string
	GoogleID     string
	GoogleSecret string
	DevLogin     bool
	LogLevel     string
	LogFormat    string
}

func runInit(reader *bufio.Reader, defaultConfigPath string) error {
	fmt.Println("vibecode-gateway configuration setup")
	fmt.Println("====================================")
	fmt.Println()

	defaultDbPath := filepath.Join(getDataPath(), "vibecode.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := randomSecret()
	if err != nil {
		return err
	}

	var a initAnswers
	a.JWTSecret = secret

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", "0.0.0.0:5000")
	a.DBPath = prompt(reader, "SQLite database path", defaultDbPath)
	a.UpstreamURL = prompt(reader, "Upstream API URL (leave empty to disable proxy)", "")

	fmt.Println("\n--- Sign-in Configuration ---")
	a.FrontendURL = prompt(reader, "Frontend URL after login", "/")
	a.GitHubID = prompt(reader, "GitHub client ID (leave empty to disable)", "")
	if a.GitHubID != "" {
		a.GitHubSecret = prompt(reader, "GitHub client secret", "")
	}
	a.GoogleID = prompt(reader, "Google client ID (leave empty to disable)", "")
	if a.GoogleID != "" {
		a.GoogleSecret = prompt(reader, "Google client secret", "")
	}
	a.DevLogin = yes(prompt(reader, "Enable dev login (any username/password)?", "no"))

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  vibecode-gateway serve\n")

	return nil
}

// renderConfig produces the YAML config file for the collected answers.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# vibecode-gateway configuration\n")
	cfg.WriteString("# Generated by vibecode-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", a.HTTPAddr))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", a.DBPath))

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", a.JWTSecret))
	cfg.WriteString("  token_ttl: \"24h\"\n")
	cfg.WriteString(fmt.Sprintf("  dev_login: %t\n\n", a.DevLogin))

	cfg.WriteString("oauth:\n")
	cfg.WriteString(fmt.Sprintf("  frontend_url: %q\n", a.FrontendURL))
	if a.GitHubID != "" {
		cfg.WriteString("  github:\n")
		cfg.WriteString(fmt.Sprintf("    client_id: %q\n", a.GitHubID))
		cfg.WriteString(fmt.Sprintf("    client_secret: %q\n", a.GitHubSecret))
		cfg.WriteString(fmt.Sprintf("    redirect_uri: %q\n", config.DefaultGitHubRedirectURI))
	}
	if a.GoogleID != "" {
		cfg.WriteString("  google:\n")
		cfg.WriteString(fmt.Sprintf("    client_id: %q\n", a.GoogleID))
		cfg.WriteString(fmt.Sprintf("    client_secret: %q\n", a.GoogleSecret))
		cfg.WriteString(fmt.Sprintf("    redirect_uri: %q\n", config.DefaultGoogleRedirectURI))
	}
	cfg.WriteString("\n")

	if a.UpstreamURL != "" {
		cfg.WriteString("proxy:\n")
		cfg.WriteString(fmt.Sprintf("  upstream_url: %q\n", a.UpstreamURL))
		cfg.WriteString("  timeout: \"30s\"\n\n")
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))

	return cfg.String()
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
