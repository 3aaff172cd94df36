// ABOUTME: Language-based defaults for container image and command
// ABOUTME: Fills unset Config fields from the project language and gateway config

package containers

import (
	"strconv"
	"strings"

	"github.com/gigahard/vibecode-gateway/internal/config"
)

const fallbackLanguage = "python"

// defaultCommand returns the command used when a Config omits one. A language
// without its own entrypoint serves the workspace over HTTP on port.
func defaultCommand(language string, port int) []string {
	switch language {
	case "python":
		return []string{"python", "main.py"}
	case "javascript":
		return []string{"node", "index.js"}
	case "go":
		return []string{"go", "run", "main.go"}
	case "java":
		return []string{"java", "-jar", "app.jar"}
	default:
		return []string{"python", "-m", "http.server", strconv.Itoa(port)}
	}
}

// canonicalLanguage lowercases language and folds common aliases.
func canonicalLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	switch l {
	case "js", "node", "nodejs", "typescript":
		return "javascript"
	case "golang":
		return "go"
	}
	return l
}

// normalizeLanguage maps a project's display language onto an image key.
func normalizeLanguage(language string, images map[string]string) string {
	l := canonicalLanguage(language)
	if _, ok := images[l]; ok {
		return l
	}
	return fallbackLanguage
}

// withDefaults returns cfg with every empty field filled in.
func withDefaults(cfg Config, language string, defaults config.ContainersConfig) Config {
	lang := normalizeLanguage(language, defaults.Images)

	if cfg.Image == "" {
		cfg.Image = defaults.Images[lang]
	}
	if cfg.Image == "" {
		cfg.Image = "python:3.9-slim"
	}
	if cfg.Port <= 0 {
		cfg.Port = defaults.Port
	}
	if len(cfg.Command) == 0 {
		cfg.Command = defaultCommand(canonicalLanguage(language), cfg.Port)
	}
	if cfg.CPULimit == "" {
		cfg.CPULimit = defaults.CPULimit
	}
	if cfg.MemoryLimit == "" {
		cfg.MemoryLimit = defaults.MemoryLimit
	}
	if cfg.StorageSize == "" {
		cfg.StorageSize = defaults.StorageSize
	}
	return cfg
}
