package analysis

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed prompts/battle_analysis.txt
var defaultPrompt string

// DefaultPrompt returns the built-in extraction prompt.
func DefaultPrompt() string {
	return defaultPrompt
}

// LoadPrompt reads the prompt at path, or returns the built-in prompt when path is empty.
func LoadPrompt(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultPrompt, nil
	}
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return "", fmt.Errorf("analysis: read prompt %s: %w", path, errRead)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("analysis: prompt %s is empty", path)
	}
	return prompt, nil
}

// ExtractionVersion derives the result schema version from a prompt version
// such as "2.1". Unparseable versions map to 1.
func ExtractionVersion(promptVersion string) int {
	major, _, _ := strings.Cut(strings.TrimSpace(promptVersion), ".")
	major = strings.TrimPrefix(strings.ToLower(major), "v")
	n := 0
	for _, r := range major {
		if r < '0' || r > '9' {
			return 1
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 1
	}
	return n
}
