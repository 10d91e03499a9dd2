package utils

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"

	"github.com/aelpxy/dockup/internal/constants"
)

func IsValidPort(port int) bool {
	return port >= constants.MinPort && port <= constants.MaxPort
}

func IsValidEmail(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// ValidateDirectory checks that path resolves to a readable directory and
// returns its cleaned absolute form.
func ValidateDirectory(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	absPath, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	cleanPath := filepath.Clean(absPath)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", cleanPath)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return "", fmt.Errorf("directory is not readable: %w", err)
	}
	f.Close()

	return cleanPath, nil
}
