package vfs

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath validates and canonicalizes a project-relative path.
// Virtual paths always use forward slashes and never escape the project
// root.
func NormalizePath(filePath string) (string, error) {
	trimmed := strings.TrimSpace(filePath)
	if trimmed == "" {
		return "", fmt.Errorf("path is required")
	}

	trimmed = strings.TrimPrefix(trimmed, "/")
	cleaned := path.Clean(trimmed)

	// Prevent path traversal
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path traversal detected: %s", filePath)
	}
	if cleaned == "." {
		return "", fmt.Errorf("invalid path: %s", filePath)
	}
	if containsSuspiciousPattern(cleaned) {
		return "", fmt.Errorf("suspicious path pattern detected: %s", filePath)
	}

	return cleaned, nil
}

// containsSuspiciousPattern checks for dangerous path patterns
func containsSuspiciousPattern(p string) bool {
	suspiciousPatterns := []string{
		"/../",    // Path traversal
		".ssh/",   // SSH keys
		".aws/",   // AWS credentials
		"id_rsa",  // SSH private key
		".env",    // Environment vars
		"secrets", // Secrets
	}

	lowerPath := strings.ToLower(p)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(lowerPath, pattern) {
			return true
		}
	}

	return false
}
