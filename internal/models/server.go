package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ServerType identifies the wire protocol a registered server speaks
type ServerType string

const (
	ServerTypeKavita ServerType = "kavita" // server-native REST protocol
	ServerTypeOPDS   ServerType = "opds"   // feed-based protocol
)

// Server represents a registered remote media server.
// URL is stored normalized (explicit scheme, no trailing slash) at registration
// time and never re-derived elsewhere.
type Server struct {
	ID        string     `json:"id" badgerhold:"key"`
	Name      string     `json:"name" validate:"required"`
	URL       string     `json:"url" validate:"required,url"`
	Type      ServerType `json:"type" validate:"required,oneof=kavita opds"`
	IsDefault bool       `json:"is_default"`
	LastSync  time.Time  `json:"last_sync,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ServerPatch holds explicit settings updates for a registration. Nil fields
// are left unchanged.
type ServerPatch struct {
	Name *string
	URL  *string
	Type *ServerType
}

// NormalizeBaseURL validates a server base URL and returns its canonical form:
// explicit scheme, host, optional path with no trailing slash.
func NormalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("base URL is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base URL must use http or https scheme: %s", trimmed)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("base URL has no host: %s", trimmed)
	}

	normalized := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	if path := strings.TrimRight(parsed.Path, "/"); path != "" {
		normalized += path
	}

	return normalized, nil
}
