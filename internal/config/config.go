package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with PODIUM_STORE.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Store        string // PODIUM_STORE (default "postgres"; "memory" for demos and tests)
	DatabaseURL  string // PODIUM_DATABASE_URL (required for the postgres store)
	GRPCAddr     string // PODIUM_GRPC_ADDR (default ":9090")
	HTTPAddr     string // PODIUM_HTTP_ADDR (default ":8080")
	NATSURL      string // PODIUM_NATS_URL (optional, empty = no events)
	AuthToken    string // PODIUM_AUTH_TOKEN (optional, empty = auth disabled)
	PublicURL    string // PODIUM_PUBLIC_URL (default "http://localhost:8080"; base for signing links)
	TemplatesDir string // PODIUM_TEMPLATES_DIR (optional; TOML templates seeded at startup)

	// Signing rate limit
	RedisAddr      string        // PODIUM_REDIS_ADDR (optional, empty = in-process limiter)
	RedisPassword  string        // PODIUM_REDIS_PASSWORD
	SignRateLimit  int           // PODIUM_SIGN_RATE_LIMIT (default 30; 0 = disabled)
	SignRateWindow time.Duration // PODIUM_SIGN_RATE_WINDOW (default 1m)

	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are honoured (PODIUM_TRUSTED_PROXIES, comma-separated IPs or
	// CIDRs; empty = trust no one).
	TrustedProxies []netip.Prefix

	// Archive settings
	ArchiveInterval   time.Duration // PODIUM_ARCHIVE_INTERVAL (default 1h; 0 = disabled)
	ArchiveS3Bucket   string        // PODIUM_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // PODIUM_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // PODIUM_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // PODIUM_ARCHIVE_S3_KEY (default "podium/contracts.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		Store:             envOrDefault("PODIUM_STORE", StorePostgres),
		DatabaseURL:       os.Getenv("PODIUM_DATABASE_URL"),
		GRPCAddr:          envOrDefault("PODIUM_GRPC_ADDR", ":9090"),
		HTTPAddr:          envOrDefault("PODIUM_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("PODIUM_NATS_URL"),
		AuthToken:         os.Getenv("PODIUM_AUTH_TOKEN"),
		PublicURL:         envOrDefault("PODIUM_PUBLIC_URL", "http://localhost:8080"),
		TemplatesDir:      os.Getenv("PODIUM_TEMPLATES_DIR"),
		RedisAddr:         os.Getenv("PODIUM_REDIS_ADDR"),
		RedisPassword:     os.Getenv("PODIUM_REDIS_PASSWORD"),
		ArchiveS3Bucket:   os.Getenv("PODIUM_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("PODIUM_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("PODIUM_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("PODIUM_ARCHIVE_S3_KEY", "podium/contracts.jsonl"),
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("PODIUM_DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("PODIUM_STORE: unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreMemory)
	}

	limit, err := strconv.Atoi(envOrDefault("PODIUM_SIGN_RATE_LIMIT", "30"))
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("PODIUM_SIGN_RATE_LIMIT: must be a non-negative integer")
	}
	c.SignRateLimit = limit

	if c.SignRateWindow, err = time.ParseDuration(envOrDefault("PODIUM_SIGN_RATE_WINDOW", "1m")); err != nil {
		return nil, fmt.Errorf("PODIUM_SIGN_RATE_WINDOW: %w", err)
	}
	if c.SignRateWindow <= 0 {
		return nil, fmt.Errorf("PODIUM_SIGN_RATE_WINDOW: must be positive")
	}

	if c.TrustedProxies, err = ParseTrustedProxies(os.Getenv("PODIUM_TRUSTED_PROXIES")); err != nil {
		return nil, fmt.Errorf("PODIUM_TRUSTED_PROXIES: %w", err)
	}

	if c.ArchiveInterval, err = time.ParseDuration(envOrDefault("PODIUM_ARCHIVE_INTERVAL", "1h")); err != nil {
		return nil, fmt.Errorf("PODIUM_ARCHIVE_INTERVAL: %w", err)
	}

	return c, nil
}

// ParseTrustedProxies parses a comma-separated list of IP addresses and CIDR
// prefixes. A bare address is treated as a single-host prefix.
func ParseTrustedProxies(s string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
