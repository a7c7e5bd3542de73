package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("MANGAWATCH_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("MANGAWATCH_JWT_ISSUER")
	if issuer == "" {
		issuer = "mangawatch"
	}

	dur := 24 * time.Hour
	if ttl := os.Getenv("MANGAWATCH_JWT_TTL_HOURS"); ttl != "" {
		if h, err := strconv.Atoi(ttl); err == nil && h > 0 {
			dur = time.Duration(h) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: dur,
	}
}

// UpdaterConfig carries the user preferences the update orchestrator honors.
type UpdaterConfig struct {
	Ranker          string   // "lexicographic", "latest_first", "next_first"
	SkipCompleted   bool     // skip completed titles on chapter runs
	RefreshMetadata bool     // also refetch title details on chapter runs
	AutoDownload    bool     // enqueue new chapters for download
	Categories      []string // restrict runs to these categories ("" = all)
	Interval        time.Duration
	DataDir         string // downloads, covers, error logs, run lock
}

func LoadUpdaterConfig() UpdaterConfig {
	cfg := UpdaterConfig{
		Ranker:          "lexicographic",
		SkipCompleted:   true,
		RefreshMetadata: false,
		AutoDownload:    false,
		Interval:        12 * time.Hour,
	}

	if v := os.Getenv("MANGAWATCH_RANKER"); v != "" {
		cfg.Ranker = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.SkipCompleted = envBool("MANGAWATCH_SKIP_COMPLETED", cfg.SkipCompleted)
	cfg.RefreshMetadata = envBool("MANGAWATCH_REFRESH_METADATA", cfg.RefreshMetadata)
	cfg.AutoDownload = envBool("MANGAWATCH_AUTO_DOWNLOAD", cfg.AutoDownload)

	if v := os.Getenv("MANGAWATCH_CATEGORIES"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.Categories = append(cfg.Categories, c)
			}
		}
	}

	if v := os.Getenv("MANGAWATCH_UPDATE_INTERVAL_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.Interval = time.Duration(h) * time.Hour
		}
	}

	cfg.DataDir = os.Getenv("MANGAWATCH_DATA_DIR")
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = "."
		}
		cfg.DataDir = home + "/.mangawatch"
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
