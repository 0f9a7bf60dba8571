package ratelimit

import (
	"net/http"
	"time"

	"github.com/jonathan/plan-auditor/internal/config"
)

// FromConfig builds the API limiter configuration: analysis requests get
// their own hourly bucket, everything else shares a per-minute bucket, and
// health and metrics probes are exempt.
func FromConfig(cfg config.RateLimitConfig) Config {
	return Config{
		Enabled: cfg.Enabled,
		Rules: []Rule{
			{Method: http.MethodPost, Path: "/analyze", Limit: cfg.AnalyzePerHour, Window: time.Hour, Burst: cfg.AnalyzeBurst},
			{Method: http.MethodPost, Path: "/analyze/stream", Limit: cfg.AnalyzePerHour, Window: time.Hour, Burst: cfg.AnalyzeBurst},
		},
		Default:   Rule{Limit: cfg.DefaultPerMinute, Window: time.Minute},
		Exempt:    []string{"/health", "/metrics"},
		Whitelist: cfg.Whitelist,
	}
}
