package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

const minBaseRotationDeg = 1800

type Config struct {
	HTTPAddr      string
	LogLevel      string
	LogFormat     string
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	KioskTokenTTL time.Duration
	KioskAPIKey   string
	AdminToken    string
	InitSecret    string

	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	ReviewRequired  bool

	SkipReveal      time.Duration
	SlideInterval   time.Duration
	SlideCount      int
	SpinAnimation   time.Duration
	SpinSettle      time.Duration
	AutoReturn      time.Duration
	BaseRotationDeg float64
	CatalogCacheTTL time.Duration
	SessionIdleTTL  time.Duration

	SiteURL        string
	PrizeValidDays int

	SubmailAppID     string
	SubmailAppKey    string
	SubmailProjectID string

	PlayRetention      time.Duration
	PlayPruneInterval  time.Duration
	PlayPrunerInServer bool
}

// Offline is true when no reward service is configured; the kiosk then runs
// on the built-in demo catalog and draws prizes locally.
func (c Config) Offline() bool {
	return strings.TrimSpace(c.UpstreamBaseURL) == ""
}

func Load() Config {
	loadDotEnv(".env")
	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		MySQLDSN:      getEnv("MYSQL_DSN", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		KioskTokenTTL: getEnvDuration("KIOSK_TOKEN_TTL_HOURS", 30*24, time.Hour),
		KioskAPIKey:   getEnv("KIOSK_API_KEY", ""),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
		InitSecret:    getEnv("INIT_SECRET", ""),

		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", ""),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT_MS", 10000, time.Millisecond),
		ReviewRequired:  getEnvBool("REVIEW_REQUIRED", true),

		SkipReveal:      getEnvDuration("SKIP_REVEAL_MS", 4000, time.Millisecond),
		SlideInterval:   getEnvDuration("SLIDE_INTERVAL_MS", 4000, time.Millisecond),
		SlideCount:      getEnvInt("SLIDE_COUNT", 3),
		SpinAnimation:   getEnvDuration("SPIN_ANIMATION_MS", 3000, time.Millisecond),
		SpinSettle:      getEnvDuration("SPIN_SETTLE_MS", 1000, time.Millisecond),
		AutoReturn:      getEnvDuration("AUTO_RETURN_MS", 60000, time.Millisecond),
		BaseRotationDeg: getEnvFloat("BASE_ROTATION_DEG", minBaseRotationDeg),
		CatalogCacheTTL: getEnvDuration("CATALOG_CACHE_TTL_SEC", 300, time.Second),
		SessionIdleTTL:  getEnvDuration("SESSION_IDLE_TTL_MIN", 24*60, time.Minute),

		SiteURL:        getEnv("SITE_URL", ""),
		PrizeValidDays: getEnvInt("PRIZE_VALID_DAYS", 30),

		SubmailAppID:     getEnv("SUBMAIL_APP_ID", ""),
		SubmailAppKey:    getEnv("SUBMAIL_APP_KEY", ""),
		SubmailProjectID: getEnv("SUBMAIL_PROJECT_ID", ""),

		PlayRetention:      getEnvDuration("PLAY_RETENTION_DAYS", 180, 24*time.Hour),
		PlayPruneInterval:  getEnvDuration("PLAY_PRUNE_INTERVAL_MIN", 60, time.Minute),
		PlayPrunerInServer: getEnvBool("PLAY_PRUNER_IN_SERVER", true),
	}
	if cfg.BaseRotationDeg < minBaseRotationDeg {
		cfg.BaseRotationDeg = minBaseRotationDeg
	}
	if cfg.SpinAnimation < 500*time.Millisecond {
		cfg.SpinAnimation = 500 * time.Millisecond
	}
	if cfg.AutoReturn < 5*time.Second {
		cfg.AutoReturn = 5 * time.Second
	}
	if cfg.SlideCount < 1 {
		cfg.SlideCount = 1
	}
	if cfg.PrizeValidDays < 1 {
		cfg.PrizeValidDays = 30
	}
	return cfg
}

func getEnv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), "\"")
		if key == "" {
			continue
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvFloat(key string, def float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getEnvDuration reads an integer count of unit. Negative values fall back to def.
func getEnvDuration(key string, def int64, unit time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return time.Duration(def) * unit
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil || parsed < 0 {
		return time.Duration(def) * unit
	}
	return time.Duration(parsed) * unit
}

func getEnvBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if val == "" {
		return def
	}
	switch val {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
