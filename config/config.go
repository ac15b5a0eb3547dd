package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Service metadata reported by GET /
const (
	Version = "0.1.1"
)

var Authors = []string{"Ahilan Ashwin", "Ammar Azman"}

type Config struct {
	Port        string
	Stage       string
	ProjectName string

	CorsAllowOrigins []string
	RateLimit        int
	RateBurst        int
	RateWindow       time.Duration
	APIKey           string

	UserPath  string
	Platform  string
	UploadDir string

	DatabaseURL   string
	WebhookURL    string
	WebhookSecret string

	LogLevel  string
	LogFormat string

	Browser  BrowserConfig
	Blast    BlastConfig
	Throttle ThrottleConfig
}

type BrowserConfig struct {
	Bin       string
	Headless  bool
	PasteMode string // insert | clipboard
}

type BlastConfig struct {
	ChatURL         string
	SelectionPolicy string

	SessionSettle  time.Duration
	NavigateSettle time.Duration
	AttachDelay    time.Duration
	PasteDelay     time.Duration
	ElementTimeout time.Duration

	RetryAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration

	MessageBoxSelector    string
	SendButtonSelector    string
	AttachInputSelector   string
	AttachSendSelector    string
	InvalidNumberSelector string
}

type ThrottleConfig struct {
	Enabled        bool
	SendsPerMinute int
	Burst          int

	BasePauseMin  time.Duration
	BasePauseMax  time.Duration
	ShortEvery    int
	ShortPauseMin time.Duration
	ShortPauseMax time.Duration
	LongEvery     int
	LongPauseMin  time.Duration
	LongPauseMax  time.Duration
}

func Load() *Config {
	origins := []string{}
	for _, o := range strings.Split(getEnv("CORS_ALLOW_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		Port:        getEnv("PORT", "2121"),
		Stage:       getEnv("STAGE", "local"),
		ProjectName: getEnv("PROJECT_NAME", "WS Blaster"),

		CorsAllowOrigins: origins,
		RateLimit:        GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10),
		RateBurst:        GetEnvAsInt("RATE_LIMIT_BURST", 10),
		RateWindow:       time.Duration(GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3)) * time.Minute,
		APIKey:           os.Getenv("BLAST_API_KEY"),

		UserPath:  getEnv("BLAST_USER_PATH", "./profiles"),
		Platform:  getEnv("BLAST_PLATFORM", "whatsapp"),
		UploadDir: getEnv("BLAST_UPLOAD_DIR", "./tmp"),

		DatabaseURL:   os.Getenv("BLAST_DATABASE_URL"),
		WebhookURL:    os.Getenv("BLAST_WEBHOOK_URL"),
		WebhookSecret: os.Getenv("BLAST_WEBHOOK_SECRET"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		Browser: BrowserConfig{
			Bin:       os.Getenv("BROWSER_BIN"),
			Headless:  GetEnvAsBool("BROWSER_HEADLESS", false),
			PasteMode: getEnv("BROWSER_PASTE_MODE", "insert"),
		},

		Blast: BlastConfig{
			ChatURL:         getEnv("BLAST_CHAT_URL", "https://web.whatsapp.com/send?phone="),
			SelectionPolicy: getEnv("BLAST_SELECTION_POLICY", "round-robin"),

			SessionSettle:  GetEnvAsDuration("BLAST_SESSION_SETTLE", 10*time.Second),
			NavigateSettle: GetEnvAsDuration("BLAST_NAVIGATE_SETTLE", 5*time.Second),
			AttachDelay:    GetEnvAsDuration("BLAST_ATTACH_DELAY", 2*time.Second),
			PasteDelay:     GetEnvAsDuration("BLAST_PASTE_DELAY", 2*time.Second),
			ElementTimeout: GetEnvAsDuration("BLAST_ELEMENT_TIMEOUT", 6*time.Second),

			RetryAttempts: GetEnvAsInt("BLAST_RETRY_ATTEMPTS", 3),
			RetryBase:     GetEnvAsDuration("BLAST_RETRY_BASE", time.Second),
			RetryMax:      GetEnvAsDuration("BLAST_RETRY_MAX", 8*time.Second),

			MessageBoxSelector:    getEnv("BLAST_SELECTOR_MESSAGE_BOX", `footer div[contenteditable="true"]`),
			SendButtonSelector:    getEnv("BLAST_SELECTOR_SEND", `button[aria-label="Send"], span[data-icon="send"]`),
			AttachInputSelector:   getEnv("BLAST_SELECTOR_ATTACH_INPUT", `input[type='file']`),
			AttachSendSelector:    getEnv("BLAST_SELECTOR_ATTACH_SEND", `div[aria-label="Send"], span[data-icon="send"]`),
			InvalidNumberSelector: getEnv("BLAST_SELECTOR_INVALID_NUMBER", `//div[@role="dialog"]//*[contains(text(), "invalid")]`),
		},

		Throttle: ThrottleConfig{
			Enabled:        GetEnvAsBool("THROTTLE_ENABLED", true),
			SendsPerMinute: GetEnvAsInt("THROTTLE_SENDS_PER_MINUTE", 6),
			Burst:          GetEnvAsInt("THROTTLE_BURST", 1),

			BasePauseMin:  GetEnvAsDuration("THROTTLE_BASE_PAUSE_MIN", 2*time.Second),
			BasePauseMax:  GetEnvAsDuration("THROTTLE_BASE_PAUSE_MAX", 5*time.Second),
			ShortEvery:    GetEnvAsInt("THROTTLE_SHORT_EVERY", 10),
			ShortPauseMin: GetEnvAsDuration("THROTTLE_SHORT_PAUSE_MIN", 5*time.Second),
			ShortPauseMax: GetEnvAsDuration("THROTTLE_SHORT_PAUSE_MAX", 10*time.Second),
			LongEvery:     GetEnvAsInt("THROTTLE_LONG_EVERY", 300),
			LongPauseMin:  GetEnvAsDuration("THROTTLE_LONG_PAUSE_MIN", 500*time.Second),
			LongPauseMax:  GetEnvAsDuration("THROTTLE_LONG_PAUSE_MAX", 1000*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvAsInt returns fallback when the variable is unset, unparsable or negative.
func GetEnvAsInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func GetEnvAsBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

// GetEnvAsDuration accepts Go durations ("1m30s") or a bare number of seconds.
func GetEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
