package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeDirect = "direct"
	ModeCached = "cached"
)

type CacheCfg struct {
	LRUSize     int
	RedisOn     bool
	RedisAddr   string
	TTL         time.Duration
	OpTimeout   time.Duration
	PayloadVers string
}

type EventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	Queue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr     string
	LogLevel string
	Mode     string
	H3Res    int
	Cache    CacheCfg
	Events   EventsCfg
	Metrics  MetricsCfg
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

func FromEnv() Config {
	res := getint("H3_RES", 9)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	lru := getint("CACHE_LRU_SIZE", 4096)
	if lru < 1 {
		lru = 1
	}

	mode := strings.ToLower(strings.TrimSpace(getenv("MODE", ModeCached)))
	if mode != ModeDirect {
		mode = ModeCached
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Mode:     mode,
		H3Res:    res,
		Cache: CacheCfg{
			LRUSize:     lru,
			RedisOn:     getbool("REDIS_ENABLED", false),
			RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
			TTL:         getduration("CACHE_TTL", 24*time.Hour),
			OpTimeout:   getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			PayloadVers: getenv("CACHE_PAYLOAD_VERSION", "1"),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "digipin-lookups"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

// "a:9092, b:9092" -> ["a:9092","b:9092"]
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
