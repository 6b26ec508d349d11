package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type LedgerConfig struct {
	// Location is used to compute day/week/month windows
	Location        *time.Location
	WeekStart       time.Weekday
	SummaryCacheTTL time.Duration
	ListLimit       int
	HistoryLimit    int
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		Location:        getEnvAsLocation("LEDGER_TIMEZONE", time.UTC),
		WeekStart:       getEnvAsWeekday("LEDGER_WEEK_START", time.Monday),
		SummaryCacheTTL: getEnvAsDuration("LEDGER_SUMMARY_CACHE_TTL", 2*time.Minute),
		ListLimit:       getEnvAsInt("LEDGER_LIST_LIMIT", 500),
		HistoryLimit:    getEnvAsInt("LEDGER_HISTORY_LIMIT", 200),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsLocation(key string, defaultVal *time.Location) *time.Location {
	name := getEnv(key, "")
	if name == "" {
		return defaultVal
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[CONFIG] Unknown timezone %q, falling back to %s: %v", name, defaultVal, err)
		return defaultVal
	}
	return loc
}

func getEnvAsWeekday(key string, defaultVal time.Weekday) time.Weekday {
	switch strings.ToLower(getEnv(key, "")) {
	case "sunday":
		return time.Sunday
	case "monday":
		return time.Monday
	case "saturday":
		return time.Saturday
	}
	return defaultVal
}
