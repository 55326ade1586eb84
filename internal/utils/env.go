package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// SafeEnvInt parses key as an int, keeping fallback when unset or malformed.
func SafeEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// SafeEnvBool accepts the forms understood by strconv.ParseBool.
func SafeEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// SafeEnvDuration accepts Go duration strings such as "30s" or "2h".
func SafeEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
