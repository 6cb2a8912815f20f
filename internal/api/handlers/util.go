package handlers

import (
	"strconv"
	"time"
)

func parseDurationQuery(v string) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return time.Minute
}

func parseIntQuery(v string, fallback int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return fallback
}
