package ingest

import (
	"strings"
	"time"
)

func lowerAddr(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func unixToTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
