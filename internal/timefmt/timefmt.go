// Package timefmt encodes and decodes the H:MM:SS[.fff] duration strings
// used on the AVTransport wire (RelTime, TrackDuration, Seek Target).
package timefmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Encode formats a non-negative count of seconds as HH:MM:SS, zero-padded.
// Hours may exceed 99 and are never truncated.
func Encode(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Decode parses a string of the form H[H...]:MM:SS[.fff] into whole seconds.
// Any malformed string decodes to zero; the caller treats zero as "unknown".
func Decode(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	// Strip fractional seconds suffix before parsing.
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}

	h, errH := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	m, errM := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	sec, errS := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if errH != nil || errM != nil || errS != nil {
		return 0
	}
	if h < 0 || m < 0 || sec < 0 {
		return 0
	}

	return h*3600 + m*60 + sec
}
