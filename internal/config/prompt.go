package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseModeName accepts the mode spellings used by flags and config files.
func ParseModeName(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "pipelined", "pipelining", "pipeline":
		return ModePipelined, nil
	case "1", "req-res", "reqres", "request-response":
		return ModeRequestResponse, nil
	default:
		return "", fmt.Errorf("mode %q must be pipelined (0) or req-res (1)", s)
	}
}

// The Parse* functions below implement the interactive fallback policy: they
// never fail, and return a non-empty warning when the answer was replaced.

// ParseMode reads the mode prompt answer: "0" pipelined, "1" req-res,
// anything else falls back to pipelined.
func ParseMode(input string) (Mode, string) {
	switch strings.TrimSpace(input) {
	case "0":
		return ModePipelined, ""
	case "1":
		return ModeRequestResponse, ""
	default:
		return ModePipelined, "invalid value, will use: pipelining-mode."
	}
}

// ParseConcurrency reads a positive connection count, falling back to 1.
func ParseConcurrency(input string) (int, string) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n <= 0 {
		return 1, "invalid value, will use only one client ( no concurrency )."
	}
	return n, ""
}

// ParseRequestCount reads the per-connection count in thousands. Blank,
// non-numeric and negative answers mean unbounded (-1); zero would leave
// the run unable to complete, so it falls back to one thousand.
func ParseRequestCount(input string) (int, string) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	switch {
	case err != nil:
		return -1, "invalid value, will never stop requesting."
	case n < 0:
		return -1, "negative value, will never stop requesting."
	case n == 0:
		return 1, "zero requests can never complete, will use one thousand."
	}
	return n, ""
}
