// Package utils holds small helpers shared by the CLI and background jobs.
package utils

import "strings"

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
func ParseCSV(s string) []string {
	var result []string
	for _, v := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseSymbols accepts symbols as separate arguments, comma-separated lists
// or a mix of both. Symbols are upper-cased and duplicates dropped, keeping
// first-seen order.
func ParseSymbols(args ...string) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, arg := range args {
		for _, s := range ParseCSV(arg) {
			s = strings.ToUpper(s)
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			symbols = append(symbols, s)
		}
	}
	return symbols
}
