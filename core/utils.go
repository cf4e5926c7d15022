package core

import "strings"

// CleanString trims `s` and collapses inner runs of whitespace into single spaces: " Bus   Fee " -> "Bus Fee".
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func CleanEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
