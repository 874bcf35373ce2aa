package model

import "strings"

// trimSpaceLower lowercases and trims s, collapsing internal runs of
// whitespace to single spaces. Used by PreAgreedTerm's expected-value
// handling in pat.go; C4 and C5 normalize text with their own helpers.
func trimSpaceLower(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
