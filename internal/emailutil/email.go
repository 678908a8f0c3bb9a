package emailutil

import "strings"

// Normalize normalizes an email address for consistent comparison
// by converting to lowercase and trimming whitespace
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractDomain extracts the lower-cased domain from an email address
func ExtractDomain(email string) string {
	parts := strings.Split(Normalize(email), "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// LocalPart extracts everything before the @. Used as a last-resort
// display name when a provider asserts no name claims at all.
func LocalPart(email string) string {
	parts := strings.Split(Normalize(email), "@")
	if len(parts) != 2 || parts[0] == "" {
		return ""
	}
	return parts[0]
}
