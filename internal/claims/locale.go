package claims

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLocale converts a provider-asserted locale tag to the underscore
// form used by the application and validates it against the supported set.
// Returns ok=false for anything unparseable or unsupported; the caller drops
// the value silently in that case.
func NormalizeLocale(raw string, supported []string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "", false
	}

	var supportedTags []language.Tag
	for _, s := range supported {
		t, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
		if err != nil {
			continue
		}
		supportedTags = append(supportedTags, t)
	}
	if len(supportedTags) == 0 {
		return "", false
	}

	matcher := language.NewMatcher(supportedTags)
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return "", false
	}

	return strings.ReplaceAll(supported[idx], "-", "_"), true
}
