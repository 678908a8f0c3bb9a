package claims

import "strings"

// Bag is a raw claim set from one source. Values are whatever the source's
// JSON decoded to.
type Bag map[string]any

// String extracts a non-empty string claim by dot-separated path, e.g.
// "profile.nickname". Returns "" when the path is absent, not a string, or
// blank.
func (b Bag) String(path string) string {
	if b == nil || path == "" {
		return ""
	}

	var cur any = map[string]any(b)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}

	s, ok := cur.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// FirstString returns the first non-empty string among the given paths.
func (b Bag) FirstString(paths ...string) string {
	for _, p := range paths {
		if v := b.String(p); v != "" {
			return v
		}
	}
	return ""
}

// Merge layers one or more bags under b: keys already present in b win,
// later bags only fill gaps left by earlier ones.
func (b Bag) Merge(lower ...Bag) Bag {
	out := Bag{}
	for k, v := range b {
		out[k] = v
	}
	for _, bag := range lower {
		for k, v := range bag {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}
