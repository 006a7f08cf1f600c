package updates

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Slugify converts a title to a URL-safe slug: lowercase ASCII letters and
// digits, everything else collapsed to single dashes.
func Slugify(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, strings.TrimSpace(s))
	for strings.Contains(mapped, "--") {
		mapped = strings.ReplaceAll(mapped, "--", "-")
	}
	return strings.Trim(mapped, "-")
}

// TitleFromSlug derives a presentable title from a slug, for sources
// that omit one in front matter.
func TitleFromSlug(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

// BuildURL joins a base URL with path segments. Page URLs get a trailing
// slash to match the router's canonical form.
func BuildURL(base string, segments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	if len(segments) == 0 {
		return u.String()
	}
	u.Path = path.Join(append([]string{u.Path}, segments...)...)
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterEmpty drops empty and whitespace-only entries, trimming the rest.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitCSV splits a comma-separated form value into trimmed, non-empty items.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return FilterEmpty(parts)
}
