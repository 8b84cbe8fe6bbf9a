package i18n

import (
	"net/http"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"de": {},
}

// LocaleFromRequest resolves the locale for a request. An explicit ?lang=
// query parameter wins over the Accept-Language header.
func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	if lang := r.URL.Query().Get("lang"); lang != "" {
		if normalized, ok := matchLocale(lang); ok {
			return normalized
		}
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// NormalizeLocale picks the first supported language from an
// Accept-Language style value, falling back to the default.
func NormalizeLocale(header string) string {
	for _, part := range strings.Split(header, ",") {
		if normalized, ok := matchLocale(part); ok {
			return normalized
		}
	}
	return DefaultLocale
}

func matchLocale(tag string) (string, bool) {
	tag = strings.TrimSpace(tag)
	if idx := strings.IndexAny(tag, ";"); idx >= 0 {
		tag = strings.TrimSpace(tag[:idx])
	}
	tag = strings.ToLower(tag)
	if idx := strings.Index(tag, "-"); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return "", false
	}
	_, ok := supportedLocales[tag]
	return tag, ok
}
