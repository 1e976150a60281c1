package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey stores the negotiated UI locale in the request context.
var LocaleKey = localeContextKey{}

var localeMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Indonesian,
})

// I18N negotiates the response locale from X-Locale or Accept-Language.
// The service speaks English and Bahasa Indonesia.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	header := r.Header.Get("X-Locale")
	if header == "" {
		header = r.Header.Get("Accept-Language")
	}
	if header == "" {
		if fallback != "" {
			return fallback
		}
		return "en"
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		if fallback != "" {
			return fallback
		}
		return "en"
	}
	tag, _, _ := localeMatcher.Match(tags...)
	base, _ := tag.Base()
	return base.String()
}

// LocaleFromContext returns the negotiated locale, defaulting to English.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
