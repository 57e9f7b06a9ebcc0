// Package i18n holds the localized strings shown to parents.
package i18n

import (
	"strings"

	"admissionsbot/internal/models"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.Russian, // default
	language.Uzbek,
	language.English,
	language.Turkish,
}

var matcher = language.NewMatcher(supported)

// Match picks the closest supported locale for a Telegram language code.
func Match(languageCode string) string {
	if strings.TrimSpace(languageCode) == "" {
		return models.DefaultLocale
	}
	tag, err := language.Parse(languageCode)
	if err != nil {
		return models.DefaultLocale
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return models.DefaultLocale
	}
	return models.Locales[idx]
}

// Supported reports whether locale is one of the bot languages.
func Supported(locale string) bool {
	for _, l := range models.Locales {
		if l == locale {
			return true
		}
	}
	return false
}

// T renders key in locale, substituting {name} placeholders from pairs of
// name, value arguments. Missing locales fall back to Russian, missing keys
// render as the key itself.
func T(locale, key string, kv ...string) string {
	entry, ok := catalog[key]
	if !ok {
		return key
	}
	text, ok := entry[locale]
	if !ok || text == "" {
		text = entry[models.DefaultLocale]
	}
	if len(kv) < 2 {
		return text
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Has reports whether the catalog defines key.
func Has(key string) bool {
	_, ok := catalog[key]
	return ok
}
