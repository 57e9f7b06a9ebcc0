package i18n

import (
	"strings"
	"testing"

	"admissionsbot/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := map[string]string{
		"":      models.LocaleRU,
		"ru":    models.LocaleRU,
		"en":    models.LocaleEN,
		"en-US": models.LocaleEN,
		"uz":    models.LocaleUZ,
		"tr":    models.LocaleTR,
		"tr-TR": models.LocaleTR,
		"!!":    models.LocaleRU,
	}
	for code, want := range tests {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, want, Match(code))
		})
	}
}

func TestT(t *testing.T) {
	assert.Equal(t, "Select date:", T(models.LocaleEN, "select_date"))
	assert.Equal(t, "Age of child #2?", T(models.LocaleEN, "child_age", "num", "2"))
	assert.Equal(t, "2-farzandingizning yoshi?", T(models.LocaleUZ, "child_age", "num", "2"))

	// unknown locale falls back to Russian
	assert.Equal(t, T(models.LocaleRU, "menu"), T("de", "menu"))
	// unknown key renders as the key
	assert.Equal(t, "no.such.key", T(models.LocaleEN, "no.such.key"))
	// odd trailing argument is ignored
	assert.Equal(t, "Age of child #3?", T(models.LocaleEN, "child_age", "num", "3", "dangling"))
}

func TestCatalogComplete(t *testing.T) {
	for key, e := range catalog {
		if strings.HasPrefix(key, "lang.") || key == "language_selection" {
			continue
		}
		for _, loc := range models.Locales {
			assert.NotEmpty(t, e[loc], "key %q missing locale %q", key, loc)
		}
	}

	for _, age := range models.AgeGroups {
		assert.True(t, Has("age."+age), age)
	}
	for _, p := range models.Programs {
		assert.True(t, Has("program."+p), p)
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("uz"))
	assert.False(t, Supported("de"))
}
