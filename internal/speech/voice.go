package speech

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

const defaultLocale = "en-US"

var localeByCode = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
	"fr": "fr-FR",
	"es": "es-ES",
	"de": "de-DE",
}

// LocaleFor maps a short language code to the locale used for synthesis.
// Unknown codes fall back to en-US.
func LocaleFor(code string) string {
	if l, ok := localeByCode[strings.ToLower(strings.TrimSpace(code))]; ok {
		return l
	}
	return defaultLocale
}

// ResolveVoice picks a voice for a language code: first a voice sharing the
// locale's language, then any English voice, otherwise nil so the engine
// uses its own default.
func ResolveVoice(code string, voices []Voice) *Voice {
	want := primaryLanguage(LocaleFor(code))
	chain := []func(Voice) bool{
		func(v Voice) bool { return primaryLanguage(v.Locale) == want },
		func(v Voice) bool { return primaryLanguage(v.Locale) == "en" },
	}

	for _, match := range chain {
		for i := range voices {
			if voices[i].Locale != "" && match(voices[i]) {
				v := voices[i]
				return &v
			}
		}
	}
	return nil
}

// primaryLanguage returns the lower-case language subtag of a locale tag.
func primaryLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf != language.No {
			return base.String()
		}
	}
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// DetectLanguage guesses the ISO 639-1 code of text, defaulting to "en".
func DetectLanguage(text string) string {
	if code := whatlanggo.DetectLang(text).Iso6391(); code != "" {
		return code
	}
	return "en"
}
