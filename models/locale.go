package models

import "fmt"

// Locale is a UI / content language code
type Locale string

const (
	LocaleJapanese   Locale = "ja"
	LocaleVietnamese Locale = "vi"
	LocaleBurmese    Locale = "my"
	LocaleIndonesian Locale = "id"
	LocaleFilipino   Locale = "fil"
	LocaleKhmer      Locale = "km"
	LocaleThai       Locale = "th"
)

// DefaultLocale is used when no locale cookie or user preference exists
const DefaultLocale = LocaleJapanese

// Locales lists every supported locale in display order
var Locales = []Locale{
	LocaleJapanese,
	LocaleVietnamese,
	LocaleBurmese,
	LocaleIndonesian,
	LocaleFilipino,
	LocaleKhmer,
	LocaleThai,
}

// languageNames are the names used inside LLM prompts, which are written in Japanese
var languageNames = map[Locale]string{
	LocaleJapanese:   "日本語",
	LocaleVietnamese: "ベトナム語 (Tiếng Việt)",
	LocaleBurmese:    "ミャンマー語 (မြန်မာဘာသာ)",
	LocaleIndonesian: "インドネシア語 (Bahasa Indonesia)",
	LocaleFilipino:   "フィリピン語 (Filipino)",
	LocaleKhmer:      "クメール語 (ភាសាខ្មែរ)",
	LocaleThai:       "タイ語 (ภาษาไทย)",
}

// ParseLocale validates a raw locale code
func ParseLocale(s string) (Locale, error) {
	l := Locale(s)
	if _, ok := languageNames[l]; !ok {
		return "", fmt.Errorf("unsupported locale: %q", s)
	}
	return l, nil
}

// IsTranslationTarget reports whether manuals can be machine translated into l.
// Japanese is the source language and is never a target.
func (l Locale) IsTranslationTarget() bool {
	_, ok := languageNames[l]
	return ok && l != LocaleJapanese
}

// LanguageName returns the prompt display name, falling back to the raw code
func (l Locale) LanguageName() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

// TranslationTargets returns the supported machine translation targets
func TranslationTargets() []Locale {
	targets := make([]Locale, 0, len(Locales)-1)
	for _, l := range Locales {
		if l.IsTranslationTarget() {
			targets = append(targets, l)
		}
	}
	return targets
}
