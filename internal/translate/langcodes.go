package translate

import (
	"strings"

	iso "github.com/barbashov/iso639-3"
)

// toISO1 folds any ISO-639 code ("deu", "ger", "de") to its two-letter
// form, lower-cased. Unrecognized codes pass through lower-cased.
func toISO1(code string) string {
	if code == "" {
		return ""
	}
	if lang := iso.FromAnyCode(code); lang != nil && lang.Part1 != "" {
		return lang.Part1
	}
	return strings.ToLower(code)
}

// SameLanguage reports whether two codes name the same language,
// regardless of ISO-639 flavor.
func SameLanguage(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return toISO1(a) == toISO1(b)
}

// deeplTarget maps ISO codes to DeepL target codes. DeepL retired the
// bare EN target in favor of regional variants.
var deeplTarget = map[string]string{
	"en": "EN-US",
	"de": "DE",
	"fr": "FR",
	"es": "ES",
	"it": "IT",
	"nl": "NL",
	"pl": "PL",
	"pt": "PT-PT",
	"ru": "RU",
	"ja": "JA",
	"zh": "ZH",
}

// deeplSource maps ISO codes to DeepL source codes; sources still use
// the bare EN.
var deeplSource = map[string]string{
	"en": "EN",
	"de": "DE",
	"fr": "FR",
	"es": "ES",
	"it": "IT",
	"nl": "NL",
	"pl": "PL",
	"pt": "PT",
	"ru": "RU",
	"ja": "JA",
	"zh": "ZH",
}

// microsoftCodes maps ISO codes to Microsoft Translator codes; only
// Chinese deviates from ISO-639-1.
var microsoftCodes = map[string]string{
	"zh": "zh-Hans",
}

func normalizeDeepLTarget(code string) string {
	c := toISO1(code)
	if mapped, ok := deeplTarget[c]; ok {
		return mapped
	}
	return strings.ToUpper(c)
}

func normalizeDeepLSource(code string) string {
	c := toISO1(code)
	if mapped, ok := deeplSource[c]; ok {
		return mapped
	}
	return strings.ToUpper(c)
}

func normalizeMicrosoft(code string) string {
	c := toISO1(code)
	if mapped, ok := microsoftCodes[c]; ok {
		return mapped
	}
	return c
}

// languageNames maps ISO-639-1 codes to the English names used in LLM
// prompts.
var languageNames = map[string]string{
	"en": "English", "de": "German", "he": "Hebrew",
	"fr": "French", "es": "Spanish", "it": "Italian",
	"nl": "Dutch", "pl": "Polish", "pt": "Portuguese",
	"ru": "Russian", "ja": "Japanese", "zh": "Chinese",
}

// LanguageName returns the English name for a language code, falling
// back to the code itself.
func LanguageName(code string) string {
	c := toISO1(code)
	if name, ok := languageNames[c]; ok {
		return name
	}
	if lang := iso.FromAnyCode(code); lang != nil && lang.Name != "" {
		return lang.Name
	}
	return code
}
