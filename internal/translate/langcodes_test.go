package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToISO1(t *testing.T) {
	assert.Equal(t, "de", toISO1("deu"))
	assert.Equal(t, "de", toISO1("ger"))
	assert.Equal(t, "de", toISO1("de"))
	assert.Equal(t, "en", toISO1("eng"))
	assert.Equal(t, "he", toISO1("heb"))
	assert.Equal(t, "ja", toISO1("jpn"))
	assert.Equal(t, "", toISO1(""))
}

func TestSameLanguage(t *testing.T) {
	assert.True(t, SameLanguage("deu", "de"))
	assert.True(t, SameLanguage("eng", "en"))
	assert.True(t, SameLanguage("heb", "he"))
	assert.False(t, SameLanguage("de", "en"))
	assert.False(t, SameLanguage("", "en"))
}

func TestDeepLNormalization(t *testing.T) {
	// DeepL wants EN-US as a target but bare EN as a source.
	assert.Equal(t, "EN-US", normalizeDeepLTarget("en"))
	assert.Equal(t, "EN-US", normalizeDeepLTarget("eng"))
	assert.Equal(t, "EN", normalizeDeepLSource("en"))
	assert.Equal(t, "DE", normalizeDeepLTarget("deu"))
	assert.Equal(t, "DE", normalizeDeepLSource("ger"))
}

func TestMicrosoftNormalization(t *testing.T) {
	assert.Equal(t, "de", normalizeMicrosoft("deu"))
	assert.Equal(t, "zh-Hans", normalizeMicrosoft("zho"))
	assert.Equal(t, "he", normalizeMicrosoft("heb"))
}

func TestDeepLSupports(t *testing.T) {
	p := &DeepLProvider{}
	assert.True(t, p.Supports("deu", "en"))
	assert.True(t, p.Supports("", "de"))
	assert.False(t, p.Supports("deu", "he"), "DeepL has no Hebrew target")
	assert.False(t, p.Supports("deu", "heb"))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "German", LanguageName("deu"))
	assert.Equal(t, "Hebrew", LanguageName("he"))
	assert.Equal(t, "English", LanguageName("en"))
}
