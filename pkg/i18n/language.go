// Package i18n defines the language codes the briefing is published in.
package i18n

import "strings"

// Language is a two-letter code selecting a briefing variant.
type Language string

const (
	LangKO Language = "ko" // Korean (default)
	LangEN Language = "en"
	LangZH Language = "zh"
	LangJA Language = "ja"
	LangRU Language = "ru"
	LangDE Language = "de"
	LangFR Language = "fr"
	LangES Language = "es"
	LangAR Language = "ar"
	LangHI Language = "hi"
	LangVI Language = "vi"
	LangID Language = "id"
)

var names = map[Language]string{
	LangKO: "한국어",
	LangEN: "English",
	LangZH: "中文",
	LangJA: "日本語",
	LangRU: "Русский",
	LangDE: "Deutsch",
	LangFR: "Français",
	LangES: "Español",
	LangAR: "العربية",
	LangHI: "हिन्दी",
	LangVI: "Tiếng Việt",
	LangID: "Bahasa Indonesia",
}

// LanguageName returns the display name of a language.
func LanguageName(lang Language) string {
	if n, ok := names[lang]; ok {
		return n
	}
	return string(lang)
}

// Normalize lower-cases and trims a user supplied code.
func Normalize(code string) Language {
	return Language(strings.ToLower(strings.TrimSpace(code)))
}
