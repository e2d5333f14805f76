package models

import "strings"

type Language string

const (
	LanguageRussian Language = "ru"
	LanguageKazakh  Language = "kz"
	LanguageEnglish Language = "en"
)

var languageNames = map[Language]string{
	LanguageRussian: "Русский",
	LanguageKazakh:  "Қазақ",
	LanguageEnglish: "English",
}

// ParseLanguage accepts a language code or its display name. Anything else
// falls back to Russian.
func ParseLanguage(raw string) Language {
	value := strings.TrimSpace(raw)
	for code, name := range languageNames {
		if strings.EqualFold(value, string(code)) || value == name {
			return code
		}
	}
	return LanguageRussian
}

func (l Language) DisplayName() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return languageNames[LanguageRussian]
}
