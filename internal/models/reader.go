package models

import "strings"

// Language is an app language code used for translation targets and narration voices.
type Language string

const (
	Spanish    Language = "es"
	English    Language = "en"
	Portuguese Language = "pt"
	French     Language = "fr"
	Italian    Language = "it"
	Japanese   Language = "ja"
)

// UnknownSpeaker marks a translated region with no identifiable speaker.
const UnknownSpeaker = "Unknown"

var languageNames = map[Language]string{
	Spanish:    "Spanish",
	English:    "English",
	Portuguese: "Portuguese",
	French:     "French",
	Italian:    "Italian",
	Japanese:   "Japanese",
}

var voiceLanguages = map[Language]string{
	Spanish:    "es-ES",
	English:    "en-US",
	Portuguese: "pt-BR",
	French:     "fr-FR",
	Italian:    "it-IT",
	Japanese:   "ja-JP",
}

// Languages lists the supported languages in display order.
func Languages() []Language {
	return []Language{Spanish, English, Portuguese, French, Italian, Japanese}
}

// ParseLanguage normalizes a language code, reporting whether it is supported.
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	_, ok := languageNames[l]
	return l, ok
}

// Name returns the English name of the language used in gateway prompts.
// Unsupported codes fall back to Spanish.
func (l Language) Name() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return languageNames[Spanish]
}

// Next returns the language after l in [Languages], wrapping around. Unsupported codes start over at Spanish.
func (l Language) Next() Language {
	langs := Languages()
	for i, candidate := range langs {
		if candidate == l {
			return langs[(i+1)%len(langs)]
		}
	}
	return Spanish
}

// Voice returns the BCP 47 tag used by speech backends.
// Unsupported codes fall back to es-ES.
func (l Language) Voice() string {
	if v, ok := voiceLanguages[l]; ok {
		return v
	}
	return voiceLanguages[Spanish]
}

// TranslationResult is one detected text region of a page and its translation.
//
// Produced only by the translation gateway and owned by the page it was computed for.
type TranslationResult struct {
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	Speaker        string `json:"speaker"`
}

// HasSpeaker reports whether the speaker is known.
func (r TranslationResult) HasSpeaker() bool {
	return r.Speaker != "" && r.Speaker != UnknownSpeaker
}

// AudioSegment is one unit of narration text bound to a page index.
type AudioSegment struct {
	PageIndex int    `json:"pageIndex"`
	Text      string `json:"text"`
}

// PageImage is the binary payload of a page sent to the translation gateway.
type PageImage struct {
	Ref      string // original reference, for logging
	Data     []byte
	MIMEType string
}
