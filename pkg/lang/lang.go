// Package lang classifies short conversational text as Arabic or English.
//
// The classifier is intentionally simple: it looks at the share of Arabic
// script in the text rather than doing any dictionary or n-gram work. That
// is enough to route bilingual voice transcripts, where a turn is almost
// always entirely one language.
package lang

import "unicode"

// Language is a detected source language tag.
type Language string

const (
	Arabic  Language = "arabic"
	English Language = "english"
)

// Counter returns the opposite language of the pair.
func (l Language) Counter() Language {
	if l == Arabic {
		return English
	}
	return Arabic
}

// Code returns the two-letter translation code for the language.
func (l Language) Code() string {
	if l == Arabic {
		return "ar"
	}
	return "en"
}

// arabicThreshold is the share of alphabetic runes that must fall in the
// Arabic script blocks before text classifies as Arabic. Strictly greater
// than, so an exact 30% mix still reads as English.
const arabicThreshold = 0.3

// Detect classifies text by counting runes in the Arabic Unicode blocks
// (U+0600–U+06FF, U+0750–U+077F, U+08A0–U+08FF) against all alphabetic
// runes. Text with no alphabetic runes classifies as English.
func Detect(text string) Language {
	var arabic, alpha int
	for _, r := range text {
		if inArabicBlock(r) {
			arabic++
		}
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if alpha == 0 {
		return English
	}
	if float64(arabic) > arabicThreshold*float64(alpha) {
		return Arabic
	}
	return English
}

func inArabicBlock(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) || // Arabic
		(r >= 0x0750 && r <= 0x077F) || // Arabic Supplement
		(r >= 0x08A0 && r <= 0x08FF) // Arabic Extended-A
}
