// Package classifier guesses what kind of text a recognized span holds.
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type TextType string

const (
	Number    TextType = "number"
	Date      TextType = "date"
	Table     TextType = "table"
	Title     TextType = "title"
	Paragraph TextType = "paragraph"
	Default   TextType = "default"
)

// Types lists every text type in classification order.
var Types = []TextType{Number, Date, Table, Title, Paragraph, Default}

var (
	dateSeparators  = []string{"-", "/", "年", "月", "日"}
	tableIndicators = []string{"表", "项目", "序号", "合计", "小计"}
)

const (
	dateDigitRatio  = 0.3
	titleMaxLen     = 20
	titleMinScore   = 0.85
	paragraphMinLen = 15
)

// Classify applies the heuristics in a fixed order; the first match wins.
func Classify(text string, confidence float64) TextType {
	length := utf8.RuneCountInString(text)

	if isNumber(text) {
		return Number
	}
	if containsAny(text, dateSeparators) && float64(countDigits(text)) > float64(length)*dateDigitRatio {
		return Date
	}
	if containsAny(text, tableIndicators) {
		return Table
	}
	if length < titleMaxLen && confidence > titleMinScore {
		return Title
	}
	if length > paragraphMinLen {
		return Paragraph
	}
	return Default
}

// isNumber accepts digits with at most one decimal point.
func isNumber(text string) bool {
	if strings.Count(text, ".") > 1 {
		return false
	}
	digits := strings.Replace(text, ".", "", 1)
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func countDigits(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func containsAny(text string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
