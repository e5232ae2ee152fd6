// Пакет moderation — очистка пользовательского текста и проверка на недопустимую лексику.
package moderation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMessageLength — максимальная длина сообщения после очистки (в символах).
const MaxMessageLength = 140

// Ошибки очистки. Текст ошибок показывается пользователю.
//
//nolint:revive,stylecheck // текст ошибок показывается пользователю как есть
var (
	ErrMessageRequired = errors.New("Message is required")
	ErrMessageEmpty    = errors.New("Message cannot be empty")
	ErrMessageTooLong  = errors.New("Message must be 140 characters or less")
)

// invisible — символы нулевой ширины и управления направлением текста (anti-spoofing).
var invisible = map[rune]bool{
	'\u200B': true, '\u200C': true, '\u200D': true, '\u200E': true, '\u200F': true,
	'\u202A': true, '\u202B': true, '\u202C': true, '\u202D': true, '\u202E': true,
	'\u2060': true, '\u2061': true, '\u2062': true, '\u2063': true, '\u2064': true,
	'\u2066': true, '\u2067': true, '\u2068': true, '\u2069': true,
	'\u061C': true, '\u180E': true, '\uFEFF': true,
}

// Sanitize очищает сообщение и проверяет его длину.
// nil означает, что поле отсутствовало или не было строкой.
//
// Шаги (каждый тотален и идемпотентен):
//  1. отказ для nil или пустой строки
//  2. удаление управляющих символов, кроме \t, \n, \r
//  3. удаление символов нулевой ширины и bidi-override
//  4. нормализация переводов строк, 3+ подряд → 2
//  5. обрезка пробелов по краям
//  6. отказ, если пусто или длиннее MaxMessageLength
func Sanitize(raw *string) (string, error) {
	if raw == nil || *raw == "" {
		return "", ErrMessageRequired
	}

	s := stripControl(strings.ToValidUTF8(*raw, "\uFFFD"))
	s = normalizeNewlines(s)
	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrMessageEmpty
	}
	if utf8.RuneCountInString(s) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return s, nil
}

// stripControl удаляет управляющие и невидимые символы за один проход.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case unicode.IsControl(r), invisible[r]:
			return -1
		}
		return r
	}, s)
}

// normalizeNewlines приводит переводы строк к \n и схлопывает 3+ подряд до 2.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	run := 0
	for _, r := range s {
		if r == '\n' {
			run++
			if run > 2 {
				continue
			}
		} else {
			run = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}
