// moderator.go — проверка текста внешним классификатором с защитой от обхода.
//
// Классификатор опрашивается по нескольким вариантам текста: исходный текст;
// весь текст, нормализованный в одно слово (регистр, leetspeak, разделители,
// повторы 3+ → 2); тот же текст, нормализованный по словам с сохранением
// пробелов между ними; и оба нормализованных варианта со всеми повторами,
// схлопнутыми до одного символа. Какое именно правило сработало,
// пользователю не сообщается.
package moderation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrInappropriate — общий отказ модерации.
//
//nolint:revive,stylecheck // текст ошибки показывается пользователю как есть
var ErrInappropriate = errors.New("Your message contains inappropriate language. Please rephrase it.")

// Classifier — внешний классификатор текста (словарный).
type Classifier interface {
	// IsProfane возвращает true, если текст содержит недопустимую лексику.
	IsProfane(text string) bool
}

// Moderator — проверка очищенного текста.
type Moderator struct {
	classifier Classifier
}

// NewModerator создаёт модератор поверх классификатора.
func NewModerator(classifier Classifier) *Moderator {
	return &Moderator{classifier: classifier}
}

// Check возвращает ErrInappropriate, если сработала проверка хотя бы одного варианта.
func (m *Moderator) Check(text string) error {
	whole := Normalize(text)
	words := normalizeWords(text)

	candidates := []string{
		text,
		whole,
		collapseRuns(whole, 1),
		words,
		collapseRuns(words, 1),
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if m.classifier.IsProfane(c) {
			return ErrInappropriate
		}
	}
	return nil
}

// trailingPunct — знаки конца предложения; отрезаются у слова до leetspeak,
// иначе "sh!t!" превратилось бы в "shiti".
const trailingPunct = "!?.,;:"

// normalizeWords нормализует каждое слово (по пробелам) отдельно и собирает
// их обратно через пробел. Подряд идущие однобуквенные слова склеиваются:
// "s t f u now" → "stfu now". Слова, состоящие из одних разделителей, пропускаются.
func normalizeWords(text string) string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))

	var letters strings.Builder
	flush := func() {
		if letters.Len() > 0 {
			out = append(out, letters.String())
			letters.Reset()
		}
	}

	for _, f := range fields {
		w := Normalize(strings.TrimRight(f, trailingPunct))
		switch utf8.RuneCountInString(w) {
		case 0:
			continue
		case 1:
			letters.WriteString(w)
			continue
		}
		flush()
		out = append(out, w)
	}
	flush()

	return strings.Join(out, " ")
}

// leet — типовые замены символов на буквы.
var leet = map[rune]rune{
	'@': 'a', '4': 'a',
	'3': 'e',
	'1': 'i', '!': 'i',
	'0': 'o',
	'5': 's', '$': 's',
	'7': 't', '+': 't',
	'8': 'b',
}

// Normalize строит вариант текста для проверки на обход:
// NFKC (полноширинные и стилизованные буквы), нижний регистр, leetspeak,
// удаление разделителей (. - _ * ~ и пробелы), повторы 3+ → 2.
func Normalize(text string) string {
	s := strings.ToLower(norm.NFKC.String(text))

	s = strings.Map(func(r rune) rune {
		if sub, ok := leet[r]; ok {
			return sub
		}
		switch {
		case r == '.' || r == '-' || r == '_' || r == '*' || r == '~':
			return -1
		case unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)

	return collapseRuns(s, 2)
}

// collapseRuns укорачивает серии одинаковых символов до max.
func collapseRuns(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		prev = r
		if run <= max {
			b.WriteRune(r)
		}
	}
	return b.String()
}
