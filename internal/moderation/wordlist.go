// wordlist.go — словарный классификатор: встроенный английский словарь
// плюс дополнительные слова. Сравнение по токенам, без подстрок.
package moderation

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
	"unicode"
)

//go:embed words/*.txt
var wordsFS embed.FS

// ExtraWords — слова, добавляемые к встроенному словарю.
var ExtraWords = []string{"stfu", "gtfo", "kys", "kms", "pedo"}

// WordList — классификатор по словарю. Безопасен для конкурентного чтения.
type WordList struct {
	words map[string]struct{}
}

// NewWordList создаёт классификатор из набора слов.
func NewWordList(words ...string) *WordList {
	wl := &WordList{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			wl.words[w] = struct{}{}
		}
	}
	return wl
}

// LoadDefaultWordList загружает встроенный словарь lang и добавляет ExtraWords.
func LoadDefaultWordList(lang string) (*WordList, error) {
	f, err := wordsFS.Open("words/" + lang + ".txt")
	if err != nil {
		return nil, fmt.Errorf("словарь %q не найден: %w", lang, err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения словаря %q: %w", lang, err)
	}

	return NewWordList(append(words, ExtraWords...)...), nil
}

// Len возвращает размер словаря.
func (wl *WordList) Len() int {
	return len(wl.words)
}

// IsProfane разбивает текст на токены (буквы, цифры, $ и @) и ищет каждый в словаре.
func (wl *WordList) IsProfane(text string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '$' && r != '@'
	})
	for _, tok := range tokens {
		if _, ok := wl.words[tok]; ok {
			return true
		}
	}
	return false
}
