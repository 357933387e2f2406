package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks censored words in chat text.
// A Moderator built without words leaves every text unchanged.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

// normalized keeps, for every searchable rune, its index in the original text.
type normalized struct {
	runes   []rune
	origIdx []int
}

func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	m := &Moderator{censoredChar: censoredChar, log: log}

	patterns := lo.FilterMap(censoredWords, func(word string, _ int) ([]rune, bool) {
		p := normalizeRunes([]rune(word))
		return p, len(p) > 0
	})
	if len(patterns) == 0 {
		log.Debug("Moderation disabled, no censored words")
		return m, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	m.matcher = machine
	log.Debug("Moderation enabled", "words", len(patterns))
	return m, nil
}

// ParseWords splits a comma separated list, dropping blanks.
func ParseWords(csv string) []string {
	words := lo.Map(strings.Split(csv, ","), func(w string, _ int) string { return strings.TrimSpace(w) })
	return lo.Compact(words)
}

// Censor replaces every match with the censored character, keeping the
// length and the punctuation of the original text. It also returns the
// matched words in normalized form.
func (m *Moderator) Censor(original string) (string, []string) {
	if m == nil || m.matcher == nil {
		return original, nil
	}
	mapping := normalize(original)
	if len(mapping.runes) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.runes, false)
	if len(spans) == 0 {
		return original, nil
	}

	out := []rune(original)
	var words []string
	for _, span := range spans {
		start, end := span.Pos, span.Pos+len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			out[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}
	m.log.Debug("Message censored", "words", words)
	return string(out), words
}

func normalize(input string) normalized {
	orig := []rune(input)
	n := normalized{runes: make([]rune, 0, len(orig)), origIdx: make([]int, 0, len(orig))}
	for i, r := range orig {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		n.runes = append(n.runes, unicode.ToLower(clean))
		n.origIdx = append(n.origIdx, i)
	}
	return n
}

func normalizeRunes(input []rune) []rune {
	return normalize(string(input)).runes
}

// simplifyRune maps leet speak characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
