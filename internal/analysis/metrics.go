// Package analysis computes scalar speech metrics from a transcript and
// the recording duration. Everything here is a pure function of its
// inputs and the lexicon version.
package analysis

import (
	"strings"
)

// maxFillerExamples caps how many matched filler tokens are reported back
// to the caller alongside the total count.
const maxFillerExamples = 10

// minDurationSeconds is the floor substituted for zero or unknown
// durations so rate metrics never divide by zero.
const minDurationSeconds = 1.0

// Metrics are the derived speech features fed into feedback generation.
type Metrics struct {
	WordCount      int      `json:"word_count"`
	WordsPerMinute float64  `json:"words_per_minute"`
	FillerCount    int      `json:"filler_count"`
	Fillers        []string `json:"fillers,omitempty"` // first matches, capped
}

// Compute derives metrics from transcript text and the clip duration in
// seconds. Deterministic for identical inputs and lexicon.
func Compute(text string, durationSec float64, lex *Lexicon) Metrics {
	tokens := tokenize(text)

	m := Metrics{WordCount: len(tokens)}

	if durationSec < minDurationSeconds {
		durationSec = minDurationSeconds
	}
	m.WordsPerMinute = float64(m.WordCount) / (durationSec / 60.0)

	m.FillerCount, m.Fillers = countFillers(tokens, lex)
	return m
}

// tokenize lowercases the text, strips punctuation, and splits on
// whitespace. Apostrophes survive so contractions stay one word.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			b.WriteRune(r)
		case r > 127:
			// Keep non-ASCII letters as-is; lexicon entries are ASCII so
			// they never match, but the word count stays honest.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// countFillers scans the token stream left to right, matching lexicon
// entries in appearance order. Multi-word phrases ("you know") are tried
// longest first at each position, so a token consumed by a phrase is not
// double counted as a single-word filler.
func countFillers(tokens []string, lex *Lexicon) (int, []string) {
	if lex == nil || len(tokens) == 0 {
		return 0, nil
	}

	count := 0
	var examples []string

	record := func(match string) {
		count++
		if len(examples) < maxFillerExamples {
			examples = append(examples, match)
		}
	}

	i := 0
scan:
	for i < len(tokens) {
		for _, phrase := range lex.phrases {
			n := len(phrase)
			if i+n <= len(tokens) && matchRun(tokens[i:i+n], phrase) {
				record(strings.Join(phrase, " "))
				i += n
				continue scan
			}
		}
		if lex.singles[tokens[i]] {
			record(tokens[i])
		}
		i++
	}

	return count, examples
}

func matchRun(tokens, phrase []string) bool {
	for i := range phrase {
		if tokens[i] != phrase[i] {
			return false
		}
	}
	return true
}
