package transcribe

import (
	"fmt"
	"strings"
)

// Raw is the tagged union of provider response payloads. Each provider
// client returns its own concrete type; Normalize maps them all onto the
// common Result shape with an exhaustive switch.
type Raw interface {
	rawProvider() string
}

// Result is the normalized transcription outcome returned to callers.
type Result struct {
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"` // 0 when the provider reports none
	Language     string  `json:"language,omitempty"`
	Provider     string  `json:"provider"`
	ElapsedMs    int64   `json:"elapsed_ms"`
	UsedFallback bool    `json:"used_fallback"`
	Words        []Word  `json:"words,omitempty"` // nil if unsupported by the provider
}

// Word is a timestamped word from any STT provider.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}

// Normalize maps a provider's raw payload onto a Result. Optional fields
// (confidence, language, word timestamps) default to neutral values; a
// payload without transcript text is rejected as malformed. The function
// is pure: the same payload always yields an identical Result.
func Normalize(providerID string, raw Raw) (*Result, error) {
	switch v := raw.(type) {
	case *WhisperRaw:
		text := strings.TrimSpace(v.Text)
		if text == "" {
			return nil, &MalformedResponseError{Provider: providerID, Field: "text"}
		}
		return &Result{
			Text:     text,
			Language: v.Language,
			Provider: providerID,
			Words:    whisperWords(v.Words),
		}, nil

	case *HuggingFaceRaw:
		text := strings.TrimSpace(v.Text)
		if text == "" {
			return nil, &MalformedResponseError{Provider: providerID, Field: "text"}
		}
		return &Result{
			Text:     text,
			Provider: providerID,
		}, nil

	case *DeepInfraRaw:
		text := strings.TrimSpace(v.Text)
		if text == "" {
			return nil, &MalformedResponseError{Provider: providerID, Field: "text"}
		}
		return &Result{
			Text:     text,
			Language: v.Language,
			Provider: providerID,
			Words:    deepInfraWords(v),
		}, nil

	case *AssemblyAIRaw:
		text := strings.TrimSpace(v.Text)
		if text == "" {
			return nil, &MalformedResponseError{Provider: providerID, Field: "text"}
		}
		r := &Result{
			Text:     text,
			Language: v.LanguageCode,
			Provider: providerID,
		}
		if v.Confidence != nil {
			r.Confidence = *v.Confidence
		}
		if len(v.Words) > 0 {
			words := make([]Word, len(v.Words))
			for i, w := range v.Words {
				words[i] = Word{
					Word:  w.Text,
					Start: float64(w.StartMs) / 1000.0,
					End:   float64(w.EndMs) / 1000.0,
				}
			}
			r.Words = words
		}
		return r, nil

	default:
		return nil, fmt.Errorf("%s: unsupported response payload %T", providerID, raw)
	}
}

func whisperWords(in []WhisperWord) []Word {
	if len(in) == 0 {
		return nil
	}
	words := make([]Word, len(in))
	for i, w := range in {
		words[i] = Word{Word: w.Word, Start: w.Start, End: w.End}
	}
	return words
}

// deepInfraWords prefers word-level timestamps and falls back to evenly
// interpolating across segment time ranges.
func deepInfraWords(v *DeepInfraRaw) []Word {
	if len(v.Words) > 0 {
		words := make([]Word, len(v.Words))
		for i, w := range v.Words {
			words[i] = Word{Word: w.Text, Start: w.Start, End: w.End}
		}
		return words
	}

	var words []Word
	for _, seg := range v.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		tokens := strings.Fields(text)
		wordDur := (seg.End - seg.Start) / float64(len(tokens))
		for i, tok := range tokens {
			words = append(words, Word{
				Word:  tok,
				Start: seg.Start + float64(i)*wordDur,
				End:   seg.Start + float64(i+1)*wordDur,
			})
		}
	}
	return words
}
