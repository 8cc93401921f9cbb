package analysis

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Lexicon is a versioned set of filler words and phrases. Entries are
// stored lowercase; matching is case-insensitive because tokenization
// lowercases first.
type Lexicon struct {
	Version string

	singles map[string]bool
	phrases [][]string // multi-word entries, longest first
}

var defaultEntries = []string{
	"um", "uh", "er", "ah", "hmm",
	"like", "actually", "basically", "literally",
	"you know", "i mean", "sort of", "kind of",
}

// DefaultLexicon returns the compiled-in filler lexicon.
func DefaultLexicon() *Lexicon {
	return newLexicon("builtin-v1", defaultEntries)
}

// NewLexicon builds a lexicon from entries. Multi-word entries are
// matched as phrases.
func NewLexicon(version string, entries []string) *Lexicon {
	return newLexicon(version, entries)
}

func newLexicon(version string, entries []string) *Lexicon {
	lex := &Lexicon{
		Version: version,
		singles: make(map[string]bool),
	}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		words := strings.Fields(e)
		if len(words) == 1 {
			lex.singles[words[0]] = true
		} else {
			lex.phrases = append(lex.phrases, words)
		}
	}
	sort.SliceStable(lex.phrases, func(i, j int) bool {
		return len(lex.phrases[i]) > len(lex.phrases[j])
	})
	return lex
}

// Entries returns the lexicon contents, singles then phrases.
func (l *Lexicon) Entries() []string {
	out := make([]string, 0, len(l.singles)+len(l.phrases))
	for s := range l.singles {
		out = append(out, s)
	}
	sort.Strings(out)
	for _, p := range l.phrases {
		out = append(out, strings.Join(p, " "))
	}
	return out
}

// LoadLexiconFile reads a lexicon from a text file: one entry per line,
// blank lines and #-comments ignored. The version is the file basename.
func LoadLexiconFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("lexicon %s has no entries", path)
	}
	return newLexicon(filepath.Base(path), entries), nil
}

// LexiconSource hands out the current lexicon and, when a file path is
// configured, watches it for changes and reloads. Compute stays pure:
// callers grab a lexicon snapshot per request.
type LexiconSource struct {
	current atomic.Pointer[Lexicon]
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
	log     zerolog.Logger
}

// NewLexiconSource creates a source seeded with the default lexicon. If
// path is non-empty the file is loaded immediately and watched for
// changes; a missing or bad file falls back to the default.
func NewLexiconSource(path string, log zerolog.Logger) *LexiconSource {
	s := &LexiconSource{
		path: path,
		done: make(chan struct{}),
		log:  log.With().Str("component", "lexicon").Logger(),
	}
	s.current.Store(DefaultLexicon())

	if path == "" {
		return s
	}

	if lex, err := LoadLexiconFile(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("custom lexicon unavailable, using builtin")
	} else {
		s.current.Store(lex)
		s.log.Info().Str("version", lex.Version).Int("entries", len(lex.Entries())).Msg("custom lexicon loaded")
	}
	return s
}

// Current returns the lexicon snapshot for one computation.
func (s *LexiconSource) Current() *Lexicon {
	return s.current.Load()
}

// Watch starts reloading the lexicon file when it changes. No-op when no
// path is configured.
func (s *LexiconSource) Watch() error {
	if s.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("lexicon watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops a
	// watch on the file itself.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = w

	go s.loop()
	return nil
}

func (s *LexiconSource) loop() {
	target := filepath.Clean(s.path)
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			lex, err := LoadLexiconFile(s.path)
			if err != nil {
				s.log.Warn().Err(err).Msg("lexicon reload failed, keeping previous")
				continue
			}
			s.current.Store(lex)
			s.log.Info().Int("entries", len(lex.Entries())).Msg("lexicon reloaded")
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("lexicon watcher error")
		}
	}
}

// Close stops the watcher.
func (s *LexiconSource) Close() {
	close(s.done)
	if s.watcher != nil {
		s.watcher.Close()
	}
}
